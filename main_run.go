/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudwego/appealswarm/internal/config"
	"github.com/cloudwego/appealswarm/internal/log"
	"github.com/cloudwego/appealswarm/internal/media"
	"github.com/cloudwego/appealswarm/internal/metrics"
	"github.com/cloudwego/appealswarm/internal/pipeline"
	"github.com/cloudwego/appealswarm/internal/pipeline/steps"
	"github.com/cloudwego/appealswarm/llm"
	"github.com/cloudwego/appealswarm/llm/agent"
	"github.com/cloudwego/appealswarm/llm/prompt"
)

// engine is what every surface shares: one executor and the pipeline
// options new sessions are built with.
type engine struct {
	Executor agent.Executor
	Options  pipeline.Options
	prompts  *prompt.Store
}

func newEngine(ctx context.Context, cfg *config.Config, getenv func(string) string) (*engine, error) {
	prompts, err := prompt.NewStore(prompt.StoreOptions{Dir: cfg.Prompts.Dir, Watch: cfg.Prompts.Watch})
	if err != nil {
		return nil, err
	}
	ex, err := newExecutor(ctx, cfg, prompts, getenv)
	if err != nil {
		prompts.Close()
		return nil, err
	}
	return &engine{
		Executor: ex,
		Options: pipeline.Options{
			Agent:    &pipeline.DefaultAgent{MaxRetry: cfg.Pipeline.MaxRetry},
			Observer: metrics.StageObserver{},
		},
		prompts: prompts,
	}, nil
}

func newExecutor(ctx context.Context, cfg *config.Config, prompts *prompt.Store, getenv func(string) string) (agent.Executor, error) {
	if cfg.Mode == config.ModeSimulated {
		return agent.NewSimulatedExecutor(agent.SimulatedOptions{
			Delay:   cfg.Simulation.Delay,
			Seed:    cfg.Simulation.Seed,
			Prompts: prompts,
		})
	}
	if err := cfg.ResolveCredentials(getenv); err != nil {
		return nil, err
	}
	vision, err := llm.NewChatModel(ctx, cfg.Live.Vision)
	if err != nil {
		return nil, fmt.Errorf("vision model: %w", err)
	}
	writer, err := llm.NewChatModel(ctx, cfg.Live.Chat)
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}
	return agent.NewLiveExecutor(agent.LiveOptions{
		Vision:          vision,
		VisionMaxTokens: cfg.Live.Vision.MaxTokens,
		Writer:          writer,
		Transcriber: agent.NewWhisperTranscriber(agent.WhisperOptions{
			APIKey:   cfg.Live.APIKey,
			BaseURL:  cfg.Live.Transcription.BaseURL,
			Model:    cfg.Live.Transcription.Model,
			Language: cfg.Live.Transcription.Language,
		}),
		Prompts:  prompts,
		Provider: string(cfg.Live.Vision.APIType),
	})
}

func (e *engine) NewSession(id string) *pipeline.Coordinator {
	return steps.NewSession(id, e.Executor, e.Options)
}

func (e *engine) Close() {
	e.prompts.Close()
}

type runOptions struct {
	Image  string
	Audio  string
	Policy string
	Output string
}

// runOnce drives a fresh session through all three stages in order.
func runOnce(ctx context.Context, e *engine, opts runOptions) error {
	img, err := readEvidence(opts.Image, media.NewImage)
	if err != nil {
		return err
	}
	audio, err := readEvidence(opts.Audio, media.NewAudio)
	if err != nil {
		return err
	}

	session := e.NewSession("cli")
	events := []pipeline.Event{
		{Trigger: pipeline.TriggerAnalyzeImage, Evidence: img},
		{Trigger: pipeline.TriggerRecordingComplete, Evidence: audio},
		{Trigger: pipeline.TriggerGenerateLetter, Policy: opts.Policy},
	}
	var letter *pipeline.Snapshot
	for _, ev := range events {
		snap, err := session.Dispatch(ctx, ev)
		if err != nil {
			return err
		}
		if snap.Slot != pipeline.SlotLetter {
			log.Info("%s: %s", snap.Slot, snap.Text)
		}
		letter = snap
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(letter.Text), 0o644); err != nil {
			return err
		}
		log.Info("letter written to %s", opts.Output)
		return nil
	}
	fmt.Fprintln(os.Stdout, letter.Text)
	return nil
}

func readEvidence(path string, parse func(string, []byte) (media.Evidence, error)) (media.Evidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return media.Evidence{}, err
	}
	return parse(filepath.Base(path), data)
}
