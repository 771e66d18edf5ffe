// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/appealswarm/internal/log"
	"github.com/cloudwego/appealswarm/internal/media"
	"github.com/cloudwego/appealswarm/internal/utils"
	"github.com/cloudwego/appealswarm/llm"
	"github.com/cloudwego/appealswarm/llm/prompt"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const defaultVisionMaxTokens = 300

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio media.Evidence) (string, error)
}

type LiveOptions struct {
	// Vision analyzes images. It must accept image URL message parts.
	Vision llm.ChatModel
	// VisionMaxTokens caps the analysis length. 0 means 300.
	VisionMaxTokens int
	// Writer drafts the letter.
	Writer      llm.ChatModel
	Transcriber Transcriber
	Prompts     *prompt.Store
	// Provider names the backend in error messages.
	Provider string
}

// LiveExecutor calls an external AI provider once per operation.
type LiveExecutor struct {
	opts LiveOptions
}

var _ Executor = (*LiveExecutor)(nil)

func NewLiveExecutor(opts LiveOptions) (*LiveExecutor, error) {
	if opts.Vision == nil || opts.Writer == nil {
		return nil, fmt.Errorf("live executor: vision and writer models are required")
	}
	if opts.Transcriber == nil {
		return nil, fmt.Errorf("live executor: transcriber is required")
	}
	if opts.Prompts == nil {
		return nil, fmt.Errorf("live executor: prompt store is required")
	}
	if opts.VisionMaxTokens <= 0 {
		opts.VisionMaxTokens = defaultVisionMaxTokens
	}
	if opts.Provider == "" {
		opts.Provider = string(llm.ModelTypeOpenAI)
	}
	return &LiveExecutor{opts: opts}, nil
}

func (e *LiveExecutor) Name() string { return "live" }

func (e *LiveExecutor) AnalyzeImage(ctx context.Context, image media.Evidence) (string, error) {
	if err := checkEvidence(image, media.KindImage); err != nil {
		return "", err
	}
	instruction, err := e.opts.Prompts.Render(prompt.NameRadiology, nil)
	if err != nil {
		return "", err
	}
	msgs := []*schema.Message{{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: instruction.String()},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:    image.DataURI(),
					Detail: schema.ImageURLDetailAuto,
				},
			},
		},
	}}
	log.Debug("analyze image %s (%s, %d bytes)", image.Filename, image.MIMEType, len(image.Data))
	ctx = llm.WithTracing(ctx, "radiologist")
	resp, err := e.opts.Vision.Generate(ctx, msgs, model.WithMaxTokens(e.opts.VisionMaxTokens))
	return e.content("analyze image", resp, err)
}

func (e *LiveExecutor) TranscribeAudio(ctx context.Context, audio media.Evidence) (string, error) {
	if err := checkEvidence(audio, media.KindAudio); err != nil {
		return "", err
	}
	log.Debug("transcribe %s (%s, %d bytes)", audio.Filename, audio.MIMEType, len(audio.Data))
	text, err := e.opts.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", &ExternalServiceError{Op: "transcribe audio", Provider: e.opts.Provider, Err: err}
	}
	return text, nil
}

func (e *LiveExecutor) DraftLetter(ctx context.Context, req LetterRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	p, err := e.opts.Prompts.Render(prompt.NameLetter, prompt.LetterData{
		Policy:     ResolvePolicy(req.Policy),
		Radiology:  req.Radiology,
		Transcript: req.Transcript,
	})
	if err != nil {
		return "", err
	}
	ctx = llm.WithTracing(ctx, "case-manager")
	resp, err := e.opts.Writer.Generate(ctx, []*schema.Message{schema.UserMessage(p.String())})
	return e.content("draft letter", resp, err)
}

func (e *LiveExecutor) content(op string, resp *schema.Message, err error) (string, error) {
	if err != nil {
		return "", &ExternalServiceError{Op: op, Provider: e.opts.Provider, Err: err}
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", &ExternalServiceError{Op: op, Provider: e.opts.Provider, Err: fmt.Errorf("empty response")}
	}
	return resp.Content, nil
}

func checkEvidence(ev media.Evidence, kind media.Kind) error {
	if ev.Empty() {
		return utils.WrapError(media.ErrInvalidEvidence, "no %s provided", kind)
	}
	if ev.Kind != kind {
		return utils.WrapError(media.ErrInvalidEvidence, "expected %s, got %s", kind, ev.Kind)
	}
	return nil
}
