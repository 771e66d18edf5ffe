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
	"bytes"
	"context"

	"github.com/cloudwego/appealswarm/internal/media"
	goopenai "github.com/meguminnnnnnnnn/go-openai"
)

type WhisperOptions struct {
	APIKey string
	// BaseURL overrides the OpenAI endpoint, e.g. for a compatible gateway.
	BaseURL  string
	Model    string
	Language string
}

// WhisperTranscriber sends recordings to the OpenAI transcription endpoint.
type WhisperTranscriber struct {
	client   *goopenai.Client
	model    string
	language string
}

var _ Transcriber = (*WhisperTranscriber)(nil)

func NewWhisperTranscriber(opts WhisperOptions) *WhisperTranscriber {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = goopenai.Whisper1
	}
	return &WhisperTranscriber{
		client:   goopenai.NewClientWithConfig(cfg),
		model:    opts.Model,
		language: opts.Language,
	}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio media.Evidence) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model: w.model,
		// the endpoint infers the container from the file name
		FilePath: audio.Filename,
		Reader:   bytes.NewReader(audio.Data),
		Language: w.language,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
