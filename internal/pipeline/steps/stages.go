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

package steps

import (
	"context"
	"errors"

	"github.com/cloudwego/appealswarm/internal/pipeline"
	"github.com/cloudwego/appealswarm/llm/agent"
)

// NewSession builds the coordinator of one fresh session with all three
// stages wired to ex.
func NewSession(id string, ex agent.Executor, opts pipeline.Options) *pipeline.Coordinator {
	return Wire(pipeline.NewCoordinator(pipeline.NewSessionState(id), opts), ex)
}

// Wire registers the three stages on c, each backed by ex.
func Wire(c *pipeline.Coordinator, ex agent.Executor) *pipeline.Coordinator {
	return c.
		On(pipeline.TriggerAnalyzeImage, &RadiologyStep{Executor: ex}).
		On(pipeline.TriggerRecordingComplete, &TranscriptStep{Executor: ex}).
		On(pipeline.TriggerGenerateLetter, &LetterStep{Executor: ex})
}

// RadiologyStep analyzes the uploaded image into the radiology slot.
type RadiologyStep struct {
	Executor agent.Executor
}

func (s *RadiologyStep) Name() string              { return string(pipeline.SlotRadiology) }
func (s *RadiologyStep) Slot() pipeline.Slot       { return pipeline.SlotRadiology }
func (s *RadiologyStep) Requires() []pipeline.Slot { return nil }

func (s *RadiologyStep) Run(ctx context.Context, st *pipeline.SessionState, ev pipeline.Event) (*pipeline.StepResult, error) {
	text, err := s.Executor.AnalyzeImage(ctx, ev.Evidence)
	if err != nil {
		return failed(err), err
	}
	return ok(pipeline.NewSnapshot(pipeline.SlotRadiology, text)), nil
}

// TranscriptStep transcribes a finished recording into the transcript slot.
type TranscriptStep struct {
	Executor agent.Executor
}

func (s *TranscriptStep) Name() string              { return string(pipeline.SlotTranscript) }
func (s *TranscriptStep) Slot() pipeline.Slot       { return pipeline.SlotTranscript }
func (s *TranscriptStep) Requires() []pipeline.Slot { return nil }

func (s *TranscriptStep) Run(ctx context.Context, st *pipeline.SessionState, ev pipeline.Event) (*pipeline.StepResult, error) {
	text, err := s.Executor.TranscribeAudio(ctx, ev.Evidence)
	if err != nil {
		return failed(err), err
	}
	return ok(pipeline.NewSnapshot(pipeline.SlotTranscript, text)), nil
}

// LetterStep drafts the appeal from the radiology and transcript slots. The
// policy is taken from the event and never stored.
type LetterStep struct {
	Executor agent.Executor
}

func (s *LetterStep) Name() string        { return string(pipeline.SlotLetter) }
func (s *LetterStep) Slot() pipeline.Slot { return pipeline.SlotLetter }
func (s *LetterStep) Requires() []pipeline.Slot {
	return []pipeline.Slot{pipeline.SlotRadiology, pipeline.SlotTranscript}
}

func (s *LetterStep) Run(ctx context.Context, st *pipeline.SessionState, ev pipeline.Event) (*pipeline.StepResult, error) {
	radiology, _ := st.Get(pipeline.SlotRadiology)
	transcript, _ := st.Get(pipeline.SlotTranscript)
	if radiology == nil || transcript == nil {
		// the coordinator gates on Requires, so this only happens on misuse
		err := &pipeline.GateError{Stage: s.Name(), Missing: st.Missing(s.Requires()...)}
		return failed(err), err
	}
	text, err := s.Executor.DraftLetter(ctx, agent.LetterRequest{
		Radiology:  radiology.Text,
		Transcript: transcript.Text,
		Policy:     ev.Policy,
	})
	if err != nil {
		return failed(err), err
	}
	return ok(pipeline.NewSnapshot(pipeline.SlotLetter, text, radiology, transcript)), nil
}

func ok(snap *pipeline.Snapshot) *pipeline.StepResult {
	return &pipeline.StepResult{Status: pipeline.StepOK, Snapshot: snap}
}

// failed marks provider errors as worth retrying; bad input never is.
func failed(err error) *pipeline.StepResult {
	var ext *agent.ExternalServiceError
	return &pipeline.StepResult{
		Status:      pipeline.StepFailed,
		Recoverable: errors.As(err, &ext),
	}
}
