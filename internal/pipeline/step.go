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

package pipeline

import (
	"context"

	"github.com/cloudwego/appealswarm/internal/media"
)

// Step is one pipeline stage. It reads upstream slots from the state and
// returns a snapshot for its own slot; it never writes the state itself.
type Step interface {
	Name() string
	// Slot is where a successful result is stored.
	Slot() Slot
	// Requires lists the slots that must be populated before Run is called.
	Requires() []Slot
	Run(ctx context.Context, st *SessionState, ev Event) (*StepResult, error)
}

// StepResult is what a step hands back to the coordinator.
type StepResult struct {
	Status      StepStatus
	Snapshot    *Snapshot
	Recoverable bool
}

// Trigger names a user action that maps to exactly one stage.
type Trigger string

const (
	// TriggerAnalyzeImage is the explicit "Analyze" press on an uploaded image.
	TriggerAnalyzeImage Trigger = "analyze-image"
	// TriggerRecordingComplete fires when a voice recording finishes; there
	// is no separate run action for transcription.
	TriggerRecordingComplete Trigger = "recording-complete"
	// TriggerGenerateLetter is the "Generate" press. It is gated on the
	// radiology and transcript slots.
	TriggerGenerateLetter Trigger = "generate-letter"
)

// Event carries the live inputs of one trigger. Evidence is used by the
// radiology and transcript stages, Policy only by the letter stage.
type Event struct {
	Trigger  Trigger
	Evidence media.Evidence
	Policy   string
}
