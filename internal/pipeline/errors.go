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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPreconditionNotMet is wrapped by GateError. No executor call was made.
	ErrPreconditionNotMet = errors.New("precondition not met")
	// ErrStageBusy rejects a trigger whose stage is still running for the
	// same session.
	ErrStageBusy = errors.New("stage is already running")
	// ErrUnknownTrigger means no step was registered for the trigger.
	ErrUnknownTrigger = errors.New("unknown trigger")
)

// GateError reports the slots a gated stage is still waiting for.
type GateError struct {
	Stage   string
	Missing []Slot
}

func (e *GateError) Error() string {
	names := make([]string, len(e.Missing))
	for i, s := range e.Missing {
		names[i] = string(s)
	}
	return fmt.Sprintf("%s: waiting for %s", e.Stage, strings.Join(names, ", "))
}

func (e *GateError) Unwrap() error { return ErrPreconditionNotMet }

// StageError is a contained stage failure. The stage's slot was left as it was.
type StageError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
