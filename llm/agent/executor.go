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

	"github.com/cloudwego/appealswarm/internal/media"
)

// DefaultPolicy stands in for the policy rule when the user supplies none.
const DefaultPolicy = "Standard Medical Necessity Guidelines"

// Executor performs the work of the three stages. Implementations must be
// safe for concurrent use by independent sessions.
type Executor interface {
	Name() string
	// AnalyzeImage describes the pathology visible in an image, worded to
	// support an insurance claim.
	AnalyzeImage(ctx context.Context, image media.Evidence) (string, error)
	// TranscribeAudio turns a dictated note into text.
	TranscribeAudio(ctx context.Context, audio media.Evidence) (string, error)
	// DraftLetter writes the appeal letter. The output is returned as is.
	DraftLetter(ctx context.Context, req LetterRequest) (string, error)
}

type LetterRequest struct {
	Radiology  string
	Transcript string
	Policy     string
}

// ResolvePolicy returns the policy to cite, falling back to DefaultPolicy
// when it is blank.
func ResolvePolicy(policy string) string {
	if strings.TrimSpace(policy) == "" {
		return DefaultPolicy
	}
	return policy
}

func (r LetterRequest) validate() error {
	if strings.TrimSpace(r.Radiology) == "" {
		return fmt.Errorf("letter request: radiology is empty")
	}
	if strings.TrimSpace(r.Transcript) == "" {
		return fmt.Errorf("letter request: transcript is empty")
	}
	return nil
}

// ExternalServiceError reports a failed call to an AI provider.
type ExternalServiceError struct {
	Op       string
	Provider string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %s call failed: %v", e.Op, e.Provider, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
