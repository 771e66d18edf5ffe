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
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cloudwego/appealswarm/internal/media"
	"github.com/cloudwego/appealswarm/llm/prompt"
)

// DefaultSimulationDelay is how long every simulated operation blocks.
const DefaultSimulationDelay = 2 * time.Second

const subjectPolicyRunes = 40

// Diagnoses is the fixed pool simulated image analysis draws from.
var Diagnoses = []string{
	"Analysis: Severe vertical root fracture visible in Tooth #19. Prognosis hopeless.",
	"Analysis: Large periapical radiolucency (abscess) detected at apex of Tooth #30.",
	"Analysis: Class II caries extending into the pulp chamber. Direct pulp cap failed.",
	"Analysis: Significant bone loss (50%) indicating advanced Periodontitis.",
	"Analysis: Impacted wisdom tooth (#32) compressing the inferior alveolar nerve.",
}

// SimulatedTranscript is returned for every recording in simulation mode.
const SimulatedTranscript = "Transcript: 'Patient presents with excruciating pain. Previous conservative treatments have failed. This procedure is not elective; it is urgent and medically necessary.'"

type SimulatedOptions struct {
	// Delay is applied before every operation. Negative means none.
	Delay time.Duration
	// Seed makes diagnosis selection reproducible. 0 picks a random seed.
	Seed    uint64
	Prompts *prompt.Store
}

// SimulatedExecutor fakes the provider with canned output.
type SimulatedExecutor struct {
	delay   time.Duration
	prompts *prompt.Store

	mu  sync.Mutex
	rng *rand.Rand
}

var _ Executor = (*SimulatedExecutor)(nil)

func NewSimulatedExecutor(opts SimulatedOptions) (*SimulatedExecutor, error) {
	if opts.Prompts == nil {
		ps, err := prompt.NewStore(prompt.StoreOptions{})
		if err != nil {
			return nil, err
		}
		opts.Prompts = ps
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	seed1, seed2 := opts.Seed, opts.Seed^0x9e3779b97f4a7c15
	if opts.Seed == 0 {
		seed1, seed2 = rand.Uint64(), rand.Uint64()
	}
	return &SimulatedExecutor{
		delay:   opts.Delay,
		prompts: opts.Prompts,
		rng:     rand.New(rand.NewPCG(seed1, seed2)),
	}, nil
}

func (e *SimulatedExecutor) Name() string { return "simulated" }

func (e *SimulatedExecutor) AnalyzeImage(ctx context.Context, image media.Evidence) (string, error) {
	if err := checkEvidence(image, media.KindImage); err != nil {
		return "", err
	}
	if err := e.wait(ctx); err != nil {
		return "", err
	}
	e.mu.Lock()
	i := e.rng.IntN(len(Diagnoses))
	e.mu.Unlock()
	return Diagnoses[i], nil
}

func (e *SimulatedExecutor) TranscribeAudio(ctx context.Context, audio media.Evidence) (string, error) {
	if err := checkEvidence(audio, media.KindAudio); err != nil {
		return "", err
	}
	if err := e.wait(ctx); err != nil {
		return "", err
	}
	return SimulatedTranscript, nil
}

func (e *SimulatedExecutor) DraftLetter(ctx context.Context, req LetterRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	if err := e.wait(ctx); err != nil {
		return "", err
	}
	policy := ResolvePolicy(req.Policy)
	p, err := e.prompts.Render(prompt.NameSimulatedLetter, prompt.LetterData{
		Policy:     policy,
		Radiology:  req.Radiology,
		Transcript: req.Transcript,
		Subject:    truncateRunes(policy, subjectPolicyRunes),
	})
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

func (e *SimulatedExecutor) wait(ctx context.Context) error {
	if e.delay == 0 {
		return nil
	}
	t := time.NewTimer(e.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
