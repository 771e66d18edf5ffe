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
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// mockStep returns a fixed text, or fails with err while failures > 0.
type mockStep struct {
	name        string
	slot        Slot
	requires    []Slot
	text        string
	err         error
	failures    int32
	recoverable bool
	calls       int32
	block       chan struct{}
	started     chan struct{}
	panics      bool
}

func (m *mockStep) Name() string {
	if m.name != "" {
		return m.name
	}
	return string(m.slot)
}

func (m *mockStep) Slot() Slot       { return m.slot }
func (m *mockStep) Requires() []Slot { return m.requires }

func (m *mockStep) Run(ctx context.Context, st *SessionState, ev Event) (*StepResult, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	if m.panics {
		panic("boom")
	}
	if atomic.AddInt32(&m.failures, -1) >= 0 {
		return &StepResult{Status: StepFailed, Recoverable: m.recoverable}, m.err
	}
	var inputs []*Snapshot
	for _, r := range m.requires {
		snap, _ := st.Get(r)
		inputs = append(inputs, snap)
	}
	text := m.text
	if ev.Policy != "" {
		text += " / " + ev.Policy
	}
	return &StepResult{Status: StepOK, Snapshot: NewSnapshot(m.slot, text, inputs...)}, nil
}

func newTestCoordinator(agent Agent) (*Coordinator, *mockStep, *mockStep, *mockStep) {
	rad := &mockStep{slot: SlotRadiology, text: "fracture #19"}
	tr := &mockStep{slot: SlotTranscript, text: "patient in pain"}
	letter := &mockStep{slot: SlotLetter, text: "Dear insurer", requires: []Slot{SlotRadiology, SlotTranscript}}
	c := NewCoordinator(NewSessionState("s-1"), Options{Agent: agent}).
		On(TriggerAnalyzeImage, rad).
		On(TriggerRecordingComplete, tr).
		On(TriggerGenerateLetter, letter)
	return c, rad, tr, letter
}

func TestCoordinator_Dispatch_WritesSlot(t *testing.T) {
	c, rad, _, _ := newTestCoordinator(nil)
	snap, err := c.Dispatch(context.Background(), Event{Trigger: TriggerAnalyzeImage})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if snap.Slot != SlotRadiology || snap.Text != rad.text {
		t.Errorf("snapshot: got %+v", snap)
	}
	if got := c.State().Text(SlotRadiology); got != rad.text {
		t.Errorf("radiology slot: got %q", got)
	}
	h := c.State().History()
	if len(h) != 1 || h[0].Status != StepOK || h[0].StepName != "radiology" {
		t.Errorf("history: got %+v", h)
	}
}

func TestCoordinator_GateBlocksLetter(t *testing.T) {
	ctx := context.Background()
	c, _, _, letter := newTestCoordinator(nil)

	check := func(wantMissing ...Slot) {
		t.Helper()
		_, err := c.Dispatch(ctx, Event{Trigger: TriggerGenerateLetter})
		if !errors.Is(err, ErrPreconditionNotMet) {
			t.Fatalf("expected ErrPreconditionNotMet, got %v", err)
		}
		var gerr *GateError
		if !errors.As(err, &gerr) {
			t.Fatalf("expected *GateError, got %T", err)
		}
		if len(gerr.Missing) != len(wantMissing) {
			t.Fatalf("missing: got %v, want %v", gerr.Missing, wantMissing)
		}
		for i := range wantMissing {
			if gerr.Missing[i] != wantMissing[i] {
				t.Errorf("missing[%d]: got %s", i, gerr.Missing[i])
			}
		}
		if _, ok := c.State().Get(SlotLetter); ok {
			t.Error("letter slot must stay empty")
		}
	}

	check(SlotRadiology, SlotTranscript)
	if _, err := c.Dispatch(ctx, Event{Trigger: TriggerRecordingComplete}); err != nil {
		t.Fatal(err)
	}
	check(SlotRadiology)
	if atomic.LoadInt32(&letter.calls) != 0 {
		t.Fatalf("letter step invoked %d times before gate opened", letter.calls)
	}

	if _, err := c.Dispatch(ctx, Event{Trigger: TriggerAnalyzeImage}); err != nil {
		t.Fatal(err)
	}
	snap, err := c.Dispatch(ctx, Event{Trigger: TriggerGenerateLetter, Policy: "Rule 7"})
	if err != nil {
		t.Fatalf("Dispatch letter: %v", err)
	}
	if snap.Text != "Dear insurer / Rule 7" {
		t.Errorf("letter: got %q", snap.Text)
	}
	if atomic.LoadInt32(&letter.calls) != 1 {
		t.Errorf("letter calls: got %d", letter.calls)
	}

	var blocked int
	for _, r := range c.State().History() {
		if r.Status == StepBlocked {
			blocked++
		}
	}
	if blocked != 2 {
		t.Errorf("blocked records: got %d", blocked)
	}
}

func TestCoordinator_RerunOverwritesOnlyItsSlot(t *testing.T) {
	ctx := context.Background()
	c, rad, _, _ := newTestCoordinator(nil)
	for _, trig := range []Trigger{TriggerAnalyzeImage, TriggerRecordingComplete, TriggerGenerateLetter} {
		if _, err := c.Dispatch(ctx, Event{Trigger: trig}); err != nil {
			t.Fatal(err)
		}
	}
	st := c.State()
	transcript, _ := st.Get(SlotTranscript)
	letter, _ := st.Get(SlotLetter)
	if st.LetterStale() {
		t.Fatal("fresh letter reported stale")
	}

	rad.text = "abscess #30"
	if _, err := c.Dispatch(ctx, Event{Trigger: TriggerAnalyzeImage}); err != nil {
		t.Fatal(err)
	}
	if got := st.Text(SlotRadiology); got != "abscess #30" {
		t.Errorf("radiology: got %q", got)
	}
	if cur, _ := st.Get(SlotTranscript); cur != transcript {
		t.Error("transcript snapshot replaced")
	}
	if cur, _ := st.Get(SlotLetter); cur != letter {
		t.Error("letter snapshot replaced")
	}
	if !st.LetterStale() {
		t.Error("letter should be stale after radiology rerun")
	}

	if _, err := c.Dispatch(ctx, Event{Trigger: TriggerGenerateLetter}); err != nil {
		t.Fatal(err)
	}
	if st.LetterStale() {
		t.Error("regenerated letter reported stale")
	}
}

func TestCoordinator_FailureLeavesSlot(t *testing.T) {
	ctx := context.Background()
	c, rad, _, _ := newTestCoordinator(nil)
	if _, err := c.Dispatch(ctx, Event{Trigger: TriggerAnalyzeImage}); err != nil {
		t.Fatal(err)
	}
	before, _ := c.State().Get(SlotRadiology)

	rad.failures = 1
	rad.recoverable = true
	rad.err = errors.New("provider timeout")
	_, err := c.Dispatch(ctx, Event{Trigger: TriggerAnalyzeImage})
	var serr *StageError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if serr.Stage != "radiology" || serr.Attempts != 1 {
		t.Errorf("stage error: got %+v", serr)
	}
	if !errors.Is(err, rad.err) {
		t.Error("stage error should wrap the step error")
	}
	if after, _ := c.State().Get(SlotRadiology); after != before {
		t.Error("failed run modified the radiology slot")
	}
	h := c.State().History()
	if last := h[len(h)-1]; last.Status != StepFailed || last.Error == "" {
		t.Errorf("last history record: %+v", last)
	}
}

func TestCoordinator_FailureOnEmptySlot(t *testing.T) {
	c, _, tr, _ := newTestCoordinator(nil)
	tr.failures = 1
	tr.err = errors.New("auth failure")
	if _, err := c.Dispatch(context.Background(), Event{Trigger: TriggerRecordingComplete}); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := c.State().Get(SlotTranscript); ok {
		t.Error("transcript slot must stay empty")
	}
}

func TestCoordinator_RetryPolicy(t *testing.T) {
	c, rad, _, _ := newTestCoordinator(&DefaultAgent{MaxRetry: 2})
	rad.failures = 2
	rad.recoverable = true
	rad.err = errors.New("connection reset")
	if _, err := c.Dispatch(context.Background(), Event{Trigger: TriggerAnalyzeImage}); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if rad.calls != 3 {
		t.Errorf("calls: got %d", rad.calls)
	}
	h := c.State().History()
	if len(h) != 3 || h[0].Status != StepRetry || h[2].Status != StepOK {
		t.Errorf("history: %+v", h)
	}
}

func TestCoordinator_NoRetryByDefault(t *testing.T) {
	c, rad, _, _ := newTestCoordinator(nil)
	rad.failures = 5
	rad.recoverable = true
	rad.err = errors.New("rate limited")
	if _, err := c.Dispatch(context.Background(), Event{Trigger: TriggerAnalyzeImage}); err == nil {
		t.Fatal("expected error")
	}
	if rad.calls != 1 {
		t.Errorf("calls: got %d, want 1", rad.calls)
	}
}

func TestCoordinator_BusyRejectsSameStage(t *testing.T) {
	c, rad, tr, _ := newTestCoordinator(nil)
	rad.block = make(chan struct{})
	rad.started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := c.Dispatch(context.Background(), Event{Trigger: TriggerAnalyzeImage})
		done <- err
	}()
	<-rad.started

	_, err := c.Dispatch(context.Background(), Event{Trigger: TriggerAnalyzeImage})
	if !errors.Is(err, ErrStageBusy) {
		t.Fatalf("expected ErrStageBusy, got %v", err)
	}

	// a different stage waits for the running one
	trDone := make(chan error, 1)
	go func() {
		_, err := c.Dispatch(context.Background(), Event{Trigger: TriggerRecordingComplete})
		trDone <- err
	}()
	select {
	case <-trDone:
		t.Fatal("transcript ran while radiology was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	if atomic.LoadInt32(&tr.calls) != 0 {
		t.Fatal("transcript step started concurrently")
	}

	close(rad.block)
	if err := <-done; err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := <-trDone; err != nil {
		t.Fatalf("transcript dispatch: %v", err)
	}
	if rad.calls != 1 {
		t.Errorf("radiology calls: got %d", rad.calls)
	}
}

func TestCoordinator_CancelledContextDoesNotCancelStep(t *testing.T) {
	c, _, _, _ := newTestCoordinator(nil)
	c.On(TriggerAnalyzeImage, stepFunc(func(ctx context.Context) (*StepResult, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &StepResult{Status: StepOK, Snapshot: NewSnapshot(SlotRadiology, "ok")}, nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Dispatch(ctx, Event{Trigger: TriggerAnalyzeImage}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

func TestCoordinator_PanicIsContained(t *testing.T) {
	c, rad, _, _ := newTestCoordinator(nil)
	rad.panics = true
	_, err := c.Dispatch(context.Background(), Event{Trigger: TriggerAnalyzeImage})
	var serr *StageError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if _, ok := c.State().Get(SlotRadiology); ok {
		t.Error("slot written after panic")
	}
}

func TestCoordinator_UnknownTrigger(t *testing.T) {
	c := NewCoordinator(NewSessionState("s"), Options{})
	_, err := c.Dispatch(context.Background(), Event{Trigger: "reticulate"})
	if !errors.Is(err, ErrUnknownTrigger) {
		t.Fatalf("got %v", err)
	}
}

func TestDefaultAgent_OnStepFailure(t *testing.T) {
	ctx := context.Background()
	agent := &DefaultAgent{MaxRetry: 1}

	t.Run("abort when not recoverable", func(t *testing.T) {
		d := agent.OnStepFailure(ctx, nil, nil, &StepResult{Recoverable: false}, 1)
		if d != DecisionAbort {
			t.Errorf("got %s", d)
		}
	})

	t.Run("retry when recoverable and under max", func(t *testing.T) {
		d := agent.OnStepFailure(ctx, nil, nil, &StepResult{Recoverable: true}, 1)
		if d != DecisionRetry {
			t.Errorf("got %s", d)
		}
	})

	t.Run("abort when recoverable and past max", func(t *testing.T) {
		d := agent.OnStepFailure(ctx, nil, nil, &StepResult{Recoverable: true}, 2)
		if d != DecisionAbort {
			t.Errorf("got %s", d)
		}
	})

	t.Run("zero value never retries", func(t *testing.T) {
		d := (&DefaultAgent{}).OnStepFailure(ctx, nil, nil, &StepResult{Recoverable: true}, 1)
		if d != DecisionAbort {
			t.Errorf("got %s", d)
		}
	})
}

type stepFunc func(ctx context.Context) (*StepResult, error)

func (f stepFunc) Name() string     { return "func" }
func (f stepFunc) Slot() Slot       { return SlotRadiology }
func (f stepFunc) Requires() []Slot { return nil }
func (f stepFunc) Run(ctx context.Context, _ *SessionState, _ Event) (*StepResult, error) {
	return f(ctx)
}
