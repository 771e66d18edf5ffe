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
	"fmt"
	"time"

	"github.com/cloudwego/appealswarm/internal/log"
	"golang.org/x/sync/semaphore"
)

// Observer is notified about stage lifecycle events, e.g. for metrics.
type Observer interface {
	StageStarted(stage string)
	StageFinished(stage string, status StepStatus, elapsed time.Duration)
	GateRejected(stage string)
	BusyRejected(stage string)
}

type nopObserver struct{}

func (nopObserver) StageStarted(string)                             {}
func (nopObserver) StageFinished(string, StepStatus, time.Duration) {}
func (nopObserver) GateRejected(string)                             {}
func (nopObserver) BusyRejected(string)                             {}

// Options configures a Coordinator.
type Options struct {
	Agent    Agent
	Observer Observer
}

// Coordinator owns one session's state and runs one step per dispatched
// trigger. Steps of one session never run concurrently: a trigger for a
// stage that is already in flight is rejected with ErrStageBusy, and
// triggers for other stages wait for the running one to finish.
type Coordinator struct {
	state    *SessionState
	agent    Agent
	observer Observer
	handlers map[Trigger]*handler
	run      chan struct{}
}

type handler struct {
	step Step
	busy *semaphore.Weighted
}

func NewCoordinator(st *SessionState, opts Options) *Coordinator {
	if opts.Agent == nil {
		opts.Agent = &DefaultAgent{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Coordinator{
		state:    st,
		agent:    opts.Agent,
		observer: opts.Observer,
		handlers: make(map[Trigger]*handler),
		run:      make(chan struct{}, 1),
	}
}

// On registers the step that handles a trigger. It must be called before
// the first Dispatch.
func (c *Coordinator) On(t Trigger, step Step) *Coordinator {
	c.handlers[t] = &handler{step: step, busy: semaphore.NewWeighted(1)}
	return c
}

func (c *Coordinator) State() *SessionState { return c.state }

// Dispatch runs the transition registered for ev.Trigger and returns the
// snapshot written to the step's slot. Gate failures return a *GateError,
// step failures a *StageError; in both cases the state is unchanged.
//
// The step runs detached from ctx cancellation: once an executor call has
// been issued it is waited for.
func (c *Coordinator) Dispatch(ctx context.Context, ev Event) (*Snapshot, error) {
	h, ok := c.handlers[ev.Trigger]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, ev.Trigger)
	}
	name := h.step.Name()
	if !h.busy.TryAcquire(1) {
		c.observer.BusyRejected(name)
		log.Warn("session %s: %s rejected, previous run still in flight", c.state.SessionID, name)
		return nil, fmt.Errorf("%s: %w", name, ErrStageBusy)
	}
	defer h.busy.Release(1)

	select {
	case c.run <- struct{}{}:
	default:
		select {
		case c.run <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer func() { <-c.run }()

	if missing := c.state.Missing(h.step.Requires()...); len(missing) > 0 {
		gerr := &GateError{Stage: name, Missing: missing}
		c.state.record(StepRecord{StepName: name, Status: StepBlocked, Error: gerr.Error(), Time: time.Now()})
		c.observer.GateRejected(name)
		log.Info("session %s: %v", c.state.SessionID, gerr)
		return nil, gerr
	}
	return c.runStep(context.WithoutCancel(ctx), h.step, ev)
}

func (c *Coordinator) runStep(ctx context.Context, step Step, ev Event) (*Snapshot, error) {
	attempt := 0
	for {
		attempt++
		start := time.Now()
		c.observer.StageStarted(step.Name())
		result, err := safeRun(ctx, step, c.state, ev)
		if err == nil && result != nil && result.Status == StepOK && result.Snapshot != nil {
			c.state.Put(result.Snapshot)
			c.state.record(StepRecord{
				StepName: step.Name(),
				Attempt:  attempt,
				Status:   StepOK,
				Time:     time.Now(),
			})
			c.observer.StageFinished(step.Name(), StepOK, time.Since(start))
			log.Info("session %s: %s ok (attempt %d, %s)", c.state.SessionID, step.Name(), attempt, time.Since(start).Round(time.Millisecond))
			return result.Snapshot, nil
		}

		// Build result for Agent if step returned nil result
		if result == nil {
			result = &StepResult{Status: StepFailed, Recoverable: true}
		}
		if result.Status == StepOK {
			if err == nil {
				err = errors.New("step produced no result")
			}
			result = &StepResult{Status: StepFailed, Recoverable: false}
		}

		decision := c.agent.OnStepFailure(ctx, step, c.state, result, attempt)
		status := StepFailed
		if decision == DecisionRetry {
			status = StepRetry
		}
		c.state.record(StepRecord{
			StepName: step.Name(),
			Attempt:  attempt,
			Status:   status,
			Error:    errStr(err),
			Time:     time.Now(),
		})
		c.observer.StageFinished(step.Name(), status, time.Since(start))
		log.Warn("session %s: %s attempt %d failed: %v", c.state.SessionID, step.Name(), attempt, err)

		if decision == DecisionRetry {
			continue
		}
		if err == nil {
			err = fmt.Errorf("step %s failed (abort)", step.Name())
		}
		return nil, &StageError{Stage: step.Name(), Attempts: attempt, Err: err}
	}
}

// safeRun turns a panicking step into an ordinary unrecoverable failure so
// that one bad executor response cannot take the session down.
func safeRun(ctx context.Context, step Step, st *SessionState, ev Event) (res *StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = &StepResult{Status: StepFailed, Recoverable: false}
			err = fmt.Errorf("step %s panicked: %v", step.Name(), r)
		}
	}()
	return step.Run(ctx, st, ev)
}

func errStr(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
