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
	"sync"
	"time"
)

// Slot names one entry of the session store. Each stage writes exactly one
// slot.
type Slot string

const (
	SlotRadiology  Slot = "radiology"
	SlotTranscript Slot = "transcript"
	SlotLetter     Slot = "letter"
)

const maxHistory = 64

// SessionState is the store for one interactive session. Slots are absent
// until their stage first succeeds and are overwritten in place on reruns.
// It is safe to read while a stage is running.
type SessionState struct {
	SessionID string

	mu      sync.RWMutex
	slots   map[Slot]*Snapshot
	history []StepRecord
}

func NewSessionState(sessionID string) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		slots:     make(map[Slot]*Snapshot, 3),
	}
}

// StepRecord is an immutable log entry for one step execution.
type StepRecord struct {
	StepName string     `json:"step"`
	Attempt  int        `json:"attempt"`
	Status   StepStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
	Time     time.Time  `json:"time"`
}

// StepStatus is the outcome of a step run.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepRetry   StepStatus = "retry"
	StepBlocked StepStatus = "blocked"
)

func (s *SessionState) Get(slot Slot) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.slots[slot]
	return snap, ok
}

// Text returns the slot's result text, or "" when the slot is empty.
func (s *SessionState) Text(slot Slot) string {
	if snap, ok := s.Get(slot); ok {
		return snap.Text
	}
	return ""
}

// Put overwrites the snapshot's slot and nothing else.
func (s *SessionState) Put(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	s.slots[snap.Slot] = snap
	s.mu.Unlock()
}

// Missing lists the given slots that have not been populated yet, in order.
func (s *SessionState) Missing(slots ...Slot) []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var missing []Slot
	for _, slot := range slots {
		if _, ok := s.slots[slot]; !ok {
			missing = append(missing, slot)
		}
	}
	return missing
}

func (s *SessionState) Populated(slots ...Slot) bool {
	return len(s.Missing(slots...)) == 0
}

// LetterStale reports whether a letter exists that was drafted from
// radiology or transcript results that have since been replaced.
func (s *SessionState) LetterStale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	letter, ok := s.slots[SlotLetter]
	if !ok {
		return false
	}
	for slot, hash := range letter.Inputs {
		cur, ok := s.slots[slot]
		if !ok || cur.Hash != hash || cur.CreatedAt.After(letter.CreatedAt) {
			return true
		}
	}
	return false
}

func (s *SessionState) record(r StepRecord) {
	s.mu.Lock()
	s.history = append(s.history, r)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.mu.Unlock()
}

// History returns a copy of the run log, oldest first.
func (s *SessionState) History() []StepRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]StepRecord(nil), s.history...)
}

// StateView is the read model handed to presentation surfaces.
type StateView struct {
	SessionID   string       `json:"session_id"`
	Radiology   string       `json:"radiology,omitempty"`
	Transcript  string       `json:"transcript,omitempty"`
	Letter      string       `json:"letter,omitempty"`
	LetterStale bool         `json:"letter_stale"`
	CanGenerate bool         `json:"can_generate"`
	History     []StepRecord `json:"history"`
}

func (s *SessionState) View() StateView {
	return StateView{
		SessionID:   s.SessionID,
		Radiology:   s.Text(SlotRadiology),
		Transcript:  s.Text(SlotTranscript),
		Letter:      s.Text(SlotLetter),
		LetterStale: s.LetterStale(),
		CanGenerate: s.Populated(SlotRadiology, SlotTranscript),
		History:     s.History(),
	}
}
