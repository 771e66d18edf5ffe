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

package server

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/appealswarm/internal/log"
	"github.com/cloudwego/appealswarm/internal/metrics"
	"github.com/cloudwego/appealswarm/internal/pipeline"
	"github.com/google/uuid"
)

// SessionFactory builds the coordinator of a new session.
type SessionFactory func(id string) *pipeline.Coordinator

// Session is one browser's pipeline.
type Session struct {
	ID          string
	Coordinator *pipeline.Coordinator

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Registry holds the live sessions and evicts idle ones.
type Registry struct {
	factory SessionFactory
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(factory SessionFactory, ttl time.Duration) *Registry {
	return &Registry{
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session with id and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Create starts a new empty session.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	s := &Session{ID: id, Coordinator: r.factory(id), lastSeen: r.now()}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	metrics.SessionOpened()
	log.Debug("session %s created", id)
	return s
}

// Delete discards a session. A stage still running for it finishes but its
// result is dropped with the session.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		metrics.SessionClosed()
		log.Debug("session %s deleted", id)
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var expired []string
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()
	n := 0
	for _, id := range expired {
		if r.Delete(id) {
			n++
		}
	}
	if n > 0 {
		log.Info("evicted %d idle session(s)", n)
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

// Close drops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Delete(id)
	}
}
