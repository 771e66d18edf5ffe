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

package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/cloudwego/appealswarm/internal/log"
	"github.com/cloudwego/appealswarm/internal/utils"
	"github.com/fsnotify/fsnotify"
)

// StoreOptions configures where prompt overrides come from.
type StoreOptions struct {
	// Dir holds override files named like the embedded templates. Empty
	// means embedded defaults only.
	Dir string
	// Watch reloads overrides when files in Dir change.
	Watch bool
}

// Store renders prompt templates. Overrides are looked up first, then the
// embedded defaults.
type Store struct {
	opts      StoreOptions
	defaults  map[string]*template.Template
	mu        sync.RWMutex
	overrides map[string]*template.Template
	stop      func()
}

func NewStore(opts StoreOptions) (*Store, error) {
	s := &Store{
		opts:      opts,
		defaults:  make(map[string]*template.Template, len(Names())),
		overrides: make(map[string]*template.Template),
	}
	for _, name := range Names() {
		raw, err := embedded.ReadFile("templates/" + name)
		if err != nil {
			return nil, err
		}
		tpl, err := parse(name, raw)
		if err != nil {
			return nil, err
		}
		s.defaults[name] = tpl
	}
	if opts.Dir == "" {
		return s, nil
	}
	for _, name := range Names() {
		if err := s.load(filepath.Join(opts.Dir, name)); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	if opts.Watch {
		stop, err := utils.WatchDir(opts.Dir, s.onChange)
		if err != nil {
			return nil, err
		}
		s.stop = stop
	}
	return s, nil
}

// Render executes the named template with data.
func (s *Store) Render(name string, data any) (Prompt, error) {
	s.mu.RLock()
	tpl, ok := s.overrides[name]
	s.mu.RUnlock()
	if !ok {
		tpl, ok = s.defaults[name]
	}
	if !ok {
		return nil, fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, utils.WrapError(err, "render prompt %s", name)
	}
	return NewTextPrompt(buf.String()), nil
}

// Overridden reports whether name is currently served from the override dir.
func (s *Store) Overridden(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.overrides[name]
	return ok
}

func (s *Store) Close() {
	if s.stop != nil {
		s.stop()
	}
}

func (s *Store) onChange(op fsnotify.Op, file string) {
	name := filepath.Base(file)
	if !known(name) {
		return
	}
	if op&(fsnotify.Write|fsnotify.Create) != 0 {
		if err := s.load(file); err != nil {
			// keep serving the previous version
			log.Error("reload prompt %s: %v", name, err)
			return
		}
		log.Info("prompt %s reloaded from %s", name, file)
	} else if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		s.mu.Lock()
		delete(s.overrides, name)
		s.mu.Unlock()
		log.Info("prompt %s reverted to built-in default", name)
	}
}

func (s *Store) load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	tpl, err := parse(name, raw)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.overrides[name] = tpl
	s.mu.Unlock()
	return nil
}

func parse(name string, raw []byte) (*template.Template, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, utils.WrapError(err, "parse prompt %s", name)
	}
	return tpl, nil
}

func known(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}
