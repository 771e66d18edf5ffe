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

package utils

import (
	"path/filepath"

	"github.com/cloudwego/appealswarm/internal/log"
	"github.com/fsnotify/fsnotify"
)

// WatchDir calls cb for every create/write/remove/rename event under dir
// (non-recursive) until the returned stop func is called.
func WatchDir(dir string, cb func(op fsnotify.Op, file string)) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, WrapError(err, "create watcher")
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, WrapError(err, "watch %s", dir)
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				cb(ev.Op, filepath.Clean(ev.Name))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("watch %s: %v", dir, err)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		w.Close()
	}, nil
}
