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
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "ignored"))

	err := WrapError(fs.ErrNotExist, "open %s", "policy.txt")
	require.Error(t, err)
	assert.Equal(t, "open policy.txt: file does not exist", err.Error())
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestMarshalJSONBytes_KeepsHTML(t *testing.T) {
	js, err := MarshalJSONBytes(map[string]string{"letter": `<b>"Dear"</b>`})
	require.NoError(t, err)
	assert.Equal(t, `{"letter":"<b>\"Dear\"</b>"}`, string(js))
}

func TestWatchDir(t *testing.T) {
	dir := t.TempDir()
	events := make(chan string, 8)
	stop, err := WatchDir(dir, func(op fsnotify.Op, file string) {
		if op&(fsnotify.Create|fsnotify.Write) != 0 {
			events <- filepath.Base(file)
		}
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "letter.tmpl"), []byte("x"), 0o644))
	select {
	case name := <-events:
		assert.Equal(t, "letter.tmpl", name)
	case <-time.After(5 * time.Second):
		t.Fatal("no watch event received")
	}
}

func TestWatchDir_MissingDir(t *testing.T) {
	_, err := WatchDir(filepath.Join(t.TempDir(), "nope"), func(fsnotify.Op, string) {})
	assert.Error(t, err)
}
