/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/appealswarm/internal/config"
	"github.com/cloudwego/appealswarm/internal/media/mediatest"
	"github.com/cloudwego/appealswarm/llm/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, mode config.Mode) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Mode = mode
	cfg.Simulation.Delay = 0
	return cfg
}

func TestNewEngine_Simulated(t *testing.T) {
	e, err := newEngine(context.Background(), testConfig(t, config.ModeSimulated), func(string) string { return "" })
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, "simulated", e.Executor.Name())
}

func TestNewEngine_LiveNeedsCredential(t *testing.T) {
	cfg := testConfig(t, config.ModeLive)
	_, err := newEngine(context.Background(), cfg, func(string) string { return "" })
	var missing *config.MissingCredentialError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "OPENAI_API_KEY", missing.Env)

	e, err := newEngine(context.Background(), cfg, func(k string) string {
		if k == "OPENAI_API_KEY" {
			return "sk-test"
		}
		return ""
	})
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, "live", e.Executor.Name())
}

func TestRunOnce(t *testing.T) {
	e, err := newEngine(context.Background(), testConfig(t, config.ModeSimulated), func(string) string { return "" })
	require.NoError(t, err)
	defer e.Close()

	dir := t.TempDir()
	img := filepath.Join(dir, "xray.png")
	audio := filepath.Join(dir, "note.wav")
	out := filepath.Join(dir, "letter.txt")
	require.NoError(t, os.WriteFile(img, mediatest.PNG(), 0o644))
	require.NoError(t, os.WriteFile(audio, mediatest.WAV(1600), 0o644))

	require.NoError(t, runOnce(context.Background(), e, runOptions{Image: img, Audio: audio, Output: out}))
	letter, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(letter), "SUBJECT: APPEAL FOR CLAIM DENIAL"))
	assert.Contains(t, string(letter), agent.DefaultPolicy)
	assert.Contains(t, string(letter), agent.SimulatedTranscript)

	err = runOnce(context.Background(), e, runOptions{Image: audio, Audio: audio, Output: out})
	assert.Error(t, err)
}
