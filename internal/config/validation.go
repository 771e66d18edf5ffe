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

package config

import (
	"fmt"
	"strings"

	"github.com/cloudwego/appealswarm/llm"
)

func validate(c *Config) error {
	switch c.Mode {
	case ModeSimulated, ModeLive:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeSimulated, ModeLive, c.Mode)
	}
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Log.validate(); err != nil {
		return err
	}
	if c.Simulation.Delay < 0 {
		return fmt.Errorf("simulation.delay must be >= 0")
	}
	if c.Pipeline.MaxRetry < 0 {
		return fmt.Errorf("pipeline.max_retry must be >= 0")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	if c.Mode == ModeLive {
		return c.Live.validate()
	}
	return nil
}

func (s *ServerConfig) validate() error {
	if strings.TrimSpace(s.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if s.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be > 0")
	}
	if s.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be > 0")
	}
	return nil
}

func (l *LogConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", l.Level)
	}
	if l.File != "" && l.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0 when log.file is set")
	}
	return nil
}

func (l *LiveConfig) validate() error {
	if strings.TrimSpace(l.APIKeyEnv) == "" {
		return fmt.Errorf("live.api_key_env is required")
	}
	for _, e := range []struct {
		key string
		m   *llm.ModelConfig
	}{{"live.chat", &l.Chat}, {"live.vision", &l.Vision}} {
		key, m := e.key, e.m
		t := llm.NewModelType(string(m.APIType))
		if t == llm.ModelTypeUnknown {
			return fmt.Errorf("%s.type %q is not supported", key, m.APIType)
		}
		m.APIType = t
		if strings.TrimSpace(m.ModelName) == "" {
			return fmt.Errorf("%s.model_name is required", key)
		}
	}
	if strings.TrimSpace(l.Transcription.Model) == "" {
		return fmt.Errorf("live.transcription.model is required")
	}
	return nil
}
