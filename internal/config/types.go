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
	"time"

	"github.com/cloudwego/appealswarm/llm"
)

type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeLive      Mode = "live"
)

// Config is the whole runtime configuration. Field names follow the yaml tags.
type Config struct {
	Mode       Mode             `yaml:"mode" jsonschema:"enum=simulated,enum=live,description=simulated fakes every AI call; live calls the provider"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Live       LiveConfig       `yaml:"live"`
	Simulation SimulationConfig `yaml:"simulation"`
	Prompts    PromptsConfig    `yaml:"prompts"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	SessionTTL     time.Duration `yaml:"session_ttl" jsonschema:"type=string,description=idle time before a session is discarded, e.g. 30m"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level      string `yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	File       string `yaml:"file" jsonschema:"description=also write logs to this rotating file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type LiveConfig struct {
	// APIKeyEnv names the environment variable holding the provider key.
	APIKeyEnv     string              `yaml:"api_key_env"`
	Chat          llm.ModelConfig     `yaml:"chat"`
	Vision        llm.ModelConfig     `yaml:"vision"`
	Transcription TranscriptionConfig `yaml:"transcription"`

	// APIKey is resolved from APIKeyEnv and never serialized.
	APIKey string `yaml:"-" json:"-"`
}

type TranscriptionConfig struct {
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type SimulationConfig struct {
	Delay time.Duration `yaml:"delay" jsonschema:"type=string,description=artificial latency of every simulated call"`
	Seed  uint64        `yaml:"seed" jsonschema:"description=0 picks a random seed"`
}

type PromptsConfig struct {
	Dir   string `yaml:"dir" jsonschema:"description=directory with prompt overrides named like the built-in templates"`
	Watch bool   `yaml:"watch"`
}

type PipelineConfig struct {
	MaxRetry int `yaml:"max_retry" jsonschema:"minimum=0"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}
