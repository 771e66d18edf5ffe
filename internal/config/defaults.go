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
	"github.com/spf13/viper"
)

const (
	DefaultAddr           = ":8080"
	DefaultSessionTTL     = 30 * time.Minute
	DefaultMaxUploadBytes = 25 << 20
	DefaultAPIKeyEnv      = "OPENAI_API_KEY"
	DefaultSimDelay       = 2 * time.Second
)

// setDefaults registers every key so that env overrides apply to all of them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeSimulated))

	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.session_ttl", DefaultSessionTTL)
	v.SetDefault("server.max_upload_bytes", DefaultMaxUploadBytes)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("live.api_key_env", DefaultAPIKeyEnv)
	v.SetDefault("live.chat.name", "writer")
	v.SetDefault("live.chat.type", string(llm.ModelTypeOpenAI))
	v.SetDefault("live.chat.base_url", "")
	v.SetDefault("live.chat.model_name", "gpt-4o")
	v.SetDefault("live.chat.max_tokens", 2048)
	v.SetDefault("live.vision.name", "vision")
	v.SetDefault("live.vision.type", string(llm.ModelTypeOpenAI))
	v.SetDefault("live.vision.base_url", "")
	v.SetDefault("live.vision.model_name", "gpt-4o")
	v.SetDefault("live.vision.max_tokens", 300)
	v.SetDefault("live.transcription.base_url", "")
	v.SetDefault("live.transcription.model", "whisper-1")
	v.SetDefault("live.transcription.language", "")

	v.SetDefault("simulation.delay", DefaultSimDelay)
	v.SetDefault("simulation.seed", 0)

	v.SetDefault("prompts.dir", "")
	v.SetDefault("prompts.watch", false)

	v.SetDefault("pipeline.max_retry", 0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
