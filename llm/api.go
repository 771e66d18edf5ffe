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

package llm

import (
	"strings"

	"github.com/cloudwego/eino/components/model"
)

// ModelConfig selects and parameterises one chat model backend.
type ModelConfig struct {
	Name        string    `json:"name" yaml:"name"` // alias of the config, not endpoint!
	APIType     ModelType `json:"type" yaml:"type"`
	BaseURL     string    `json:"base_url" yaml:"base_url"`
	APIKey      string    `json:"-" yaml:"-"`
	ModelName   string    `json:"model_name" yaml:"model_name"` // the endpoint of the model, like `gpt-4o`
	Temperature *float32  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens" yaml:"max_tokens"`
}

type ModelType string

func NewModelType(t string) ModelType {
	switch strings.ToLower(t) {
	case "ollama":
		return ModelTypeOllama
	case "ark", "doubao":
		return ModelTypeARK
	case "openai", "gpt":
		return ModelTypeOpenAI
	case "claude", "anthropic":
		return ModelTypeClaude
	case "dashscope", "qwen", "tongyi":
		return ModelTypeDashScope
	case "deepseek":
		return ModelTypeDeepSeek
	}
	return ModelTypeUnknown
}

const (
	ModelTypeUnknown   ModelType = ""
	ModelTypeOllama    ModelType = "ollama"
	ModelTypeARK       ModelType = "ark"
	ModelTypeOpenAI    ModelType = "openai"
	ModelTypeClaude    ModelType = "claude"
	ModelTypeDashScope ModelType = "dashscope"
	ModelTypeDeepSeek  ModelType = "deepseek"
)

// NeedsAPIKey reports whether the backend authenticates with an API key.
func (t ModelType) NeedsAPIKey() bool {
	return t != ModelTypeOllama
}

// ChatModel is the interface for making LLM backend.
type ChatModel interface {
	model.ToolCallingChatModel
}
