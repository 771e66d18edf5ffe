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
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qwen"
)

const defaultMaxTokens = 4 * 1024

// NewChatModel builds the backend named by m.APIType. No client timeout or
// retry policy is set, so provider defaults apply.
func NewChatModel(ctx context.Context, m ModelConfig) (ChatModel, error) {
	if m.MaxTokens == 0 {
		m.MaxTokens = defaultMaxTokens
	}
	switch m.APIType {
	case ModelTypeARK:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     m.BaseURL,
			APIKey:      m.APIKey,
			Model:       m.ModelName,
			Temperature: m.Temperature,
			MaxTokens:   &m.MaxTokens,
		})
	case ModelTypeOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     m.BaseURL,
			APIKey:      m.APIKey,
			Model:       m.ModelName,
			Temperature: m.Temperature,
			MaxTokens:   &m.MaxTokens,
		})
	case ModelTypeDashScope:
		// DashScope (Qwen) uses OpenAI-compatible API
		baseURL := m.BaseURL
		if baseURL == "" {
			baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
		}
		return qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
			BaseURL:     baseURL,
			APIKey:      m.APIKey,
			Model:       m.ModelName,
			Temperature: m.Temperature,
			MaxTokens:   &m.MaxTokens,
		})
	case ModelTypeDeepSeek:
		// DeepSeek uses OpenAI-compatible API
		baseURL := m.BaseURL
		if baseURL == "" {
			baseURL = "https://api.deepseek.com"
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     baseURL,
			APIKey:      m.APIKey,
			Model:       m.ModelName,
			Temperature: m.Temperature,
			MaxTokens:   &m.MaxTokens,
		})
	case ModelTypeOllama:
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: m.BaseURL,
			Model:   m.ModelName,
		})
	case ModelTypeClaude:
		var baseURL *string
		if m.BaseURL != "" {
			baseURL = &m.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			BaseURL:     baseURL,
			APIKey:      m.APIKey,
			Model:       m.ModelName,
			Temperature: m.Temperature,
			MaxTokens:   m.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unsupported model type %q", m.APIType)
	}
}
