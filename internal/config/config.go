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

	"github.com/cloudwego/appealswarm/internal/utils"
	"github.com/cloudwego/appealswarm/llm"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: APPEAL_SERVER_ADDR sets server.addr.
const EnvPrefix = "APPEAL"

// Load reads the YAML file at path (optional) over the defaults, applies
// environment overrides and validates the result. Credentials are not
// resolved here; see ResolveCredentials.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, utils.WrapError(err, "reading config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, utils.WrapError(err, "parsing config")
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MissingCredentialError is fatal at startup in live mode.
type MissingCredentialError struct {
	Env string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential: environment variable %s is not set", e.Env)
}

// ResolveCredentials looks up the provider key in live mode. Simulated mode
// needs no credential. Transcription always authenticates, so the key is
// required even when both chat backends are keyless.
func (c *Config) ResolveCredentials(getenv func(string) string) error {
	if c.Mode != ModeLive {
		return nil
	}
	key := strings.TrimSpace(getenv(c.Live.APIKeyEnv))
	if key == "" {
		return &MissingCredentialError{Env: c.Live.APIKeyEnv}
	}
	c.Live.APIKey = key
	for _, mc := range []*llm.ModelConfig{&c.Live.Chat, &c.Live.Vision} {
		if mc.APIType.NeedsAPIKey() {
			mc.APIKey = key
		}
	}
	return nil
}

// YAML renders the effective configuration. Credentials are omitted.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Schema returns the JSON schema of the configuration file.
func Schema() (string, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:              "yaml",
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(&Config{})
	s.Title = "appealswarm configuration"
	return utils.MarshalJSONIndent(s)
}
