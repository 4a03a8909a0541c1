/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/playconv/internal/backend"
	"github.com/valpere/playconv/internal/sink"
	"github.com/valpere/playconv/internal/translator"
)

type endpointSettings struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

type backendSettings struct {
	Kind                 string        `mapstructure:"kind"`
	Streaming            bool          `mapstructure:"streaming"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxToolIterations    int           `mapstructure:"max_tool_iterations"`
	MaxTokens            int           `mapstructure:"max_tokens"`
	Temperature          float64       `mapstructure:"temperature"`
	RetrievalCollections []string      `mapstructure:"retrieval_collections"`
	RateLimit            float64       `mapstructure:"rate_limit"`
	Burst                int           `mapstructure:"burst"`
}

type llamaStackSettings struct {
	Local  endpointSettings `mapstructure:"local"`
	Remote endpointSettings `mapstructure:"remote"`
}

type outputSettings struct {
	Dir string        `mapstructure:"dir"`
	S3  sink.S3Config `mapstructure:"s3"`
}

type repairSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	URL     string `mapstructure:"url"`
}

type analysisSettings struct {
	Language     string `mapstructure:"language"`
	Credentials  string `mapstructure:"credentials"`
	ProjectID    string `mapstructure:"project_id"`
	SegmentRunes int    `mapstructure:"segment_runes"`
}

// settings mirrors config.yaml.
type settings struct {
	Backend    backendSettings    `mapstructure:"backend"`
	LlamaStack llamaStackSettings `mapstructure:"llama_stack"`
	Completion endpointSettings   `mapstructure:"completion"`
	Chat       endpointSettings   `mapstructure:"chat"`
	Gemini     endpointSettings   `mapstructure:"gemini"`
	Output     outputSettings     `mapstructure:"output"`
	Repair     repairSettings     `mapstructure:"repair"`
	Analysis   analysisSettings   `mapstructure:"analysis"`
	DB         string             `mapstructure:"db"`
	Workers    int                `mapstructure:"workers"`
	APIKey     string             `mapstructure:"api_key"`
	CacheSize  int                `mapstructure:"cache_size"`
}

func setDefaults() {
	viper.SetDefault("backend.kind", "agent")
	viper.SetDefault("backend.streaming", false)
	viper.SetDefault("backend.timeout", backend.DefaultTimeout)
	viper.SetDefault("backend.max_tool_iterations", backend.DefaultMaxToolIterations)
	viper.SetDefault("backend.max_tokens", backend.DefaultMaxTokens)
	viper.SetDefault("backend.temperature", 0.2)
	viper.SetDefault("backend.retrieval_collections", backend.DefaultCollections)
	viper.SetDefault("llama_stack.local.base_url", "http://localhost:8321")
	viper.SetDefault("llama_stack.local.model", "meta-llama/Llama-3.2-3B-Instruct")
	viper.SetDefault("llama_stack.remote.base_url", "")
	viper.SetDefault("llama_stack.remote.model", "")
	viper.SetDefault("completion.base_url", "http://localhost:8321")
	viper.SetDefault("chat.base_url", "http://localhost:11434/v1")
	viper.SetDefault("gemini.model", "gemini-2.0-flash")
	viper.SetDefault("output.dir", "./output")
	viper.SetDefault("repair.model", "llama3.2")
	viper.SetDefault("repair.url", "http://localhost:11434")
	viper.SetDefault("workers", 4)
	viper.SetDefault("cache_size", 1024)
	viper.SetDefault("api_key", "")
	viper.SetDefault("analysis.language", "")
	viper.SetDefault("analysis.credentials", "")
	viper.SetDefault("analysis.segment_runes", translator.DefaultSegmentRunes)
}

func loadSettings() (*settings, error) {
	var s settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &s, nil
}

// endpoint picks the connection settings for kind. remote selects the
// llama_stack.remote block over llama_stack.local.
func (s *settings) endpoint(kind string, remote bool) (endpointSettings, error) {
	var ep endpointSettings
	switch kind {
	case "agent":
		ep = s.LlamaStack.Local
		if remote {
			ep = s.LlamaStack.Remote
		}
	case "completion":
		ep = s.Completion
		if remote && s.LlamaStack.Remote.BaseURL != "" {
			ep = s.LlamaStack.Remote
		}
	case "chat":
		ep = s.Chat
	case "gemini":
		ep = s.Gemini
	default:
		return ep, fmt.Errorf("unknown backend %q (want agent, completion, chat or gemini)", kind)
	}
	if ep.APIKey == "" {
		ep.APIKey = s.APIKey
	}
	if ep.APIKey == "" && kind == "gemini" {
		ep.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if ep.BaseURL == "" && kind != "gemini" {
		return ep, fmt.Errorf("no base_url configured for backend %q", kind)
	}
	return ep, nil
}

// backendConfig builds the per-call backend configuration.
func (s *settings) backendConfig(ep endpointSettings, streaming bool) backend.Config {
	return backend.Config{
		Endpoint:             strings.TrimRight(ep.BaseURL, "/"),
		Credential:           ep.APIKey,
		Model:                ep.Model,
		Streaming:            streaming,
		RetrievalCollections: s.Backend.RetrievalCollections,
		MaxToolIterations:    s.Backend.MaxToolIterations,
		MaxTokens:            s.Backend.MaxTokens,
		Temperature:          s.Backend.Temperature,
		Timeout:              s.Backend.Timeout,
	}.WithDefaults()
}
