// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yep-mem/yepmem/pkg/ingestion"
	"github.com/yep-mem/yepmem/pkg/llm"
)

// Config is the static, human-edited project configuration persisted at
// .yep-mem/project.yaml. It is read once per CLI invocation and never
// rewritten by the tool itself (unlike ingestion.Config, which tracks
// run state and is rewritten after every ingest pass).
type Config struct {
	ProjectID  string           `yaml:"project_id"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Indexing   IndexingConfig   `yaml:"indexing"`
}

// EmbeddingConfig selects and configures the embedding provider used to
// vectorize code chunks and transcript chunks.
type EmbeddingConfig struct {
	// Provider is one of "ollama", "openai", "nomic", "mock".
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// SummarizerConfig optionally configures an LLM used to produce one-line
// chunk summaries during the pipeline's summarizing state. Leaving it
// disabled skips that state entirely.
type SummarizerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider,omitempty"` // "ollama", "openai", "anthropic"
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// IndexingConfig controls how a run parses, excludes, and parallelizes
// work. It maps onto ingestion.Settings.
type IndexingConfig struct {
	ParserMode       string   `yaml:"parser_mode,omitempty"`
	Exclude          []string `yaml:"exclude,omitempty"`
	MaxFileSizeBytes int64    `yaml:"max_file_size_bytes,omitempty"`
	ParseWorkers     int      `yaml:"parse_workers,omitempty"`
	EmbedWorkers     int      `yaml:"embed_workers,omitempty"`
}

// DefaultConfig returns a Config ready for a first index of the project
// rooted at the directory bearing projectID.
func DefaultConfig(projectID string) *Config {
	return &Config{
		ProjectID: projectID,
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
	}
}

// ConfigDir returns the project's .yep-mem directory under cwd.
func ConfigDir(cwd string) string {
	return filepath.Join(cwd, ".yep-mem")
}

// ConfigPath returns the project.yaml path under cwd's .yep-mem directory.
func ConfigPath(cwd string) string {
	return filepath.Join(ConfigDir(cwd), "project.yaml")
}

// LoadConfig reads and parses the project configuration at path. An empty
// path resolves against the current working directory's default location.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get current directory: %w", err)
		}
		path = ConfigPath(cwd)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-supplied, not request-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no project configuration at %s (run 'yepmem init' first)", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("config at %s has no project_id", path)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil { //nolint:gosec // G306: project config is not secret-bearing beyond api_key, consistent with teacher
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// toSettings maps the static Indexing config onto ingestion.Settings,
// layering the user's excludes on top of the built-in defaults rather than
// replacing them.
func (c *Config) toSettings() ingestion.Settings {
	s := ingestion.DefaultSettings()
	if c.Indexing.ParserMode != "" {
		s.ParserMode = ingestion.ParserMode(c.Indexing.ParserMode)
	}
	if c.Indexing.MaxFileSizeBytes > 0 {
		s.MaxFileSizeBytes = c.Indexing.MaxFileSizeBytes
	}
	if len(c.Indexing.Exclude) > 0 {
		s.ExcludeGlobs = append(s.ExcludeGlobs, c.Indexing.Exclude...)
	}
	if c.Indexing.ParseWorkers > 0 {
		s.Concurrency.ParseWorkers = c.Indexing.ParseWorkers
	}
	if c.Indexing.EmbedWorkers > 0 {
		s.Concurrency.EmbedWorkers = c.Indexing.EmbedWorkers
	}
	return s
}

// toProvider maps the Embedding config onto the ingestion.Provider the
// dynamic run-state Config persists, and sets the environment variables
// ingestion.CreateEmbeddingProvider reads, following the teacher's
// index.go pattern of translating static config into env vars right
// before constructing the pipeline.
func (c *Config) toProvider() ingestion.Provider {
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.BaseURL != "" {
			os.Setenv("OPENAI_API_BASE", c.Embedding.BaseURL)
		}
		if c.Embedding.Model != "" {
			os.Setenv("OPENAI_EMBED_MODEL", c.Embedding.Model)
		}
		if c.Embedding.APIKey != "" {
			os.Setenv("OPENAI_API_KEY", c.Embedding.APIKey)
		}
		return ingestion.ProviderOpenAI
	case "nomic":
		if c.Embedding.APIKey != "" {
			os.Setenv("NOMIC_API_KEY", c.Embedding.APIKey)
		}
		if c.Embedding.BaseURL != "" {
			os.Setenv("NOMIC_API_BASE", c.Embedding.BaseURL)
		}
		if c.Embedding.Model != "" {
			os.Setenv("NOMIC_MODEL", c.Embedding.Model)
		}
		return ingestion.Provider("nomic")
	case "mock":
		return ingestion.Provider("mock")
	default:
		if c.Embedding.BaseURL != "" {
			os.Setenv("OLLAMA_BASE_URL", c.Embedding.BaseURL)
		}
		if c.Embedding.Model != "" {
			os.Setenv("OLLAMA_EMBED_MODEL", c.Embedding.Model)
		}
		return ingestion.ProviderOllama
	}
}

// toSummarizer builds an llm.Provider from the Summarizer config, or nil
// when summarization is disabled — ingestpipeline.Options.Summarizer left
// nil skips the summarizing state entirely.
func (c *Config) toSummarizer() (llm.Provider, error) {
	if !c.Summarizer.Enabled {
		return nil, nil
	}
	provider, err := llm.NewProvider(llm.ProviderConfig{
		Type:         c.Summarizer.Provider,
		BaseURL:      c.Summarizer.BaseURL,
		APIKey:       c.Summarizer.APIKey,
		DefaultModel: c.Summarizer.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create summarizer provider: %w", err)
	}
	return provider, nil
}
