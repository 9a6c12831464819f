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

package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Provider identifies the embedding/summarization backend a project is
// configured to use.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// Config is the persisted, per-project run state: the fields that must
// survive between ingest invocations because they describe what was already
// indexed, not how indexing runs. It is read and rewritten by the pipeline on
// every pass and otherwise treated as opaque by the rest of the module.
type Config struct {
	// Provider selects the embedding/summarization backend.
	Provider Provider `json:"provider"`

	// EmbeddingModel names the model used to embed chunk text. Empty means
	// the provider's default.
	EmbeddingModel string `json:"embeddingModel,omitempty"`

	// SummarizerModel names the model used to summarize chunks and
	// checkpoints. Empty means summarization is skipped.
	SummarizerModel string `json:"summarizerModel,omitempty"`

	// OpenAIAPIKey authenticates against the OpenAI provider. Never logged.
	OpenAIAPIKey string `json:"openaiApiKey,omitempty"`

	// OllamaBaseURL is the address of a local Ollama server.
	OllamaBaseURL string `json:"ollamaBaseUrl,omitempty"`

	// Scope is the repository root this config governs.
	Scope string `json:"scope"`

	// LastIndexedCommit is the checkpoint branch commit the transcript
	// ingester last processed.
	LastIndexedCommit string `json:"lastIndexedCommit,omitempty"`

	// LastCodeIndexCommit is the source tree commit the code indexer last
	// processed; the delta detector diffs against it on the next pass.
	LastCodeIndexCommit string `json:"lastCodeIndexCommit,omitempty"`

	// LocalSyncOffsets tracks, per local session directory, the byte offset
	// already consumed — resume point for the local (non-branch) checkpoint
	// source.
	LocalSyncOffsets map[string]uint64 `json:"localSyncOffsets"`

	// KnownCheckpointIDs is the set of branch-source checkpoint ids already
	// parsed in a prior run; the branch source skips any id already present
	// here.
	KnownCheckpointIDs []string `json:"knownCheckpointIds,omitempty"`

	// TraceID correlates every log line and cache entry produced by a single
	// ingest run.
	TraceID string `json:"traceId,omitempty"`
}

// NewConfig returns a Config ready for a first run against scope.
func NewConfig(scope string) Config {
	return Config{
		Provider:         ProviderOllama,
		Scope:            scope,
		LocalSyncOffsets: make(map[string]uint64),
	}
}

// LoadConfig reads a Config from path, returning (NewConfig(scope), nil) if
// the file does not exist yet — there is nothing to resume on a cold start.
func LoadConfig(path, scope string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(scope), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.LocalSyncOffsets == nil {
		cfg.LocalSyncOffsets = make(map[string]uint64)
	}
	return cfg, nil
}

// Save writes cfg to path atomically (write-temp-then-rename), the same
// pattern CheckpointManager uses, since config.json is a shared resource
// read-modify-written across runs.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Settings controls how the pipeline runs: parsing, embedding, concurrency
// and exclusion behavior. Unlike Config it is not persisted between runs —
// it is supplied fresh each invocation (flags, env, or a project file) and
// never changes the meaning of already-indexed data.
type Settings struct {
	// ParserMode selects which CodeParser backs file parsing.
	ParserMode ParserMode

	// MaxFileSizeBytes is the largest source file the indexer will read.
	// Larger files are skipped with a warning.
	MaxFileSizeBytes int64

	// ExcludeGlobs are glob patterns for files/directories never indexed.
	ExcludeGlobs []string

	// Concurrency controls the parse/embed worker pool sizes.
	Concurrency ConcurrencyConfig

	// EmbeddingDimensions is the vector width requested from the provider.
	EmbeddingDimensions int

	// Retry controls retry behavior for transient provider/network errors.
	Retry RetryConfig

	// DataDir is the directory holding the local SQLite index.
	// Defaults to ~/.yep-mem/data/<project_id>.
	DataDir string
}

// RepoSource tells the repo loader where to read source from: a local
// checkout already on disk, or a git URL to shallow-clone into a temp dir.
type RepoSource struct {
	Type  string // "git_url" or "local_path"
	Value string
}

// ConcurrencyConfig controls worker pool sizes for parsing and embedding.
type ConcurrencyConfig struct {
	ParseWorkers int
	EmbedWorkers int
}

// DefaultSettings returns settings with sensible defaults for local use.
func DefaultSettings() Settings {
	return Settings{
		ParserMode:          ParserModeAuto,
		MaxFileSizeBytes:    1 << 20, // 1MB
		EmbeddingDimensions: 768,
		Concurrency:         ConcurrencyConfig{ParseWorkers: 4, EmbedWorkers: 8},
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
		},
		ExcludeGlobs: []string{
			".git/**",
			"node_modules/**", "vendor/**",
			"dist/**", "build/**", "bin/**", "**/bin/**", "out/**",
			".idea/**", ".vscode/**", "*.swp", "*.swo",
			".next/**", ".nuxt/**",
			".yep-mem/**",
			"*.o", "*.so", "*.dylib", "*.exe", "*.dll", "*.a",
			"*.pack", "*.pack.gz", "*.pack.old",
			".cache/**", "coverage/**", "tmp/**", ".tmp/**",
			"*.min.js", "*.min.css",
			"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum",
		},
	}
}
