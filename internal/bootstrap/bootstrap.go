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

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yep-mem/yepmem/pkg/storage"
)

// codeChunksTable and transcriptChunksTable must track the table names the
// ingest pipeline upserts into, since the vec0/FTS5 tables are keyed by name.
const (
	codeChunksTable       = "code_chunks"
	transcriptChunksTable = "transcript_chunks"
)

// ProjectConfig holds configuration for initializing a project.
type ProjectConfig struct {
	// ProjectID is the logical project identifier.
	ProjectID string

	// DataDir is the directory where the SQLite index lives.
	// Defaults to ~/.yep-mem/data/<project_id>.
	DataDir string

	// EmbeddingDimensions is the vector size for embeddings.
	// Defaults to 768 (nomic-embed-text). Use 1536 for OpenAI.
	EmbeddingDimensions int
}

// ProjectInfo holds information about an initialized project.
type ProjectInfo struct {
	ProjectID string
	DataDir   string
}

// InitProject initializes a new project's local SQLite index. This function
// is idempotent: calling it multiple times is safe.
//
// The function:
//  1. Creates the data directory if it doesn't exist
//  2. Opens the embedded backend (creating index.db if absent)
//  3. Creates the code_chunks and transcript_chunks vec0/FTS5 tables
//
// Parameters:
//   - config: project configuration
//   - logger: optional logger (nil uses default)
//
// Returns:
//   - ProjectInfo: information about the initialized project
//   - error: if initialization fails
func InitProject(config ProjectConfig, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if config.EmbeddingDimensions == 0 {
		config.EmbeddingDimensions = 768
	}
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".yep-mem", "data", config.ProjectID)
	}

	logger.Info("bootstrap.project.init.start",
		"project_id", config.ProjectID,
		"data_dir", config.DataDir,
	)

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir:   config.DataDir,
		ProjectID: config.ProjectID,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	defer func() { _ = backend.Close() }()

	ctx := context.Background()
	if err := backend.CreateTableIfAbsent(ctx, codeChunksTable, config.EmbeddingDimensions); err != nil {
		return nil, fmt.Errorf("create code table: %w", err)
	}
	if err := backend.CreateTableIfAbsent(ctx, transcriptChunksTable, config.EmbeddingDimensions); err != nil {
		return nil, fmt.Errorf("create transcript table: %w", err)
	}

	logger.Info("bootstrap.project.init.success",
		"project_id", config.ProjectID,
		"data_dir", config.DataDir,
	)

	return &ProjectInfo{
		ProjectID: config.ProjectID,
		DataDir:   config.DataDir,
	}, nil
}

// OpenProject opens an existing project's local SQLite index.
// Returns the storage backend for querying the project.
func OpenProject(config ProjectConfig, logger *slog.Logger) (*storage.EmbeddedBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".yep-mem", "data", config.ProjectID)
	}

	if _, err := os.Stat(config.DataDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("project not found: %s (run 'yepmem init' first)", config.DataDir)
	}

	logger.Debug("bootstrap.project.open",
		"project_id", config.ProjectID,
		"data_dir", config.DataDir,
	)

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir:   config.DataDir,
		ProjectID: config.ProjectID,
	})
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}

	return backend, nil
}

// ListProjects returns a list of project IDs in the default data directory.
func ListProjects() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}

	dataDir := filepath.Join(homeDir, ".yep-mem", "data")
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No projects yet
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}

	return projects, nil
}
