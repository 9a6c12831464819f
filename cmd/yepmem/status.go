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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/yep-mem/yepmem/pkg/storage"
)

// StatusResult is the project status, in the shape both human and --json
// output are derived from.
type StatusResult struct {
	ProjectID        string    `json:"project_id"`
	DataDir          string    `json:"data_dir"`
	Connected        bool      `json:"connected"`
	CodeChunks       int       `json:"code_chunks"`
	TranscriptChunks int       `json:"transcript_chunks"`
	Error            string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// runStatus executes the 'status' CLI command, reporting whether the
// project has been indexed and how many chunks are stored locally.
//
// Examples:
//
//	yepmem status           Display formatted status
//	yepmem status --json    Output as JSON for programmatic use
func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yepmem status [options]

Shows local project status.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *jsonOut {
		globals.JSON = true
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		emitStatus(&StatusResult{Error: err.Error(), Timestamp: time.Now()}, globals.JSON)
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		emitStatus(&StatusResult{ProjectID: cfg.ProjectID, Error: err.Error(), Timestamp: time.Now()}, globals.JSON)
		os.Exit(1)
	}
	dataDir := filepath.Join(homeDir, ".yep-mem", "data", cfg.ProjectID)

	result := &StatusResult{ProjectID: cfg.ProjectID, DataDir: dataDir, Timestamp: time.Now()}

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		result.Error = "Project not indexed yet. Run 'yepmem index' first."
		if globals.JSON {
			emitStatus(result, true)
		} else {
			fmt.Printf("Project '%s' not indexed yet.\n", cfg.ProjectID)
			fmt.Println("Run 'yepmem index' to index the repository.")
		}
		return
	}

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{DataDir: dataDir, ProjectID: cfg.ProjectID})
	if err != nil {
		result.Error = fmt.Sprintf("cannot open database: %v", err)
		emitStatus(result, globals.JSON)
		os.Exit(1)
	}
	defer func() { _ = backend.Close() }()

	result.Connected = true
	ctx := context.Background()
	result.CodeChunks = queryLocalCount(ctx, backend, "code_chunks")
	result.TranscriptChunks = queryLocalCount(ctx, backend, "transcript_chunks")

	emitStatus(result, globals.JSON)
}

// queryLocalCount counts the rows in table via plain SQL, returning 0 if
// the query fails (e.g. the table hasn't been created yet).
func queryLocalCount(ctx context.Context, backend *storage.EmbeddedBackend, table string) int {
	result, err := backend.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	if err != nil || len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0
	}

	switch v := result.Rows[0][0].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func emitStatus(result *StatusResult, jsonOutput bool) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}
	printLocalStatus(result)
}

// printLocalStatus prints the status result as formatted text to stdout.
func printLocalStatus(result *StatusResult) {
	fmt.Println("yepmem Project Status (Local)")
	fmt.Println("==============================")
	fmt.Printf("Project ID:          %s\n", result.ProjectID)
	fmt.Printf("Data Dir:            %s\n", result.DataDir)
	fmt.Println()

	fmt.Println("Entities:")
	fmt.Printf("  Code Chunks:        %d\n", result.CodeChunks)
	fmt.Printf("  Transcript Chunks:  %d\n", result.TranscriptChunks)

	if result.Error != "" {
		fmt.Printf("\nWarning: %s\n", result.Error)
	}
}
