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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/yep-mem/yepmem/internal/errors"
	"github.com/yep-mem/yepmem/pkg/cache"
	"github.com/yep-mem/yepmem/pkg/ingestion"
	"github.com/yep-mem/yepmem/pkg/search"
	"github.com/yep-mem/yepmem/pkg/storage"
)

// searchTable is the default table hybrid search queries; --transcripts
// switches to transcript_chunks.
const searchTable = "code_chunks"

// runSearch executes the 'search' CLI command: hybrid vector+keyword
// search over the indexed code (or transcript) chunks.
//
// Usage:
//
//	yepmem search "retry backoff logic"
//	yepmem search --limit 20 --json "where do we parse commit trailers"
//	yepmem search --transcripts "decision to drop the queue daemon"
func runSearch(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Maximum number of results")
	minScore := fs.Float64("min-score", 0, "Minimum fused score to include a result")
	transcripts := fs.Bool("transcripts", false, "Search transcript chunks instead of code chunks")
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")
	jsonOut := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yepmem search [options] <query text>

Runs a hybrid vector + keyword search over indexed chunks.

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
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	queryText := strings.Join(fs.Args(), " ")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(), "run 'yepmem init' first", err), globals.JSON)
	}

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot determine current directory", err.Error(), "", err), globals.JSON)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot determine home directory", err.Error(), "", err), globals.JSON)
	}
	dataDir := filepath.Join(homeDir, ".yep-mem", "data", cfg.ProjectID)

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{DataDir: dataDir, ProjectID: cfg.ProjectID})
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot open local index", err.Error(), "run 'yepmem index' first", err), globals.JSON)
	}
	defer backend.Close()

	providerType := cfg.toProvider()
	embedder, err := ingestion.CreateEmbeddingProvider(string(providerType), slog.Default())
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot create embedding provider", err.Error(), "", err), globals.JSON)
	}

	resultCache, err := cache.NewSearchCache(filepath.Join(ConfigDir(cwd), "cache"))
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot open search cache", err.Error(), "", err), globals.JSON)
	}

	table := searchTable
	if *transcripts {
		table = "transcript_chunks"
	}
	searcher := search.NewSearcher(backend, embedder, resultCache, table, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	results, err := searcher.Search(ctx, search.Query{Text: queryText, TopK: *limit, MinScore: *minScore})
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Search failed", err.Error(), "", err), globals.JSON)
	}

	if globals.JSON {
		outputSearchJSON(results)
		return
	}
	printSearchResults(results)
}

func outputSearchJSON(results []search.Result) {
	data, err := json.MarshalIndent(map[string]any{"results": results, "count": len(results)}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// printSearchResults renders results as a tab-aligned table, truncating
// long text fields so a row fits one terminal line.
func printSearchResults(results []search.Result) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "SCORE\tPATH\tSYMBOL\tTYPE\tSUMMARY")
	fmt.Fprintln(w, "-----\t----\t------\t----\t-------")
	for _, r := range results {
		loc := r.Path
		if r.StartLine > 0 {
			loc = fmt.Sprintf("%s:%d", r.Path, r.StartLine)
		}
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s\n",
			r.Score, truncateCell(loc, 50), truncateCell(r.Symbol, 30), r.SymbolType, truncateCell(r.Summary, 60))
	}
}

// truncateCell shortens s to at most max characters, matching the teacher's
// query-result formatting convention of a trailing ellipsis.
func truncateCell(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
