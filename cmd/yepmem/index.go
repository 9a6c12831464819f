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
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yep-mem/yepmem/internal/errors"
	"github.com/yep-mem/yepmem/internal/ui"
	"github.com/yep-mem/yepmem/pkg/ingestion"
	"github.com/yep-mem/yepmem/pkg/ingestpipeline"
)

// runIndex executes the 'index' CLI command: it parses source files,
// chunks and embeds them, and writes the results into the local SQLite
// index, resuming from the last checkpoint unless --full is given.
//
// Flags:
//   - --full: ignore the existing checkpoint and reindex from scratch
//   - --embed-workers: override the configured embedding worker count
//   - --debug: enable debug logging
//   - --metrics-addr: HTTP address to serve Prometheus metrics on
//
// Examples:
//
//	yepmem index                   Incremental index (resumes from checkpoint)
//	yepmem index --full            Force full reindex
//	yepmem index --embed-workers 16
func runIndex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	full := fs.Bool("full", false, "Ignore the existing checkpoint and reindex from scratch")
	embedWorkers := fs.Int("embed-workers", 0, "Override configured embedding worker count (0 = use config)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yepmem index [options]

Indexes the current repository using .yep-mem/project.yaml.
Data is stored locally in ~/.yep-mem/data/<project_id>/

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(), "run 'yepmem init' first", err), globals.JSON)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	if globals.JSON {
		logHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(logHandler)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot determine current directory", err.Error(), "", err), globals.JSON)
	}

	settings := cfg.toSettings()
	if *embedWorkers > 0 {
		settings.Concurrency.EmbedWorkers = *embedWorkers
	}

	statePath := filepath.Join(ConfigDir(cwd), "state.json")
	runState, err := ingestion.LoadConfig(statePath, cwd)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load run state", err.Error(), "", err), globals.JSON)
	}
	runState.Provider = cfg.toProvider()
	if *full {
		runState.LastCodeIndexCommit = ""
		runState.LastIndexedCommit = ""
		runState.KnownCheckpointIDs = nil
	}

	summarizer, err := cfg.toSummarizer()
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot configure summarizer", err.Error(), "", err), globals.JSON)
	}

	pipeline, err := ingestpipeline.New(ingestpipeline.Options{
		Config:     runState,
		Settings:   settings,
		Workdir:    cwd,
		ProjectID:  cfg.ProjectID,
		Logger:     logger,
		Summarizer: summarizer,
	})
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot create ingest pipeline", err.Error(), "", err), globals.JSON)
	}
	defer pipeline.Close()

	progressCfg := NewProgressConfig(globals)
	events := make(chan ingestpipeline.Event, 32)
	done := make(chan struct{})
	go renderIndexProgress(events, progressCfg, globals, done)

	logger.Info("indexing.starting", "project_id", cfg.ProjectID, "workdir", cwd)

	result, err := pipeline.Run(ctx, events)
	close(events)
	<-done

	if err != nil {
		errors.FatalError(errors.NewInternalError("Indexing failed", err.Error(), "", err), globals.JSON)
	}

	runState.LastCodeIndexCommit = result.LastCommit
	runState.LastIndexedCommit = result.LastCommit
	if err := runState.Save(statePath); err != nil {
		ui.Warningf("cannot persist run state: %v", err)
	}

	if globals.JSON {
		printResultJSON(result)
		return
	}
	printResult(result)
}

// renderIndexProgress consumes pipeline events until the channel closes. In
// --json mode it prints every event as an SSE line; otherwise it drives the
// spinner from progress events and reports error events through ui.Errorf.
func renderIndexProgress(events <-chan ingestpipeline.Event, cfg ProgressConfig, globals GlobalFlags, done chan<- struct{}) {
	defer close(done)

	spinner := NewSpinner(cfg, "indexing")
	defer finishBar(spinner)

	for ev := range events {
		switch {
		case globals.JSON:
			fmt.Println(ev.SSE())
		case ev.Kind == ingestpipeline.EventProgress:
			describeSpinner(spinner, fmt.Sprintf("%s: %s", ev.Step, ev.Message))
			if spinner != nil {
				_ = spinner.Add(1)
			}
		case ev.Kind == ingestpipeline.EventError:
			ui.Errorf("%s: %s", ev.Step, ev.Message)
		}
	}
}

// printResult prints the indexing result summary to stdout.
func printResult(result *ingestpipeline.Result) {
	fmt.Println()
	ui.Header("Indexing Complete")
	fmt.Printf("Project ID: %s\n", result.ProjectID)
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Files Processed: %s\n", ui.CountText(result.FilesProcessed))
	fmt.Printf("Chunks Extracted: %s\n", ui.CountText(result.ChunksExtracted))
	fmt.Printf("Chunks Embedded: %s\n", ui.CountText(result.ChunksEmbedded))
	fmt.Printf("Edges Built: %s\n", ui.CountText(result.EdgesBuilt))

	if result.EmbeddingErrors > 0 {
		ui.Warningf("Embedding Errors: %d", result.EmbeddingErrors)
	}
	if result.CheckpointsIngested > 0 {
		fmt.Printf("Checkpoints Ingested: %d\n", result.CheckpointsIngested)
		fmt.Printf("Transcript Chunks: %d\n", result.TranscriptChunks)
	}
	if result.LastCommit != "" {
		fmt.Printf("Last Commit: %s\n", result.LastCommit)
	}

	fmt.Printf("Duration: %s\n", result.Duration)
	fmt.Println()

	homeDir, _ := os.UserHomeDir()
	fmt.Printf("Data stored in: %s\n", filepath.Join(homeDir, ".yep-mem", "data", result.ProjectID))
}

func printResultJSON(result *ingestpipeline.Result) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		ui.Errorf("marshal result: %v", err)
		return
	}
	fmt.Println(string(data))
}
