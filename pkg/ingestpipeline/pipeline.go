// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package ingestpipeline drives one ingest run through the six-state
// machine (idle, parsing, chunking, summarizing, embedding, indexing, done
// or error), holding the cross-process lock for its whole duration. The
// run's Checkpoint record is saved when the run fails or completes; a new
// run always starts again at idle and does not resume from it. Runs are
// incremental through the last indexed commit and the checkpoint-source
// state persisted in Config.
package ingestpipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	yeperrors "github.com/yep-mem/yepmem/internal/errors"
	"github.com/yep-mem/yepmem/pkg/cache"
	checkpointsrc "github.com/yep-mem/yepmem/pkg/checkpoints"
	"github.com/yep-mem/yepmem/pkg/graph"
	"github.com/yep-mem/yepmem/pkg/ingestion"
	"github.com/yep-mem/yepmem/pkg/llm"
	"github.com/yep-mem/yepmem/pkg/lock"
	"github.com/yep-mem/yepmem/pkg/storage"
	"github.com/yep-mem/yepmem/pkg/vcs"
)

// codeChunksTable is the vector/FTS table name code chunks are upserted
// into, matching the table the search path queries.
const codeChunksTable = "code_chunks"

// transcriptChunksTable is the vector/FTS table name transcript chunks are
// upserted into.
const transcriptChunksTable = "transcript_chunks"

// maxFanOut bounds concurrent IO-bound work (embedding batches, file
// reads) within a single run.
const maxFanOut = 8

// networkRetries is how many times a retryable network failure is retried
// before the run fails that stage.
const networkRetries = 3

// Options configures a Pipeline. Backend, GraphStore and CheckpointMgr may
// be supplied by the caller (e.g. a long-lived daemon reusing them across
// runs); when nil, New constructs defaults from Settings.
type Options struct {
	Config   ingestion.Config
	Settings ingestion.Settings

	// Workdir is the repository root this run indexes.
	Workdir string

	// ProjectID identifies the project for checkpoint and backend namespacing.
	ProjectID string

	Logger *slog.Logger

	Backend            storage.VectorBackend
	GraphStore         *graph.Store
	CheckpointMgr      *ingestion.CheckpointManager
	LockMgr            *lock.Manager
	EmbeddingCache     *cache.EmbeddingCache
	TranscriptIngester *checkpointsrc.Ingester

	// Summarizer, when non-nil, is consulted during the summarizing state
	// for a one-line summary per new chunk. A nil Summarizer skips that
	// state entirely — chunks keep an empty Summary.
	Summarizer llm.Provider
}

// Pipeline runs ingestion for one project against one workdir.
type Pipeline struct {
	cfg      ingestion.Config
	settings ingestion.Settings
	workdir  string
	project  string
	logger   *slog.Logger

	repoLoader         *ingestion.RepoLoader
	parser             ingestion.CodeParser
	embeddingGen       *ingestion.EmbeddingGenerator
	embeddingCache     *cache.EmbeddingCache
	backend            storage.VectorBackend
	graphStore         *graph.Store
	checkpoints        *ingestion.CheckpointManager
	transcriptIngester *checkpointsrc.Ingester
	vcsRepo            *vcs.Repo
	lockMgr            *lock.Manager
	summarizer         llm.Provider
}

// New builds a Pipeline, constructing any of Backend/GraphStore/
// CheckpointMgr/LockMgr left unset in opts from opts.Settings/Workdir.
func New(opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backend := opts.Backend
	if backend == nil {
		dataDir := opts.Settings.DataDir
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("get home dir: %w", err)
			}
			dataDir = filepath.Join(home, ".yep-mem", "data", opts.ProjectID)
		}
		eb, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{DataDir: dataDir, ProjectID: opts.ProjectID})
		if err != nil {
			return nil, fmt.Errorf("create storage backend: %w", err)
		}
		backend = eb
	}

	graphStore := opts.GraphStore
	if graphStore == nil {
		graphStore = graph.NewStore()
	}

	checkpoints := opts.CheckpointMgr
	if checkpoints == nil {
		checkpoints = ingestion.NewCheckpointManager(filepath.Join(opts.Workdir, ".yep-mem"))
	}

	lockMgr := opts.LockMgr
	if lockMgr == nil {
		lockMgr = lock.New(opts.Workdir)
	}

	embeddingCache := opts.EmbeddingCache
	if embeddingCache == nil {
		ec, cacheErr := cache.NewEmbeddingCache(filepath.Join(opts.Workdir, ".yep-mem", "cache"))
		if cacheErr != nil {
			logger.Warn("ingestpipeline.embedding_cache.corrupt", "error", cacheErr)
		}
		embeddingCache = ec
	}

	var vcsRepo *vcs.Repo
	transcriptIngester := opts.TranscriptIngester
	if transcriptIngester == nil {
		vcsRepo = vcs.NewRepo(opts.Workdir, logger)
		transcriptIngester = checkpointsrc.NewIngester(opts.Workdir, vcsRepo, logger)
	}

	embeddingProvider, err := ingestion.CreateEmbeddingProvider(string(opts.Config.Provider), logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	embedWorkers := opts.Settings.Concurrency.EmbedWorkers
	if embedWorkers <= 0 {
		embedWorkers = maxFanOut
	}
	embeddingGen := ingestion.NewEmbeddingGenerator(embeddingProvider, embedWorkers, logger)
	embeddingGen.SetRetryConfig(opts.Settings.Retry)

	return &Pipeline{
		cfg:                opts.Config,
		settings:           opts.Settings,
		workdir:            opts.Workdir,
		project:            opts.ProjectID,
		logger:             logger,
		repoLoader:         ingestion.NewRepoLoader(logger),
		parser:             ingestion.NewCodeParser(opts.Settings.ParserMode),
		embeddingGen:       embeddingGen,
		embeddingCache:     embeddingCache,
		backend:            backend,
		graphStore:         graphStore,
		checkpoints:        checkpoints,
		transcriptIngester: transcriptIngester,
		vcsRepo:            vcsRepo,
		lockMgr:            lockMgr,
		summarizer:         opts.Summarizer,
	}, nil
}

// Close releases resources New opened.
func (p *Pipeline) Close() error {
	var lastErr error
	if err := p.backend.Close(); err != nil {
		lastErr = err
	}
	if err := p.repoLoader.Close(); err != nil {
		lastErr = err
	}
	return lastErr
}

// Result summarizes a completed run.
type Result struct {
	RunID               string
	ProjectID           string
	FilesProcessed      int
	ChunksExtracted     int
	ChunksEmbedded      int
	EmbeddingErrors     int
	EdgesBuilt          int
	LastCommit          string
	CheckpointsIngested int
	TranscriptChunks    int
	Duration            time.Duration
}

// Run executes one full ingest pass, holding the cross-process lock for
// its duration. progress, if non-nil, receives a Event per state
// transition; the caller is responsible for draining it concurrently with
// Run to avoid stalling on a full channel (emit drops rather than blocks).
// ctx cancellation is observed at each state boundary: partial writes of
// already-committed states remain, the lock is always released, and a
// terminal error event is emitted.
func (p *Pipeline) Run(ctx context.Context, progress chan<- Event) (res *Result, err error) {
	runID := uuid.NewString()
	start := time.Now()

	lockErr := p.lockMgr.WithLock(func() error {
		res, err = p.run(ctx, progress, runID, start)
		return err
	})
	if lockErr != nil && err == nil {
		// Acquire itself failed (LockBusy or an IO error taking the lock);
		// p.run never ran, so emit the terminal error event here instead.
		emit(progress, EventError, "", lockErr.Error(), 0)
		return nil, lockErr
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, progress chan<- Event, runID string, start time.Time) (*Result, error) {
	ckpt := &ingestion.Checkpoint{
		ProjectID:      p.project,
		RunID:          runID,
		State:          ingestion.StateIdle,
		EntitiesSent:   map[string]int{},
		FileHashes:     map[string]string{},
		StartTime:      start.UTC().Format(time.RFC3339),
		LastUpdateTime: start.UTC().Format(time.RFC3339),
	}

	fail := func(stage string, err error) (*Result, error) {
		ckpt.State = ingestion.StateError
		ckpt.LastError = err.Error()
		ckpt.LastUpdateTime = time.Now().UTC().Format(time.RFC3339)
		_ = p.checkpoints.SaveCheckpoint(ckpt)
		emit(progress, EventError, stage, err.Error(), 0)
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(string(ingestion.StateIdle), err)
	}

	// parsing
	ckpt.State = ingestion.StateParsing
	emit(progress, EventProgress, string(ingestion.StateParsing), "reading new checkpoints", 0)
	checkpointRead, err := p.readNewCheckpoints()
	if err != nil {
		return fail(string(ingestion.StateParsing), err)
	}
	transcriptChunks := ingestion.BuildTranscriptChunks(checkpointRead.Checkpoints)

	emit(progress, EventProgress, string(ingestion.StateParsing), "discovering changed files", 0)
	files, headCommit, err := p.loadChangedFiles()
	if err != nil {
		return fail(string(ingestion.StateParsing), err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	emit(progress, EventProgress, string(ingestion.StateParsing), fmt.Sprintf("parsing %d files", len(files)), len(files))

	symbolsByFile, allSymbols, parseErrors := p.parseFiles(ctx, files)
	ckpt.FilesProcessed = len(files)
	if err := ctx.Err(); err != nil {
		return fail(string(ingestion.StateParsing), err)
	}

	// chunking
	ckpt.State = ingestion.StateChunking
	emit(progress, EventProgress, string(ingestion.StateChunking), "building edges and embedding text", len(allSymbols))

	resolver := graph.NewResolver(allSymbols)
	now := time.Now()
	edges := resolver.ResolveCalls(allSymbols, now)
	edges = append(edges, graph.ImportEdges(allSymbols, now)...)
	edges = append(edges, graph.ContainsEdges(allSymbols, now)...)
	p.graphStore.InsertEdges(edges)
	for _, sym := range allSymbols {
		p.graphStore.UpsertSymbol(graph.NodeKey(sym.Path, sym.Name))
	}

	var chunks []ingestion.CodeChunk
	for _, fi := range files {
		syms := symbolsByFile[fi.Path]
		if len(syms) == 0 {
			continue
		}
		language := detectLanguage(fi.Path)
		chunks = append(chunks, ingestion.ChunkFileSymbolsEnriched(syms, language, fi.LastModified, fi.Commit, p.graphStore)...)
	}
	ckpt.ChunksExtracted = len(chunks)
	if err := ctx.Err(); err != nil {
		return fail(string(ingestion.StateChunking), err)
	}

	// summarizing
	ckpt.State = ingestion.StateSummarizing
	if p.summarizer != nil && len(chunks) > 0 {
		emit(progress, EventProgress, string(ingestion.StateSummarizing), fmt.Sprintf("summarizing %d chunks", len(chunks)), len(chunks))
		if err := p.summarizeChunks(ctx, chunks); err != nil {
			return fail(string(ingestion.StateSummarizing), err)
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(string(ingestion.StateSummarizing), err)
	}

	// embedding
	ckpt.State = ingestion.StateEmbedding
	emit(progress, EventProgress, string(ingestion.StateEmbedding), fmt.Sprintf("embedding %d chunks", len(chunks)), len(chunks))
	embedResult, err := p.embedChunksCached(ctx, chunks)
	if err != nil {
		return fail(string(ingestion.StateEmbedding), err)
	}
	chunks = embedResult.Chunks

	transcriptEmbedResult, err := p.embedTranscriptChunksCached(ctx, transcriptChunks)
	if err != nil {
		return fail(string(ingestion.StateEmbedding), err)
	}
	transcriptChunks = transcriptEmbedResult.Chunks
	if err := ctx.Err(); err != nil {
		return fail(string(ingestion.StateEmbedding), err)
	}

	// indexing
	ckpt.State = ingestion.StateIndexing
	emit(progress, EventProgress, string(ingestion.StateIndexing), "writing index", len(chunks))
	if err := p.indexChunks(ctx, files, chunks); err != nil {
		return fail(string(ingestion.StateIndexing), err)
	}
	if err := p.indexTranscriptChunks(ctx, transcriptChunks); err != nil {
		return fail(string(ingestion.StateIndexing), err)
	}
	p.graphStore.PageRank()

	ckpt.State = ingestion.StateDone
	ckpt.LastCodeIndexCommit = headCommit
	ckpt.LastUpdateTime = time.Now().UTC().Format(time.RFC3339)
	if err := p.checkpoints.SaveCheckpoint(ckpt); err != nil {
		return fail(string(ingestion.StateIndexing), err)
	}

	p.cfg.LastCodeIndexCommit = headCommit
	if checkpointRead.NewKnownCheckpointIDs != nil {
		p.cfg.KnownCheckpointIDs = checkpointRead.NewKnownCheckpointIDs
	}
	p.cfg.LocalSyncOffsets = checkpointRead.NewLocalSyncOffsets
	if err := p.cfg.Save(filepath.Join(p.workdir, ".yep-mem", "config.json")); err != nil {
		return fail(string(ingestion.StateIndexing), err)
	}

	emit(progress, EventDone, string(ingestion.StateDone), "ingest complete", 0)

	p.logger.Info("ingestpipeline.run.complete",
		"run_id", runID,
		"files", len(files),
		"chunks", len(chunks),
		"parse_errors", parseErrors,
		"embedding_errors", embedResult.ErrorCount,
		"edges", len(edges),
		"checkpoints", len(checkpointRead.Checkpoints),
		"transcript_chunks", len(transcriptChunks),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		RunID:               runID,
		ProjectID:           p.project,
		FilesProcessed:      len(files),
		ChunksExtracted:     len(chunks),
		ChunksEmbedded:      len(chunks) - embedResult.ErrorCount,
		EmbeddingErrors:     embedResult.ErrorCount,
		EdgesBuilt:          len(edges),
		LastCommit:          headCommit,
		CheckpointsIngested: len(checkpointRead.Checkpoints),
		TranscriptChunks:    len(transcriptChunks),
		Duration:            time.Since(start),
	}, nil
}

// loadChangedFiles resolves the set of files to (re)parse this run: every
// source file on a cold start (no LastCodeIndexCommit yet), or only the
// files a git delta reports changed since that commit. It returns the
// loaded FileInfo records plus the commit this run should advance
// LastCodeIndexCommit to once indexing succeeds.
func (p *Pipeline) loadChangedFiles() ([]ingestion.FileInfo, string, error) {
	dd := ingestion.NewDeltaDetector(p.workdir, p.logger)

	if p.cfg.LastCodeIndexCommit == "" || !dd.IsGitRepository() {
		return p.loadAllFiles()
	}

	head, err := dd.GetHeadSHA()
	if err != nil {
		return nil, "", fmt.Errorf("resolve head commit: %w", err)
	}
	if head == p.cfg.LastCodeIndexCommit {
		return nil, head, nil
	}

	delta, err := dd.DetectDelta(p.cfg.LastCodeIndexCommit, head)
	if err != nil {
		return nil, "", fmt.Errorf("detect delta: %w", err)
	}
	delta = ingestion.FilterDelta(delta, p.settings.ExcludeGlobs, p.settings.MaxFileSizeBytes, p.workdir)

	for _, path := range delta.Deleted {
		if err := p.backend.DeleteByPredicate(context.Background(), codeChunksTable, "path", path); err != nil {
			p.logger.Warn("ingestpipeline.delete_stale_chunks.error", "path", path, "err", err)
		}
	}

	var files []ingestion.FileInfo
	for _, path := range delta.Added {
		files = append(files, p.readFile(path, head))
	}
	for _, path := range delta.Modified {
		files = append(files, p.readFile(path, head))
	}
	for oldPath, newPath := range delta.Renamed {
		if err := p.backend.DeleteByPredicate(context.Background(), codeChunksTable, "path", oldPath); err != nil {
			p.logger.Warn("ingestpipeline.delete_stale_chunks.error", "path", oldPath, "err", err)
		}
		files = append(files, p.readFile(newPath, head))
	}

	return files, head, nil
}

// readNewCheckpoints reads every transcript checkpoint written since the
// last run, from both the checkpoint branch (if present) and the working
// tree's local metadata directory, tracking what's already been seen so a
// repeated run never reprocesses the same session twice.
func (p *Pipeline) readNewCheckpoints() (checkpointsrc.ReadResult, error) {
	known := make(map[string]bool, len(p.cfg.KnownCheckpointIDs))
	for _, id := range p.cfg.KnownCheckpointIDs {
		known[id] = true
	}
	result, err := p.transcriptIngester.ReadNew(known, p.cfg.LocalSyncOffsets)
	if err != nil {
		return result, err
	}

	if p.vcsRepo != nil {
		if sha, refErr := p.vcsRepo.ResolveRef(checkpointsrc.DefaultBranch); refErr == nil {
			p.cfg.LastIndexedCommit = sha
		}
	}
	return result, nil
}

func (p *Pipeline) loadAllFiles() ([]ingestion.FileInfo, string, error) {
	source := ingestion.RepoSource{Type: "local_path", Value: p.workdir}
	loaded, err := p.repoLoader.LoadRepository(source, p.settings.ExcludeGlobs, p.settings.MaxFileSizeBytes)
	if err != nil {
		return nil, "", fmt.Errorf("load repository: %w", err)
	}

	dd := ingestion.NewDeltaDetector(p.workdir, p.logger)
	head := ""
	if dd.IsGitRepository() {
		if h, err := dd.GetHeadSHA(); err == nil {
			head = h
		}
	}

	files := make([]ingestion.FileInfo, 0, len(loaded.Files))
	for _, df := range loaded.Files {
		files = append(files, p.readFile(df.Path, head))
	}
	return files, head, nil
}

func (p *Pipeline) readFile(relPath, commit string) ingestion.FileInfo {
	fullPath := filepath.Join(p.workdir, relPath)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		p.logger.Warn("ingestpipeline.read_file.error", "path", relPath, "err", err)
		content = nil
	}
	info, statErr := os.Stat(fullPath)
	lastModified := time.Now()
	if statErr == nil {
		lastModified = info.ModTime()
	}
	return ingestion.FileInfo{
		Path:         relPath,
		Content:      content,
		LastModified: lastModified.UTC().Format(time.RFC3339),
		Commit:       commit,
	}
}

// parseFiles parses every file's content into Symbol records, fanning out
// across settings.Concurrency.ParseWorkers. A per-file parse failure is a
// ParseError: the file is skipped and the run continues.
func (p *Pipeline) parseFiles(ctx context.Context, files []ingestion.FileInfo) (map[string][]ingestion.Symbol, []ingestion.Symbol, int) {
	byFile := make(map[string][]ingestion.Symbol, len(files))
	var all []ingestion.Symbol
	var mu sync.Mutex
	var errCount int

	workers := p.settings.Concurrency.ParseWorkers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(files) {
		workers = len(files)
	}
	if workers <= 1 {
		for _, fi := range files {
			if ctx.Err() != nil {
				return byFile, all, errCount
			}
			syms, err := p.parser.ParseFile(fi)
			if err != nil {
				p.logger.Warn("ingestpipeline.parse.error", "path", fi.Path, "err", yeperrors.ErrParse, "cause", err)
				errCount++
				continue
			}
			byFile[fi.Path] = syms
			all = append(all, syms...)
		}
		return byFile, all, errCount
	}

	jobs := make(chan ingestion.FileInfo)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for fi := range jobs {
				if ctx.Err() != nil {
					continue
				}
				syms, err := p.parser.ParseFile(fi)
				mu.Lock()
				if err != nil {
					p.logger.Warn("ingestpipeline.parse.error", "path", fi.Path, "err", yeperrors.ErrParse, "cause", err)
					errCount++
				} else {
					byFile[fi.Path] = syms
					all = append(all, syms...)
				}
				mu.Unlock()
			}
		}()
	}
	for _, fi := range files {
		jobs <- fi
	}
	close(jobs)
	wg.Wait()

	return byFile, all, errCount
}

// summarizeChunks requests a one-line summary per chunk lacking one,
// retrying transient provider failures up to networkRetries times before
// leaving that chunk's Summary empty and moving on — summarization never
// aborts the run.
func (p *Pipeline) summarizeChunks(ctx context.Context, chunks []ingestion.CodeChunk) error {
	for i := range chunks {
		if chunks[i].Summary != "" {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		prompt := summaryPrompt(chunks[i])
		summary, err := withNetworkRetry(ctx, func() (string, error) {
			resp, err := p.summarizer.Generate(ctx, llm.GenerateRequest{Prompt: prompt, MaxTokens: 60})
			if err != nil {
				return "", err
			}
			return resp.Text, nil
		})
		if err != nil {
			p.logger.Warn("ingestpipeline.summarize.error", "chunk_id", chunks[i].ID, "err", err)
			continue
		}
		chunks[i].Summary = summary
	}
	return nil
}

func summaryPrompt(c ingestion.CodeChunk) string {
	return fmt.Sprintf("Summarize in one short sentence what %s %s does:\n\n%s", c.Symbol.SymbolType, c.Symbol.Name, c.Symbol.Body)
}

// embedChunksCached consults the embedding cache before asking the
// provider for anything: chunks whose embedding text already has a cached
// vector are filled in directly, and only the remainder is sent through
// the embedding generator. Freshly computed vectors are written back to
// the cache before returning. A nil cache (e.g. it failed to open) simply
// degrades to calling the embedding generator for every chunk.
func (p *Pipeline) embedChunksCached(ctx context.Context, chunks []ingestion.CodeChunk) (*ingestion.EmbedChunksResult, error) {
	if p.embeddingCache == nil {
		return p.embeddingGen.EmbedChunks(ctx, chunks)
	}

	misses := make([]ingestion.CodeChunk, 0, len(chunks))
	missIndex := make([]int, 0, len(chunks))
	hits := 0
	for i, c := range chunks {
		if vec, ok := p.embeddingCache.Get(c.EmbeddingText); ok {
			chunks[i].Embedding = vec
			hits++
			continue
		}
		misses = append(misses, c)
		missIndex = append(missIndex, i)
	}
	if hits > 0 {
		p.logger.Info("ingestpipeline.embedding_cache.hits", "hits", hits, "misses", len(misses))
	}

	if len(misses) == 0 {
		return &ingestion.EmbedChunksResult{Chunks: chunks}, nil
	}

	missResult, err := p.embeddingGen.EmbedChunks(ctx, misses)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	for j, c := range missResult.Chunks {
		chunks[missIndex[j]] = c
		if c.EmbedError == "" && len(c.Embedding) > 0 {
			if err := p.embeddingCache.Put(c.EmbeddingText, c.Embedding, now); err != nil {
				p.logger.Warn("ingestpipeline.embedding_cache.write_error", "err", err)
			}
		}
	}

	return &ingestion.EmbedChunksResult{
		Chunks:         chunks,
		ErrorCount:     missResult.ErrorCount,
		TruncatedCount: missResult.TruncatedCount,
	}, nil
}

// embedTranscriptChunksCached mirrors embedChunksCached for transcript
// chunks, consulting the same embedding cache keyed on embedding text
// before calling the provider for any cache miss.
func (p *Pipeline) embedTranscriptChunksCached(ctx context.Context, chunks []ingestion.TranscriptChunk) (*ingestion.EmbedTranscriptChunksResult, error) {
	if p.embeddingCache == nil {
		return p.embeddingGen.EmbedTranscriptChunks(ctx, chunks)
	}

	misses := make([]ingestion.TranscriptChunk, 0, len(chunks))
	missIndex := make([]int, 0, len(chunks))
	hits := 0
	for i, c := range chunks {
		if vec, ok := p.embeddingCache.Get(c.EmbeddingText); ok {
			chunks[i].Embedding = vec
			hits++
			continue
		}
		misses = append(misses, c)
		missIndex = append(missIndex, i)
	}
	if hits > 0 {
		p.logger.Info("ingestpipeline.transcript_embedding_cache.hits", "hits", hits, "misses", len(misses))
	}

	if len(misses) == 0 {
		return &ingestion.EmbedTranscriptChunksResult{Chunks: chunks}, nil
	}

	missResult, err := p.embeddingGen.EmbedTranscriptChunks(ctx, misses)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	for j, c := range missResult.Chunks {
		chunks[missIndex[j]] = c
		if c.EmbedError == "" && len(c.Embedding) > 0 {
			if err := p.embeddingCache.Put(c.EmbeddingText, c.Embedding, now); err != nil {
				p.logger.Warn("ingestpipeline.transcript_embedding_cache.write_error", "err", err)
			}
		}
	}

	return &ingestion.EmbedTranscriptChunksResult{
		Chunks:         chunks,
		ErrorCount:     missResult.ErrorCount,
		TruncatedCount: missResult.TruncatedCount,
	}, nil
}

// indexTranscriptChunks upserts every transcript chunk's embedding and
// metadata into its own table, parallel to indexChunks for code chunks.
// There is no stale-row deletion pass: each chunk (one per checkpoint
// session) is upserted by its id, so a local session read again after its
// transcript grew replaces its earlier row with one built from the new tail.
func (p *Pipeline) indexTranscriptChunks(ctx context.Context, chunks []ingestion.TranscriptChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := p.backend.CreateTableIfAbsent(ctx, transcriptChunksTable, p.settings.EmbeddingDimensions); err != nil {
		return fmt.Errorf("ensure transcript chunk table: %w", err)
	}

	for _, c := range chunks {
		rec := storage.Record{
			ID:            c.ID,
			EmbeddingText: c.EmbeddingText,
			Embedding:     c.Embedding,
			Fields: map[string]string{
				"checkpointId": c.CheckpointID,
				"sessionIndex": c.SessionIndex,
				"agent":        c.Agent,
				"timestamp":    c.Timestamp,
				"diffSummary":  c.DiffSummary,
				"filesChanged": strings.Join(c.FilesChanged, ","),
				"symbols":      strings.Join(c.Symbols, ","),
				"summary":      c.Summary,
				"tokensUsed":   strconv.Itoa(c.TokensUsed),
				"embedError":   c.EmbedError,
			},
		}
		if err := p.backend.UpsertByID(ctx, transcriptChunksTable, rec); err != nil {
			return fmt.Errorf("upsert transcript chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// indexChunks upserts every chunk's embedding and metadata, deleting the
// prior generation of chunks for each touched file first so a file whose
// symbol set shrank doesn't leave orphaned rows behind.
func (p *Pipeline) indexChunks(ctx context.Context, files []ingestion.FileInfo, chunks []ingestion.CodeChunk) error {
	if err := p.backend.CreateTableIfAbsent(ctx, codeChunksTable, p.settings.EmbeddingDimensions); err != nil {
		return fmt.Errorf("ensure chunk table: %w", err)
	}

	touched := make(map[string]bool, len(files))
	for _, fi := range files {
		touched[fi.Path] = true
	}
	for path := range touched {
		if err := p.backend.DeleteByPredicate(ctx, codeChunksTable, "path", path); err != nil {
			return fmt.Errorf("delete stale chunks for %s: %w", path, err)
		}
	}

	for _, c := range chunks {
		rec := storage.Record{
			ID:            c.ID,
			EmbeddingText: c.EmbeddingText,
			Embedding:     c.Embedding,
			Fields: map[string]string{
				"path":         c.Symbol.Path,
				"symbol":       c.Symbol.Name,
				"symbolType":   string(c.Symbol.SymbolType),
				"language":     c.Language,
				"lastModified": c.LastModified,
				"commit":       c.Commit,
				"summary":      c.Summary,
				"startLine":    strconv.Itoa(c.Symbol.StartLine),
				"endLine":      strconv.Itoa(c.Symbol.EndLine),
				"truncated":    strconv.FormatBool(c.Truncated),
				"embedError":   c.EmbedError,
			},
		}
		if err := p.backend.UpsertByID(ctx, codeChunksTable, rec); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

func detectLanguage(path string) string {
	switch ext := filepath.Ext(path); ext {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	default:
		return ext
	}
}

// withNetworkRetry retries fn up to networkRetries times with exponential
// backoff and jitter (100ms, 200ms, 400ms base) when it returns a
// retryable network error, matching the backoff shape the embedding path
// uses. A non-network error returns immediately without retrying.
func withNetworkRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	base := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= networkRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		val, err := fn()
		if err == nil {
			return val, nil
		}
		lastErr = err
		if attempt == networkRetries || !isRetryableNetworkError(err) {
			return zero, err
		}
		backoff := base * time.Duration(1<<uint(attempt))
		jitter := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(jitter):
		}
	}
	return zero, lastErr
}

func isRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection refused", "connection reset", "deadline exceeded", "eof", "429", "500", "502", "503", "504"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
