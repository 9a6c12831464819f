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

// Package ingestion holds the data model and building blocks the ingest
// pipeline (see pkg/ingestpipeline) assembles into a run: source discovery,
// parsing, chunking, embedding, and the config/checkpoint state that makes
// a run incremental and records where it stopped.
//
// # Data model
//
// A Symbol is one parsed declaration (function, method, type, ...) with
// its body, doc comment, calls, and imports (types.go). A CodeChunk wraps
// a Symbol with the text actually handed to the embedding provider —
// either the bare "{symbolType} {name}\n{jsDoc}\n{body}" form
// (ChunkFileSymbols) or a graph-enriched form that also carries a
// signature line, "used by"/"calls" neighbor lists, and terse
// async/exported/visibility flags (ChunkFileSymbolsEnriched, chunker.go).
//
// # Parsing
//
// CodeParser (parser_interface.go) abstracts over two implementations:
// TreeSitterParser for accurate AST-based parsing, and SimplifiedParser as
// a regex-based fallback. NewCodeParser(ParserModeAuto) prefers
// Tree-sitter.
//
// # Loading and delta detection
//
// RepoLoader (repo_loader.go) reads a RepoSource — a git URL (shallow
// cloned to a temp dir) or a local path — into a LoadResult of
// DiscoveredFile records, applying exclude globs and a max file size.
// DeltaDetector (delta.go) shells out to git to find what changed between
// two commits, so an incremental run only reparses touched files instead
// of walking the whole tree again.
//
// # Embedding
//
// EmbeddingGenerator (embedding.go) fans a batch of CodeChunks out across
// a worker pool, retrying transient provider failures with exponential
// backoff and jitter. CreateEmbeddingProvider selects a concrete
// EmbeddingProvider by name: mock, nomic, ollama, openai, or llamacpp.
//
// # Config and Checkpoint
//
// Config (config.go) is the persisted, per-project run state — provider,
// models, scope, the last commit each source indexed, trace id — read and
// rewritten via LoadConfig/Config.Save on every pass. Settings, by
// contrast, is supplied fresh each invocation and never persisted: parser
// mode, concurrency, retry behavior, exclude globs.
//
// Checkpoint (checkpoint.go) records one run's position in the pipeline's
// state machine (PipelineState: idle, parsing, chunking, summarizing,
// embedding, indexing, done, error). pkg/ingestpipeline saves it when a run
// fails or completes, so a failed run can be diagnosed; the next invocation
// starts again at idle rather than resuming from it.
//
// # Orchestration lives elsewhere
//
// This package intentionally has no top-level "run everything" entry
// point: pkg/ingestpipeline composes RepoLoader, CodeParser,
// ChunkFileSymbolsEnriched, EmbeddingGenerator, and a pkg/storage
// VectorBackend into the full ingest state machine, holding the
// pkg/lock cross-process lock for the run's duration.
package ingestion
