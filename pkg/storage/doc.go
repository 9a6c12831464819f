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

// Package storage provides storage backend abstractions for yepmem.
//
// This package defines Backend and VectorBackend, letting the ingest and
// search paths work against any engine that exposes cosine k-NN plus
// full-text search over an id-keyed record set.
//
// # Available Backends
//
//   - EmbeddedBackend: local SQLite + sqlite-vec instance, the
//     open-source default.
//
// # Quick Start
//
//	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
//	    DataDir:   "/path/to/data",
//	    ProjectID: "myproject",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	if err := backend.CreateTableIfAbsent(ctx, "code_chunks", 768); err != nil {
//	    log.Fatal(err)
//	}
//
//	err = backend.UpsertByID(ctx, "code_chunks", storage.Record{
//	    ID:            chunkID,
//	    EmbeddingText: chunk.EmbedText(),
//	    Embedding:     embedding,
//	    Fields:        map[string]string{"path": chunk.Symbol.Path},
//	})
//
// # Tables
//
// One content table per kind (code_chunks, transcript_chunks). Each
// registers three SQLite objects: a metadata table (id, embedding_text,
// a JSON fields bag), a vec0 virtual table for k-NN, and an FTS5 virtual
// table kept in sync via triggers.
//
// # Query vs Execute
//
// Query and Execute are the low-level escape hatch for anything the
// VectorBackend surface doesn't cover; most callers use KNN/FTS/Scan/
// UpsertByID/DeleteByPredicate instead.
//
// # Thread Safety
//
// EmbeddedBackend is safe for concurrent use: reads take a read lock,
// writes take an exclusive lock.
package storage
