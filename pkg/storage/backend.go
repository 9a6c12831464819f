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

// Package storage provides storage backend abstractions for yepmem.
//
// It defines Backend, the thin transactional surface every storage engine
// must implement, and VectorBackend, the opaque vector+FTS store the search
// and ingest paths depend on. EmbeddedBackend is the open-source default:
// SQLite with the sqlite-vec extension for cosine k-NN and FTS5 for full
// text, behind the same interface shape the rest of this module treats as
// an external collaborator.
package storage

import "context"

// Backend is the minimal transactional surface every storage engine must
// implement: run a read query, run a write, release resources.
type Backend interface {
	// Query executes a read-only query and returns the matching rows.
	Query(ctx context.Context, query string, args ...any) (*QueryResult, error)

	// Execute runs a write statement (insert, update, delete, DDL).
	Execute(ctx context.Context, query string, args ...any) error

	// Close releases any resources held by the backend.
	Close() error
}

// QueryResult is a generic row set returned by Backend.Query.
type QueryResult struct {
	Headers []string
	Rows    [][]any
}

// Record is one row of a vector/FTS table, keyed by an application-assigned
// string id (not a storage-engine rowid) so delete-by-predicate and
// upsert-by-id stay stable across reinserts.
type Record struct {
	ID            string
	EmbeddingText string
	Embedding     []float32
	// Fields carries every other column as a flat string-keyed map; the
	// embedded backend stores these in a JSON side column rather than one
	// SQL column per field, since the chunk/edge shapes differ by table.
	Fields map[string]string
}

// Scored is a Record plus its similarity or rank score from a KNN/FTS query.
type Scored struct {
	Record
	Score float64
}

// VectorBackend extends Backend with the opaque vector-store operations
// spec'd for hybrid search and ingest: one table per content kind (code
// chunks, transcript chunks), each supporting cosine k-NN over its
// embedding column and FTS5 over its embeddingText column.
type VectorBackend interface {
	Backend

	// CreateTableIfAbsent registers a content table of the given dimension.
	CreateTableIfAbsent(ctx context.Context, table string, dim int) error

	// UpsertByID replaces the record with the given id, or inserts it.
	UpsertByID(ctx context.Context, table string, rec Record) error

	// DeleteByPredicate removes every record for which field == value.
	DeleteByPredicate(ctx context.Context, table, field, value string) error

	// KNN returns the k nearest records to query by cosine distance.
	KNN(ctx context.Context, table string, query []float32, k int) ([]Scored, error)

	// FTS returns up to k records whose embeddingText matches an
	// already-escaped FTS5 MATCH pattern.
	FTS(ctx context.Context, table, pattern string, k int) ([]Scored, error)

	// Scan returns up to limit records with field == value (limit <= 0 means
	// unbounded).
	Scan(ctx context.Context, table, field, value string, limit int) ([]Record, error)
}
