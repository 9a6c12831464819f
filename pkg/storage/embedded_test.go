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

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupTestBackend(t *testing.T) *EmbeddedBackend {
	t.Helper()
	b, err := NewEmbeddedBackend(EmbeddedConfig{DataDir: t.TempDir(), ProjectID: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestEmbeddedBackend_CreateTableIfAbsent_Idempotent(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.CreateTableIfAbsent(ctx, "code_chunks", 4))
	require.NoError(t, b.CreateTableIfAbsent(ctx, "code_chunks", 4))
}

func TestEmbeddedBackend_UpsertAndScan(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.CreateTableIfAbsent(ctx, "code_chunks", 3))

	rec := Record{
		ID:            "chunk-1",
		EmbeddingText: "function Greet says hello",
		Embedding:     []float32{0.1, 0.2, 0.3},
		Fields:        map[string]string{"path": "a.go"},
	}
	require.NoError(t, b.UpsertByID(ctx, "code_chunks", rec))

	got, err := b.Scan(ctx, "code_chunks", "path", "a.go", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "chunk-1", got[0].ID)

	// Re-upsert with the same id updates in place rather than duplicating.
	rec.EmbeddingText = "function Greet says hello again"
	require.NoError(t, b.UpsertByID(ctx, "code_chunks", rec))
	got, err = b.Scan(ctx, "code_chunks", "path", "a.go", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "function Greet says hello again", got[0].EmbeddingText)
}

func TestEmbeddedBackend_DeleteByPredicate(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.CreateTableIfAbsent(ctx, "code_chunks", 3))

	require.NoError(t, b.UpsertByID(ctx, "code_chunks", Record{
		ID: "c1", EmbeddingText: "one", Embedding: []float32{1, 0, 0},
		Fields: map[string]string{"path": "a.go"},
	}))
	require.NoError(t, b.UpsertByID(ctx, "code_chunks", Record{
		ID: "c2", EmbeddingText: "two", Embedding: []float32{0, 1, 0},
		Fields: map[string]string{"path": "b.go"},
	}))

	require.NoError(t, b.DeleteByPredicate(ctx, "code_chunks", "path", "a.go"))

	remaining, err := b.Scan(ctx, "code_chunks", "", "", 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "c2", remaining[0].ID)
}

func TestEmbeddedBackend_KNN(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.CreateTableIfAbsent(ctx, "code_chunks", 3))

	require.NoError(t, b.UpsertByID(ctx, "code_chunks", Record{
		ID: "close", EmbeddingText: "close vector", Embedding: []float32{1, 0, 0},
	}))
	require.NoError(t, b.UpsertByID(ctx, "code_chunks", Record{
		ID: "far", EmbeddingText: "far vector", Embedding: []float32{0, 0, 1},
	}))

	results, err := b.KNN(ctx, "code_chunks", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "close", results[0].ID)
}

func TestEmbeddedBackend_FTS(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.CreateTableIfAbsent(ctx, "code_chunks", 3))

	require.NoError(t, b.UpsertByID(ctx, "code_chunks", Record{
		ID: "c1", EmbeddingText: "parses go source files", Embedding: []float32{1, 0, 0},
	}))
	require.NoError(t, b.UpsertByID(ctx, "code_chunks", Record{
		ID: "c2", EmbeddingText: "renders a button component", Embedding: []float32{0, 1, 0},
	}))

	results, err := b.FTS(ctx, "code_chunks", "parses", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "c1", results[0].ID)
}

func TestEmbeddedBackend_Close_Idempotent(t *testing.T) {
	b := setupTestBackend(t)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestEmbeddedBackend_Closed_RejectsOperations(t *testing.T) {
	b := setupTestBackend(t)
	require.NoError(t, b.Close())
	ctx := context.Background()
	_, err := b.Query(ctx, "SELECT 1")
	require.Error(t, err)
}
