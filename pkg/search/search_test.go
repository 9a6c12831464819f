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

package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yep-mem/yepmem/pkg/cache"
	"github.com/yep-mem/yepmem/pkg/storage"
)

func newTestSearchCache(t *testing.T) (*cache.SearchCache, error) {
	t.Helper()
	return cache.NewSearchCache(t.TempDir())
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("How does Auth.Validate() work? it's not-working!")
	require.Equal(t, []string{"how", "does", "auth", "validate", "work", "not", "working"}, tokens)
}

func TestTokenize_DropsShortTokens(t *testing.T) {
	tokens := Tokenize("a to do it is ok")
	require.NotContains(t, tokens, "to")
	require.NotContains(t, tokens, "do")
	require.NotContains(t, tokens, "is")
	require.NotContains(t, tokens, "ok")
}

func TestEscapeFTS(t *testing.T) {
	require.Equal(t, `it''s a \\test`, escapeFTS(`it's a \test`))
	require.Equal(t, "noNUL", escapeFTS("no\x00NUL"))
}

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		query  string
		intent Intent
	}{
		{"what changed recently in the auth module", IntentRecentChange},
		{"how does the retry logic work", IntentHowItWorks},
		{"where is the definition of ParseConfig", IntentFindCode},
		{"why is this panicking with a stack trace", IntentDebug},
		{"tell me about the project", IntentDefault},
	}
	for _, c := range cases {
		require.Equal(t, c.intent, ClassifyIntent(c.query), c.query)
	}
}

func TestFuse_AccumulatesAcrossSources(t *testing.T) {
	recA := storage.Record{ID: "a"}
	recB := storage.Record{ID: "b"}
	vec := []storage.Scored{{Record: recA, Score: 0.9}, {Record: recB, Score: 0.5}}
	fts := []storage.Scored{{Record: recB, Score: 1}, {Record: recA, Score: 1}}

	fused := fuse(vec, fts, 10)
	require.Len(t, fused, 2)
	// Both appear in both sources; "a" ranks first in vector (rank 0) and
	// second in fts (rank 1), "b" ranks second in vector (rank 1) and first
	// in fts (rank 0) -- symmetric, so their RRF scores tie exactly.
	require.InDelta(t, fused[0].rrf, fused[1].rrf, 1e-9)
}

func TestRerankScore_RecencyDecaysWithAge(t *testing.T) {
	now := time.Now()
	fresh := storage.Record{Fields: map[string]string{"lastModified": now.Format(time.RFC3339)}}
	stale := storage.Record{Fields: map[string]string{"lastModified": now.Add(-60 * 24 * time.Hour).Format(time.RFC3339)}}

	w := Weights{Recency: 1} // isolate the recency term
	freshScore := rerankScore(fresh, 0, w, Filter{}, map[string]struct{}{}, now)
	staleScore := rerankScore(stale, 0, w, Filter{}, map[string]struct{}{}, now)
	require.Greater(t, freshScore, staleScore)
}

func TestRerankScore_MissingTimestampIsZeroRecency(t *testing.T) {
	rec := storage.Record{Fields: map[string]string{}}
	w := Weights{Recency: 1}
	score := rerankScore(rec, 0, w, Filter{}, map[string]struct{}{}, time.Now())
	require.Equal(t, 0.0, score)
}

func TestSymbolMatchScore(t *testing.T) {
	tokens := tokenSetFromSlice(Tokenize("find parseconfig please"))
	require.Equal(t, 1.0, symbolMatchScore(tokens, "ParseConfig"))
	require.Equal(t, 0.5, symbolMatchScore(tokens, "ParseConfigFromFile"))
	require.Equal(t, 0.0, symbolMatchScore(tokens, "Unrelated"))
}

func TestFileOverlapScore(t *testing.T) {
	filter := Filter{Files: []string{"auth.go", "config.go"}}
	fields := map[string]string{"path": "internal/auth.go"}
	require.Equal(t, 0.5, fileOverlapScore(filter, fields))
}

// fakeBackend is a minimal in-memory VectorBackend used only to exercise
// Searcher.Search's fusion/rerank wiring end to end, without depending on
// the real sqlite-vec-backed implementation.
type fakeBackend struct {
	knn []storage.Scored
	fts []storage.Scored
}

func (f *fakeBackend) Query(ctx context.Context, query string, args ...any) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}
func (f *fakeBackend) Execute(ctx context.Context, query string, args ...any) error { return nil }
func (f *fakeBackend) Close() error                                                { return nil }
func (f *fakeBackend) CreateTableIfAbsent(ctx context.Context, table string, dim int) error {
	return nil
}
func (f *fakeBackend) UpsertByID(ctx context.Context, table string, rec storage.Record) error {
	return nil
}
func (f *fakeBackend) DeleteByPredicate(ctx context.Context, table, field, value string) error {
	return nil
}
func (f *fakeBackend) KNN(ctx context.Context, table string, query []float32, k int) ([]storage.Scored, error) {
	return f.knn, nil
}
func (f *fakeBackend) FTS(ctx context.Context, table, pattern string, k int) ([]storage.Scored, error) {
	return f.fts, nil
}
func (f *fakeBackend) Scan(ctx context.Context, table, field, value string, limit int) ([]storage.Record, error) {
	return nil, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestSearcher_Search_ReturnsRerankedTopK(t *testing.T) {
	now := time.Now().Format(time.RFC3339)
	backend := &fakeBackend{
		knn: []storage.Scored{
			{Record: storage.Record{ID: "1", EmbeddingText: "func Login validates credentials", Fields: map[string]string{"symbol": "Login", "lastModified": now}}, Score: 0.95},
			{Record: storage.Record{ID: "2", EmbeddingText: "func Logout clears session", Fields: map[string]string{"symbol": "Logout", "lastModified": now}}, Score: 0.80},
		},
	}

	s := NewSearcher(backend, fakeEmbedder{}, nil, "code_chunks", nil)
	results, err := s.Search(context.Background(), Query{Text: "login credentials", TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "1", results[0].ID)
}

func TestSearcher_Search_CachesResults(t *testing.T) {
	backend := &fakeBackend{
		knn: []storage.Scored{{Record: storage.Record{ID: "1", Fields: map[string]string{"symbol": "Foo"}}, Score: 0.5}},
	}

	rc, err := newTestSearchCache(t)
	require.NoError(t, err)

	s := NewSearcher(backend, fakeEmbedder{}, rc, "code_chunks", nil)
	first, err := s.Search(context.Background(), Query{Text: "foo", TopK: 5})
	require.NoError(t, err)

	// Change what the backend would return; a cache hit should still
	// surface the first call's results.
	backend.knn = nil
	second, err := s.Search(context.Background(), Query{Text: "foo", TopK: 5})
	require.NoError(t, err)
	require.Equal(t, first, second)
}
