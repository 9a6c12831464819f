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
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yep-mem/yepmem/pkg/cache"
	"github.com/yep-mem/yepmem/pkg/ingestion"
	"github.com/yep-mem/yepmem/pkg/storage"
)

// rrfK is Reciprocal-Rank Fusion's smoothing constant.
const rrfK = 60

// fanOutMultiplier bounds how many candidates each signal (vector, FTS)
// contributes before fusion and rerank narrow back down to TopK.
const fanOutMultiplier = 3

// Searcher runs hybrid search against one table of a VectorBackend.
type Searcher struct {
	backend     storage.VectorBackend
	embedder    ingestion.EmbeddingProvider
	resultCache *cache.SearchCache
	table       string
	logger      *slog.Logger
}

// NewSearcher builds a Searcher over table, embedding queries with
// embedder and consulting resultCache (which may be nil to disable result
// caching) before running the backend.
func NewSearcher(backend storage.VectorBackend, embedder ingestion.EmbeddingProvider, resultCache *cache.SearchCache, table string, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{backend: backend, embedder: embedder, resultCache: resultCache, table: table, logger: logger}
}

// Search runs one hybrid query: cache lookup, parallel vector k-NN and
// FTS, reciprocal-rank fusion, intent-weighted rerank, an optional
// minScore floor, truncation to q.TopK, then a cache write. Search never
// mutates ingested state; on failure it returns the error and leaves the
// cache untouched.
func (s *Searcher) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.TopK <= 0 {
		q.TopK = 10
	}

	cacheKey := ""
	if s.resultCache != nil {
		key, err := cache.SearchKey(cache.SearchKeyInput{QueryText: q.Text, TopK: q.TopK, Filter: q.Filter})
		if err == nil {
			cacheKey = key
			var cached []Result
			if s.resultCache.Get(key, time.Now(), &cached) {
				return cached, nil
			}
		}
	}

	fanOut := q.TopK * fanOutMultiplier

	queryVec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	tokens := Tokenize(q.Text)
	ftsPattern := ftsQuery(tokens)

	var vecResults, ftsResults []storage.Scored
	var vecErr, ftsErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		vecResults, vecErr = s.backend.KNN(ctx, s.table, queryVec, fanOut)
	}()
	go func() {
		defer wg.Done()
		if ftsPattern == "" {
			return
		}
		ftsResults, ftsErr = s.backend.FTS(ctx, s.table, ftsPattern, fanOut)
	}()
	wg.Wait()
	if vecErr != nil {
		return nil, fmt.Errorf("vector knn: %w", vecErr)
	}
	if ftsErr != nil {
		return nil, fmt.Errorf("full text search: %w", ftsErr)
	}

	fused := fuse(vecResults, ftsResults, fanOut)

	intent := ClassifyIntent(q.Text)
	weights := WeightsFor(intent)
	now := time.Now()
	queryTokenSet := tokenSetFromSlice(tokens)

	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		score := rerankScore(f.rec, f.vectorSim, weights, q.Filter, queryTokenSet, now)
		if q.MinScore > 0 && score < q.MinScore {
			continue
		}
		results = append(results, toResult(f.rec, score))
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}

	if s.resultCache != nil && cacheKey != "" {
		if err := s.resultCache.Put(cacheKey, results, now.Unix()); err != nil {
			s.logger.Warn("search.cache.write_error", "err", err)
		}
	}

	return results, nil
}

// fusedCandidate is one record surviving reciprocal-rank fusion, carrying
// its best observed vector similarity (0 if it was an FTS-only hit) for
// the rerank step's vectorSim term.
type fusedCandidate struct {
	rec       storage.Record
	vectorSim float64
	rrf       float64
}

// fuse combines two ranked candidate lists with Reciprocal-Rank Fusion
// (k=rrfK): each candidate accumulates 1/(k+rank+1) per source it appears
// in, ranks are 0-based. The result is sorted by fused score descending
// and truncated to limit.
func fuse(vec, fts []storage.Scored, limit int) []fusedCandidate {
	byID := make(map[string]*fusedCandidate)
	order := make([]string, 0, len(vec)+len(fts))

	add := func(id string, rec storage.Record, rank int, vectorSim float64, isVector bool) {
		c, ok := byID[id]
		if !ok {
			c = &fusedCandidate{rec: rec}
			byID[id] = c
			order = append(order, id)
		}
		c.rrf += 1.0 / float64(rrfK+rank+1)
		if isVector && vectorSim > c.vectorSim {
			c.vectorSim = vectorSim
		}
	}

	for rank, sc := range vec {
		add(sc.Record.ID, sc.Record, rank, sc.Score, true)
	}
	for rank, sc := range fts {
		add(sc.Record.ID, sc.Record, rank, 0, false)
	}

	out := make([]fusedCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].rrf > out[j].rrf })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// rerankScore computes the final blended score for one candidate:
// score = alpha*vectorSim + beta*recency + gamma*fileOverlap +
// delta*keywordDensity + epsilon*symbolMatch, where alpha is implicitly
// 1 minus the sum of the other four weights.
func rerankScore(rec storage.Record, vectorSim float64, w Weights, filter Filter, queryTokens map[string]struct{}, now time.Time) float64 {
	alpha := 1.0 - w.Recency - w.FileOverlap - w.KeywordDensity - w.SymbolMatch
	if alpha < 0 {
		alpha = 0
	}

	recency := recencyScore(rec.Fields["lastModified"], now)
	overlap := fileOverlapScore(filter, rec.Fields)
	density := keywordDensity(queryTokens, rec.EmbeddingText)
	symMatch := symbolMatchScore(queryTokens, rec.Fields["symbol"])

	return alpha*vectorSim + w.Recency*recency + w.FileOverlap*overlap + w.KeywordDensity*density + w.SymbolMatch*symMatch
}

// recencyHalfLifeDays is the number of days after which recency decays to
// 0.5, per exp(-ln2 * ageDays / 14).
const recencyHalfLifeDays = 14

// recencyScore returns exp(-ln2 * ageDays / 14), or 0 if ts is missing or
// unparseable.
func recencyScore(ts string, now time.Time) float64 {
	if ts == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0
	}
	ageDays := now.Sub(t).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / recencyHalfLifeDays)
}

// fileOverlapScore is the fraction of filter.Files that appear
// (case-insensitively, as substrings) in the candidate's changed-files
// set: its own path for a code chunk, or its "filesChanged" field
// (comma-separated) for a multi-file candidate such as a transcript.
func fileOverlapScore(filter Filter, fields map[string]string) float64 {
	if len(filter.Files) == 0 {
		return 0
	}
	changed := fields["filesChanged"]
	if changed == "" {
		changed = fields["path"]
	}
	changedLower := strings.ToLower(changed)

	matches := 0
	for _, f := range filter.Files {
		if strings.Contains(changedLower, strings.ToLower(f)) {
			matches++
		}
	}
	return float64(matches) / float64(len(filter.Files))
}

// keywordDensity is |tokens(query) ∩ tokens(embeddingText)| / |tokens(query)|.
func keywordDensity(queryTokens map[string]struct{}, embeddingText string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := tokenSet(embeddingText)
	overlap := 0
	for t := range queryTokens {
		if _, ok := textTokens[t]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryTokens))
}

// symbolMatchScore is 1 if any query token equals the candidate's symbol
// name case-insensitively, 0.5 for a substring match, else 0.
func symbolMatchScore(queryTokens map[string]struct{}, symbol string) float64 {
	if symbol == "" {
		return 0
	}
	lowerSymbol := strings.ToLower(symbol)
	best := 0.0
	for t := range queryTokens {
		if t == lowerSymbol {
			return 1
		}
		if strings.Contains(lowerSymbol, t) {
			best = 0.5
		}
	}
	return best
}

func tokenSetFromSlice(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func toResult(rec storage.Record, score float64) Result {
	startLine, _ := strconv.Atoi(rec.Fields["startLine"])
	endLine, _ := strconv.Atoi(rec.Fields["endLine"])
	return Result{
		ID:            rec.ID,
		Path:          rec.Fields["path"],
		Symbol:        rec.Fields["symbol"],
		SymbolType:    rec.Fields["symbolType"],
		Language:      rec.Fields["language"],
		Summary:       rec.Fields["summary"],
		EmbeddingText: rec.EmbeddingText,
		LastModified:  rec.Fields["lastModified"],
		StartLine:     startLine,
		EndLine:       endLine,
		Score:         score,
	}
}
