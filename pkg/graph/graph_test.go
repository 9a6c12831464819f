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

package graph

import (
	"testing"
	"time"

	"github.com/yep-mem/yepmem/pkg/ingestion"
)

func TestStore_InsertEdgesMergesByID(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.InsertEdges([]Edge{{Source: "a", Target: "b", EdgeType: EdgeCalls, Count: 1, LastModified: now}})
	s.InsertEdges([]Edge{{Source: "a", Target: "b", EdgeType: EdgeCalls, Count: 2, LastModified: now.Add(time.Hour)}})

	out := s.Outgoing("a")
	if len(out) != 1 {
		t.Fatalf("expected 1 merged edge, got %d", len(out))
	}
	if out[0].Count != 3 {
		t.Errorf("expected merged count 3, got %d", out[0].Count)
	}
}

func TestStore_IncomingOutgoingCallerCount(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.InsertEdges([]Edge{
		{Source: "a", Target: "c", EdgeType: EdgeCalls, Count: 1, LastModified: now},
		{Source: "b", Target: "c", EdgeType: EdgeCalls, Count: 1, LastModified: now},
		{Source: "a", Target: "c", EdgeType: EdgeImports, Count: 1, LastModified: now},
	})

	if got := s.CallerCount("c"); got != 2 {
		t.Errorf("CallerCount(c) = %d, want 2", got)
	}
	if got := len(s.Incoming("c")); got != 3 {
		t.Errorf("Incoming(c) = %d edges, want 3", got)
	}
	if got := len(s.Outgoing("a")); got != 2 {
		t.Errorf("Outgoing(a) = %d edges, want 2", got)
	}
}

func TestStore_ClearResetsEverything(t *testing.T) {
	s := NewStore()
	s.UpsertSymbol("x")
	s.InsertEdges([]Edge{{Source: "x", Target: "y", EdgeType: EdgeCalls, Count: 1}})
	s.Clear()

	if len(s.AllSymbols()) != 0 {
		t.Error("expected no symbols after Clear")
	}
	if len(s.Outgoing("x")) != 0 {
		t.Error("expected no edges after Clear")
	}
}

func TestResolver_ResolveCallsApproximateByName(t *testing.T) {
	symbols := []ingestion.Symbol{
		{Name: "Greet", Path: "a.go", Calls: []string{"helper"}},
		{Name: "helper", Path: "a.go"},
		{Name: "unrelated", Path: "b.go"},
	}

	r := NewResolver(symbols)
	edges := r.ResolveCalls(symbols, time.Now())

	if len(edges) != 1 {
		t.Fatalf("expected 1 resolved call edge, got %d: %+v", len(edges), edges)
	}
	if edges[0].Source != NodeKey("a.go", "Greet") || edges[0].Target != NodeKey("a.go", "helper") {
		t.Errorf("unexpected edge: %+v", edges[0])
	}
}

func TestResolver_UnresolvableCallDropped(t *testing.T) {
	symbols := []ingestion.Symbol{
		{Name: "Greet", Path: "a.go", Calls: []string{"fmt.Println"}},
	}
	r := NewResolver(symbols)
	edges := r.ResolveCalls(symbols, time.Now())
	if len(edges) != 0 {
		t.Errorf("expected no edges for an unresolvable call, got %d", len(edges))
	}
}

func TestPageRank_RescaledMaxIsApproximatelyOne(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.UpsertSymbol("a")
	s.UpsertSymbol("b")
	s.UpsertSymbol("c")
	s.InsertEdges([]Edge{
		{Source: "a", Target: "b", EdgeType: EdgeCalls, Count: 1, LastModified: now},
		{Source: "b", Target: "c", EdgeType: EdgeCalls, Count: 1, LastModified: now},
		{Source: "c", Target: "a", EdgeType: EdgeCalls, Count: 1, LastModified: now},
	})

	scores := s.PageRank()
	if len(scores) != 3 {
		t.Fatalf("expected 3 scored nodes, got %d", len(scores))
	}
	maxScore := 0.0
	for _, v := range scores {
		if v > maxScore {
			maxScore = v
		}
	}
	if maxScore < 0.99 || maxScore > 1.0001 {
		t.Errorf("expected max score rescaled to ~1.0, got %f", maxScore)
	}
}

func TestPageRank_PreNormalizationScoresSumToApproximatelyOne(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.UpsertSymbol("a")
	s.UpsertSymbol("b")
	s.UpsertSymbol("c")
	s.InsertEdges([]Edge{
		{Source: "a", Target: "b", EdgeType: EdgeCalls, Count: 1, LastModified: now},
		{Source: "b", Target: "c", EdgeType: EdgeCalls, Count: 1, LastModified: now},
		{Source: "c", Target: "a", EdgeType: EdgeCalls, Count: 1, LastModified: now},
	})

	scores := s.pageRankRaw()
	if len(scores) != 3 {
		t.Fatalf("expected 3 scored nodes, got %d", len(scores))
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("expected pre-normalization scores to sum to ~1.0, got %f", sum)
	}
}

func TestPageRank_EmptyGraph(t *testing.T) {
	s := NewStore()
	if scores := s.PageRank(); len(scores) != 0 {
		t.Errorf("expected empty scores for empty graph, got %v", scores)
	}
}
