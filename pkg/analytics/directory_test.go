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

package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yep-mem/yepmem/pkg/graph"
	"github.com/yep-mem/yepmem/pkg/ingestion"
)

func TestDirectoryInsights_AggregatesPerTopLevelDir(t *testing.T) {
	symbols := []ingestion.Symbol{
		{Name: "Handle", Path: "pkg/api/handler.go", SymbolType: ingestion.SymbolFunction, Body: "func Handle() { if true { } }", JSDoc: "Handle serves a request."},
		{Name: "helper", Path: "pkg/api/helper.go", SymbolType: ingestion.SymbolFunction, Body: "func helper() {}"},
		{Name: "Run", Path: "cmd/app/main.go", SymbolType: ingestion.SymbolFunction, Body: "func Run() {}"},
	}
	store := graph.NewStore()
	store.InsertEdges([]graph.Edge{
		{
			ID:           graph.ID(graph.NodeKey("cmd/app/main.go", "Run"), graph.NodeKey("pkg/api/handler.go", "Handle"), graph.EdgeCalls),
			Source:       graph.NodeKey("cmd/app/main.go", "Run"),
			Target:       graph.NodeKey("pkg/api/handler.go", "Handle"),
			EdgeType:     graph.EdgeCalls,
			Count:        1,
			LastModified: time.Now(),
		},
	})
	for _, sym := range symbols {
		store.UpsertSymbol(graph.NodeKey(sym.Path, sym.Name))
	}

	insights := DirectoryInsights(symbols, store, nil)

	var api *DirectoryInsight
	for i := range insights {
		if insights[i].Directory == "pkg" {
			api = &insights[i]
		}
	}
	require.NotNil(t, api)
	require.Equal(t, 2, api.SymbolCount)
	require.Equal(t, 1, api.DeadCodeCount) // helper is uncalled and unimported
	require.InDelta(t, 0.5, api.DocCoverage, 0.001)
}

func TestHotspotScores_BoostsCoChangedFiles(t *testing.T) {
	ranks := map[string]float64{
		"pkg/a/a.go#Foo": 0.5,
		"pkg/b/b.go#Bar": 0.5,
	}
	coChange := []CoChangePair{
		{FileA: "pkg/a/a.go", FileB: "pkg/other/other.go", Support: 0.2, Confidence: 0.5},
	}

	scores := HotspotScores(ranks, coChange)
	require.Greater(t, scores["pkg/a/a.go#Foo"], scores["pkg/b/b.go#Bar"])
}
