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

func TestDeadCode_FindsUncalledUnimportedSymbol(t *testing.T) {
	symbols := []ingestion.Symbol{
		{Name: "orphan", Path: "pkg/foo/foo.go", SymbolType: ingestion.SymbolFunction},
		{Name: "used", Path: "pkg/bar/bar.go", SymbolType: ingestion.SymbolFunction},
		{Name: "caller", Path: "pkg/baz/baz.go", SymbolType: ingestion.SymbolFunction, Calls: []string{"used"}},
	}

	store := graph.NewStore()
	now := time.Now()
	store.InsertEdges([]graph.Edge{
		{
			ID:           graph.ID(graph.NodeKey("pkg/baz/baz.go", "caller"), graph.NodeKey("pkg/bar/bar.go", "used"), graph.EdgeCalls),
			Source:       graph.NodeKey("pkg/baz/baz.go", "caller"),
			Target:       graph.NodeKey("pkg/bar/bar.go", "used"),
			EdgeType:     graph.EdgeCalls,
			Count:        1,
			LastModified: now,
		},
	})

	// "caller" is itself never called and its file is never imported, so
	// it is dead alongside "orphan"; "used" has a caller and is not.
	dead := DeadCode(symbols, store)
	require.Len(t, dead, 2)
	require.Equal(t, "orphan", dead[0].Name)
	require.Equal(t, "caller", dead[1].Name)
}

func TestDeadCode_EntryPointsNeverDead(t *testing.T) {
	symbols := []ingestion.Symbol{
		{Name: "main", Path: "cmd/app/main.go", SymbolType: ingestion.SymbolFunction},
		{Name: "Widget", Path: "ui/widget.go", SymbolType: ingestion.SymbolComponent},
	}
	store := graph.NewStore()

	dead := DeadCode(symbols, store)
	require.Empty(t, dead)
}

func TestDeadCode_ImportedFileNotDead(t *testing.T) {
	symbols := []ingestion.Symbol{
		{Name: "Helper", Path: "pkg/util/util.go", SymbolType: ingestion.SymbolFunction},
		{Name: "Consumer", Path: "pkg/app/app.go", SymbolType: ingestion.SymbolFunction, Imports: []string{"github.com/yep-mem/yepmem/pkg/util"}},
	}
	store := graph.NewStore()

	// Helper's file is imported by app.go, so Helper is not dead; Consumer
	// has no callers and its own file is imported by nothing.
	dead := DeadCode(symbols, store)
	require.Len(t, dead, 1)
	require.Equal(t, "Consumer", dead[0].Name)
}
