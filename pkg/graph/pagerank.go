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
	"sort"
	"time"
)

const (
	pageRankDamping     = 0.85
	pageRankMaxIter     = 100
	pageRankL1Tolerance = 1e-6
)

// PageRank computes centrality over the store's "calls" edges via damped
// power iteration. All edges are weighted equally (Count is ignored, per
// the documented redesign: an earlier version tried weighting by call
// count and the ranking quality did not improve enough to justify the
// extra bookkeeping). Dangling nodes (no outgoing edges) redistribute
// their rank uniformly over every node, matching the standard random-surfer
// model. Returns scores summing to ~1, then rescaled into [0,1] by max.
func (s *Store) PageRank() map[string]float64 {
	start := time.Now()
	rank := s.pageRank()
	recordPageRank(time.Since(start).Seconds(), len(rank))
	return rank
}

func (s *Store) pageRank() map[string]float64 {
	rank := s.pageRankRaw()

	maxScore := 0.0
	for _, v := range rank {
		if v > maxScore {
			maxScore = v
		}
	}
	if maxScore > 0 {
		for k := range rank {
			rank[k] /= maxScore
		}
	}
	return rank
}

// pageRankRaw runs the damped power iteration to convergence and returns the
// un-rescaled scores, which sum to ~1 over the ranked node set. pageRank
// rescales this by the max score into [0,1] for display; tests assert the
// conservation property against this pre-rescale form directly.
func (s *Store) pageRankRaw() map[string]float64 {
	s.mu.RLock()
	nodes := make(map[string]bool, len(s.symbols))
	for k := range s.symbols {
		nodes[k] = true
	}
	// Calls edges may reference nodes never explicitly registered (e.g. a
	// callee outside the parsed set); include them so mass isn't lost.
	outAdj := make(map[string][]string)
	for _, e := range s.edges {
		if e.EdgeType != EdgeCalls {
			continue
		}
		nodes[e.Source] = true
		nodes[e.Target] = true
		outAdj[e.Source] = append(outAdj[e.Source], e.Target)
	}
	s.mu.RUnlock()

	n := len(nodes)
	if n == 0 {
		return map[string]float64{}
	}

	order := make([]string, 0, n)
	for k := range nodes {
		order = append(order, k)
	}
	sort.Strings(order)

	rank := make(map[string]float64, n)
	for _, k := range order {
		rank[k] = 1.0 / float64(n)
	}

	for iter := 0; iter < pageRankMaxIter; iter++ {
		next := make(map[string]float64, n)
		base := (1 - pageRankDamping) / float64(n)
		for _, k := range order {
			next[k] = base
		}

		var danglingMass float64
		for _, k := range order {
			out := outAdj[k]
			if len(out) == 0 {
				danglingMass += rank[k]
				continue
			}
			share := pageRankDamping * rank[k] / float64(len(out))
			for _, target := range out {
				next[target] += share
			}
		}

		if danglingMass > 0 {
			redistribute := pageRankDamping * danglingMass / float64(n)
			for _, k := range order {
				next[k] += redistribute
			}
		}

		var delta float64
		for _, k := range order {
			d := next[k] - rank[k]
			if d < 0 {
				d = -d
			}
			delta += d
		}
		rank = next
		if delta < pageRankL1Tolerance {
			break
		}
	}

	return rank
}
