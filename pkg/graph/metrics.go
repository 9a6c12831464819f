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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsGraph holds Prometheus metrics for the graph subsystem.
type metricsGraph struct {
	once sync.Once

	pageRankDuration prometheus.Histogram
	pageRankNodes    prometheus.Histogram
}

var graphMetrics metricsGraph

func (m *metricsGraph) init() {
	m.once.Do(func() {
		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.pageRankDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yepmem_pagerank_seconds",
			Help:    "Duration of a PageRank power-iteration run",
			Buckets: buckets,
		})
		m.pageRankNodes = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yepmem_pagerank_nodes",
			Help:    "Number of nodes ranked by a PageRank run",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		})
		prometheus.MustRegister(m.pageRankDuration, m.pageRankNodes)
	})
}

func recordPageRank(seconds float64, nodes int) {
	graphMetrics.init()
	graphMetrics.pageRankDuration.Observe(seconds)
	graphMetrics.pageRankNodes.Observe(float64(nodes))
}
