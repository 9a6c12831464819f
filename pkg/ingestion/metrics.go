// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the ingestion subsystem.
type metricsIngestion struct {
	once sync.Once

	// Delta, pre-filter
	deltaAdded    prometheus.Counter
	deltaModified prometheus.Counter
	deltaDeleted  prometheus.Counter
	deltaRenamed  prometheus.Counter
	deltaDuration prometheus.Histogram

	// Delta, post-filter (FilterDelta's exclude-glob/size/binary checks)
	deltaFilteredAdded    prometheus.Counter
	deltaFilteredModified prometheus.Counter
	deltaFilteredDeleted  prometheus.Counter
	deltaFilteredRenamed  prometheus.Counter

	// Embedding
	embedComputed  prometheus.Counter
	embedErrors    prometheus.Counter
	embedTruncated prometheus.Counter
	embedRetries   prometheus.Counter
	embedDuration  prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		deltaBuckets := []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}
		embedBuckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

		m.deltaAdded = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_delta_added_total", Help: "Files detected as added by git delta"})
		m.deltaModified = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_delta_modified_total", Help: "Files detected as modified by git delta"})
		m.deltaDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_delta_deleted_total", Help: "Files detected as deleted by git delta"})
		m.deltaRenamed = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_delta_renamed_total", Help: "Files detected as renamed by git delta"})
		m.deltaDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "yepmem_ing_delta_seconds", Help: "Duration of a DetectDelta git diff run", Buckets: deltaBuckets})

		m.deltaFilteredAdded = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_delta_filtered_added_total", Help: "Added files surviving FilterDelta's exclude/size/binary checks"})
		m.deltaFilteredModified = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_delta_filtered_modified_total", Help: "Modified files surviving FilterDelta's exclude/size/binary checks"})
		m.deltaFilteredDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_delta_filtered_deleted_total", Help: "Deleted files surviving FilterDelta's exclude checks"})
		m.deltaFilteredRenamed = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_delta_filtered_renamed_total", Help: "Renamed files surviving FilterDelta's exclude/size/binary checks"})

		m.embedComputed = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_embed_computed_total", Help: "Chunks successfully embedded"})
		m.embedErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_embed_errors_total", Help: "Chunks whose embedding call failed after retries"})
		m.embedTruncated = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_embed_truncated_total", Help: "Chunks whose embedding text was truncated before embedding"})
		m.embedRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "yepmem_ing_embed_retries_total", Help: "Retried embedding calls after a transient provider error"})
		m.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "yepmem_ing_embed_batch_seconds", Help: "Duration of one EmbedChunks batch call", Buckets: embedBuckets})

		prometheus.MustRegister(
			m.deltaAdded, m.deltaModified, m.deltaDeleted, m.deltaRenamed, m.deltaDuration,
			m.deltaFilteredAdded, m.deltaFilteredModified, m.deltaFilteredDeleted, m.deltaFilteredRenamed,
			m.embedComputed, m.embedErrors, m.embedTruncated, m.embedRetries, m.embedDuration,
		)
	})
}

// recordDelta records one DetectDelta run's bucket sizes and wall time.
func recordDelta(added, modified, deleted, renamed int, seconds float64) {
	ingMetrics.init()
	ingMetrics.deltaAdded.Add(float64(added))
	ingMetrics.deltaModified.Add(float64(modified))
	ingMetrics.deltaDeleted.Add(float64(deleted))
	ingMetrics.deltaRenamed.Add(float64(renamed))
	ingMetrics.deltaDuration.Observe(seconds)
}

// recordDeltaFiltered records one FilterDelta call's surviving bucket sizes.
func recordDeltaFiltered(added, modified, deleted, renamed int) {
	ingMetrics.init()
	ingMetrics.deltaFilteredAdded.Add(float64(added))
	ingMetrics.deltaFilteredModified.Add(float64(modified))
	ingMetrics.deltaFilteredDeleted.Add(float64(deleted))
	ingMetrics.deltaFilteredRenamed.Add(float64(renamed))
}

// recordEmbedBatch records one EmbedChunks call's outcome counts and wall time.
func recordEmbedBatch(total, errors, truncated int, seconds float64) {
	ingMetrics.init()
	ingMetrics.embedComputed.Add(float64(total - errors))
	ingMetrics.embedErrors.Add(float64(errors))
	ingMetrics.embedTruncated.Add(float64(truncated))
	ingMetrics.embedDuration.Observe(seconds)
}

func recordEmbedRetry() {
	ingMetrics.init()
	ingMetrics.embedRetries.Inc()
}
