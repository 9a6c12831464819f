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
	"context"
	"sync"
	"sync/atomic"
)

// EmbedTranscriptChunksResult mirrors EmbedChunksResult for transcript chunks.
type EmbedTranscriptChunksResult struct {
	Chunks         []TranscriptChunk
	ErrorCount     int
	TruncatedCount int
}

// EmbedTranscriptChunks embeds a batch of transcript chunks the same way
// EmbedChunks embeds code chunks: sequentially for a single worker, or
// fanned out across eg.workers otherwise. A chunk whose embedding call
// fails keeps an empty Embedding and carries the error in EmbedError
// instead of failing the whole batch.
func (eg *EmbeddingGenerator) EmbedTranscriptChunks(ctx context.Context, chunks []TranscriptChunk) (*EmbedTranscriptChunksResult, error) {
	if len(chunks) == 0 {
		return &EmbedTranscriptChunksResult{Chunks: chunks}, nil
	}
	if eg.workers <= 1 {
		return eg.embedTranscriptChunksSequential(ctx, chunks)
	}
	return eg.embedTranscriptChunksParallel(ctx, chunks)
}

func (eg *EmbeddingGenerator) embedTranscriptChunk(ctx context.Context, c TranscriptChunk) ([]float32, bool, error) {
	embedding, wasTruncated, err := eg.embedTextWithRetry(ctx, c.ID, c.EmbedText())
	if err != nil {
		eg.logger.Error("embedding.transcript_chunk.failed",
			"chunk_id", c.ID,
			"checkpoint_id", c.CheckpointID,
			"error", err,
		)
	}
	return embedding, wasTruncated, err
}

func (eg *EmbeddingGenerator) embedTranscriptChunksSequential(ctx context.Context, chunks []TranscriptChunk) (*EmbedTranscriptChunksResult, error) {
	results := make([]TranscriptChunk, len(chunks))
	errorCount := 0
	truncatedCount := 0

	for i, c := range chunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		embedding, wasTruncated, err := eg.embedTranscriptChunk(ctx, c)
		if err != nil {
			errorCount++
			c.EmbedError = err.Error()
		}
		if wasTruncated {
			truncatedCount++
		}
		c.Embedding = embedding
		results[i] = c
	}

	return &EmbedTranscriptChunksResult{Chunks: results, ErrorCount: errorCount, TruncatedCount: truncatedCount}, nil
}

func (eg *EmbeddingGenerator) embedTranscriptChunksParallel(ctx context.Context, chunks []TranscriptChunk) (*EmbedTranscriptChunksResult, error) {
	results := make([]TranscriptChunk, len(chunks))
	errorCount := int32(0)
	truncatedCount := int32(0)

	jobs := make(chan int, len(chunks))
	type jobResult struct {
		index int
		chunk TranscriptChunk
	}
	resultsChan := make(chan jobResult, len(chunks))

	var wg sync.WaitGroup
	for w := 0; w < eg.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				c := chunks[i]
				embedding, wasTruncated, err := eg.embedTranscriptChunk(ctx, c)
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
					c.EmbedError = err.Error()
				}
				if wasTruncated {
					atomic.AddInt32(&truncatedCount, 1)
				}
				c.Embedding = embedding
				resultsChan <- jobResult{i, c}
			}
		}()
	}

	for i := range chunks {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for r := range resultsChan {
		results[r.index] = r.chunk
	}

	return &EmbedTranscriptChunksResult{
		Chunks:         results,
		ErrorCount:     int(errorCount),
		TruncatedCount: int(truncatedCount),
	}, nil
}
