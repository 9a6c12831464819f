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

package ingestpipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yep-mem/yepmem/pkg/ingestion"
	"github.com/yep-mem/yepmem/pkg/llm"
	"github.com/yep-mem/yepmem/pkg/storage"
)

const sampleGoFile = `package sample

// Greet returns a friendly greeting for name.
func Greet(name string) string {
	return "hello " + name
}

func main() {
	println(Greet("world"))
}
`

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	workdir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "main.go"), []byte(sampleGoFile), 0644))

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{DataDir: filepath.Join(workdir, "data")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	settings := ingestion.DefaultSettings()
	settings.ParserMode = ingestion.ParserModeSimplified
	settings.EmbeddingDimensions = 384
	settings.Concurrency = ingestion.ConcurrencyConfig{ParseWorkers: 1, EmbedWorkers: 1}

	p, err := New(Options{
		Config:     ingestion.NewConfig(workdir),
		Settings:   settings,
		Workdir:    workdir,
		ProjectID:  "sample-project",
		Backend:    backend,
		Summarizer: &llm.MockProvider{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.repoLoader.Close() })

	// Force the mock embedding provider regardless of Config.Provider so
	// the run never attempts a real network call.
	mockProvider := ingestion.NewMockEmbeddingProvider(384, nil)
	p.embeddingGen = ingestion.NewEmbeddingGenerator(mockProvider, 1, nil)

	return p
}

func TestPipeline_Run_ColdStart(t *testing.T) {
	p := newTestPipeline(t)

	events := make(chan Event, 32)
	result, err := p.Run(context.Background(), events)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Equal(t, 1, result.FilesProcessed)
	require.Greater(t, result.ChunksExtracted, 0)
	require.Equal(t, result.ChunksExtracted, result.ChunksEmbedded)

	close(events)
	var kinds []EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	require.Contains(t, kinds, EventProgress)
	require.Equal(t, EventDone, kinds[len(kinds)-1])
}

func TestPipeline_Run_HoldsLockForDuration(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	stale, err := p.lockMgr.IsStale()
	require.NoError(t, err)
	require.False(t, stale, "lock file should be released, not merely stale, after Run returns")

	_, statErr := os.Stat(p.lockMgr.Path())
	require.True(t, os.IsNotExist(statErr), "lock file should not exist after Run releases it")
}

func TestPipeline_Run_CancelledBeforeStart(t *testing.T) {
	p := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, nil)
	require.Error(t, err)
}

func TestPipeline_Run_ReembedsFromCacheOnSecondRun(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Greater(t, p.embeddingCache.Len(), 0, "first run should have populated the embedding cache")

	cached := p.embeddingCache.Len()

	// Touch the file so the second run reparses it; the chunk's embedding
	// text is unchanged, so the cache should serve it without asking the
	// (still mock, but now forcibly broken) embedding provider again.
	require.NoError(t, os.WriteFile(filepath.Join(p.workdir, "main.go"), []byte(sampleGoFile), 0644))
	p.embeddingGen = ingestion.NewEmbeddingGenerator(failingEmbeddingProvider{}, 1, nil)

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.EmbeddingErrors, "cached chunks must not hit the now-failing provider")
	require.Equal(t, cached, p.embeddingCache.Len())
}

// failingEmbeddingProvider always errors, used to prove a second run never
// calls the provider for chunks already present in the embedding cache.
type failingEmbeddingProvider struct{}

func (failingEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding provider should not be called")
}

func TestEvent_SSE(t *testing.T) {
	ev := Event{Kind: EventProgress, Step: "parsing", Message: "discovering files", Total: 3}
	sse := ev.SSE()
	require.Contains(t, sse, "event: progress\n")
	require.Contains(t, sse, `"step":"parsing"`)
	require.Contains(t, sse, `"total":3`)
	require.True(t, len(sse) > 0 && sse[len(sse)-1] == '\n' && sse[len(sse)-2] == '\n')
}
