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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"
)

// EmbeddingProvider generates embeddings for code text.
type EmbeddingProvider interface {
	// Embed generates an embedding vector for the given text.
	// Returns a normalized vector (L2 norm = 1.0) or error.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MockEmbeddingProvider generates deterministic mock embeddings for testing.
type MockEmbeddingProvider struct {
	dimension int
	logger    *slog.Logger
}

// NewMockEmbeddingProvider creates a mock embedding provider.
func NewMockEmbeddingProvider(dimension int, logger *slog.Logger) *MockEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockEmbeddingProvider{
		dimension: dimension,
		logger:    logger,
	}
}

// Embed generates a deterministic mock embedding based on text hash.
func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := hashString(text)

	embedding := make([]float32, m.dimension)
	for i := 0; i < m.dimension; i++ {
		val := float32((hash+uint64(i)*7919)%10000) / 10000.0
		embedding[i] = val*2.0 - 1.0
	}

	norm := float32(0.0)
	for _, v := range embedding {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}

	return embedding, nil
}

func hashString(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}

// RetryConfig controls the retry/backoff behavior of embedding calls.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// EmbeddingGenerator manages embedding generation with concurrency and retries.
type EmbeddingGenerator struct {
	provider EmbeddingProvider
	workers  int
	logger   *slog.Logger
	retry    RetryConfig
}

// NewEmbeddingGenerator creates a new embedding generator.
func NewEmbeddingGenerator(provider EmbeddingProvider, workers int, logger *slog.Logger) *EmbeddingGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingGenerator{
		provider: provider,
		workers:  workers,
		logger:   logger,
		retry:    RetryConfig{MaxRetries: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second, Multiplier: 2.0},
	}
}

// SetRetryConfig sets the retry configuration for embedding operations.
func (eg *EmbeddingGenerator) SetRetryConfig(cfg RetryConfig) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	if cfg.Multiplier <= 1.0 {
		cfg.Multiplier = 2.0
	}
	eg.retry = cfg
}

// EmbedChunksResult contains the results of embedding generation with error counts.
type EmbedChunksResult struct {
	Chunks         []CodeChunk
	ErrorCount     int
	TruncatedCount int
}

// EmbedChunks generates embeddings for a batch of chunks, using a worker pool
// when configured with more than one worker. Never returns a fatal error on
// a per-chunk failure: a chunk whose embedding call fails keeps an empty
// Embedding and carries the failure in EmbedError so callers can report it
// without aborting the whole batch.
func (eg *EmbeddingGenerator) EmbedChunks(ctx context.Context, chunks []CodeChunk) (*EmbedChunksResult, error) {
	if len(chunks) == 0 {
		return &EmbedChunksResult{Chunks: chunks}, nil
	}

	if eg.workers <= 1 {
		return eg.embedChunksSequential(ctx, chunks)
	}
	return eg.embedChunksParallel(ctx, chunks)
}

func (eg *EmbeddingGenerator) embedChunksSequential(ctx context.Context, chunks []CodeChunk) (*EmbedChunksResult, error) {
	start := time.Now()
	results := make([]CodeChunk, len(chunks))
	errorCount := 0
	truncatedCount := 0

	for i, c := range chunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		embedding, wasTruncated, err := eg.embedChunk(ctx, c)
		if err != nil {
			errorCount++
			c.EmbedError = err.Error()
		}
		if wasTruncated {
			truncatedCount++
			c.Truncated = true
		}

		c.Embedding = embedding
		results[i] = c
	}

	if errorCount > 0 || truncatedCount > 0 {
		eg.logger.Info("embedding.summary",
			"total_chunks", len(chunks),
			"errors", errorCount,
			"truncated", truncatedCount,
		)
	}
	recordEmbedBatch(len(chunks), errorCount, truncatedCount, time.Since(start).Seconds())

	return &EmbedChunksResult{
		Chunks:         results,
		ErrorCount:     errorCount,
		TruncatedCount: truncatedCount,
	}, nil
}

func (eg *EmbeddingGenerator) embedChunksParallel(ctx context.Context, chunks []CodeChunk) (*EmbedChunksResult, error) {
	start := time.Now()
	results := make([]CodeChunk, len(chunks))
	errorCount := int32(0)
	truncatedCount := int32(0)

	jobs := make(chan int, len(chunks))
	type jobResult struct {
		index int
		chunk CodeChunk
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
				embedding, wasTruncated, err := eg.embedChunk(ctx, c)
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
					c.EmbedError = err.Error()
				}
				if wasTruncated {
					atomic.AddInt32(&truncatedCount, 1)
					c.Truncated = true
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

	errCount := int(errorCount)
	truncCount := int(truncatedCount)
	if errCount > 0 || truncCount > 0 {
		eg.logger.Info("embedding.summary",
			"total_chunks", len(chunks),
			"errors", errCount,
			"truncated", truncCount,
			"workers", eg.workers,
			"error_rate_pct", float64(errCount)/float64(len(chunks))*100.0,
		)
	}
	recordEmbedBatch(len(chunks), errCount, truncCount, time.Since(start).Seconds())

	return &EmbedChunksResult{
		Chunks:         results,
		ErrorCount:     errCount,
		TruncatedCount: truncCount,
	}, nil
}

// embedChunk embeds a single chunk with retry logic. Returns the embedding,
// whether the text was truncated before embedding, and the final error (if
// every retry failed).
func (eg *EmbeddingGenerator) embedChunk(ctx context.Context, c CodeChunk) ([]float32, bool, error) {
	embedding, wasTruncated, err := eg.embedTextWithRetry(ctx, c.ID, c.EmbedText())
	if err != nil {
		eg.logger.Error("embedding.chunk.failed",
			"chunk_id", c.ID,
			"symbol_name", c.Symbol.Name,
			"error", err,
		)
	}
	return embedding, wasTruncated, err
}

// embedTextWithRetry embeds one piece of text, retrying transient provider
// failures per eg.retry. id is only used for log correlation. Text is
// truncated below the typical 8k-token provider context before the first
// attempt, since most embedding models tokenize code and transcripts poorly
// (operators, braces and role markers inflate token count relative to
// prose).
func (eg *EmbeddingGenerator) embedTextWithRetry(ctx context.Context, id, text string) ([]float32, bool, error) {
	const maxChars = 2000
	wasTruncated := false
	if len(text) > maxChars {
		text = text[:maxChars]
		wasTruncated = true
	}

	var embedding []float32
	var err error
	maxRetries := eg.retry.MaxRetries
	base := eg.retry.InitialBackoff
	maxBackoff := eg.retry.MaxBackoff
	mult := eg.retry.Multiplier
	for attempt := 0; attempt <= maxRetries; attempt++ {
		embedding, err = eg.provider.Embed(ctx, text)
		if err == nil {
			break
		}
		retryable := isRetryableEmbeddingError(err)
		if !retryable || attempt == maxRetries {
			break
		}
		sleep := computeBackoffWithJitter(base, attempt, mult, maxBackoff)
		recordEmbedRetry()
		eg.logger.Warn("embedding.retry", "id", id, "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return nil, wasTruncated, ctx.Err()
		case <-time.After(sleep):
		}
	}

	if err != nil {
		embedding = []float32{}
	}
	return embedding, wasTruncated, err
}

// isRetryableEmbeddingError classifies provider errors: network/timeout and HTTP 5xx/429 are retryable.
func isRetryableEmbeddingError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	retrySubstr := []string{"timeout", "temporarily unavailable", "connection refused", "connection reset", "deadline exceeded", "EOF"}
	for _, s := range retrySubstr {
		if containsFold(msg, s) {
			return true
		}
	}
	httpRetry := []string{" 429 ", " 500 ", " 502 ", " 503 ", " 504 "}
	for _, s := range httpRetry {
		if containsFold(msg, s) {
			return true
		}
	}
	return false
}

// computeBackoffWithJitter returns exponential backoff with full jitter.
func computeBackoffWithJitter(base time.Duration, attempt int, mult float64, capDur time.Duration) time.Duration {
	exp := float64(base)
	for i := 0; i < attempt; i++ {
		exp *= mult
	}
	d := time.Duration(exp)
	if d > capDur {
		d = capDur
	}
	if d <= 0 {
		return base
	}
	n := time.Duration(randInt63n(int64(d) + 1))
	return n
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// randInt63n returns [0,n) using a small LCG seeded from wall time, avoiding a
// math/rand dependency just for jitter.
var randMu sync.Mutex
var randSeed int64

func randInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	randMu.Lock()
	defer randMu.Unlock()
	const a = 6364136223846793005
	const c = 1
	const m = 1<<63 - 1
	if randSeed == 0 {
		randSeed = time.Now().UnixNano() & m
	}
	randSeed = (a*randSeed + c) & m
	if randSeed < 0 {
		randSeed = -randSeed
	}
	return randSeed % n
}

// CreateEmbeddingProvider creates an embedding provider based on config.
// Supported providers:
//   - "mock": Deterministic mock embeddings for testing (384 dimensions)
//   - "nomic": Nomic Atlas API (requires NOMIC_API_KEY env var)
//   - "ollama": Local Ollama server (default: http://localhost:11434)
//   - "openai": OpenAI-compatible API (requires OPENAI_API_KEY and optionally OPENAI_API_BASE)
func CreateEmbeddingProvider(providerType string, logger *slog.Logger) (EmbeddingProvider, error) {
	switch providerType {
	case "mock":
		return NewMockEmbeddingProvider(384, logger), nil

	case "nomic":
		apiKey := os.Getenv("NOMIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("NOMIC_API_KEY environment variable is required for nomic provider")
		}
		baseURL := os.Getenv("NOMIC_API_BASE")
		if baseURL == "" {
			baseURL = "https://api-atlas.nomic.ai/v1"
		}
		model := os.Getenv("NOMIC_MODEL")
		if model == "" {
			model = "nomic-embed-text-v1.5"
		}
		return NewNomicEmbeddingProvider(apiKey, baseURL, model, logger), nil

	case "ollama", "local_model":
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := os.Getenv("OLLAMA_EMBED_MODEL")
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbeddingProvider(baseURL, model, logger), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for openai provider")
		}
		baseURL := os.Getenv("OPENAI_API_BASE")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := os.Getenv("OPENAI_EMBED_MODEL")
		if model == "" {
			model = "text-embedding-3-small"
		}
		return NewOpenAIEmbeddingProvider(apiKey, baseURL, model, logger), nil

	case "llamacpp", "qodo":
		baseURL := os.Getenv("LLAMACPP_EMBED_URL")
		if baseURL == "" {
			baseURL = "http://localhost:8090"
		}
		return NewLlamaCppEmbeddingProvider(baseURL, logger), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, nomic, ollama, openai, llamacpp, qodo)", providerType)
	}
}

// =============================================================================
// NOMIC EMBEDDING PROVIDER
// =============================================================================

// NomicEmbeddingProvider generates embeddings using the Nomic Atlas API.
type NomicEmbeddingProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type NomicEmbedRequest struct {
	Texts    []string `json:"texts"`
	Model    string   `json:"model"`
	TaskType string   `json:"task_type,omitempty"`
}

type NomicEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Model      string      `json:"model"`
	Usage      struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type NomicErrorResponse struct {
	Detail string `json:"detail"`
}

// NewNomicEmbeddingProvider creates a new Nomic embedding provider.
func NewNomicEmbeddingProvider(apiKey, baseURL, model string, logger *slog.Logger) *NomicEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &NomicEmbeddingProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Embed generates an embedding for the given text using Nomic API.
func (n *NomicEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := NomicEmbedRequest{
		Texts:    []string{text},
		Model:    n.model,
		TaskType: "search_document",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := n.baseURL + "/embedding/text"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp NomicErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
			return nil, fmt.Errorf("nomic API error (status %d): %s", resp.StatusCode, errResp.Detail)
		}
		return nil, fmt.Errorf("nomic API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp NomicEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(embedResp.Embeddings) == 0 {
		return nil, fmt.Errorf("nomic returned empty embeddings")
	}

	embedding := make([]float32, len(embedResp.Embeddings[0]))
	for i, v := range embedResp.Embeddings[0] {
		embedding[i] = float32(v)
	}

	embedding = normalizeEmbedding(embedding)

	return embedding, nil
}

// =============================================================================
// OLLAMA EMBEDDING PROVIDER
// =============================================================================

// OllamaEmbeddingProvider generates embeddings using a local Ollama server.
type OllamaEmbeddingProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type OllamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type OllamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type OllamaErrorResponse struct {
	Error string `json:"error"`
}

// isNomicModel checks if the model is a Nomic embedding model that supports
// asymmetric search prefixes (search_document/search_query).
func isNomicModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "nomic")
}

// isQodoModel checks if the model is a Qodo embedding model.
func isQodoModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "qodo")
}

// NewOllamaEmbeddingProvider creates a new Ollama embedding provider.
func NewOllamaEmbeddingProvider(baseURL, model string, logger *slog.Logger) *OllamaEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaEmbeddingProvider{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Embed generates an embedding for the given text using local Ollama.
func (o *OllamaEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	prompt := text
	if isNomicModel(o.model) {
		prompt = "search_document: " + text
	}

	reqBody := OllamaEmbedRequest{
		Model:  o.model,
		Prompt: prompt,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.baseURL + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request (is Ollama running at %s?): %w", o.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp OllamaErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp OllamaEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding")
	}

	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}

	embedding = normalizeEmbedding(embedding)

	return embedding, nil
}

// =============================================================================
// OPENAI-COMPATIBLE EMBEDDING PROVIDER
// =============================================================================

// OpenAIEmbeddingProvider generates embeddings using OpenAI or compatible APIs.
type OpenAIEmbeddingProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type OpenAIEmbedRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format,omitempty"`
}

type OpenAIEmbedResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type OpenAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAIEmbeddingProvider creates a new OpenAI embedding provider.
func NewOpenAIEmbeddingProvider(apiKey, baseURL, model string, logger *slog.Logger) *OpenAIEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIEmbeddingProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Embed generates an embedding for the given text using OpenAI API.
func (o *OpenAIEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := OpenAIEmbedRequest{
		Input:          text,
		Model:          o.model,
		EncodingFormat: "float",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp OpenAIErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp OpenAIEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(embedResp.Data) == 0 || len(embedResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}

	embedding := make([]float32, len(embedResp.Data[0].Embedding))
	for i, v := range embedResp.Data[0].Embedding {
		embedding[i] = float32(v)
	}

	embedding = normalizeEmbedding(embedding)

	return embedding, nil
}

// =============================================================================
// LLAMACPP EMBEDDING PROVIDER (Qodo-Embed-1)
// =============================================================================

// LlamaCppEmbeddingProvider generates embeddings using a llama.cpp server.
type LlamaCppEmbeddingProvider struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type LlamaCppEmbedRequest struct {
	Content string `json:"content"`
}

type LlamaCppEmbedResponse struct {
	Index     int         `json:"index"`
	Embedding [][]float64 `json:"embedding"`
}

// NewLlamaCppEmbeddingProvider creates a new llama.cpp embedding provider.
func NewLlamaCppEmbeddingProvider(baseURL string, logger *slog.Logger) *LlamaCppEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LlamaCppEmbeddingProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Embed generates an embedding for the given text using llama.cpp server.
func (l *LlamaCppEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := LlamaCppEmbedRequest{
		Content: text,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := l.baseURL + "/embedding"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request (is llama-server running at %s?): %w", l.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llama.cpp API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResps []LlamaCppEmbedResponse
	if err := json.Unmarshal(body, &embedResps); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(embedResps) == 0 || len(embedResps[0].Embedding) == 0 {
		return nil, fmt.Errorf("llama.cpp returned empty embedding")
	}

	vectors := embedResps[0].Embedding
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("llama.cpp returned empty embedding vector")
	}

	embedding := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		embedding[i] = float32(v)
	}

	embedding = normalizeEmbedding(embedding)

	return embedding, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// normalizeEmbedding normalizes an embedding vector to unit length (L2 norm = 1).
func normalizeEmbedding(embedding []float32) []float32 {
	if len(embedding) == 0 {
		return embedding
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	if norm == 0 {
		return embedding
	}

	normf := float32(norm)
	for i := range embedding {
		embedding[i] /= normf
	}

	return embedding
}
