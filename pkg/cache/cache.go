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

// Package cache holds the two on-disk JSON caches the ingest and search
// paths consult before doing expensive work: EmbeddingCache, a
// content-hash-keyed LRU of embedding vectors, and SearchCache, a
// TTL'd LRU of ranked search results. Both persist as a single JSON file
// under <storePath>/../cache/, written atomically (temp file + rename)
// after every mutation, the same pattern the ingest checkpoint uses.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	yeperrors "github.com/yep-mem/yepmem/internal/errors"
)

// keyLen is the number of hex characters kept from a sha256 digest when
// deriving a cache key; 24 hex chars is 96 bits, plenty to avoid
// collisions across a few hundred cached entries.
const keyLen = 24

// hashKey hashes data with sha256 and truncates the hex digest to keyLen
// characters.
func hashKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:keyLen]
}

// EmbeddingKey derives the embedding cache key for a chunk of embedding
// text: sha256(text)[:24].
func EmbeddingKey(text string) string {
	return hashKey([]byte(text))
}

// SearchKeyInput is the exact shape hashed to derive a search-result cache
// key, so that two calls with the same query, topK, and filter always hit
// the same cache entry regardless of struct field order at the call site.
type SearchKeyInput struct {
	QueryText string `json:"queryText"`
	TopK      int    `json:"topK"`
	Filter    any    `json:"filter,omitempty"`
}

// SearchKey derives the search-result cache key: sha256(JSON{queryText,
// topK, filter})[:24].
func SearchKey(in SearchKeyInput) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal search key input: %w", err)
	}
	return hashKey(data), nil
}

// atomicWriteJSON marshals v and writes it to path via a temp file plus
// rename, the same sequence ingestion.Config.Save and CheckpointManager
// use for every other piece of mutable on-disk state this module keeps.
func atomicWriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write cache temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}

// readJSON loads path into v. A missing file is not an error — the cache
// simply starts empty. A file that fails to parse is treated as corrupt:
// it is discarded (the caller starts with an empty cache) and the error
// wraps errors.ErrCorruptCache so callers can log it without crashing.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", yeperrors.ErrCorruptCache, path, err)
	}
	return nil
}

// Dir returns the cache directory for a given storage path, i.e.
// <storePath>/../cache.
func Dir(storePath string) string {
	return filepath.Join(filepath.Dir(storePath), "cache")
}
