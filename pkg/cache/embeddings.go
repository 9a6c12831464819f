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

package cache

import (
	"path/filepath"
	"sync"
)

// embeddingCapacity is the maximum number of vectors EmbeddingCache keeps
// before evicting the least-recently-written entry.
const embeddingCapacity = 200

// embeddingEntry is one cached vector plus the unix timestamp it was
// written at, which doubles as the LRU eviction key.
type embeddingEntry struct {
	Vector []float32 `json:"vector"`
	TS     int64     `json:"ts"`
}

// EmbeddingCache is a content-hash-keyed LRU of embedding vectors, backed
// by a single JSON file. Keys are derived with EmbeddingKey so that two
// calls embedding the same text always hit the same entry.
type EmbeddingCache struct {
	path string

	mu      sync.Mutex
	entries map[string]embeddingEntry
}

// NewEmbeddingCache opens (or initializes empty) the embedding cache file
// at <cacheDir>/embeddings.json. A corrupt file is discarded and the
// cache starts empty; the parse error is returned so the caller can log
// it, but it is not fatal.
func NewEmbeddingCache(cacheDir string) (*EmbeddingCache, error) {
	c := &EmbeddingCache{
		path:    filepath.Join(cacheDir, "embeddings.json"),
		entries: make(map[string]embeddingEntry),
	}
	if err := readJSON(c.path, &c.entries); err != nil {
		c.entries = make(map[string]embeddingEntry)
		return c, err
	}
	if c.entries == nil {
		c.entries = make(map[string]embeddingEntry)
	}
	return c, nil
}

// Get returns the cached vector for text, and whether it was present. A
// miss returns (nil, false); callers should then embed the text and call
// Put.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[EmbeddingKey(text)]
	if !ok {
		return nil, false
	}
	return entry.Vector, true
}

// Put records vector under text's key, evicting the least-recently-written
// entries if the cache is at capacity, then persists the cache to disk.
func (c *EmbeddingCache) Put(text string, vector []float32, ts int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := EmbeddingKey(text)
	c.entries[key] = embeddingEntry{Vector: vector, TS: ts}
	c.evictLocked()
	return atomicWriteJSON(c.path, c.entries)
}

// evictLocked removes the oldest-by-ts entries until the cache is back at
// or under capacity. Caller must hold c.mu.
func (c *EmbeddingCache) evictLocked() {
	for len(c.entries) > embeddingCapacity {
		var oldestKey string
		var oldestTS int64
		first := true
		for k, e := range c.entries {
			if first || e.TS < oldestTS {
				oldestKey, oldestTS, first = k, e.TS, false
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Len reports the number of entries currently cached.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
