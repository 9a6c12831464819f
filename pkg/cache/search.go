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
	"encoding/json"
	"path/filepath"
	"sync"
	"time"
)

// searchCapacity is the maximum number of ranked-result sets SearchCache
// keeps before evicting the least-recently-written entry.
const searchCapacity = 50

// searchTTL is how long a cached result set stays valid after it is
// written, regardless of capacity pressure.
const searchTTL = 5 * time.Minute

// searchEntry is one cached, already-serialized result set plus the unix
// timestamp it was written at. Results are kept as json.RawMessage so this
// package never needs to import the search result type and risk a cycle.
type searchEntry struct {
	Results json.RawMessage `json:"results"`
	TS      int64           `json:"ts"`
}

// SearchCache is a TTL'd LRU of ranked search results, backed by a single
// JSON file. Keys are derived with SearchKey so that two calls with the
// same query, topK, and filter always hit the same entry.
type SearchCache struct {
	path string

	mu      sync.Mutex
	entries map[string]searchEntry
}

// NewSearchCache opens (or initializes empty) the search-result cache file
// at <cacheDir>/search-results.json. A corrupt file is discarded and the
// cache starts empty; the parse error is returned so the caller can log
// it, but it is not fatal.
func NewSearchCache(cacheDir string) (*SearchCache, error) {
	c := &SearchCache{
		path:    filepath.Join(cacheDir, "search-results.json"),
		entries: make(map[string]searchEntry),
	}
	if err := readJSON(c.path, &c.entries); err != nil {
		c.entries = make(map[string]searchEntry)
		return c, err
	}
	if c.entries == nil {
		c.entries = make(map[string]searchEntry)
	}
	return c, nil
}

// Get unmarshals the cached result set for key into dest, and reports
// whether it was present and not expired. An expired entry is treated as a
// miss but is not evicted until the next Put (Get never persists).
func (c *SearchCache) Get(key string, now time.Time, dest any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	if now.Sub(time.Unix(entry.TS, 0)) > searchTTL {
		return false
	}
	if err := json.Unmarshal(entry.Results, dest); err != nil {
		return false
	}
	return true
}

// Put records results under key, evicting expired and then
// least-recently-written entries until the cache is back at or under
// capacity, then persists the cache to disk.
func (c *SearchCache) Put(key string, results any, ts int64) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = searchEntry{Results: data, TS: ts}
	c.evictLocked(ts)
	return atomicWriteJSON(c.path, c.entries)
}

// evictLocked first drops expired entries relative to now, then removes
// the oldest-by-ts remaining entries until the cache is back at or under
// capacity. Caller must hold c.mu.
func (c *SearchCache) evictLocked(now int64) {
	for k, e := range c.entries {
		if time.Unix(now, 0).Sub(time.Unix(e.TS, 0)) > searchTTL {
			delete(c.entries, k)
		}
	}
	for len(c.entries) > searchCapacity {
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

// Len reports the number of entries currently cached, including any that
// have expired but have not yet been evicted by a Put.
func (c *SearchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
