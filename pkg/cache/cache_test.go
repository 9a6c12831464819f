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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache_PutGet(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmbeddingCache(dir)
	require.NoError(t, err)

	_, ok := c.Get("func Foo() {}")
	require.False(t, ok)

	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, c.Put("func Foo() {}", vec, 1000))

	got, ok := c.Get("func Foo() {}")
	require.True(t, ok)
	require.Equal(t, vec, got)
}

func TestEmbeddingCache_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	c1, err := NewEmbeddingCache(dir)
	require.NoError(t, err)
	require.NoError(t, c1.Put("text", []float32{1, 2}, 1000))

	c2, err := NewEmbeddingCache(dir)
	require.NoError(t, err)
	got, ok := c2.Get("text")
	require.True(t, ok)
	require.Equal(t, []float32{1, 2}, got)

	require.FileExists(t, filepath.Join(dir, "embeddings.json"))
}

func TestEmbeddingCache_EvictsOldestOverCapacity(t *testing.T) {
	dir := t.TempDir()
	c, err := NewEmbeddingCache(dir)
	require.NoError(t, err)

	for i := 0; i < embeddingCapacity+10; i++ {
		text := fmt.Sprintf("text-%d", i)
		require.NoError(t, c.Put(text, []float32{float32(i)}, int64(i)))
	}

	require.Equal(t, embeddingCapacity, c.Len())

	// The very first entry (oldest ts) should have been evicted.
	_, ok := c.Get("text-0")
	require.False(t, ok)
}

func TestEmbeddingCache_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "embeddings.json"), []byte("not json"), 0644))

	c, err := NewEmbeddingCache(dir)
	require.Error(t, err)
	require.Equal(t, 0, c.Len())
}

func TestSearchCache_PutGet(t *testing.T) {
	dir := t.TempDir()
	c, err := NewSearchCache(dir)
	require.NoError(t, err)

	key, err := SearchKey(SearchKeyInput{QueryText: "how does auth work", TopK: 10})
	require.NoError(t, err)

	now := time.Now()
	var dest []string
	require.False(t, c.Get(key, now, &dest))

	require.NoError(t, c.Put(key, []string{"result-a", "result-b"}, now.Unix()))

	var got []string
	require.True(t, c.Get(key, now, &got))
	require.Equal(t, []string{"result-a", "result-b"}, got)
}

func TestSearchCache_ExpiresAfterTTL(t *testing.T) {
	dir := t.TempDir()
	c, err := NewSearchCache(dir)
	require.NoError(t, err)

	key, err := SearchKey(SearchKeyInput{QueryText: "q", TopK: 5})
	require.NoError(t, err)

	writeTime := time.Now().Add(-10 * time.Minute)
	require.NoError(t, c.Put(key, []string{"stale"}, writeTime.Unix()))

	var got []string
	require.False(t, c.Get(key, time.Now(), &got))
}

func TestSearchCache_DifferentFilterDifferentKey(t *testing.T) {
	k1, err := SearchKey(SearchKeyInput{QueryText: "q", TopK: 5, Filter: map[string]any{"files": []string{"a.go"}}})
	require.NoError(t, err)
	k2, err := SearchKey(SearchKeyInput{QueryText: "q", TopK: 5, Filter: map[string]any{"files": []string{"b.go"}}})
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
}

func TestSearchCache_EvictsOverCapacity(t *testing.T) {
	dir := t.TempDir()
	c, err := NewSearchCache(dir)
	require.NoError(t, err)

	base := time.Now()
	for i := 0; i < searchCapacity+5; i++ {
		key, err := SearchKey(SearchKeyInput{QueryText: fmt.Sprintf("query-%d", i), TopK: i})
		require.NoError(t, err)
		require.NoError(t, c.Put(key, []string{"r"}, base.Add(time.Duration(i)*time.Second).Unix()))
	}

	require.Equal(t, searchCapacity, c.Len())
}

func TestDir(t *testing.T) {
	require.Equal(t, filepath.Join("store", "cache"), Dir(filepath.Join("store", "data.db")))
}
