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

package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.txt"), []byte("world\n"), 0644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "init")
	return dir
}

func TestRepo_BranchExists(t *testing.T) {
	dir := initRepo(t)
	repo := NewRepo(dir, nil)

	require.True(t, repo.BranchExists("HEAD"))
	require.False(t, repo.BranchExists("does-not-exist"))
}

func TestRepo_ListBlobPaths(t *testing.T) {
	dir := initRepo(t)
	repo := NewRepo(dir, nil)

	paths, err := repo.ListBlobPaths("HEAD")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.txt", "nested/b.txt"}, paths)
}

func TestRepo_ReadBlob(t *testing.T) {
	dir := initRepo(t)
	repo := NewRepo(dir, nil)

	content, err := repo.ReadBlob("HEAD", "nested/b.txt")
	require.NoError(t, err)
	require.Equal(t, "world\n", string(content))
}

func TestRepo_ReadBlob_MissingPathErrors(t *testing.T) {
	dir := initRepo(t)
	repo := NewRepo(dir, nil)

	_, err := repo.ReadBlob("HEAD", "missing.txt")
	require.Error(t, err)
}

func TestRepo_ResolveRef(t *testing.T) {
	dir := initRepo(t)
	repo := NewRepo(dir, nil)

	headSHA, err := repo.ResolveRef("HEAD")
	require.NoError(t, err)
	require.Len(t, headSHA, 40)

	sameSHA, err := repo.ResolveRef("HEAD")
	require.NoError(t, err)
	require.Equal(t, headSHA, sameSHA)
}

func TestRepo_ResolveRef_UnknownRefErrors(t *testing.T) {
	dir := initRepo(t)
	repo := NewRepo(dir, nil)

	_, err := repo.ResolveRef("does-not-exist")
	require.Error(t, err)
}
