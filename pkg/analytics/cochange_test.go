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

package analytics

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yep-mem/yepmem/pkg/vcs"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func TestCoChangePairs_FindsFilesThatChangeTogether(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("a.go", "package a\n")
	write("b.go", "package b\n")
	write("c.go", "package c\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "init")

	// a.go and b.go change together three more times after the initial
	// commit that adds all three files; c.go then changes alone.
	for i := 0; i < 3; i++ {
		write("a.go", "package a\n// edit\n")
		write("b.go", "package b\n// edit\n")
		runGit(t, dir, "add", ".")
		runGit(t, dir, "commit", "-q", "-m", "touch a and b")
	}
	write("c.go", "package c\n// edit\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "touch c alone")

	repo := vcs.NewRepo(dir, nil)
	pairs, err := CoChangePairs(repo)
	require.NoError(t, err)
	require.NotEmpty(t, pairs)

	found := false
	for _, p := range pairs {
		if (p.FileA == "a.go" && p.FileB == "b.go") || (p.FileA == "b.go" && p.FileB == "a.go") {
			found = true
			require.Equal(t, 4, p.Cooccurrences)
		}
		require.NotEqual(t, "c.go", p.FileB, "c.go co-occurs only in the initial commit, below the confidence threshold")
	}
	require.True(t, found, "expected an a.go/b.go co-change pair")
}

func TestCoChangePairs_NoCommitsReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	repo := vcs.NewRepo(dir, nil)

	pairs, err := CoChangePairs(repo)
	require.NoError(t, err)
	require.Empty(t, pairs)
}
