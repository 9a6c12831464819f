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

package checkpoints

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yep-mem/yepmem/pkg/vcs"
)

func TestGroupByCheckpoint_GroupsBySessionAndSkipsNonmatching(t *testing.T) {
	paths := []string{
		"ab/0123456789/0/full.jsonl",
		"ab/0123456789/0/prompt.txt",
		"ab/0123456789/0/metadata.json",
		"ab/0123456789/1/full.jsonl",
		"ab/0123456789/metadata.json",
		"README.md",
		"ab/0123456789/notes/scratch.txt", // non-numeric subdir, ignored
	}

	grouped := groupByCheckpoint(paths)
	require.Len(t, grouped, 1)

	cp, ok := grouped["ab0123456789"]
	require.True(t, ok)
	require.Equal(t, "ab/0123456789/metadata.json", cp.metadataPath)
	require.Len(t, cp.sessions, 2)
	require.Equal(t, "ab/0123456789/0/full.jsonl", cp.sessions["0"]["full.jsonl"])
	require.Equal(t, "ab/0123456789/0/prompt.txt", cp.sessions["0"]["prompt.txt"])
	require.Equal(t, "ab/0123456789/1/full.jsonl", cp.sessions["1"]["full.jsonl"])
}

// runGit is a tiny test helper mirroring pkg/vcs's own subprocess style.
func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func initCheckpointBranchRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "init")

	baseCmd := exec.Command("git", "symbolic-ref", "--short", "HEAD")
	baseCmd.Dir = dir
	baseOut, err := baseCmd.Output()
	require.NoError(t, err)
	baseBranch := strings.TrimSpace(string(baseOut))

	runGit(t, dir, "checkout", "-q", "-b", DefaultBranch)

	sessionDir := filepath.Join(dir, "ab", "0123456789", "0")
	require.NoError(t, os.MkdirAll(sessionDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ab", "0123456789", "metadata.json"), []byte(`{"agent":"coder"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sessionDir, "full.jsonl"), []byte(`{"role":"user","content":"fix the bug"}`+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sessionDir, "prompt.txt"), []byte("fix the bug"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sessionDir, "metadata.json"), []byte(`{"tokensUsed":42}`), 0644))

	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "checkpoint ab0123456789")

	runGit(t, dir, "checkout", "-q", baseBranch)
	return dir
}

func TestBranchSource_Available_FalseWithoutBranch(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	repo := vcs.NewRepo(dir, nil)
	src := NewBranchSource(repo, nil)
	require.False(t, src.Available())
}

func TestBranchSource_ReadNew_ParsesNewCheckpoint(t *testing.T) {
	dir := initCheckpointBranchRepo(t)
	repo := vcs.NewRepo(dir, nil)
	src := NewBranchSource(repo, nil)

	require.True(t, src.Available())

	got, err := src.ReadNew(nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "ab0123456789", got[0].ID)
	require.Equal(t, "coder", got[0].Metadata["agent"])
	require.Len(t, got[0].Sessions, 1)
	require.Equal(t, "fix the bug", got[0].Sessions[0].Prompt)
	require.Len(t, got[0].Sessions[0].Transcript, 1)
	require.EqualValues(t, 42, got[0].Sessions[0].Metadata["tokensUsed"])
}

func TestBranchSource_ReadNew_SkipsKnownIDs(t *testing.T) {
	dir := initCheckpointBranchRepo(t)
	repo := vcs.NewRepo(dir, nil)
	src := NewBranchSource(repo, nil)

	got, err := src.ReadNew(map[string]bool{"ab0123456789": true})
	require.NoError(t, err)
	require.Empty(t, got)
}
