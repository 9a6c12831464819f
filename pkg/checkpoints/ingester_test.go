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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yep-mem/yepmem/pkg/vcs"
)

func TestIngester_ReadNew_NilRepoSkipsBranchSource(t *testing.T) {
	workdir := t.TempDir()
	writeSession(t, workdir, "sess-1", `{"role":"user","content":"hi"}`+"\n", "")

	ig := NewIngester(workdir, nil, nil)
	result, err := ig.ReadNew(nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Checkpoints, 1)
	require.Nil(t, result.NewKnownCheckpointIDs)
	require.Contains(t, result.NewLocalSyncOffsets, "sess-1")
}

func TestIngester_ReadNew_MergesBranchAndLocal(t *testing.T) {
	dir := initCheckpointBranchRepo(t)
	writeSession(t, dir, "sess-local", `{"role":"user","content":"hi"}`+"\n", "")

	repo := vcs.NewRepo(dir, nil)
	ig := NewIngester(dir, repo, nil)

	result, err := ig.ReadNew(nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Checkpoints, 2)
	require.ElementsMatch(t, []string{"ab0123456789"}, result.NewKnownCheckpointIDs)
	require.Contains(t, result.NewLocalSyncOffsets, "sess-local")
}

func TestIngester_ReadNew_SecondRunSkipsKnownBranchCheckpoint(t *testing.T) {
	dir := initCheckpointBranchRepo(t)
	repo := vcs.NewRepo(dir, nil)
	ig := NewIngester(dir, repo, nil)

	first, err := ig.ReadNew(nil, nil)
	require.NoError(t, err)
	require.Len(t, first.Checkpoints, 1)

	known := make(map[string]bool, len(first.NewKnownCheckpointIDs))
	for _, id := range first.NewKnownCheckpointIDs {
		known[id] = true
	}

	second, err := ig.ReadNew(known, nil)
	require.NoError(t, err)
	require.Empty(t, second.Checkpoints)
}
