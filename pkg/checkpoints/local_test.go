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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSession(t *testing.T, root, session, fullJSONL, prompt string) {
	t.Helper()
	dir := filepath.Join(root, LocalMetadataDir, session)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "full.jsonl"), []byte(fullJSONL), 0644))
	if prompt != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "prompt.txt"), []byte(prompt), 0644))
	}
}

func TestLocalSource_ReadNew_FirstRunReadsEntireFile(t *testing.T) {
	workdir := t.TempDir()
	writeSession(t, workdir, "sess-1", `{"role":"user","content":"hi"}`+"\n", "do the thing")

	src := NewLocalSource(workdir, nil)
	checkpoints, offsets, err := src.ReadNew(nil)
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	require.Equal(t, "sess-1", checkpoints[0].ID)
	require.Len(t, checkpoints[0].Sessions, 1)
	require.Equal(t, "do the thing", checkpoints[0].Sessions[0].Prompt)
	require.Len(t, checkpoints[0].Sessions[0].Transcript, 1)
	require.Greater(t, offsets["sess-1"], uint64(0))
}

func TestLocalSource_ReadNew_SkipsWhenOffsetEqualsSize(t *testing.T) {
	workdir := t.TempDir()
	content := `{"role":"user","content":"hi"}` + "\n"
	writeSession(t, workdir, "sess-1", content, "")

	info, err := os.Stat(filepath.Join(workdir, LocalMetadataDir, "sess-1", "full.jsonl"))
	require.NoError(t, err)

	src := NewLocalSource(workdir, nil)
	checkpoints, _, err := src.ReadNew(map[string]uint64{"sess-1": uint64(info.Size())})
	require.NoError(t, err)
	require.Empty(t, checkpoints)
}

func TestLocalSource_ReadNew_ResumesFromOffset(t *testing.T) {
	workdir := t.TempDir()
	first := `{"role":"user","content":"first"}` + "\n"
	writeSession(t, workdir, "sess-1", first, "")

	src := NewLocalSource(workdir, nil)
	_, offsets, err := src.ReadNew(nil)
	require.NoError(t, err)

	second := `{"role":"assistant","content":"second"}` + "\n"
	path := filepath.Join(workdir, LocalMetadataDir, "sess-1", "full.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(second)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	checkpoints, newOffsets, err := src.ReadNew(offsets)
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	require.Len(t, checkpoints[0].Sessions[0].Transcript, 1)
	require.Equal(t, "second", checkpoints[0].Sessions[0].Transcript[0].Content)
	require.Greater(t, newOffsets["sess-1"], offsets["sess-1"])
}

func TestLocalSource_ReadNew_MissingDirReturnsEmpty(t *testing.T) {
	src := NewLocalSource(t.TempDir(), nil)
	checkpoints, offsets, err := src.ReadNew(nil)
	require.NoError(t, err)
	require.Empty(t, checkpoints)
	require.NotNil(t, offsets)
}
