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

package ingestion

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yep-mem/yepmem/pkg/checkpoints"
)

func TestBuildTranscriptChunks_OnePerSession(t *testing.T) {
	parsed := []checkpoints.ParsedCheckpoint{
		{
			ID:       "cp1",
			Metadata: checkpoints.CheckpointMetadata{"agent": "coder"},
			Sessions: []checkpoints.ParsedSession{
				{
					Index:  "0",
					Prompt: "fix the login bug",
					Transcript: []checkpoints.TranscriptEntry{
						{Role: checkpoints.RoleUser, Content: "fix the login bug"},
						{Role: checkpoints.RoleAssistant, Content: "patched auth.go"},
					},
					Metadata: checkpoints.SessionMetadata{
						"diffSummary":  "fixed off-by-one in session expiry",
						"filesChanged": []any{"auth.go", "session.go"},
						"symbols":      []any{"ValidateSession"},
						"tokensUsed":   float64(512),
					},
				},
				{
					Index: "1",
					Transcript: []checkpoints.TranscriptEntry{
						{Role: checkpoints.RoleUser, Content: "now add a test"},
					},
				},
			},
		},
	}

	chunks := BuildTranscriptChunks(parsed)
	require.Len(t, chunks, 2)

	first := chunks[0]
	require.Equal(t, "cp1", first.CheckpointID)
	require.Equal(t, "0", first.SessionIndex)
	require.Equal(t, "coder", first.Agent)
	require.Equal(t, "fix the login bug", first.Prompt)
	require.Equal(t, "patched auth.go", first.Response)
	require.Equal(t, "fixed off-by-one in session expiry", first.DiffSummary)
	require.Equal(t, []string{"auth.go", "session.go"}, first.FilesChanged)
	require.Equal(t, []string{"ValidateSession"}, first.Symbols)
	require.Equal(t, 512, first.TokensUsed)
	require.Contains(t, first.EmbeddingText, "prompt: fix the login bug")
	require.Contains(t, first.EmbeddingText, "response: patched auth.go")
	require.Equal(t, GenerateTranscriptChunkIDForSession("cp1", "0"), first.ID)

	second := chunks[1]
	require.Equal(t, "now add a test", second.Prompt)
	require.Empty(t, second.Response)
}

func TestBuildTranscriptChunks_Deterministic(t *testing.T) {
	parsed := []checkpoints.ParsedCheckpoint{
		{ID: "cp1", Sessions: []checkpoints.ParsedSession{{Index: "3"}}},
	}
	a := BuildTranscriptChunks(parsed)
	b := BuildTranscriptChunks(parsed)
	require.Equal(t, a[0].ID, b[0].ID)
}
