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
	"strings"

	"github.com/yep-mem/yepmem/pkg/checkpoints"
)

// TranscriptChunk is one retrievable, embeddable unit produced from a
// checkpoint's session: the prompt/response pair plus whatever change
// summary and symbol references its metadata carries.
type TranscriptChunk struct {
	ID            string
	CheckpointID  string
	SessionIndex  string
	Agent         string
	Timestamp     string
	Prompt        string
	Response      string
	DiffSummary   string
	FilesChanged  []string
	Symbols       []string
	Summary       string
	TokensUsed    int
	EmbeddingText string
	Embedding     []float32
	EmbedError    string
}

// EmbedText returns the text handed to the embedding provider, mirroring
// CodeChunk.EmbedText.
func (c *TranscriptChunk) EmbedText() string {
	if c.EmbeddingText != "" {
		return c.EmbeddingText
	}
	return c.Prompt + "\n" + c.Response
}

// BuildTranscriptChunks turns a batch of parsed checkpoints into
// TranscriptChunks, one per session.
func BuildTranscriptChunks(parsed []checkpoints.ParsedCheckpoint) []TranscriptChunk {
	var chunks []TranscriptChunk
	for _, cp := range parsed {
		for _, session := range cp.Sessions {
			chunks = append(chunks, buildTranscriptChunk(cp, session))
		}
	}
	return chunks
}

func buildTranscriptChunk(cp checkpoints.ParsedCheckpoint, session checkpoints.ParsedSession) TranscriptChunk {
	prompt := session.Prompt
	response := concatByRole(session.Transcript, checkpoints.RoleAssistant)
	if prompt == "" {
		prompt = concatByRole(session.Transcript, checkpoints.RoleUser)
	}

	chunk := TranscriptChunk{
		ID:           GenerateTranscriptChunkIDForSession(cp.ID, session.Index),
		CheckpointID: cp.ID,
		SessionIndex: session.Index,
		Agent:        stringField(session.Metadata, "agent", stringField(cp.Metadata, "agent", "")),
		Timestamp:    stringField(session.Metadata, "timestamp", stringField(cp.Metadata, "timestamp", "")),
		Prompt:       prompt,
		Response:     response,
		DiffSummary:  stringField(session.Metadata, "diffSummary", ""),
		FilesChanged: stringSliceField(session.Metadata, "filesChanged"),
		Symbols:      stringSliceField(session.Metadata, "symbols"),
		TokensUsed:   intField(session.Metadata, "tokensUsed"),
	}
	chunk.EmbeddingText = truncateEmbeddingText(transcriptEmbeddingText(chunk))
	return chunk
}

func transcriptEmbeddingText(c TranscriptChunk) string {
	var b strings.Builder
	if c.Prompt != "" {
		b.WriteString("prompt: ")
		b.WriteString(c.Prompt)
	}
	if c.Response != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("response: ")
		b.WriteString(c.Response)
	}
	if c.DiffSummary != "" {
		b.WriteString("\ndiff: ")
		b.WriteString(c.DiffSummary)
	}
	if len(c.FilesChanged) > 0 {
		b.WriteString("\nfiles: ")
		b.WriteString(strings.Join(c.FilesChanged, ", "))
	}
	if len(c.Symbols) > 0 {
		b.WriteString("\nsymbols: ")
		b.WriteString(strings.Join(c.Symbols, ", "))
	}
	return b.String()
}

func concatByRole(entries []checkpoints.TranscriptEntry, role checkpoints.Role) string {
	var parts []string
	for _, e := range entries {
		if e.Role == role && e.Content != "" {
			parts = append(parts, e.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func stringField(meta map[string]any, key, fallback string) string {
	if meta == nil {
		return fallback
	}
	if v, ok := meta[key].(string); ok {
		return v
	}
	return fallback
}

func intField(meta map[string]any, key string) int {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func stringSliceField(meta map[string]any, key string) []string {
	if meta == nil {
		return nil
	}
	raw, ok := meta[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
