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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalMetadataDir is the directory, relative to a workdir, holding local
// session directories.
const LocalMetadataDir = ".entire/metadata"

// LocalSource reads checkpoints from local session directories under a
// workdir, resuming full.jsonl reads from a per-session byte offset.
type LocalSource struct {
	workdir string
	logger  *slog.Logger
}

// NewLocalSource returns a LocalSource rooted at workdir.
func NewLocalSource(workdir string, logger *slog.Logger) *LocalSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalSource{workdir: workdir, logger: logger}
}

// ReadNew reads every local session directory, resuming full.jsonl from
// offsets[session] and returning the offsets to persist back onto
// Config.LocalSyncOffsets. A session whose full.jsonl is already fully
// consumed (offset == file size) is skipped entirely -- it contributes
// neither a checkpoint nor a changed offset. Each session directory is
// treated as its own single-session checkpoint, id == session name.
func (l *LocalSource) ReadNew(offsets map[string]uint64) ([]ParsedCheckpoint, map[string]uint64, error) {
	root := filepath.Join(l.workdir, LocalMetadataDir)

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			if offsets == nil {
				offsets = make(map[string]uint64)
			}
			return nil, offsets, nil
		}
		return nil, nil, fmt.Errorf("read local metadata dir: %w", err)
	}

	newOffsets := make(map[string]uint64, len(offsets))
	for k, v := range offsets {
		newOffsets[k] = v
	}

	var out []ParsedCheckpoint
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sessionID := entry.Name()
		sessionDir := filepath.Join(root, sessionID)

		offset := offsets[sessionID]
		transcript, newOffset, ok, err := l.readTranscriptTail(sessionDir, offset)
		if err != nil {
			l.logger.Warn("checkpoints.local.transcript_error", "session", sessionID, "err", err)
			continue
		}
		if !ok {
			continue
		}
		newOffsets[sessionID] = newOffset

		parsed := ParsedSession{
			Index:      sessionID,
			Transcript: transcript,
			Prompt:     l.readPrompt(sessionDir),
			Metadata:   l.readMetadata(sessionDir),
		}

		out = append(out, ParsedCheckpoint{
			ID:       sessionID,
			Metadata: CheckpointMetadata(parsed.Metadata),
			Sessions: []ParsedSession{parsed},
		})
	}

	return out, newOffsets, nil
}

// readTranscriptTail reads full.jsonl from offset to end of file. ok is
// false when there is nothing new to read: the file is absent, or offset
// already equals the file's size.
func (l *LocalSource) readTranscriptTail(sessionDir string, offset uint64) (entries []TranscriptEntry, newOffset uint64, ok bool, err error) {
	path := filepath.Join(sessionDir, "full.jsonl")

	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, offset, false, nil
		}
		return nil, 0, false, fmt.Errorf("stat full.jsonl: %w", statErr)
	}
	size := uint64(info.Size())
	if offset >= size {
		return nil, offset, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, false, fmt.Errorf("open full.jsonl: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(offset), 0); err != nil {
		return nil, 0, false, fmt.Errorf("seek full.jsonl: %w", err)
	}

	data := make([]byte, size-offset)
	if _, err := f.Read(data); err != nil {
		return nil, 0, false, fmt.Errorf("read full.jsonl tail: %w", err)
	}

	return parseTranscriptLines(data), size, true, nil
}

func (l *LocalSource) readPrompt(sessionDir string) string {
	data, err := os.ReadFile(filepath.Join(sessionDir, "prompt.txt"))
	if err != nil {
		return ""
	}
	return string(data)
}

func (l *LocalSource) readMetadata(sessionDir string) SessionMetadata {
	data, err := os.ReadFile(filepath.Join(sessionDir, "metadata.json"))
	if err != nil {
		return nil
	}
	meta, err := parseMetadata(data)
	if err != nil {
		l.logger.Warn("checkpoints.local.metadata_parse_error", "session_dir", sessionDir, "err", err)
		return nil
	}
	return SessionMetadata(meta)
}
