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
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/yep-mem/yepmem/pkg/vcs"
)

// DefaultBranch is the well-known branch name the branch source looks for.
const DefaultBranch = "entire/checkpoints/v1"

// checkpointPathPattern matches the sharded prefix of a blob path that
// identifies which checkpoint it belongs to: two hex chars, a slash, ten
// hex chars, a slash. The checkpoint id is those two groups concatenated.
var checkpointPathPattern = regexp.MustCompile(`^([0-9a-f]{2})/([0-9a-f]{10})/`)

// numericSubdirPattern matches a session's numeric subdirectory name.
var numericSubdirPattern = regexp.MustCompile(`^\d+$`)

// BranchSource reads checkpoints committed to a parallel git branch.
type BranchSource struct {
	repo   *vcs.Repo
	branch string
	logger *slog.Logger
}

// NewBranchSource returns a BranchSource over repo's DefaultBranch.
func NewBranchSource(repo *vcs.Repo, logger *slog.Logger) *BranchSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BranchSource{repo: repo, branch: DefaultBranch, logger: logger}
}

// Available reports whether the branch exists at all; when it does not,
// ReadNew returns no checkpoints and no error -- a project with no
// checkpoint branch is not a failure.
func (b *BranchSource) Available() bool {
	return b.repo.BranchExists(b.branch)
}

// ReadNew enumerates the branch's blob paths, groups them by checkpoint id,
// and parses every checkpoint whose id is not already in knownIDs.
func (b *BranchSource) ReadNew(knownIDs map[string]bool) ([]ParsedCheckpoint, error) {
	if !b.Available() {
		return nil, nil
	}

	paths, err := b.repo.ListBlobPaths(b.branch)
	if err != nil {
		return nil, fmt.Errorf("list checkpoint branch blobs: %w", err)
	}

	grouped := groupByCheckpoint(paths)

	var out []ParsedCheckpoint
	for id, files := range grouped {
		if knownIDs[id] {
			continue
		}
		cp, err := b.parseCheckpoint(id, files)
		if err != nil {
			b.logger.Warn("checkpoints.branch.parse_error", "checkpoint_id", id, "err", err)
			continue
		}
		out = append(out, cp)
	}
	return out, nil
}

// checkpointFiles is one checkpoint's blob paths, split into the
// checkpoint-level metadata path and a per-session map of relative files
// (full.jsonl, prompt.txt, metadata.json).
type checkpointFiles struct {
	metadataPath string
	sessions     map[string]map[string]string // sessionIndex -> filename -> full path
}

func groupByCheckpoint(paths []string) map[string]*checkpointFiles {
	out := make(map[string]*checkpointFiles)

	for _, p := range paths {
		m := checkpointPathPattern.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		id := m[1] + m[2]
		prefixLen := len(m[0])
		rest := p[prefixLen:]

		cp, ok := out[id]
		if !ok {
			cp = &checkpointFiles{sessions: make(map[string]map[string]string)}
			out[id] = cp
		}

		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 1 {
			if parts[0] == "metadata.json" {
				cp.metadataPath = p
			}
			continue
		}

		sessionIndex, filename := parts[0], parts[1]
		if !numericSubdirPattern.MatchString(sessionIndex) {
			continue
		}
		if strings.Contains(filename, "/") {
			continue
		}
		files, ok := cp.sessions[sessionIndex]
		if !ok {
			files = make(map[string]string)
			cp.sessions[sessionIndex] = files
		}
		files[filename] = p
	}

	return out
}

func (b *BranchSource) parseCheckpoint(id string, files *checkpointFiles) (ParsedCheckpoint, error) {
	cp := ParsedCheckpoint{ID: id}

	if files.metadataPath != "" {
		data, err := b.repo.ReadBlob(b.branch, files.metadataPath)
		if err != nil {
			return ParsedCheckpoint{}, fmt.Errorf("read checkpoint metadata: %w", err)
		}
		meta, err := parseMetadata(data)
		if err != nil {
			b.logger.Warn("checkpoints.branch.metadata_parse_error", "checkpoint_id", id, "err", err)
		} else {
			cp.Metadata = CheckpointMetadata(meta)
		}
	}

	for index, sessionFiles := range files.sessions {
		session, err := b.parseSession(id, index, sessionFiles)
		if err != nil {
			b.logger.Warn("checkpoints.branch.session_parse_error", "checkpoint_id", id, "session", index, "err", err)
			continue
		}
		cp.Sessions = append(cp.Sessions, session)
	}

	return cp, nil
}

func (b *BranchSource) parseSession(checkpointID, index string, files map[string]string) (ParsedSession, error) {
	session := ParsedSession{Index: index}

	if path, ok := files["full.jsonl"]; ok {
		data, err := b.repo.ReadBlob(b.branch, path)
		if err != nil {
			return ParsedSession{}, fmt.Errorf("read full.jsonl: %w", err)
		}
		session.Transcript = parseTranscriptLines(data)
	}

	if path, ok := files["prompt.txt"]; ok {
		data, err := b.repo.ReadBlob(b.branch, path)
		if err != nil {
			b.logger.Warn("checkpoints.branch.prompt_read_error", "checkpoint_id", checkpointID, "session", index, "err", err)
		} else {
			session.Prompt = string(data)
		}
	}

	if path, ok := files["metadata.json"]; ok {
		data, err := b.repo.ReadBlob(b.branch, path)
		if err != nil {
			b.logger.Warn("checkpoints.branch.session_metadata_read_error", "checkpoint_id", checkpointID, "session", index, "err", err)
		} else if meta, err := parseMetadata(data); err != nil {
			b.logger.Warn("checkpoints.branch.session_metadata_parse_error", "checkpoint_id", checkpointID, "session", index, "err", err)
		} else {
			session.Metadata = SessionMetadata(meta)
		}
	}

	return session, nil
}

func parseMetadata(data []byte) (map[string]any, error) {
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}
