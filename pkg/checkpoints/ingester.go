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

	"github.com/yep-mem/yepmem/pkg/vcs"
)

// Ingester merges the branch source and the local source into one
// incremental checkpoint read.
type Ingester struct {
	branch *BranchSource
	local  *LocalSource
	logger *slog.Logger
}

// NewIngester returns an Ingester rooted at workdir, reading the branch
// source through repo (nil disables the branch source entirely -- useful
// when workdir is not a git repository at all).
func NewIngester(workdir string, repo *vcs.Repo, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	var branch *BranchSource
	if repo != nil {
		branch = NewBranchSource(repo, logger)
	}
	return &Ingester{
		branch: branch,
		local:  NewLocalSource(workdir, logger),
		logger: logger,
	}
}

// ReadResult is one incremental read's output plus the state the caller
// must persist (into Config) so the next run resumes correctly.
type ReadResult struct {
	Checkpoints []ParsedCheckpoint

	// NewKnownCheckpointIDs is knownIDs with every branch-source checkpoint
	// id just parsed added; nil when the Ingester was built without a
	// repository. With a repository but no checkpoint branch it is knownIDs
	// unchanged.
	NewKnownCheckpointIDs []string

	// NewLocalSyncOffsets is the local source's updated byte offsets.
	NewLocalSyncOffsets map[string]uint64
}

// ReadNew runs both sources and merges their output. knownIDs and
// localOffsets are the previous run's persisted state; pass nil maps on a
// first run.
func (ig *Ingester) ReadNew(knownIDs map[string]bool, localOffsets map[string]uint64) (ReadResult, error) {
	var result ReadResult

	if ig.branch != nil {
		branchCheckpoints, err := ig.branch.ReadNew(knownIDs)
		if err != nil {
			return ReadResult{}, fmt.Errorf("read checkpoint branch: %w", err)
		}
		result.Checkpoints = append(result.Checkpoints, branchCheckpoints...)

		result.NewKnownCheckpointIDs = make([]string, 0, len(knownIDs)+len(branchCheckpoints))
		for id := range knownIDs {
			result.NewKnownCheckpointIDs = append(result.NewKnownCheckpointIDs, id)
		}
		for _, cp := range branchCheckpoints {
			result.NewKnownCheckpointIDs = append(result.NewKnownCheckpointIDs, cp.ID)
		}
	}

	localCheckpoints, newOffsets, err := ig.local.ReadNew(localOffsets)
	if err != nil {
		return ReadResult{}, fmt.Errorf("read local checkpoints: %w", err)
	}
	result.Checkpoints = append(result.Checkpoints, localCheckpoints...)
	result.NewLocalSyncOffsets = newOffsets

	ig.logger.Info("checkpoints.read", "count", len(result.Checkpoints))
	return result, nil
}
