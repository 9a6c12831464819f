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

// Package vcs is a thin os/exec wrapper around the git CLI for a few
// read-only operations: the checkpoint ingester's checks against a parallel
// branch (whether it exists, the blob paths it carries, one blob's content
// at its tip), resolving a ref to a SHA for the ingest pipeline, and
// listing recent commits with their touched files for co-change mining.
// It does not check anything out onto disk.
package vcs

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Repo runs read-only git subprocess calls against one repository root.
type Repo struct {
	path   string
	logger *slog.Logger
}

// NewRepo returns a Repo rooted at path.
func NewRepo(path string, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{path: path, logger: logger}
}

func (r *Repo) run(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.path
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git %s failed: %s", strings.Join(args, " "), string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return output, nil
}

// BranchExists reports whether branch resolves to a commit, local or
// remote-tracking. It never errors for a missing branch; git's non-zero
// exit in that case is the expected "not found" signal.
func (r *Repo) BranchExists(branch string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", branch)
	cmd.Dir = r.path
	return cmd.Run() == nil
}

// ListBlobPaths returns every file path present in branch's tree, via
// `git ls-tree -r --name-only`.
func (r *Repo) ListBlobPaths(branch string) ([]string, error) {
	output, err := r.run("ls-tree", "-r", "--name-only", branch)
	if err != nil {
		return nil, err
	}

	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ls-tree output: %w", err)
	}
	return paths, nil
}

// ReadBlob returns the content of path as it exists at branch's tip, via
// `git show <branch>:<path>`.
func (r *Repo) ReadBlob(branch, path string) ([]byte, error) {
	return r.run("show", branch+":"+path)
}

// ResolveRef resolves ref (a branch, tag, or SHA) to a commit SHA via
// `git rev-parse`.
func (r *Repo) ResolveRef(ref string) (string, error) {
	output, err := r.run("rev-parse", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// Commit is one entry from CommitsSince: its SHA and the file paths it
// touched.
type Commit struct {
	SHA   string
	Files []string
}

// CommitsSince returns every commit reachable from HEAD no older than
// since, each with the set of files it touched, via
// `git log --since=<since> --name-only --pretty=format:%x00%H`. A
// repository with no commits yet yields none.
func (r *Repo) CommitsSince(since string) ([]Commit, error) {
	if !r.BranchExists("HEAD") {
		return nil, nil
	}
	output, err := r.run("log", "--since="+since, "--name-only", "--pretty=format:%x00%H")
	if err != nil {
		return nil, err
	}

	var commits []Commit
	var current *Commit
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "\x00") {
			if current != nil {
				commits = append(commits, *current)
			}
			current = &Commit{SHA: strings.TrimPrefix(line, "\x00")}
			continue
		}
		if line == "" || current == nil {
			continue
		}
		current.Files = append(current.Files, line)
	}
	if current != nil {
		commits = append(commits, *current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log output: %w", err)
	}
	return commits, nil
}

