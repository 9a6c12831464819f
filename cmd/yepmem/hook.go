// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/yep-mem/yepmem/internal/errors"
	"github.com/yep-mem/yepmem/internal/ui"
)

// postCommitHookContent is installed at .git/hooks/post-commit. It runs a
// best-effort incremental index in the background so a commit is never
// blocked on indexing; the pipeline's own cross-process lock (pkg/lock)
// serializes it against any index already in flight.
const postCommitHookContent = `#!/bin/sh
# yepmem auto-index hook - queues incremental indexing for this commit
# Installed by: yepmem install-hook
# Remove with: yepmem install-hook --remove

yepmem index 2>/dev/null &
`

// hookMarker identifies a hook file as one yepmem installed, distinguishing
// it from a hook a user wrote by hand.
const hookMarker = "# yepmem auto-index hoo"

// runInstallHook executes the 'install-hook' CLI command, installing or
// removing a git post-commit hook that triggers incremental indexing.
func runInstallHook(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("install-hook", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing non-yepmem hook")
	remove := fs.Bool("remove", false, "Remove the hook instead of installing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yepmem install-hook [options]

Installs a git post-commit hook that runs an incremental index in the
background after each commit.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	gitDir, err := findGitDir()
	if err != nil {
		errors.FatalError(errors.NewNotFoundError("Not a git repository", err.Error(), "run this from inside a git checkout"), globals.JSON)
	}
	hookPath := filepath.Join(gitDir, "hooks", "post-commit")

	if *remove {
		if err := removeHook(hookPath); err != nil {
			errors.FatalError(errors.NewInputError("Cannot remove hook", err.Error(), ""), globals.JSON)
		}
		ui.Success("Git hook removed")
		return
	}

	if err := installHook(hookPath, *force); err != nil {
		errors.FatalError(errors.NewInputError("Cannot install hook", err.Error(), "pass --force to overwrite"), globals.JSON)
	}
	ui.Successf("Git hook installed: %s", hookPath)
}

// findGitDir walks up from the current working directory looking for .git,
// resolving a worktree's gitdir pointer file when present.
func findGitDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() {
				return gitPath, nil
			}
			content, err := os.ReadFile(gitPath) //nolint:gosec // G304: gitPath is derived from a directory walk, not user input
			if err != nil {
				return "", fmt.Errorf("cannot read .git file: %w", err)
			}
			var gitdir string
			if _, err := fmt.Sscanf(string(content), "gitdir: %s", &gitdir); err == nil {
				if filepath.IsAbs(gitdir) {
					return gitdir, nil
				}
				return filepath.Join(dir, gitdir), nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("not a git repository (or any of the parent directories)")
}

// installHook writes the yepmem post-commit hook to hookPath. If a hook
// already exists and force is false, it refuses to overwrite anything that
// isn't already a yepmem hook.
func installHook(hookPath string, force bool) error {
	if err := os.MkdirAll(filepath.Dir(hookPath), 0755); err != nil {
		return fmt.Errorf("cannot create hooks directory: %w", err)
	}

	if _, err := os.Stat(hookPath); err == nil {
		if !force {
			content, err := os.ReadFile(hookPath) //nolint:gosec // G304: hookPath is derived from findGitDir, not user input
			if err == nil && containsHookMarker(string(content)) {
				ui.Info("yepmem hook already installed; pass --force to reinstall")
				return nil
			}
			return fmt.Errorf("hook already exists at %s (pass --force to overwrite)", hookPath)
		}
	}

	return os.WriteFile(hookPath, []byte(postCommitHookContent), 0755) //nolint:gosec // G306: hook scripts must be executable
}

// removeHook deletes the hook at hookPath, refusing to touch a hook yepmem
// did not install.
func removeHook(hookPath string) error {
	content, err := os.ReadFile(hookPath) //nolint:gosec // G304: hookPath is derived from findGitDir, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no hook found at %s", hookPath)
		}
		return fmt.Errorf("cannot read hook: %w", err)
	}
	if !containsHookMarker(string(content)) {
		return fmt.Errorf("hook at %s was not installed by yepmem; remove it manually if needed", hookPath)
	}
	return os.Remove(hookPath)
}

func containsHookMarker(content string) bool {
	return strings.Contains(content, hookMarker)
}

// IsHookInstalled reports whether the yepmem git hook is currently
// installed in the repository rooted at the current working directory.
func IsHookInstalled() bool {
	gitDir, err := findGitDir()
	if err != nil {
		return false
	}
	content, err := os.ReadFile(filepath.Join(gitDir, "hooks", "post-commit")) //nolint:gosec // G304: path is fixed relative to the discovered git dir
	if err != nil {
		return false
	}
	return containsHookMarker(string(content))
}
