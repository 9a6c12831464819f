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

	flag "github.com/spf13/pflag"

	"github.com/yep-mem/yepmem/internal/errors"
	"github.com/yep-mem/yepmem/internal/ui"
)

// runReset executes the 'reset' CLI command, deleting all local indexed
// data for the project so the next index starts from scratch.
func runReset(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yepmem reset [options]

Deletes all local indexed data for the project. Useful before a full
reindex to ensure a clean slate.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		errors.FatalError(errors.NewInputError(
			"Reset requires confirmation",
			"this deletes all indexed data for the project",
			"pass --yes to confirm",
		), globals.JSON)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(), "run 'yepmem init' first", err), globals.JSON)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot determine home directory", err.Error(), "", err), globals.JSON)
	}
	dataDir := filepath.Join(homeDir, ".yep-mem", "data", cfg.ProjectID)

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		ui.Info(fmt.Sprintf("No local data found for project %s", cfg.ProjectID))
		return
	}

	ui.Infof("Resetting project %s (deleting %s)...", cfg.ProjectID, dataDir)
	if err := os.RemoveAll(dataDir); err != nil {
		errors.FatalError(errors.NewPermissionError("Failed to delete data", err.Error(), "", err), globals.JSON)
	}

	ui.Success("Reset complete. All local indexed data has been deleted.")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  yepmem index --full    Reindex the project")
}
