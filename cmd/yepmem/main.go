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

// Package main implements the yepmem CLI: indexing repositories, searching
// indexed code and transcripts, and managing the local project database.
//
// Usage:
//
//	yepmem init                      Create .yep-mem/project.yaml
//	yepmem index                     Index the current repository
//	yepmem search <query> [--json]   Hybrid vector+keyword search
//	yepmem status [--json]           Show project status
//	yepmem reset --yes               Delete local indexed data
//	yepmem install-hook               Install git post-commit auto-index hook
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/yep-mem/yepmem/internal/ui"
)

// version information, set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags carries the flags parsed before the subcommand name, so every
// subcommand can honor --json/--quiet/--no-color/--verbose consistently
// without re-declaring them.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to .yep-mem/project.yaml (default: ./.yep-mem/project.yaml)")
		jsonOutput  = flag.Bool("json", false, "Output machine-readable JSON")
		quiet       = flag.Bool("quiet", false, "Suppress progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored terminal output")
		verbose     = flag.Int("verbose", 0, "Increase log verbosity (0-2)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `yepmem - Code Intelligence Engine CLI

Usage:
  yepmem <command> [options]

Commands:
  init          Create .yep-mem/project.yaml configuration
  index         Index the current repository and its checkpoint history
  search        Hybrid vector + keyword search over indexed chunks
  status        Show project status and entity counts
  reset         Delete local indexed data (destructive!)
  install-hook  Install a git post-commit hook for auto-indexing
  completion    Print a shell completion script

Global Options:
  --config      Path to .yep-mem/project.yaml
  --json        Output machine-readable JSON
  --quiet       Suppress progress output
  --no-color    Disable colored terminal output
  --verbose     Increase log verbosity (0-2)
  --version     Show version and exit

Examples:
  yepmem init                   Create configuration interactively
  yepmem index                  Index the current repository
  yepmem index --full           Force full reindex
  yepmem search "retry backoff logic"
  yepmem status --json          Output as JSON

Data Storage:
  Data is stored locally in ~/.yep-mem/data/<project_id>/

Environment Variables:
  OLLAMA_BASE_URL      Ollama server URL (default: http://localhost:11434)
  OLLAMA_EMBED_MODEL   Embedding model (default: nomic-embed-text)

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("yepmem version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{JSON: *jsonOutput, Quiet: *quiet, NoColor: *noColor, Verbose: *verbose}
	ui.InitColors(globals.NoColor || globals.JSON)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "index":
		runIndex(cmdArgs, *configPath, globals)
	case "search":
		runSearch(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	case "reset":
		runReset(cmdArgs, *configPath, globals)
	case "install-hook":
		runInstallHook(cmdArgs, globals)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
