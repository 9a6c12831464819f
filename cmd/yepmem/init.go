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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/yep-mem/yepmem/internal/errors"
	"github.com/yep-mem/yepmem/internal/ui"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force, nonInteractive, noHook, withHook bool
	projectID, embeddingProvider            string
}

// runInit executes the 'init' CLI command, creating a .yep-mem/project.yaml
// configuration file, optionally prompting interactively, and optionally
// installing the git post-commit hook.
func runInit(args []string, globals GlobalFlags) {
	flags := parseInitFlags(args)

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot determine current directory", err.Error(), "", err), globals.JSON)
	}

	configPath := ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		errors.FatalError(errors.NewConfigError(
			fmt.Sprintf("%s already exists", configPath),
			"a project configuration is already present",
			"pass --force to overwrite it",
			nil,
		), globals.JSON)
	}

	cfg := createInitConfig(cwd, flags)
	reader := bufio.NewReader(os.Stdin)

	if !flags.nonInteractive {
		runInteractiveConfig(reader, cfg)
	}

	saveInitConfig(cwd, configPath, cfg, globals)
	handleHookInstallation(reader, flags, globals)
	printNextSteps(flags.noHook)
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVarP(&f.nonInteractive, "yes", "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.projectID, "project-id", "", "Project identifier (default: directory name)")
	fs.StringVar(&f.embeddingProvider, "embedding-provider", "", "Embedding provider (ollama, openai, nomic, mock)")
	fs.BoolVar(&f.noHook, "no-hook", false, "Skip git hook installation")
	fs.BoolVar(&f.withHook, "hook", false, "Install git hook without prompting (for scripts)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yepmem init [options]

Creates .yep-mem/project.yaml configuration file.

Examples:
  yepmem init                      Interactive setup
  yepmem init -y                   Use all defaults
  yepmem init --embedding-provider openai -y
  yepmem init --hook               Also install the git post-commit hook

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

func createInitConfig(cwd string, f initFlags) *Config {
	pid := f.projectID
	if pid == "" {
		pid = filepath.Base(cwd)
	}
	cfg := DefaultConfig(pid)
	if f.embeddingProvider != "" {
		cfg.Embedding.Provider = f.embeddingProvider
	}
	return cfg
}

func runInteractiveConfig(reader *bufio.Reader, cfg *Config) {
	fmt.Println("yepmem Project Configuration")
	fmt.Println("=============================")
	fmt.Println()

	cfg.ProjectID = prompt(reader, "Project ID", cfg.ProjectID)

	fmt.Println()
	fmt.Println("Embedding providers: ollama, openai, nomic, mock")
	cfg.Embedding.Provider = prompt(reader, "Embedding provider", cfg.Embedding.Provider)
	switch cfg.Embedding.Provider {
	case "ollama":
		cfg.Embedding.BaseURL = prompt(reader, "Ollama URL", cfg.Embedding.BaseURL)
		cfg.Embedding.Model = prompt(reader, "Embedding model", cfg.Embedding.Model)
	case "openai":
		cfg.Embedding.Model = prompt(reader, "Embedding model", "text-embedding-3-small")
		cfg.Embedding.APIKey = prompt(reader, "OpenAI API key (or set OPENAI_API_KEY)", cfg.Embedding.APIKey)
	}

	promptSummarizerConfig(reader, cfg)
	fmt.Println()
}

func promptSummarizerConfig(reader *bufio.Reader, cfg *Config) {
	fmt.Println()
	fmt.Println("Summarizer (optional LLM for one-line chunk summaries)")
	fmt.Println("Leave the URL empty to skip.")
	fmt.Println()

	baseURL := prompt(reader, "Summarizer API URL (e.g. http://localhost:11434)", cfg.Summarizer.BaseURL)
	if baseURL != "" {
		cfg.Summarizer.Enabled = true
		cfg.Summarizer.BaseURL = baseURL
		cfg.Summarizer.Provider = prompt(reader, "Summarizer provider (ollama, openai, anthropic)", "ollama")
		cfg.Summarizer.Model = prompt(reader, "Summarizer model", "qwen2.5-coder")
		cfg.Summarizer.APIKey = prompt(reader, "Summarizer API key (optional)", cfg.Summarizer.APIKey)
	}
}

func saveInitConfig(cwd, configPath string, cfg *Config, globals GlobalFlags) {
	dir := ConfigDir(cwd)
	if err := os.MkdirAll(dir, 0750); err != nil {
		errors.FatalError(errors.NewPermissionError("Cannot create .yep-mem directory", err.Error(), "", err), globals.JSON)
	}
	if err := SaveConfig(cfg, configPath); err != nil {
		errors.FatalError(errors.NewConfigError("Cannot save configuration", err.Error(), "", err), globals.JSON)
	}
	ui.Successf("Created %s", configPath)
	addToGitignore(cwd)
}

func handleHookInstallation(reader *bufio.Reader, f initFlags, globals GlobalFlags) {
	if f.noHook {
		return
	}
	shouldInstall := f.withHook
	if !f.withHook && !f.nonInteractive {
		fmt.Println()
		answer := strings.ToLower(strings.TrimSpace(prompt(reader, "Install git hook for auto-indexing? (Y/n)", "y")))
		shouldInstall = answer != "n" && answer != "no"
	} else if f.nonInteractive {
		shouldInstall = true
	}

	if !shouldInstall {
		return
	}
	gitDir, err := findGitDir()
	if err != nil {
		ui.Warningf("cannot find .git directory: %v", err)
		return
	}
	hookPath := filepath.Join(gitDir, "hooks", "post-commit")
	if err := installHook(hookPath, false); err != nil {
		ui.Warningf("cannot install git hook: %v", err)
		return
	}
	ui.Successf("Git hook installed: %s", hookPath)
	_ = globals
}

func printNextSteps(noHook bool) {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .yep-mem/project.yaml if needed")
	fmt.Println("  2. Run 'yepmem index' to index your repository")
	fmt.Println("  3. Run 'yepmem status' to verify indexing")
	if noHook {
		fmt.Println()
		fmt.Println("Tip: run 'yepmem install-hook' to enable auto-indexing on each commit")
	}
}

// prompt displays an interactive prompt and reads a line from stdin,
// returning defaultValue when the user enters nothing.
func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

// addToGitignore adds .yep-mem/ to the project's .gitignore if not already
// present. Silently returns if .gitignore does not exist or can't be read.
func addToGitignore(dir string) {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: dir is the operator's own cwd
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == ".yep-mem/" || line == ".yep-mem" || line == "/.yep-mem/" || line == "/.yep-mem" {
			return
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: dir is the operator's own cwd
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}
	_, _ = f.WriteString("\n# yepmem local index\n.yep-mem/\n")
	ui.Info("Added .yep-mem/ to .gitignore")
}
