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
	"flag"
	"fmt"
	"os"

	"github.com/yep-mem/yepmem/internal/errors"
)

// bashCompletionTemplate is the bash completion script for yepmem.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for yepmem
# Installation:
#   source <(yepmem completion bash)
#   Or add to ~/.bashrc:
#   echo 'source <(yepmem completion bash)' >> ~/.bashrc

_yepmem_completion() {
    local cur prev commands
    commands="init index search status reset install-hook completion"

    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [[ ${cur} == -* ]] ; then
        COMPREPLY=( $(compgen -W "--version --config --json --quiet --no-color" -- ${cur}) )
        return 0
    fi

    if [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        return 0
    fi

    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        index)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--full --embed-workers --debug --metrics-addr" -- ${cur}) )
            fi
            ;;
        search)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--limit --min-score --transcripts --timeout" -- ${cur}) )
            fi
            ;;
        status)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            fi
            ;;
        reset)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--yes" -- ${cur}) )
            fi
            ;;
        install-hook)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--force --remove" -- ${cur}) )
            fi
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _yepmem_completion yepmem
`

// zshCompletionTemplate is the zsh completion script for yepmem.
const zshCompletionTemplate = `#compdef yepmem

# Zsh completion script for yepmem
# Installation:
#   1. Ensure compinit is loaded (add to ~/.zshrc if not present):
#      autoload -U compinit; compinit
#   2. Save this script to a directory in your fpath:
#      yepmem completion zsh > "${fpath[1]}/_yepmem"
#   3. Reload completions:
#      rm -f ~/.zcompdump; compinit

_yepmem() {
    local -a commands
    commands=(
        'init:Create .yep-mem/project.yaml configuration'
        'index:Index the current repository'
        'search:Hybrid vector + keyword search'
        'status:Show project status'
        'reset:Reset local project data'
        'install-hook:Install git post-commit hook'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--config[Path to .yep-mem/project.yaml]:config file:_files -g "*.yaml"' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                index)
                    _arguments \
                        '--full[Force full re-index (ignore checkpoint)]' \
                        '--embed-workers[Number of embedding workers]:workers:' \
                        '--debug[Enable debug logging]' \
                        '--metrics-addr[Prometheus metrics address]:address:'
                    ;;
                search)
                    _arguments \
                        '--limit[Maximum number of results]:limit:' \
                        '--min-score[Minimum fused score]:score:' \
                        '--transcripts[Search transcript chunks]' \
                        '1:query text:'
                    ;;
                status)
                    _arguments \
                        '--json[Output as JSON]'
                    ;;
                reset)
                    _arguments \
                        '--yes[Skip confirmation prompt]'
                    ;;
                install-hook)
                    _arguments \
                        '--force[Overwrite existing hook]' \
                        '--remove[Remove the hook]'
                    ;;
                completion)
                    _arguments \
                        '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_yepmem
`

// fishCompletionTemplate is the fish completion script for yepmem.
const fishCompletionTemplate = `# Fish completion script for yepmem
# Installation:
#   1. Load completions for current session:
#      yepmem completion fish | source
#   2. Install permanently:
#      yepmem completion fish > ~/.config/fish/completions/yepmem.fish

complete -c yepmem -f -n "__fish_use_subcommand" -a "init" -d "Create .yep-mem/project.yaml configuration"
complete -c yepmem -f -n "__fish_use_subcommand" -a "index" -d "Index the current repository"
complete -c yepmem -f -n "__fish_use_subcommand" -a "search" -d "Hybrid vector + keyword search"
complete -c yepmem -f -n "__fish_use_subcommand" -a "status" -d "Show project status"
complete -c yepmem -f -n "__fish_use_subcommand" -a "reset" -d "Reset local project data (destructive!)"
complete -c yepmem -f -n "__fish_use_subcommand" -a "install-hook" -d "Install git post-commit hook"
complete -c yepmem -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

complete -c yepmem -l version -d "Show version and exit"
complete -c yepmem -l config -d "Path to .yep-mem/project.yaml" -r

complete -c yepmem -n "__fish_seen_subcommand_from index" -l full -d "Force full re-index (ignore checkpoint)"
complete -c yepmem -n "__fish_seen_subcommand_from index" -l embed-workers -d "Number of embedding workers" -r
complete -c yepmem -n "__fish_seen_subcommand_from index" -l debug -d "Enable debug logging"
complete -c yepmem -n "__fish_seen_subcommand_from index" -l metrics-addr -d "Prometheus metrics address" -r

complete -c yepmem -n "__fish_seen_subcommand_from search" -l limit -d "Maximum number of results" -r
complete -c yepmem -n "__fish_seen_subcommand_from search" -l min-score -d "Minimum fused score" -r
complete -c yepmem -n "__fish_seen_subcommand_from search" -l transcripts -d "Search transcript chunks"

complete -c yepmem -n "__fish_seen_subcommand_from status" -l json -d "Output as JSON"

complete -c yepmem -n "__fish_seen_subcommand_from reset" -l yes -d "Skip confirmation prompt"

complete -c yepmem -n "__fish_seen_subcommand_from install-hook" -l force -d "Overwrite existing hook"
complete -c yepmem -n "__fish_seen_subcommand_from install-hook" -l remove -d "Remove the hook"

complete -c yepmem -n "__fish_seen_subcommand_from completion" -f -a "bash" -d "Generate bash completion script"
complete -c yepmem -n "__fish_seen_subcommand_from completion" -f -a "zsh" -d "Generate zsh completion script"
complete -c yepmem -n "__fish_seen_subcommand_from completion" -f -a "fish" -d "Generate fish completion script"
`

// runCompletion executes the 'completion' CLI command, printing a shell
// completion script for bash, zsh, or fish to stdout.
//
// Examples:
//
//	yepmem completion bash
//	source <(yepmem completion bash)
//	yepmem completion zsh > "${fpath[1]}/_yepmem"
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yepmem completion <shell>

Generate shell completion scripts for bash, zsh, or fish.

Arguments:
  shell    Shell type: bash, zsh, or fish (required)

Examples:
  yepmem completion bash
  source <(yepmem completion bash)
  yepmem completion zsh > "${fpath[1]}/_yepmem"
  yepmem completion fish > ~/.config/fish/completions/yepmem.fish

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"the completion command requires exactly one argument: the shell name",
			"run 'yepmem completion bash', 'yepmem completion zsh', or 'yepmem completion fish'",
		), false)
	}

	switch fs.Arg(0) {
	case "bash":
		fmt.Print(bashCompletionTemplate)
	case "zsh":
		fmt.Print(zshCompletionTemplate)
	case "fish":
		fmt.Print(fishCompletionTemplate)
	default:
		errors.FatalError(errors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("shell '%s' is not supported; valid options: bash, zsh, fish", fs.Arg(0)),
			"run 'yepmem completion bash', 'yepmem completion zsh', or 'yepmem completion fish'",
		), false)
	}
}
