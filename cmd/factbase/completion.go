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

	flag "github.com/spf13/pflag"

	clierrors "github.com/kraklabs/factbase/internal/errors"
)

// bashCompletion is the bash completion script for factbase.
const bashCompletion = `#!/bin/bash

# Bash completion for factbase
#   source <(factbase completion bash)

_factbase_completion() {
    local cur prev commands
    commands="init add extract import fingerprint versions status reset completion"
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [ $COMP_CWORD -eq 1 ]; then
        if [[ ${cur} == -* ]]; then
            COMPREPLY=( $(compgen -W "--version --config --json --quiet --no-color --debug" -- ${cur}) )
        else
            COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        fi
        return 0
    fi

    case "${prev}" in
        add)
            COMPREPLY=( $(compgen -W "library maven project" -- ${cur}) )
            return 0 ;;
        --kind)
            COMPREPLY=( $(compgen -W "library maven project" -- ${cur}) )
            return 0 ;;
        --stage)
            COMPREPLY=( $(compgen -W "entities structural all" -- ${cur}) )
            return 0 ;;
        --compression)
            COMPREPLY=( $(compgen -W "none gzip zstd" -- ${cur}) )
            return 0 ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            return 0 ;;
    esac

    case "${COMP_WORDS[1]}" in
        init)        COMPREPLY=( $(compgen -W "--force --driver --dsn" -- ${cur}) ) ;;
        extract)     COMPREPLY=( $(compgen -W "--kind --force --compression" -- ${cur}) ) ;;
        import)      COMPREPLY=( $(compgen -W "--stage --kind --batch-size --unit-timeout --metrics-addr" -- ${cur}) ) ;;
        fingerprint) COMPREPLY=( $(compgen -W "--min-projects --suffix --shards --workers" -- ${cur}) ) ;;
        versions)    COMPREPLY=( $(compgen -W "--workers --all" -- ${cur}) ) ;;
        status)      COMPREPLY=( $(compgen -W "--json" -- ${cur}) ) ;;
        reset)       COMPREPLY=( $(compgen -W "--unit --all --extraction --yes" -- ${cur}) ) ;;
        *)           COMPREPLY=( $(compgen -f -- ${cur}) ) ;;
    esac
}

complete -F _factbase_completion factbase
`

// zshCompletion is the zsh completion script for factbase.
const zshCompletion = `#compdef factbase

_factbase() {
    local -a commands
    commands=(
        'init:Create .factbase/config.yaml and the workspace'
        'add:Add a library, maven artifact or project'
        'extract:Write fact bundles for repository units'
        'import:Import fact bundles into the store'
        'fingerprint:Find byte-identical files across projects'
        'versions:Cluster jar class files into versions'
        'status:Show units per stage and rows per table'
        'reset:Remove imported units'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '--version[Show version]' \
        '--config[Config file]:file:_files' \
        '--json[Write results as JSON]' \
        '(-q --quiet)'{-q,--quiet}'[Suppress progress]' \
        '--no-color[Disable colored output]' \
        '--debug[Enable debug logging]' \
        '1:command:->command' \
        '*::arg:->args'

    case $state in
        command)
            _describe 'command' commands ;;
        args)
            case $words[1] in
                add)         _arguments '1:kind:(library maven project)' '*:file:_files' ;;
                extract)     _arguments '--kind[Unit kinds]:kind:(library maven project)' '--force[Re-extract]' '--compression[Compression]:c:(none gzip zstd)' ;;
                import)      _arguments '--stage[Stage]:stage:(entities structural all)' '--kind[Unit kinds]:kind:(library maven project)' '--batch-size[Rows per INSERT]' '--unit-timeout[Per-unit limit]' '--metrics-addr[Metrics address]' ;;
                fingerprint) _arguments '--min-projects[Minimum projects]' '--suffix[File suffix]' '--shards[Shards]' '--workers[Workers]' ;;
                versions)    _arguments '--workers[Workers]' '--all[List every type]' ;;
                status)      _arguments '--json[Output as JSON]' ;;
                reset)       _arguments '--unit[kind/key]' '--all[Every unit]' '--extraction[Remove bundles]' '--yes[Confirm]' ;;
                completion)  _arguments '1:shell:(bash zsh fish)' ;;
            esac ;;
    esac
}

_factbase "$@"
`

// fishCompletion is the fish completion script for factbase.
const fishCompletion = `# Fish completion for factbase
#   factbase completion fish | source

set -l commands init add extract import fingerprint versions status reset completion

complete -c factbase -f
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -l version -d 'Show version'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -l config -r -d 'Config file'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -l json -d 'Write results as JSON'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -s q -l quiet -d 'Suppress progress'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -l no-color -d 'Disable colored output'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -l debug -d 'Enable debug logging'

complete -c factbase -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create the workspace'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -a add -d 'Add a unit'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -a extract -d 'Write fact bundles'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -a import -d 'Import fact bundles'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -a fingerprint -d 'Find shared files'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -a versions -d 'Cluster jar versions'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show progress'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -a reset -d 'Remove imported units'
complete -c factbase -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Shell completion'

complete -c factbase -n "__fish_seen_subcommand_from add" -a "library maven project"
complete -c factbase -n "__fish_seen_subcommand_from add" -F
complete -c factbase -n "__fish_seen_subcommand_from extract import" -l kind -xa "library maven project"
complete -c factbase -n "__fish_seen_subcommand_from extract" -l force
complete -c factbase -n "__fish_seen_subcommand_from extract" -l compression -xa "none gzip zstd"
complete -c factbase -n "__fish_seen_subcommand_from import" -l stage -xa "entities structural all"
complete -c factbase -n "__fish_seen_subcommand_from import" -l batch-size -x
complete -c factbase -n "__fish_seen_subcommand_from import" -l unit-timeout -x
complete -c factbase -n "__fish_seen_subcommand_from import" -l metrics-addr -x
complete -c factbase -n "__fish_seen_subcommand_from status" -l json
complete -c factbase -n "__fish_seen_subcommand_from reset" -l unit -x
complete -c factbase -n "__fish_seen_subcommand_from reset" -l all
complete -c factbase -n "__fish_seen_subcommand_from reset" -l extraction
complete -c factbase -n "__fish_seen_subcommand_from reset" -l yes
complete -c factbase -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`

// completionScripts maps a shell name to its script.
var completionScripts = map[string]string{
	"bash": bashCompletion,
	"zsh":  zshCompletion,
	"fish": fishCompletion,
}

// runCompletion executes the 'completion' CLI command.
//
// Examples:
//
//	source <(factbase completion bash)
//	factbase completion zsh > "${fpath[1]}/_factbase"
//	factbase completion fish | source
func runCompletion(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: factbase completion <bash|zsh|fish>

Prints a shell completion script.

Examples:
  source <(factbase completion bash)
  factbase completion zsh > "${fpath[1]}/_factbase"
  factbase completion fish > ~/.config/fish/completions/factbase.fish
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		clierrors.FatalError(clierrors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'factbase completion bash', 'factbase completion zsh', or 'factbase completion fish'",
		), globals.JSON)
	}
	script, ok := completionScripts[fs.Arg(0)]
	if !ok {
		clierrors.FatalError(clierrors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("Shell '%s' is not supported. Valid options: bash, zsh, fish", fs.Arg(0)),
			"Run 'factbase completion bash', 'factbase completion zsh', or 'factbase completion fish'",
		), globals.JSON)
	}
	fmt.Print(script)
}
