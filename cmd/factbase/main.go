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

// Package main implements the factbase CLI: it extracts Java projects and
// jars into fact bundles and imports them into a relational fact store.
//
// Usage:
//
//	factbase init                              Create .factbase/config.yaml
//	factbase add library <jar>                 Add a library jar
//	factbase add project <batch> <name> <dir>  Add a project checkout
//	factbase extract                           Write fact bundles
//	factbase import                            Run both import stages
//	factbase status [--json]                   Show stage counts
package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/factbase/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the flags accepted before the command name.
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	Quiet      bool
	NoColor    bool
	Debug      bool
}

type command struct {
	summary string
	run     func(args []string, globals GlobalFlags)
}

var commands = map[string]command{
	"init":        {"Create .factbase/config.yaml and the workspace", runInit},
	"add":         {"Add a library, maven artifact or project to the repository", runAdd},
	"extract":     {"Write fact bundles for repository units", runExtract},
	"import":      {"Import fact bundles into the store", runImport},
	"fingerprint": {"Find byte-identical files across projects", runFingerprint},
	"versions":    {"Cluster jar class files into versions", runVersions},
	"status":      {"Show units per stage and rows per table", runStatus},
	"reset":       {"Remove imported units so they are imported again", runReset},
	"completion":  {"Generate shell completion script (bash|zsh|fish)", runCompletion},
}

// commandOrder is the order commands are listed in usage.
var commandOrder = []string{"init", "add", "extract", "import", "fingerprint", "versions", "status", "reset", "completion"}

func main() {
	var globals GlobalFlags
	fs := flag.NewFlagSet("factbase", flag.ContinueOnError)
	fs.SetInterspersed(false)
	showVersion := fs.Bool("version", false, "Show version and exit")
	fs.StringVar(&globals.ConfigPath, "config", "", "Path to .factbase/config.yaml (default: search from the current directory)")
	fs.BoolVar(&globals.JSON, "json", false, "Write results as JSON")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress and informational output")
	fs.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&globals.Debug, "debug", false, "Enable debug logging")
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if *showVersion {
		fmt.Printf("factbase version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if globals.JSON {
		globals.Quiet = true
	}
	ui.InitColors(globals.NoColor || os.Getenv("NO_COLOR") != "")
	slog.SetDefault(newLogger(globals))

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		fs.Usage()
		os.Exit(1)
	}
	cmd.run(args[1:], globals)
}

// newLogger builds the text logger. Logs go to stderr in JSON mode so
// stdout carries only the result document.
func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case globals.Debug:
		level = slog.LevelDebug
	case globals.Quiet:
		level = slog.LevelWarn
	}
	out := os.Stdout
	if globals.JSON {
		out = os.Stderr
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `factbase - Java fact extraction and staged import

Usage:
  factbase [global options] <command> [options]

Commands:
`)
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, `
Global Options:
%s
Getting Started:
  1. Create a workspace:          factbase init
  2. Add jars and projects:       factbase add library guava-33.0.jar
                                  factbase add project nightly app ./app
  3. Extract fact bundles:        factbase extract
  4. Import into the store:       factbase import
  5. Check progress:              factbase status

For detailed command help: factbase <command> --help
`, fs.FlagUsages())
}
