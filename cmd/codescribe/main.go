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

// Package main implements the CodeScribe CLI for documenting source files
// with an LLM provider, either locally or as an HTTP service.
//
// Usage:
//
//	codescribe serve                    Start the HTTP API
//	codescribe document <file>          Document one file and print the artifact
//	codescribe batch <files...>         Run a batch job with a progress bar
//	codescribe languages [--json]       List supported languages and styles
//	codescribe config init|show         Write or print the configuration
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codescribe/internal/config"
	"github.com/kraklabs/codescribe/internal/errors"
	"github.com/kraklabs/codescribe/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are the options accepted before the command name.
type GlobalFlags struct {
	ConfigPath string
	EnvFile    string
	JSON       bool
	Quiet      bool
	NoColor    bool
	Verbose    int
	LogLevel   string
}

func main() {
	fs := flag.NewFlagSet("codescribe", flag.ExitOnError)
	fs.SetInterspersed(false)

	var globals GlobalFlags
	showVersion := fs.Bool("version", false, "Show version and exit")
	fs.StringVarP(&globals.ConfigPath, "config", "c", "", "Path to codescribe.yaml (default: ./codescribe.yaml)")
	fs.StringVar(&globals.EnvFile, "env-file", ".env", "Environment file loaded before the configuration")
	fs.BoolVar(&globals.JSON, "json", false, "Machine-readable output")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	fs.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	fs.CountVarP(&globals.Verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	fs.StringVar(&globals.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides -v")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `CodeScribe - AI-Powered Code Documentation

CodeScribe extracts the functions, methods and classes of Python,
JavaScript, TypeScript and Go files and asks an LLM provider to write
their documentation, assembled as Markdown, HTML or inline comments.

Usage:
  codescribe [global options] <command> [options]

Commands:
  serve         Start the HTTP API
  document      Document one file synchronously
  batch         Document many files as a tracked job
  languages     List supported languages and documentation styles
  config        Write a default configuration or print the effective one

Global Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  codescribe document app.py --style numpy
  codescribe document server.go --format inline --out server.go.doc
  codescribe batch src/*.py --out-dir docs/
  codescribe --config prod.yaml serve

Environment Variables:
  CODESCRIBE_PROVIDER   Provider type (openai, deepseek, anthropic, ollama, huggingface, mock)
  OPENAI_API_KEY        OpenAI credentials
  DEEPSEEK_API_KEY      DeepSeek credentials
  OLLAMA_HOST           Ollama URL (default: http://localhost:11434)

For detailed command help: codescribe <command> --help

`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(errors.ExitInput)
	}
	if *showVersion {
		fmt.Printf("codescribe version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(errors.ExitSuccess)
	}
	if globals.JSON {
		globals.Quiet = true
	}
	ui.InitColors(globals.NoColor || globals.JSON)
	logger, err := newLogger(os.Stderr, globals.LogLevel, globals.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errors.ExitInput)
	}
	slog.SetDefault(logger)

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(errors.ExitInput)
	}

	command, cmdArgs := args[0], args[1:]
	switch command {
	case "serve":
		runServe(cmdArgs, globals)
	case "document":
		runDocument(cmdArgs, globals)
	case "batch":
		runBatch(cmdArgs, globals)
	case "languages":
		runLanguages(cmdArgs, globals)
	case "config":
		runConfig(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fs.Usage()
		os.Exit(errors.ExitInput)
	}
}

// newLogger returns a text logger on w. Warnings only by default so that
// command output stays readable.
func newLogger(w io.Writer, name string, verbose int) (*slog.Logger, error) {
	level := slog.LevelWarn
	switch {
	case name != "":
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return nil, fmt.Errorf("invalid --log-level %q", name)
		}
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// loadConfig loads the configuration or exits with a config error.
func loadConfig(globals GlobalFlags) *config.Config {
	cfg, err := config.Load(globals.ConfigPath, globals.EnvFile)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Check codescribe.yaml and CODESCRIBE_* variables, or run 'codescribe config init'",
			err,
		), globals.JSON)
	}
	return cfg
}

// splitList parses a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
