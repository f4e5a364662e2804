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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codescribe/internal/bootstrap"
	"github.com/kraklabs/codescribe/internal/errors"
	"github.com/kraklabs/codescribe/internal/output"
	"github.com/kraklabs/codescribe/internal/ui"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

// runDocument executes the 'document' command: one file through the
// synchronous path, artifact to stdout or --out.
//
// Exit codes follow the response: ExitSuccess when every unit was
// documented, ExitPartial when some failed, and the classified error code
// when the file was rejected or the provider failed.
func runDocument(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("document", flag.ExitOnError)
	gen := addGenerationFlags(fs)
	out := fs.StringP("out", "o", "", "Write the artifact to this file instead of stdout")
	language := fs.StringP("language", "l", "", "Source language, detected from the file when empty")
	name := fs.String("name", "", "File name used for detection when reading stdin")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codescribe document [options] <file|->

Documents every function, method and class of one source file and prints
the assembled artifact. Use "-" to read the source from stdin.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  codescribe document app.py
  codescribe document --style numpy --verbosity high app.py
  cat util.js | codescribe document --language javascript -
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(errors.ExitInput)
	}
	path := fs.Arg(0)

	content, err := readInput(path)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	filename := path
	if *name != "" || path == "-" {
		filename = *name
		if filename == "" {
			filename = "stdin"
		}
	}

	cfg := loadConfig(globals)
	gen.apply(cfg)
	opts, err := gen.options(cfg)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	app, err := bootstrap.New(cfg, bootstrap.Options{})
	if err != nil {
		errors.FatalError(errors.FromError(err), globals.JSON)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	spinner := progressFor(globals).spinner("Documenting " + filename)
	in := pipeline.FileInput{Filename: filename, Content: content}
	if *language != "" {
		in.Language = extract.ParseLanguage(*language)
	}
	resp := app.Service.Document(ctx, in, opts)
	if spinner != nil {
		_ = spinner.Finish()
	}
	stop()
	closeApp(app)

	if globals.JSON {
		_ = output.JSON(resp)
		os.Exit(documentExitCode(resp))
	}
	if !resp.Success {
		errors.FatalError(documentError(resp), false)
	}
	if err := writeArtifact(*out, resp.Documentation); err != nil {
		errors.FatalError(err, false)
	}

	if *out != "" || !globals.Quiet {
		summarizeResponse(resp, *out)
	}
	os.Exit(documentExitCode(resp))
}

func documentExitCode(resp pipeline.Response) int {
	switch {
	case !resp.Success && resp.Metadata == nil:
		return errors.ExitInput
	case !resp.Success:
		return errors.ExitProvider
	case resp.Metadata != nil && resp.Metadata.FailedUnits > 0:
		return errors.ExitPartial
	}
	return errors.ExitSuccess
}

func documentError(resp pipeline.Response) *errors.UserError {
	if resp.Metadata == nil {
		return errors.NewInputError("File rejected", resp.Message, "Run 'codescribe languages' to list supported languages")
	}
	return errors.NewProviderError("No documentation produced", resp.Message, "Check the provider settings and try again", nil)
}

func writeArtifact(path, content string) error {
	if path == "" {
		_, err := fmt.Fprint(os.Stdout, content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// summarizeResponse prints the run summary to stderr so stdout carries
// only the artifact.
func summarizeResponse(resp pipeline.Response, out string) {
	prev := ui.Out
	ui.Out = os.Stderr
	defer func() { ui.Out = prev }()

	md := resp.Metadata
	if md == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s units documented (%s, %s, %dms)\n",
		ui.Label("Summary:"), ui.Ratio(md.DocumentedUnits, md.Units),
		md.Language, md.Provider, md.ProcessingMS)
	for _, u := range resp.Units {
		if u.Status != string(docgen.UnitOK) {
			ui.Warningf("%s %s: %s", u.Kind, u.Name, u.Reason)
		}
	}
	if out != "" {
		ui.Successf("Wrote %s", out)
	}
}

func closeApp(app *bootstrap.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.Close(ctx)
}
