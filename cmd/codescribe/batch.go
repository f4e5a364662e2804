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
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codescribe/internal/bootstrap"
	"github.com/kraklabs/codescribe/internal/errors"
	"github.com/kraklabs/codescribe/internal/output"
	"github.com/kraklabs/codescribe/internal/ui"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/export"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/jobs"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

const pollInterval = 100 * time.Millisecond

// runBatch executes the 'batch' command: every file becomes part of one
// job, tracked with a progress bar until it reaches a terminal state.
//
// Flags:
//   - --out-dir: write one artifact per documented file
//   - --export: write a combined Markdown or HTML document
//   - --fail-fast: fail the job on the first failed file
//   - --concurrency: files processed at once
func runBatch(args []string, globals GlobalFlags) {
	fset := flag.NewFlagSet("batch", flag.ExitOnError)
	gen := addGenerationFlags(fset)
	outDir := fset.String("out-dir", "", "Directory for per-file artifacts")
	exportPath := fset.String("export", "", "Write a combined document (.md or .html)")
	failFast := fset.Bool("fail-fast", false, "Fail the whole job on the first failed file")
	concurrency := fset.Int("concurrency", 0, "Files processed at once (default: max_concurrent_files)")

	fset.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codescribe batch [options] <file|dir>...

Documents many files as one job. Directories are walked for files with a
supported extension. Progress is shown on stderr while the job runs.

Options:
`)
		fset.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  codescribe batch src/
  codescribe batch --out-dir docs/ a.py b.py c.ts
  codescribe batch --export docs.html --format html lib/
`)
	}
	if err := fset.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}
	if fset.NArg() == 0 {
		fset.Usage()
		os.Exit(errors.ExitInput)
	}

	cfg := loadConfig(globals)
	gen.apply(cfg)
	cfg.ExportPath = ""
	cfg.ReapSchedule = ""
	if *failFast {
		cfg.FailFast = true
	}
	if *concurrency > 0 {
		cfg.MaxConcurrentFiles = *concurrency
	}
	opts, err := gen.options(cfg)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	files, err := collectFiles(fset.Args())
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	app, err := bootstrap.New(cfg, bootstrap.Options{})
	if err != nil {
		errors.FatalError(errors.FromError(err), globals.JSON)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	id, err := app.Jobs.Submit(ctx, files, opts)
	if err != nil {
		stop()
		closeApp(app)
		errors.FatalError(err, globals.JSON)
	}

	waitJob(ctx, app.Jobs, id, progressFor(globals))
	stop()
	res, err := app.Jobs.Result(id)
	closeApp(app)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if *outDir != "" {
		if err := writeArtifacts(*outDir, res); err != nil {
			errors.FatalError(err, globals.JSON)
		}
	}
	if *exportPath != "" {
		if err := writeExport(*exportPath, res); err != nil {
			errors.FatalError(err, globals.JSON)
		}
	}

	if globals.JSON {
		_ = output.JSON(res)
	} else {
		printBatchSummary(res, *outDir, *exportPath)
	}
	os.Exit(batchExitCode(res))
}

// collectFiles reads every path, walking directories for supported files.
func collectFiles(paths []string) ([]pipeline.FileInput, error) {
	supported := map[string]bool{}
	for _, lang := range extract.DefaultRegistry(nil).Languages() {
		for _, ext := range extract.Extensions(lang) {
			supported[ext] = true
		}
	}

	var files []pipeline.FileInput
	add := func(path string) error {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, pipeline.FileInput{Filename: filepath.ToSlash(path), Content: content})
		return nil
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !supported[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			return add(path)
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// waitJob polls the job until it is terminal. An interrupt cancels it once;
// the job then fails with reason Cancelled after in-flight calls drain.
func waitJob(ctx context.Context, m *jobs.Manager, id string, progress progressSettings) {
	tracker := newJobTracker(progress)
	defer tracker.finish()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	done := ctx.Done()
	for {
		snap, err := m.Status(id)
		if err != nil {
			return
		}
		tracker.update(snap)
		if snap.Status.Terminal() {
			return
		}

		select {
		case <-done:
			done = nil
			_ = m.Cancel(id)
		case <-ticker.C:
		}
	}
}

func writeArtifacts(dir string, res *jobs.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range res.Files {
		if f.Artifact == nil || f.Artifact.Content == "" {
			continue
		}
		path := filepath.Join(dir, artifactName(f.Filename, f.Artifact.Format))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(f.Artifact.Content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// artifactName maps a source file to its artifact path. Inline artifacts
// keep the source name; the others get the format's extension appended.
func artifactName(filename string, format docgen.Format) string {
	name := strings.TrimLeft(filepath.Clean(filepath.FromSlash(filename)), string(filepath.Separator)+".")
	switch format {
	case docgen.FormatHTML:
		return name + ".html"
	case docgen.FormatInline:
		return name
	}
	return name + ".md"
}

func writeExport(path string, res *jobs.Result) error {
	format := docgen.FormatMarkdown
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".html" || ext == ".htm" {
		format = docgen.FormatHTML
	}
	rec, err := export.NewRecord(res, format)
	if err != nil {
		return err
	}
	body, _, err := export.Render(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}

func printBatchSummary(res *jobs.Result, outDir, exportPath string) {
	ui.Header("Batch " + res.ID)
	for _, f := range res.Files {
		line := fmt.Sprintf("  %-40s %s", f.Filename, ui.StatusText(string(f.Status)))
		if f.Metadata.Units > 0 {
			line += "  " + ui.Ratio(f.Metadata.DocumentedUnits, f.Metadata.Units) + " units"
		}
		fmt.Fprintln(ui.Out, line)
		if f.Error != "" {
			fmt.Fprintln(ui.Out, "    "+ui.DimText(f.Error))
		}
	}
	fmt.Fprintln(ui.Out)

	switch {
	case res.Status == jobs.StatusFailed:
		ui.Errorf("Job failed: %s", res.Reason)
	case batchExitCode(res) == errors.ExitPartial:
		ui.Warningf("Job completed with failures")
	default:
		ui.Successf("Job completed: %s files documented", ui.CountText(len(res.Files)))
	}
	if outDir != "" {
		ui.Infof("Artifacts written to %s", outDir)
	}
	if exportPath != "" {
		ui.Infof("Export written to %s", exportPath)
	}
}

func batchExitCode(res *jobs.Result) int {
	if res.Status == jobs.StatusFailed {
		switch res.Reason {
		case jobs.ReasonAuthFailure:
			return errors.ExitProvider
		case jobs.ReasonNoValidFiles:
			return errors.ExitInput
		}
		return errors.ExitPartial
	}
	for _, f := range res.Files {
		if f.Status == pipeline.FileFailed || f.Metadata.FailedUnits > 0 {
			return errors.ExitPartial
		}
	}
	return errors.ExitSuccess
}
