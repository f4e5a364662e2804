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
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codescribe/internal/config"
	"github.com/kraklabs/codescribe/internal/errors"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/jobs"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	tests := []struct {
		name    string
		level   string
		verbose int
		enabled slog.Level
		off     slog.Level
	}{
		{"default", "", 0, slog.LevelWarn, slog.LevelInfo},
		{"-v", "", 1, slog.LevelInfo, slog.LevelDebug},
		{"-vv", "", 2, slog.LevelDebug, slog.LevelDebug - 4},
		{"flag wins", "error", 2, slog.LevelError, slog.LevelWarn},
		{"case insensitive", "DEBUG", 0, slog.LevelDebug, slog.LevelDebug - 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(&buf, tt.level, tt.verbose)
			require.NoError(t, err)
			assert.True(t, logger.Enabled(ctx, tt.enabled))
			assert.False(t, logger.Enabled(ctx, tt.off))
		})
	}

	_, err := newLogger(&buf, "loud", 0)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"examples", "returns"}, splitList(" examples, ,returns "))
	assert.Empty(t, splitList(""))
}

func TestGenerationFlags_Options(t *testing.T) {
	cfg := config.Default()
	cfg.Style = "numpy"

	g := &generationFlags{verbosity: "high", format: "md", without: "examples,errors"}
	opts, err := g.options(cfg)
	require.NoError(t, err)
	assert.Equal(t, docgen.StyleNumPy, opts.Style)
	assert.Equal(t, docgen.VerbosityHigh, opts.Verbosity)
	assert.Equal(t, docgen.FormatMarkdown, opts.Format)
	assert.False(t, opts.IncludeExamples)
	assert.False(t, opts.IncludeExceptions)
	assert.True(t, opts.IncludeParams)

	_, err = (&generationFlags{without: "footnotes"}).options(cfg)
	assert.ErrorIs(t, err, docgen.ErrInvalidOptions)

	_, err = (&generationFlags{verbosity: "extreme"}).options(cfg)
	assert.ErrorIs(t, err, docgen.ErrInvalidOptions)
}

func TestGenerationFlags_Apply(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "openai"

	(&generationFlags{provider: "mock", model: "m1"}).apply(cfg)
	assert.Equal(t, "mock", cfg.Provider)
	assert.Equal(t, "m1", cfg.Model)
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		filename string
		format   docgen.Format
		want     string
	}{
		{"src/app.py", docgen.FormatMarkdown, filepath.Join("src", "app.py.md")},
		{"lib/util.js", docgen.FormatHTML, filepath.Join("lib", "util.js.html")},
		{"main.go", docgen.FormatInline, "main.go"},
		{"/abs/x.ts", docgen.FormatMarkdown, filepath.Join("abs", "x.ts.md")},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, artifactName(tt.filename, tt.format))
		})
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("def a():\n    pass\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "hook.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "b.go"), []byte("package pkg\n"), 0o644))

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f.Filename))
	}
	assert.ElementsMatch(t, []string{"a.py", "b.go"}, names)

	// Explicit files are taken as given, even unsupported ones.
	files, err = collectFiles([]string{filepath.Join(dir, "notes.txt")})
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = collectFiles([]string{filepath.Join(dir, "missing.py")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBatchExitCode(t *testing.T) {
	ok := pipeline.FileResult{Status: pipeline.FileDone, Metadata: pipeline.Metadata{Units: 2, DocumentedUnits: 2}}
	partial := pipeline.FileResult{Status: pipeline.FileDone, Metadata: pipeline.Metadata{Units: 2, DocumentedUnits: 1, FailedUnits: 1}}

	tests := []struct {
		name string
		res  jobs.Result
		want int
	}{
		{"all documented", jobs.Result{Status: jobs.StatusCompleted, Files: []pipeline.FileResult{ok}}, errors.ExitSuccess},
		{"failed unit", jobs.Result{Status: jobs.StatusCompleted, Files: []pipeline.FileResult{ok, partial}}, errors.ExitPartial},
		{"failed file", jobs.Result{Status: jobs.StatusCompleted, Files: []pipeline.FileResult{{Status: pipeline.FileFailed}}}, errors.ExitPartial},
		{"auth failure", jobs.Result{Status: jobs.StatusFailed, Reason: jobs.ReasonAuthFailure}, errors.ExitProvider},
		{"no valid files", jobs.Result{Status: jobs.StatusFailed, Reason: jobs.ReasonNoValidFiles}, errors.ExitInput},
		{"cancelled", jobs.Result{Status: jobs.StatusFailed, Reason: jobs.ReasonCancelled}, errors.ExitPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, batchExitCode(&tt.res))
		})
	}
}

func TestDocumentExitCode(t *testing.T) {
	md := &pipeline.Metadata{Units: 2, DocumentedUnits: 2}
	assert.Equal(t, errors.ExitSuccess, documentExitCode(pipeline.Response{Success: true, Metadata: md}))
	assert.Equal(t, errors.ExitPartial, documentExitCode(pipeline.Response{Success: true,
		Metadata: &pipeline.Metadata{Units: 2, DocumentedUnits: 1, FailedUnits: 1}}))
	assert.Equal(t, errors.ExitInput, documentExitCode(pipeline.Response{Message: "unsupported language"}))
	assert.Equal(t, errors.ExitProvider, documentExitCode(pipeline.Response{Metadata: md}))
}

func TestWriteExport(t *testing.T) {
	res := &jobs.Result{
		ID:     "job-1",
		Status: jobs.StatusCompleted,
		Files:  []pipeline.FileResult{{Filename: "a.py", Status: pipeline.FileDone}},
	}
	path := filepath.Join(t.TempDir(), "docs.html")
	require.NoError(t, writeExport(path, res))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<html")
	assert.Contains(t, string(data), "a.py")
}

func TestRedactKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Providers = map[string]config.ProviderSettings{"openai": {APIKey: "sk-secret", Model: "m"}}
	redactKeys(cfg)
	assert.Equal(t, "********", cfg.Providers["openai"].APIKey)
	assert.Equal(t, "m", cfg.Providers["openai"].Model)
}
