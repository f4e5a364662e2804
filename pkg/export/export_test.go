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

package export

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/jobs"
	"github.com/kraklabs/codescribe/pkg/llm"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

func testResult() *jobs.Result {
	return &jobs.Result{
		ID:      "job-1",
		Status:  jobs.StatusCompleted,
		Options: docgen.DefaultOptions(),
		Files: []pipeline.FileResult{
			{
				Filename: "calc.py",
				Language: extract.LanguagePython,
				Status:   pipeline.FileDone,
				Error:    "1 unit not documented: sub (rate_limited)",
				Units: []docgen.DocumentedUnit{
					{
						Unit:          extract.Unit{Index: 0, Kind: extract.KindFunction, Name: "add", Signature: "def add(a, b)", StartLine: 1, EndLine: 2},
						Documentation: "Adds <a> and b.",
						Status:        docgen.UnitOK,
					},
					{
						Unit:        extract.Unit{Index: 1, Kind: extract.KindFunction, Name: "sub", Signature: "def sub(a, b)", StartLine: 5, EndLine: 6},
						Status:      docgen.UnitFailed,
						FailureKind: llm.KindRateLimited,
					},
				},
				Metadata: pipeline.Metadata{Language: extract.LanguagePython, Units: 2, DocumentedUnits: 1, FailedUnits: 1, Provider: "mock"},
			},
			{
				Filename: "lib.rs",
				Status:   pipeline.FileFailed,
				Error:    "unsupported language: rust",
			},
		},
		CreatedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "exports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord(testResult(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, docgen.FormatMarkdown, rec.Format)
	require.Len(t, rec.Files, 2)
	require.Len(t, rec.Files[0].Units, 2)
	assert.Equal(t, "rate_limited", rec.Files[0].Units[1].Reason)

	_, err = NewRecord(testResult(), docgen.FormatInline)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestStore_SaveGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := NewRecord(testResult(), docgen.FormatHTML)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.JobID, got.JobID)
	assert.Equal(t, docgen.FormatHTML, got.Format)
	assert.Equal(t, rec.Options, got.Options)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Files, 2)
	assert.Equal(t, rec.Files[0].Units, got.Files[0].Units)
	assert.Equal(t, "mock", got.Files[0].Metadata.Provider)
	assert.Equal(t, "lib.rs", got.Files[1].Filename)

	ids, err := s.ListByJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ID}, ids)

	require.NoError(t, s.Delete(ctx, rec.ID))
	_, err = s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, rec.ID), ErrNotFound)
}

func TestStore_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	rec, err := NewRecord(testResult(), docgen.FormatMarkdown)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, rec.ID)
	assert.NoError(t, err)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	rec, err := NewRecord(testResult(), docgen.FormatMarkdown)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), rec))

	_, err = Open("  ")
	assert.Error(t, err)
}

func TestRender_Markdown(t *testing.T) {
	rec, err := NewRecord(testResult(), docgen.FormatMarkdown)
	require.NoError(t, err)

	body, ctype, err := Render(rec)
	require.NoError(t, err)
	assert.Equal(t, "text/markdown; charset=utf-8", ctype)

	doc := string(body)
	assert.True(t, strings.HasPrefix(doc, "# CodeScribe Documentation\n"))
	assert.Contains(t, doc, "## File: `calc.py`")
	assert.Contains(t, doc, "### Function: `add`")
	assert.Contains(t, doc, "```python\ndef add(a, b)\n```")
	assert.Contains(t, doc, "Adds <a> and b.")
	assert.Contains(t, doc, "> Documentation unavailable: rate_limited")
	assert.Contains(t, doc, "## File: `lib.rs`")
	assert.Less(t, strings.Index(doc, "calc.py"), strings.Index(doc, "lib.rs"))
	assert.Equal(t, "codescribe-job-1.md", Filename(rec))
}

func TestRender_HTML(t *testing.T) {
	rec, err := NewRecord(testResult(), docgen.FormatHTML)
	require.NoError(t, err)

	body, ctype, err := Render(rec)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", ctype)

	doc := string(body)
	assert.Contains(t, doc, "<title>CodeScribe Documentation</title>")
	assert.Contains(t, doc, "<h3>Function: <code>add</code></h3>")
	assert.Contains(t, doc, "Adds &lt;a&gt; and b.")
	assert.NotContains(t, doc, "<a>")
	assert.Equal(t, "codescribe-job-1.html", Filename(rec))
}
