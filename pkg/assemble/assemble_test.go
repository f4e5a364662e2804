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

package assemble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/llm"
)

const pySource = `class Calc:
    def add(self, a, b):
        return a + b

    def sub(self, a, b):
        return a - b


def main():
    print(Calc().add(1, 2))
`

func pyFile(t *testing.T) File {
	t.Helper()
	units, err := extract.DefaultRegistry(nil).Extract([]byte(pySource), extract.LanguagePython)
	require.NoError(t, err)
	require.Len(t, units, 4)

	docs := []string{"A tiny calculator.", "Adds a and b.\n\nReturns the sum.", "", "Entry point."}
	var dus []docgen.DocumentedUnit
	for i, u := range units {
		du := docgen.DocumentedUnit{Unit: u, Status: docgen.UnitOK, Documentation: docs[i], Attempts: 1}
		if docs[i] == "" {
			du.Status = docgen.UnitFailed
			du.FailureKind = llm.KindRateLimited
			du.Reason = "mock: rate_limited"
		}
		dus = append(dus, du)
	}
	return File{Filename: "calc.py", Language: extract.LanguagePython, Content: []byte(pySource), Units: dus}
}

func TestInline_RoundTrip(t *testing.T) {
	f := pyFile(t)

	art, err := Assemble(f, docgen.FormatInline)
	require.NoError(t, err)

	assert.Equal(t, pySource, StripInline(art.Content, art.Insertions))
	assert.Len(t, art.Insertions, 3)

	assert.True(t, strings.HasPrefix(art.Content, "# A tiny calculator.\nclass Calc:\n"))
	assert.Contains(t, art.Content, "    # Adds a and b.\n    #\n    # Returns the sum.\n    def add(self, a, b):")
	assert.Contains(t, art.Content, "# Entry point.\ndef main():")
	assert.NotContains(t, art.Content, "# \n")

	require.Len(t, art.Failed, 1)
	assert.Equal(t, "Calc.sub", art.Failed[0].Name)
	assert.Equal(t, "rate_limited", art.Failed[0].Kind)
	assert.Contains(t, art.Summary(), "Calc.sub")
}

func TestInline_OriginalBytesPreserved(t *testing.T) {
	f := pyFile(t)
	art := Inline(f)

	// Removing every inserted comment line leaves the source untouched.
	var kept []string
	for _, line := range strings.SplitAfter(art.Content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	assert.Equal(t, pySource, strings.Join(kept, ""))
}

func TestInline_JavaScriptBlockComments(t *testing.T) {
	src := "export function run(job) {\n  return job.id;\n}\n"
	units, err := extract.DefaultRegistry(nil).Extract([]byte(src), extract.LanguageJavaScript)
	require.NoError(t, err)
	require.Len(t, units, 1)

	art := Inline(File{
		Filename: "run.js",
		Language: extract.LanguageJavaScript,
		Content:  []byte(src),
		Units: []docgen.DocumentedUnit{{
			Unit:          units[0],
			Status:        docgen.UnitOK,
			Documentation: "Runs a job.\n@param {Job} job - the job */ here",
		}},
	})

	want := "/**\n * Runs a job.\n * @param {Job} job - the job *\\/ here\n */\n" + src
	assert.Equal(t, want, art.Content)
	assert.Equal(t, src, StripInline(art.Content, art.Insertions))
}

func TestInline_GoLineComments(t *testing.T) {
	src := "package main\n\nfunc main() {}\n"
	units, err := extract.DefaultRegistry(nil).Extract([]byte(src), extract.LanguageGo)
	require.NoError(t, err)

	art := Inline(File{
		Language: extract.LanguageGo,
		Content:  []byte(src),
		Units:    []docgen.DocumentedUnit{{Unit: units[0], Status: docgen.UnitOK, Documentation: "main starts the program."}},
	})
	assert.Equal(t, "package main\n\n// main starts the program.\nfunc main() {}\n", art.Content)
}

func TestMarkdown_SourceOrder(t *testing.T) {
	f := pyFile(t)

	art, err := Assemble(f, docgen.FormatMarkdown)
	require.NoError(t, err)

	headings := []string{"## Class: Calc", "## Method: Calc.add", "## Method: Calc.sub", "## Function: main"}
	last := -1
	for _, h := range headings {
		i := strings.Index(art.Content, h)
		require.GreaterOrEqual(t, i, 0, "missing heading %q", h)
		assert.Greater(t, i, last, "heading %q out of order", h)
		last = i
	}
	assert.True(t, strings.HasPrefix(art.Content, "# calc.py\n"))
	assert.Contains(t, art.Content, "```python\ndef add(self, a, b)\n```")
	assert.Contains(t, art.Content, "> Documentation unavailable: rate_limited")
}

func TestHTML_Escapes(t *testing.T) {
	unit := extract.Unit{Kind: extract.KindFunction, Name: "Map<T>", Signature: "function Map<T>(x: T): T"}
	art, err := Assemble(File{
		Filename: "a&b.ts",
		Language: extract.LanguageTypeScript,
		Units: []docgen.DocumentedUnit{
			{Unit: unit, Status: docgen.UnitOK, Documentation: "<p>Maps values.</p>"},
			{Unit: unit, Status: docgen.UnitFailed, Reason: "<script>"},
		},
	}, docgen.FormatHTML)
	require.NoError(t, err)

	assert.Contains(t, art.Content, "<h1>a&amp;b.ts</h1>")
	assert.Contains(t, art.Content, "<h2>Function: Map&lt;T&gt;</h2>")
	assert.Contains(t, art.Content, `<code class="language-typescript">function Map&lt;T&gt;(x: T): T</code>`)
	assert.Contains(t, art.Content, `<div class="doc"><p>Maps values.</p></div>`)
	assert.Contains(t, art.Content, "Documentation unavailable: &lt;script&gt;")
	assert.NotContains(t, art.Content, "<script>")
}

func TestAssemble_RejectsNonTerminalUnits(t *testing.T) {
	_, err := Assemble(File{Units: []docgen.DocumentedUnit{{Unit: extract.Unit{Name: "x"}}}}, docgen.FormatMarkdown)
	assert.Error(t, err)

	_, err = Assemble(File{}, docgen.Format("pdf"))
	assert.Error(t, err)
}
