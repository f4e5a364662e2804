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

package docgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostProcess(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		format Format
		want   string
	}{
		{"plain", "  Adds numbers.  ", FormatMarkdown, "Adds numbers."},
		{"fenced", "```markdown\nAdds numbers.\n```", FormatMarkdown, "Adds numbers."},
		{"open fence closed", "Example:\n\n```python\nadd(1, 2)", FormatMarkdown, "Example:\n\n```python\nadd(1, 2)\n```"},
		{"inline docstring quotes", "\"\"\"\nAdds numbers.\n\nArgs:\n    a: first\n\"\"\"", FormatInline, "Adds numbers.\n\nArgs:\n    a: first"},
		{"inline jsdoc markers", "/**\n * Adds numbers.\n * @param {number} a\n */", FormatInline, "Adds numbers.\n@param {number} a"},
		{"inline hash comments", "# Adds numbers.\n# Returns the sum.", FormatInline, "Adds numbers.\nReturns the sum."},
		{"html balanced", "<p>Adds <strong>numbers", FormatHTML, "<p>Adds <strong>numbers</strong></p>"},
		{"crlf", "Line one.\r\nLine two.", FormatMarkdown, "Line one.\nLine two."},
		{"fence pair not wrapping", "```python\nadd(1, 2)\n```\n\nAdds numbers.\n\n```python\nadd(3, 4)\n```", FormatMarkdown, "```python\nadd(1, 2)\n```\n\nAdds numbers.\n\n```python\nadd(3, 4)\n```"},
		{"example then prose", "```python\nadd(1, 2)\n```\n\nAdds numbers.", FormatMarkdown, "```python\nadd(1, 2)\n```\n\nAdds numbers."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PostProcess(tt.raw, tt.format, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostProcess_SanitizesHTML(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"script and handler", "<p>Adds numbers.</p><script>alert(document.cookie)</script><img src=x onerror=alert(1)>", `<p>Adds numbers.</p><img src="x"/>`},
		{"nested script", "<p>Sum<script>steal()</script> of a and b.</p>", "<p>Sum of a and b.</p>"},
		{"script url", `<a href=" JaVa&#x09;Script:alert(1)" title="t">docs</a> <a href="https://example.com">ok</a>`, `<a title="t">docs</a> <a href="https://example.com">ok</a>`},
		{"embedded content", `<style>p{}</style><iframe src="https://x"></iframe><object data="y"></object><p style="color:red" onclick="x()">Hi</p>`, "<p>Hi</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PostProcess(tt.raw, FormatHTML, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, strings.ToLower(got), "script")
		})
	}

	_, err := PostProcess("<script>alert(1)</script>", FormatHTML, "")
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestPostProcess_Empty(t *testing.T) {
	for _, raw := range []string{"", "   \n ", "```\n```", "\"\"\"\n\"\"\""} {
		_, err := PostProcess(raw, FormatInline, "")
		assert.ErrorIs(t, err, ErrEmptyOutput, "raw=%q", raw)
	}
}

func TestPostProcess_LanguageCheck(t *testing.T) {
	english := "This function adds two numbers together and returns the resulting sum to the caller, " +
		"raising an error when either of the arguments is not a number. " +
		"It is safe to call from several goroutines because it does not keep any state between calls."

	_, err := PostProcess(english, FormatMarkdown, "en")
	assert.NoError(t, err)

	_, err = PostProcess(english, FormatMarkdown, "fr")
	assert.ErrorIs(t, err, ErrWrongLanguage)

	// Short answers are not checked.
	_, err = PostProcess("Adds numbers.", FormatMarkdown, "fr")
	assert.NoError(t, err)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.ErrorIs(t, Options{Style: "pep8"}.Validate(), ErrInvalidOptions)
	assert.ErrorIs(t, Options{Verbosity: "max"}.Validate(), ErrInvalidOptions)
	assert.ErrorIs(t, Options{Format: "pdf"}.Validate(), ErrInvalidOptions)
	assert.ErrorIs(t, Options{DocLanguage: "english"}.Validate(), ErrInvalidOptions)
	assert.NoError(t, Options{DocLanguage: "de"}.Validate())
}

func TestOptionsMerge_ModelFollowsProvider(t *testing.T) {
	base := DefaultOptions()
	base.Provider = "openai"
	base.Model = "gpt-4o-mini"

	same := Options{Provider: "openai"}.Merge(base)
	assert.Equal(t, "gpt-4o-mini", same.Model)

	empty := Options{}.Merge(base)
	assert.Equal(t, "openai", empty.Provider)
	assert.Equal(t, "gpt-4o-mini", empty.Model)

	other := Options{Provider: "claude"}.Merge(base)
	assert.Equal(t, "claude", other.Provider)
	assert.Empty(t, other.Model, "the base model belongs to another provider")

	explicit := Options{Provider: "anthropic", Model: "claude-3-haiku"}.Merge(base)
	assert.Equal(t, "claude-3-haiku", explicit.Model)
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "German", LanguageName("de"))
	assert.Equal(t, "French", LanguageName("fr"))
	assert.Equal(t, "??", LanguageName("??"))
}

func TestComputeBackoffWithJitter(t *testing.T) {
	for attempt := 0; attempt < 6; attempt++ {
		d := computeBackoffWithJitter(100, attempt, 2, 1000)
		assert.GreaterOrEqual(t, int64(d), int64(0))
		assert.LessOrEqual(t, int64(d), int64(1000))
	}
}
