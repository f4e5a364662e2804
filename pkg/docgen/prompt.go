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
	"fmt"
	"strings"

	"github.com/kraklabs/codescribe/pkg/extract"
)

const systemPrompt = `You are a technical writer specializing in source code documentation.
You document exactly the code you are given. You never invent parameters,
return values or behavior that the code does not show.`

var styleGuides = map[Style]string{
	StyleGoogle: `Google style docstring:

Brief description of the function.

Args:
    param1 (type): Description of param1.

Returns:
    type: Description of return value.

Raises:
    ExceptionType: When this exception is raised.

Example:
    >>> function_name(value)`,

	StyleNumPy: `NumPy style docstring:

Brief description of the function.

Parameters
----------
param1 : type
    Description of param1.

Returns
-------
type
    Description of return value.

Raises
------
ExceptionType
    When this exception is raised.

Examples
--------
>>> function_name(value)`,

	StyleSphinx: `Sphinx (reStructuredText) docstring:

Brief description of the function.

:param param1: Description of param1.
:type param1: type
:returns: Description of return value.
:rtype: type
:raises ExceptionType: When this exception is raised.`,

	StyleJSDoc: `JSDoc style:

Brief description of the function.

@param {type} param1 - Description of param1.
@returns {type} Description of return value.
@throws {ExceptionType} When this exception is thrown.
@example
const result = functionName(param1);`,

	StyleGoDoc: `Go doc comment conventions:

The first sentence starts with the identifier name and says what it does.
Further paragraphs explain behavior, parameters in prose, returned values
and errors. Code examples are indented by a tab.`,
}

var verbosityGuides = map[Verbosity]string{
	VerbosityLow:    "Write a single concise sentence. Add sections only when they are essential.",
	VerbosityMedium: "Write a short summary followed by the enabled sections.",
	VerbosityHigh:   "Write a detailed description covering behavior and edge cases, followed by every enabled section.",
}

// Prompt is the provider-agnostic request for one unit.
type Prompt struct {
	System string
	User   string

	// Truncated is set when the unit source was cut to the token budget.
	Truncated bool
}

// PromptBuilder renders prompts under a token budget for the unit source.
type PromptBuilder struct {
	counter      TokenCounter
	sourceBudget int
}

// NewPromptBuilder creates a builder. sourceBudget <= 0 disables truncation.
func NewPromptBuilder(counter TokenCounter, sourceBudget int) *PromptBuilder {
	if counter == nil {
		counter = EstimateCounter{}
	}
	return &PromptBuilder{counter: counter, sourceBudget: sourceBudget}
}

// Build renders the prompt for unit.
func (b *PromptBuilder) Build(unit extract.Unit, lang extract.Language, opts Options) Prompt {
	source := unit.Text
	truncated := false
	if b.sourceBudget > 0 {
		source, truncated = TruncateTokens(b.counter, source, b.sourceBudget)
	}

	style := opts.StyleFor(lang)
	verbosity := opts.Verbosity
	if verbosity == "" {
		verbosity = VerbosityMedium
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Document this %s %s", lang, unit.Kind)
	if unit.Name != "" && unit.Name != extract.ModuleName {
		fmt.Fprintf(&sb, " named %q", unit.QualifiedName())
	}
	sb.WriteString(".\n\n")

	if unit.Signature != "" {
		fmt.Fprintf(&sb, "Signature: %s\n", unit.Signature)
	}
	fmt.Fprintf(&sb, "Lines: %d-%d\n\n", unit.StartLine, unit.EndLine)

	fmt.Fprintf(&sb, "Code:\n```%s\n%s\n```\n", lang, source)
	if truncated {
		sb.WriteString("(The code above was shortened; document what is shown.)\n")
	}
	sb.WriteString("\n")

	if guide, ok := styleGuides[style]; ok {
		fmt.Fprintf(&sb, "Follow the %s style.\n%s\n\n", style, guide)
	}

	sb.WriteString("Requirements:\n")
	fmt.Fprintf(&sb, "- Verbosity: %s. %s\n", verbosity, verbosityGuides[verbosity])
	fmt.Fprintf(&sb, "- Include parameters: %s\n", yesNo(opts.IncludeParams))
	fmt.Fprintf(&sb, "- Include return values: %s\n", yesNo(opts.IncludeReturns))
	fmt.Fprintf(&sb, "- Include exceptions/errors: %s\n", yesNo(opts.IncludeExceptions))
	fmt.Fprintf(&sb, "- Include examples: %s\n", yesNo(opts.IncludeExamples))
	if opts.DocLanguage != "" {
		fmt.Fprintf(&sb, "- Write the prose in %s (%s).\n", LanguageName(opts.DocLanguage), opts.DocLanguage)
	}
	sb.WriteString("\n")
	sb.WriteString(formatInstruction(opts.Format))

	return Prompt{System: systemPrompt, User: sb.String(), Truncated: truncated}
}

func formatInstruction(f Format) string {
	switch f {
	case FormatInline:
		return "Output only the documentation text. Do not include comment delimiters, quotes or the code itself."
	case FormatHTML:
		return "Output an HTML fragment using only <p>, <ul>, <li>, <code>, <pre> and <strong>. Do not repeat the signature."
	default:
		return "Output GitHub-flavored Markdown without a top-level heading. Do not repeat the signature."
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
