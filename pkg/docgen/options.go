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
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/llm"
)

// Style is a documentation convention.
type Style string

const (
	StyleGoogle Style = "google"
	StyleNumPy  Style = "numpy"
	StyleSphinx Style = "sphinx"
	StyleJSDoc  Style = "jsdoc"
	StyleGoDoc  Style = "godoc"
)

// Verbosity controls how much prose is generated per unit.
type Verbosity string

const (
	VerbosityLow    Verbosity = "low"
	VerbosityMedium Verbosity = "medium"
	VerbosityHigh   Verbosity = "high"
)

// Format is the artifact format produced for a file.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatInline   Format = "inline"
)

// ErrInvalidOptions is wrapped by Options.Validate failures.
var ErrInvalidOptions = errors.New("invalid generation options")

// Options are the generation settings shared by every unit of a job.
type Options struct {
	Provider          string    `json:"provider,omitempty" yaml:"provider"`
	Model             string    `json:"model,omitempty" yaml:"model"`
	Style             Style     `json:"style,omitempty" yaml:"style"`
	Verbosity         Verbosity `json:"verbosity,omitempty" yaml:"verbosity"`
	Format            Format    `json:"output_format,omitempty" yaml:"output_format"`
	IncludeExamples   bool      `json:"include_examples" yaml:"include_examples"`
	IncludeParams     bool      `json:"include_params" yaml:"include_params"`
	IncludeReturns    bool      `json:"include_returns" yaml:"include_returns"`
	IncludeExceptions bool      `json:"include_exceptions" yaml:"include_exceptions"`

	// DocLanguage is the ISO 639-1 code of the prose language, empty for any.
	DocLanguage string `json:"doc_language,omitempty" yaml:"doc_language"`
}

// DefaultOptions returns the settings used when a request leaves them out.
func DefaultOptions() Options {
	return Options{
		Verbosity:         VerbosityMedium,
		Format:            FormatMarkdown,
		IncludeExamples:   true,
		IncludeParams:     true,
		IncludeReturns:    true,
		IncludeExceptions: true,
	}
}

// Validate checks enum fields. Empty values are allowed and resolved later.
func (o Options) Validate() error {
	switch o.Style {
	case "", StyleGoogle, StyleNumPy, StyleSphinx, StyleJSDoc, StyleGoDoc:
	default:
		return fmt.Errorf("%w: style %q", ErrInvalidOptions, o.Style)
	}
	switch o.Verbosity {
	case "", VerbosityLow, VerbosityMedium, VerbosityHigh:
	default:
		return fmt.Errorf("%w: verbosity %q", ErrInvalidOptions, o.Verbosity)
	}
	switch o.Format {
	case "", FormatMarkdown, FormatHTML, FormatInline:
	default:
		return fmt.Errorf("%w: output_format %q", ErrInvalidOptions, o.Format)
	}
	if o.DocLanguage != "" {
		if len(o.DocLanguage) != 2 {
			return fmt.Errorf("%w: doc_language %q is not an ISO 639-1 code", ErrInvalidOptions, o.DocLanguage)
		}
		if _, err := language.ParseBase(o.DocLanguage); err != nil {
			return fmt.Errorf("%w: doc_language %q: %v", ErrInvalidOptions, o.DocLanguage, err)
		}
	}
	return nil
}

// Merge fills empty fields of o from base. The base model belongs to the
// base provider and is not inherited when o names another one.
func (o Options) Merge(base Options) Options {
	sameProvider := o.Provider == "" || base.Provider == "" ||
		llm.CanonicalName(o.Provider) == llm.CanonicalName(base.Provider)
	if o.Provider == "" {
		o.Provider = base.Provider
	}
	if o.Model == "" && sameProvider {
		o.Model = base.Model
	}
	if o.Style == "" {
		o.Style = base.Style
	}
	if o.Verbosity == "" {
		o.Verbosity = base.Verbosity
	}
	if o.Format == "" {
		o.Format = base.Format
	}
	if o.DocLanguage == "" {
		o.DocLanguage = base.DocLanguage
	}
	return o
}

// StyleFor resolves the style to use for lang. An explicit style wins when
// the language supports it.
func (o Options) StyleFor(lang extract.Language) Style {
	styles := StylesFor(lang)
	for _, s := range styles {
		if s == o.Style {
			return s
		}
	}
	if len(styles) == 0 {
		return o.Style
	}
	return styles[0]
}

// StylesFor lists the styles available for lang, default first.
func StylesFor(lang extract.Language) []Style {
	switch lang {
	case extract.LanguagePython:
		return []Style{StyleGoogle, StyleNumPy, StyleSphinx}
	case extract.LanguageJavaScript, extract.LanguageTypeScript:
		return []Style{StyleJSDoc}
	case extract.LanguageGo:
		return []Style{StyleGoDoc}
	}
	return nil
}

// Formats lists the supported output formats.
func Formats() []Format {
	return []Format{FormatMarkdown, FormatHTML, FormatInline}
}

// ParseFormat normalizes a user supplied format name.
func ParseFormat(s string) Format {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "md":
		return FormatMarkdown
	case "htm":
		return FormatHTML
	default:
		return f
	}
}

// LanguageName returns the English name of an ISO 639-1 code, or the code
// itself when it is not known.
func LanguageName(code string) string {
	base, err := language.ParseBase(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return code
}
