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
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codescribe/internal/config"
	"github.com/kraklabs/codescribe/pkg/docgen"
)

// generationFlags are the per-run overrides shared by document and batch.
type generationFlags struct {
	provider    string
	model       string
	style       string
	verbosity   string
	format      string
	docLanguage string
	without     string
}

func addGenerationFlags(fs *flag.FlagSet) *generationFlags {
	g := &generationFlags{}
	fs.StringVar(&g.provider, "provider", "", "Provider type, overrides the configuration")
	fs.StringVar(&g.model, "model", "", "Model name, overrides the configuration")
	fs.StringVar(&g.style, "style", "", "Docstring style (google, numpy, sphinx, jsdoc, godoc)")
	fs.StringVar(&g.verbosity, "verbosity", "", "Detail level (low, medium, high)")
	fs.StringVarP(&g.format, "format", "f", "", "Output format (markdown, html, inline)")
	fs.StringVar(&g.docLanguage, "doc-language", "", "ISO 639-1 code of the documentation prose")
	fs.StringVar(&g.without, "without", "", "Sections to leave out: examples,params,returns,exceptions")
	return g
}

// apply sets the provider overrides on cfg before the stack is built.
func (g *generationFlags) apply(cfg *config.Config) {
	if g.provider != "" {
		cfg.Provider = g.provider
	}
	if g.model != "" {
		cfg.Model = g.model
	}
}

// options builds the request options on top of the configured defaults.
func (g *generationFlags) options(cfg *config.Config) (docgen.Options, error) {
	opts := docgen.Options{
		Style:       docgen.Style(g.style),
		Verbosity:   docgen.Verbosity(g.verbosity),
		Format:      docgen.ParseFormat(g.format),
		DocLanguage: g.docLanguage,
	}.Merge(cfg.Options())

	base := cfg.Options()
	opts.IncludeExamples = base.IncludeExamples
	opts.IncludeParams = base.IncludeParams
	opts.IncludeReturns = base.IncludeReturns
	opts.IncludeExceptions = base.IncludeExceptions
	for _, section := range splitList(g.without) {
		switch section {
		case "examples":
			opts.IncludeExamples = false
		case "params", "parameters":
			opts.IncludeParams = false
		case "returns":
			opts.IncludeReturns = false
		case "exceptions", "errors":
			opts.IncludeExceptions = false
		default:
			return opts, fmt.Errorf("%w: unknown section %q", docgen.ErrInvalidOptions, section)
		}
	}
	return opts, opts.Validate()
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
