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
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codescribe/internal/errors"
	"github.com/kraklabs/codescribe/internal/output"
	"github.com/kraklabs/codescribe/internal/ui"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/llm"
)

// LanguageInfo is one row of 'codescribe languages'.
type LanguageInfo struct {
	Name       string         `json:"name"`
	Extensions []string       `json:"extensions"`
	Styles     []docgen.Style `json:"styles"`
}

func listLanguages() []LanguageInfo {
	langs := extract.DefaultRegistry(nil).Languages()
	infos := make([]LanguageInfo, 0, len(langs))
	for _, lang := range langs {
		infos = append(infos, LanguageInfo{
			Name:       string(lang),
			Extensions: extract.Extensions(lang),
			Styles:     docgen.StylesFor(lang),
		})
	}
	return infos
}

// runLanguages prints the supported languages, their styles and the
// provider catalog. It needs no configuration.
func runLanguages(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("languages", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}

	infos := listLanguages()
	if globals.JSON {
		_ = output.JSON(map[string]any{
			"languages": infos,
			"formats":   docgen.Formats(),
			"providers": llm.DescribeProviders(),
		})
		return
	}

	ui.Header("Languages")
	for _, info := range infos {
		styles := make([]string, len(info.Styles))
		for i, s := range info.Styles {
			styles[i] = string(s)
		}
		fmt.Fprintf(ui.Out, "  %-12s %-28s %s\n", ui.Label(info.Name),
			strings.Join(info.Extensions, " "), ui.DimText(strings.Join(styles, ", ")))
	}

	fmt.Fprintln(ui.Out)
	ui.Header("Providers")
	for _, p := range llm.DescribeProviders() {
		state := ui.DimText("not configured")
		if p.Configured {
			state = ui.StatusText("ok")
		}
		fmt.Fprintf(ui.Out, "  %-12s %-24s %s\n", ui.Label(p.Name), p.DefaultModel, state)
	}
}
