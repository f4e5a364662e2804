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
	"fmt"
	"html"
	"strings"

	"github.com/kraklabs/codescribe/pkg/docgen"
)

const unavailable = "Documentation unavailable"

// Markdown renders one section per unit: heading, signature, body.
func Markdown(f File) Artifact {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", f.Filename)

	for _, u := range f.Units {
		fmt.Fprintf(&sb, "\n## %s\n\n", heading(u.Unit))
		if u.Unit.Signature != "" {
			fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", f.Language, u.Unit.Signature)
		}
		if u.Status == docgen.UnitOK {
			sb.WriteString(u.Documentation)
			sb.WriteString("\n")
			continue
		}
		fmt.Fprintf(&sb, "> %s: %s\n", unavailable, reasonText(u))
	}

	return Artifact{
		Format:  docgen.FormatMarkdown,
		Content: sb.String(),
		Failed:  failedUnits(f.Units),
	}
}

// HTML renders one section per unit. Names, signatures and reasons are
// escaped; unit bodies are the sanitised fragments produced by docgen.
func HTML(f File) Artifact {
	var sb strings.Builder
	sb.WriteString(`<article class="codescribe-file">` + "\n")
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(f.Filename))

	for _, u := range f.Units {
		sb.WriteString(`<section class="unit">` + "\n")
		fmt.Fprintf(&sb, "<h2>%s</h2>\n", html.EscapeString(heading(u.Unit)))
		if u.Unit.Signature != "" {
			fmt.Fprintf(&sb, "<pre><code class=\"language-%s\">%s</code></pre>\n", f.Language, html.EscapeString(u.Unit.Signature))
		}
		if u.Status == docgen.UnitOK {
			fmt.Fprintf(&sb, "<div class=\"doc\">%s</div>\n", u.Documentation)
		} else {
			fmt.Fprintf(&sb, "<p class=\"unavailable\">%s: %s</p>\n", unavailable, html.EscapeString(reasonText(u)))
		}
		sb.WriteString("</section>\n")
	}
	sb.WriteString("</article>\n")

	return Artifact{
		Format:  docgen.FormatHTML,
		Content: sb.String(),
		Failed:  failedUnits(f.Units),
	}
}

func reasonText(u docgen.DocumentedUnit) string {
	switch {
	case u.FailureKind != "":
		return string(u.FailureKind)
	case u.Reason != "":
		return u.Reason
	case u.Status == docgen.UnitSkipped:
		return "skipped"
	}
	return "unknown error"
}
