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
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/kraklabs/codescribe/pkg/docgen"
)

const (
	documentTitle = "CodeScribe Documentation"
	generatedBy   = "Generated using CodeScribe AI-Powered Code Documentation Assistant"
)

// Render produces the downloadable document of rec in its format and
// returns it with its content type.
func Render(rec Record) (body []byte, contentType string, err error) {
	switch rec.Format {
	case docgen.FormatMarkdown, "":
		return []byte(Markdown(rec)), "text/markdown; charset=utf-8", nil
	case docgen.FormatHTML:
		return []byte(HTML(rec)), "text/html; charset=utf-8", nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, rec.Format)
}

// Filename is the suggested download name of rec.
func Filename(rec Record) string {
	ext := ".md"
	if rec.Format == docgen.FormatHTML {
		ext = ".html"
	}
	return "codescribe-" + rec.JobID + ext
}

// Markdown renders rec as one Markdown document with a section per file.
func Markdown(rec Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", documentTitle)
	fmt.Fprintf(&sb, "%s\n\n", generatedBy)
	fmt.Fprintf(&sb, "Job `%s`, exported %s\n\n", rec.JobID, rec.CreatedAt.UTC().Format(time.RFC3339))
	sb.WriteString("---\n\n")

	for _, f := range rec.Files {
		fmt.Fprintf(&sb, "## File: `%s`\n\n", f.Filename)
		if f.Error != "" {
			fmt.Fprintf(&sb, "> %s\n\n", f.Error)
		}
		for _, u := range f.Units {
			fmt.Fprintf(&sb, "### %s: `%s`\n\n", u.Kind.Title(), u.Name)
			if u.Signature != "" {
				sb.WriteString("**Signature:**\n\n")
				fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", f.Language, u.Signature)
			}
			if u.Documentation != "" {
				sb.WriteString("**Documentation:**\n\n")
				sb.WriteString(strings.TrimRight(u.Documentation, "\n"))
				sb.WriteString("\n\n")
			} else {
				fmt.Fprintf(&sb, "> Documentation unavailable: %s\n\n", u.Reason)
			}
		}
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

// HTML renders rec as a standalone HTML page.
func HTML(rec Record) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&sb, "<html><head><meta charset=\"utf-8\"><title>%s</title>\n", documentTitle)
	sb.WriteString("<style>\n")
	sb.WriteString("body { font-family: Arial, sans-serif; margin: 40px; }\n")
	sb.WriteString("h1, h2, h3 { color: #333; }\n")
	sb.WriteString("pre { background: #f4f4f4; padding: 10px; border-radius: 5px; }\n")
	sb.WriteString(".element { margin-bottom: 30px; border-left: 3px solid #007acc; padding-left: 20px; }\n")
	sb.WriteString("</style></head><body>\n")
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", documentTitle)
	fmt.Fprintf(&sb, "<p>%s</p>\n", generatedBy)
	fmt.Fprintf(&sb, "<p>Job <code>%s</code>, exported %s</p>\n",
		html.EscapeString(rec.JobID), rec.CreatedAt.UTC().Format(time.RFC3339))

	for _, f := range rec.Files {
		fmt.Fprintf(&sb, "<h2>File: <code>%s</code></h2>\n", html.EscapeString(f.Filename))
		if f.Error != "" {
			fmt.Fprintf(&sb, "<p class=\"error\">%s</p>\n", html.EscapeString(f.Error))
		}
		for _, u := range f.Units {
			sb.WriteString("<div class=\"element\">\n")
			fmt.Fprintf(&sb, "<h3>%s: <code>%s</code></h3>\n", u.Kind.Title(), html.EscapeString(u.Name))
			if u.Signature != "" {
				fmt.Fprintf(&sb, "<h4>Signature:</h4>\n<pre><code>%s</code></pre>\n", html.EscapeString(u.Signature))
			}
			if u.Documentation != "" {
				fmt.Fprintf(&sb, "<h4>Documentation:</h4>\n<pre>%s</pre>\n", html.EscapeString(u.Documentation))
			} else {
				fmt.Fprintf(&sb, "<p class=\"unavailable\">Documentation unavailable: %s</p>\n", html.EscapeString(u.Reason))
			}
			sb.WriteString("</div>\n")
		}
	}
	sb.WriteString("</body></html>\n")
	return sb.String()
}
