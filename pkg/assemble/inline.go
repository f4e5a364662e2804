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
	"bytes"
	"sort"
	"strings"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
)

// commentSyntax describes how a block comment is written in a language.
type commentSyntax struct {
	open, line, close string
}

func syntaxFor(lang extract.Language) commentSyntax {
	switch lang {
	case extract.LanguagePython:
		return commentSyntax{line: "# "}
	case extract.LanguageJavaScript, extract.LanguageTypeScript:
		return commentSyntax{open: "/**", line: " * ", close: " */"}
	default:
		return commentSyntax{line: "// "}
	}
}

// Inline inserts each successful unit's documentation as a comment block at
// the start of the line holding the unit, indented like that line.
func Inline(f File) Artifact {
	content := f.Content
	syntax := syntaxFor(f.Language)

	type block struct {
		at    int
		order int
		text  string
	}
	var blocks []block
	for i, u := range f.Units {
		if u.Status != docgen.UnitOK || u.Documentation == "" {
			continue
		}
		at := lineStart(content, u.Unit.StartByte)
		indent := leadingSpace(content[at:])
		blocks = append(blocks, block{at: at, order: i, text: renderComment(syntax, indent, u.Documentation)})
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].at != blocks[j].at {
			return blocks[i].at < blocks[j].at
		}
		return blocks[i].order < blocks[j].order
	})

	var out strings.Builder
	out.Grow(len(content) + 256*len(blocks))
	insertions := make([]Insertion, 0, len(blocks))
	prev := 0
	for _, b := range blocks {
		out.Write(content[prev:b.at])
		insertions = append(insertions, Insertion{Offset: out.Len(), Length: len(b.text)})
		out.WriteString(b.text)
		prev = b.at
	}
	out.Write(content[prev:])

	return Artifact{
		Format:     docgen.FormatInline,
		Content:    out.String(),
		Failed:     failedUnits(f.Units),
		Insertions: insertions,
	}
}

// StripInline removes the recorded insertions from annotated content.
func StripInline(content string, insertions []Insertion) string {
	var out strings.Builder
	prev := 0
	for _, ins := range insertions {
		if ins.Offset < prev || ins.Offset+ins.Length > len(content) {
			continue
		}
		out.WriteString(content[prev:ins.Offset])
		prev = ins.Offset + ins.Length
	}
	out.WriteString(content[prev:])
	return out.String()
}

func renderComment(syntax commentSyntax, indent, doc string) string {
	var sb strings.Builder
	if syntax.open != "" {
		sb.WriteString(indent + syntax.open + "\n")
	}
	for _, line := range strings.Split(doc, "\n") {
		if syntax.close != "" {
			line = strings.ReplaceAll(line, "*/", "*\\/")
		}
		prefixed := indent + syntax.line + line
		sb.WriteString(strings.TrimRight(prefixed, " \t"))
		sb.WriteByte('\n')
	}
	if syntax.close != "" {
		sb.WriteString(indent + syntax.close + "\n")
	}
	return sb.String()
}

func lineStart(content []byte, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return bytes.LastIndexByte(content[:offset], '\n') + 1
}

func leadingSpace(line []byte) string {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return string(line[:n])
}
