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

// Package assemble merges documented units back into one artifact per file.
//
// Units are always emitted in their source order. Inline artifacts keep every
// original byte and record where comment blocks were inserted, so
// [StripInline] can recover the source exactly.
package assemble

import (
	"fmt"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
)

// File is the input of an assembler: one source file and its terminal units.
type File struct {
	Filename string
	Language extract.Language
	Content  []byte
	Units    []docgen.DocumentedUnit
}

// FailedUnit summarises a unit left undocumented.
type FailedUnit struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Insertion is a comment block added to inline output: Length bytes at
// Offset of the annotated content.
type Insertion struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// Artifact is the assembled documentation of one file.
type Artifact struct {
	Format     docgen.Format `json:"format"`
	Content    string        `json:"content"`
	Failed     []FailedUnit  `json:"failed_units,omitempty"`
	Insertions []Insertion   `json:"-"`
}

// Summary returns the file-level error text for failed units, or "".
func (a Artifact) Summary() string {
	switch len(a.Failed) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("1 unit could not be documented: %s", a.Failed[0].Name)
	}
	return fmt.Sprintf("%d units could not be documented", len(a.Failed))
}

// Assemble renders f in format. Units must be terminal and in source order.
func Assemble(f File, format docgen.Format) (Artifact, error) {
	for _, u := range f.Units {
		if u.Status == "" {
			return Artifact{}, fmt.Errorf("unit %d (%s) is not terminal", u.Unit.Index, u.Unit.QualifiedName())
		}
	}

	switch format {
	case docgen.FormatInline:
		return Inline(f), nil
	case docgen.FormatHTML:
		return HTML(f), nil
	case docgen.FormatMarkdown, "":
		return Markdown(f), nil
	default:
		return Artifact{}, fmt.Errorf("unknown output format %q", format)
	}
}

func failedUnits(units []docgen.DocumentedUnit) []FailedUnit {
	var failed []FailedUnit
	for _, u := range units {
		if u.Status == docgen.UnitOK {
			continue
		}
		failed = append(failed, FailedUnit{
			Index:  u.Unit.Index,
			Name:   u.Unit.QualifiedName(),
			Kind:   string(u.FailureKind),
			Reason: u.Reason,
		})
	}
	return failed
}

func heading(u extract.Unit) string {
	return u.Kind.Title() + ": " + u.QualifiedName()
}
