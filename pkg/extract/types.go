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

package extract

import (
	"bytes"
	"errors"
	"strings"
)

var (
	// ErrUnsupportedLanguage is returned when no grammar is registered for a language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParse is returned when a grammar cannot parse the content.
	// It is never fatal: the accompanying units contain the whole-file fallback.
	ErrParse = errors.New("parse error")
)

// Language identifies a source language.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageGo         Language = "go"
)

// ParseLanguage normalizes a user supplied language name or alias.
// Unknown names are returned lower-cased so that the registry can reject them.
func ParseLanguage(s string) Language {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "python", "py":
		return LanguagePython
	case "javascript", "js", "jsx", "node":
		return LanguageJavaScript
	case "typescript", "ts", "tsx":
		return LanguageTypeScript
	case "go", "golang":
		return LanguageGo
	default:
		return Language(v)
	}
}

// Kind is the kind of a documentable unit.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindClass    Kind = "class"
	KindModule   Kind = "module"
)

// Title returns the kind with its first letter upper-cased ("Function").
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// ModuleName is the name given to whole-file units.
const ModuleName = "<module>"

// Unit is a documentable source construct.
//
// StartByte/EndByte delimit the unit in the original content (half-open).
// Lines are 1-based and inclusive.
type Unit struct {
	Index     int    `json:"index"`
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`
	Parent    string `json:"parent,omitempty"`
	Signature string `json:"signature,omitempty"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Text      string `json:"-"`
}

// QualifiedName returns Parent.Name for methods and Name otherwise.
func (u Unit) QualifiedName() string {
	if u.Parent != "" {
		return u.Parent + "." + u.Name
	}
	return u.Name
}

// WholeFile returns the module unit spanning all of content.
func WholeFile(content []byte) Unit {
	return Unit{
		Kind:      KindModule,
		Name:      ModuleName,
		StartByte: 0,
		EndByte:   len(content),
		StartLine: 1,
		EndLine:   bytes.Count(content, []byte("\n")) + 1,
		Text:      string(content),
	}
}

// IsBlank reports whether content holds nothing but whitespace.
func IsBlank(content []byte) bool {
	return len(bytes.TrimSpace(content)) == 0
}
