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
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// extensionLanguages is the fixed extension map used before content sniffing.
var extensionLanguages = map[string]Language{
	".py":  LanguagePython,
	".pyw": LanguagePython,
	".js":  LanguageJavaScript,
	".jsx": LanguageJavaScript,
	".mjs": LanguageJavaScript,
	".cjs": LanguageJavaScript,
	".ts":  LanguageTypeScript,
	".tsx": LanguageTypeScript,
	".go":  LanguageGo,
}

// enryLanguages maps linguist names to supported languages.
var enryLanguages = map[string]Language{
	"Python":     LanguagePython,
	"JavaScript": LanguageJavaScript,
	"JSX":        LanguageJavaScript,
	"TypeScript": LanguageTypeScript,
	"TSX":        LanguageTypeScript,
	"Go":         LanguageGo,
}

// DetectLanguage guesses the language of a file from its name and content.
//
// Known extensions are resolved directly. Anything else goes through
// go-enry (shebangs, modelines, heuristics). An empty result means the
// language could not be determined; unsupported languages are returned by
// their lower-cased linguist name so callers can report them.
func DetectLanguage(filename string, content []byte) Language {
	ext := strings.ToLower(filepath.Ext(filename))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}

	name := enry.GetLanguage(filepath.Base(filename), content)
	if name == "" {
		return ""
	}
	if lang, ok := enryLanguages[name]; ok {
		return lang
	}
	return Language(strings.ToLower(name))
}

// Extensions returns the file extensions mapped to lang.
func Extensions(lang Language) []string {
	var exts []string
	for ext, l := range extensionLanguages {
		if l == lang {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// IsBinary reports whether content looks like binary data (NUL bytes near
// the start).
func IsBinary(content []byte) bool {
	return enry.IsBinary(content)
}
