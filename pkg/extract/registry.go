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
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Extractor produces the ordered documentable units of one file.
type Extractor interface {
	// Extract returns the units of content in ascending source order.
	Extract(content []byte, lang Language) ([]Unit, error)

	// Supports reports whether a grammar is registered for lang.
	Supports(lang Language) bool
}

// Grammar extracts units for a single language.
type Grammar interface {
	Language() Language
	Units(content []byte) ([]Unit, error)
}

// Registry dispatches extraction to the grammar registered for a language.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	grammars map[Language]Grammar
	logger   *slog.Logger
}

var _ Extractor = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		grammars: make(map[Language]Grammar),
		logger:   logger,
	}
}

// DefaultRegistry creates a registry with the Tree-sitter grammars for
// Python, JavaScript, TypeScript and Go.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewPythonGrammar())
	r.Register(NewJavaScriptGrammar())
	r.Register(NewTypeScriptGrammar())
	r.Register(NewGoGrammar())
	return r
}

// Register adds or replaces the grammar for g.Language().
func (r *Registry) Register(g Grammar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grammars[g.Language()] = g
}

// Supports reports whether a grammar is registered for lang.
func (r *Registry) Supports(lang Language) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grammars[lang]
	return ok
}

// Languages returns the registered languages in sorted order.
func (r *Registry) Languages() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]Language, 0, len(r.grammars))
	for l := range r.grammars {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Extract returns the units of content.
//
// On a grammar failure it returns the whole-file unit and an error wrapping
// ErrParse. Blank content yields no units.
func (r *Registry) Extract(content []byte, lang Language) ([]Unit, error) {
	r.mu.RLock()
	g, ok := r.grammars[lang]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	if IsBlank(content) {
		return nil, nil
	}

	units, err := g.Units(content)
	if err != nil {
		r.logger.Warn("extract.parse_error",
			"language", lang,
			"bytes", len(content),
			"err", err,
		)
		return indexUnits([]Unit{WholeFile(content)}), fmt.Errorf("%w: %v", ErrParse, err)
	}

	if len(units) == 0 {
		units = []Unit{WholeFile(content)}
	}

	sort.SliceStable(units, func(i, j int) bool {
		if units[i].StartByte != units[j].StartByte {
			return units[i].StartByte < units[j].StartByte
		}
		return units[i].EndByte > units[j].EndByte
	})
	return indexUnits(units), nil
}

func indexUnits(units []Unit) []Unit {
	for i := range units {
		units[i].Index = i
	}
	return units
}
