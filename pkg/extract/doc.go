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

// Package extract splits source files into documentable units.
//
// A unit is a function, method, class, interface, type declaration or
// module-level block together with its byte span and line range. Units are
// produced by language grammars registered in a [Registry]; the default
// registry carries Tree-sitter grammars for Python, JavaScript, TypeScript
// and Go.
//
// # Quick Start
//
//	reg := extract.DefaultRegistry(logger)
//	units, err := reg.Extract(content, extract.LanguagePython)
//	if errors.Is(err, extract.ErrParse) {
//	    // units holds a single whole-file module unit
//	}
//
// # Determinism
//
// Extraction is deterministic: identical content always yields the same
// units in the same order (ascending start byte). Nested functions are not
// reported separately; methods are reported with the name of their
// enclosing class in Unit.Parent.
//
// # Failure Modes
//
// Extract returns [ErrUnsupportedLanguage] when no grammar is registered for
// the language. When the grammar cannot parse the content, Extract returns
// the whole-file unit together with an error wrapping [ErrParse], so that
// callers can still document the file at module granularity.
//
// Empty or whitespace-only content yields no units and no error.
package extract
