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

package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownProvider is returned by Set.Get for names that are not configured.
var ErrUnknownProvider = errors.New("provider not configured")

// CanonicalName maps provider aliases accepted by NewProvider to the name the
// adapter reports.
func CanonicalName(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "openai-compatible":
		return ProviderOpenAI
	case "claude":
		return ProviderAnthropic
	case "local":
		return ProviderOllama
	case "hf", "tgi":
		return ProviderHuggingFace
	case "test":
		return ProviderMock
	default:
		return n
	}
}

// Set holds the adapters requests can be routed to, keyed by Name.
// It is immutable after construction and safe for concurrent use.
type Set struct {
	def    Provider
	byName map[string]Provider
}

// NewSet creates a set whose default is def. Later providers with the
// same name as an earlier one are ignored.
func NewSet(def Provider, others ...Provider) *Set {
	s := &Set{def: def, byName: make(map[string]Provider, len(others)+1)}
	for _, p := range append([]Provider{def}, others...) {
		if p == nil {
			continue
		}
		name := CanonicalName(p.Name())
		if _, dup := s.byName[name]; !dup {
			s.byName[name] = p
		}
	}
	return s
}

// WithAlias returns a copy of s in which the default also answers to name,
// unless name is already taken.
func (s *Set) WithAlias(name string) *Set {
	out := &Set{def: s.def, byName: make(map[string]Provider, len(s.byName)+1)}
	for n, p := range s.byName {
		out.byName[n] = p
	}
	if n := CanonicalName(name); n != "" && s.def != nil {
		if _, taken := out.byName[n]; !taken {
			out.byName[n] = s.def
		}
	}
	return out
}

// Default returns the provider used when a request names none.
func (s *Set) Default() Provider { return s.def }

// Get returns the provider called name. An empty name selects the default.
func (s *Set) Get(name string) (Provider, error) {
	if name == "" {
		return s.def, nil
	}
	if p, ok := s.byName[CanonicalName(name)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q (configured: %s)", ErrUnknownProvider, name, strings.Join(s.Names(), ", "))
}

// Names lists the configured provider names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
