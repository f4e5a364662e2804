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

package testing

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kraklabs/codescribe/pkg/llm"
)

// Sample sources used across package tests.
const (
	PythonTwoFunctions = `def add(a, b):
    return a + b


def subtract(a, b):
    return a - b
`

	PythonThreeFunctions = `def parse(text):
    return text.split(",")


def render(items):
    return "\n".join(items)


def main():
    print(render(parse("a,b")))
`

	GoService = `package service

type Store struct{}

func (s *Store) Get(id string) (string, error) {
	return id, nil
}
`
)

// ScriptedProvider is a concurrency-safe llm.Provider whose answers come
// from a function of the call number (0-based) and request.
type ScriptedProvider struct {
	name    string
	calls   atomic.Int64
	mu      sync.Mutex
	prompts []string
	fn      func(n int, req llm.GenerateRequest) (*llm.GenerateResponse, error)
}

// NewScriptedProvider creates a provider named "scripted".
func NewScriptedProvider(fn func(n int, req llm.GenerateRequest) (*llm.GenerateResponse, error)) *ScriptedProvider {
	return &ScriptedProvider{name: "scripted", fn: fn}
}

func (p *ScriptedProvider) Name() string { return p.name }

// WithName renames the provider. Call it before the first Generate.
func (p *ScriptedProvider) WithName(name string) *ScriptedProvider {
	p.name = name
	return p
}

func (p *ScriptedProvider) DefaultModel() string { return "scripted-model" }

func (p *ScriptedProvider) Models(ctx context.Context) ([]string, error) {
	return []string{p.DefaultModel()}, nil
}

func (p *ScriptedProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	n := int(p.calls.Add(1)) - 1
	p.mu.Lock()
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()
	return p.fn(n, req)
}

// Calls returns the number of Generate calls so far.
func (p *ScriptedProvider) Calls() int { return int(p.calls.Load()) }

// Prompts returns a copy of every prompt received, in call order.
func (p *ScriptedProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

var unitNameRE = regexp.MustCompile(`named "([^"]+)"`)

// UnitName extracts the unit name the documenter put in a prompt.
func UnitName(prompt string) string {
	if m := unitNameRE.FindStringSubmatch(prompt); m != nil {
		return m[1]
	}
	return "<module>"
}

// NamedProvider answers "Documentation for <unit name>." for every call.
func NamedProvider() *ScriptedProvider {
	return NewScriptedProvider(func(n int, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{
			Text:  fmt.Sprintf("Documentation for %s.", UnitName(req.Prompt)),
			Model: "scripted-model",
		}, nil
	})
}

// FailingProvider fails every call with kind.
func FailingProvider(kind llm.Kind) *ScriptedProvider {
	return NewScriptedProvider(func(n int, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return nil, llm.NewError("scripted", kind, "scripted failure")
	})
}

// SlowProvider wraps NamedProvider answers behind a fixed delay.
func SlowProvider(delay time.Duration) *ScriptedProvider {
	return NewScriptedProvider(func(n int, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		time.Sleep(delay)
		return &llm.GenerateResponse{Text: fmt.Sprintf("Documentation for %s.", UnitName(req.Prompt))}, nil
	})
}

// Eventually polls cond every few milliseconds until it returns true, and
// fails the test after timeout.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			if len(msgAndArgs) > 0 {
				t.Fatalf("condition not met within %v: %v", timeout, fmt.Sprint(msgAndArgs...))
			}
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
