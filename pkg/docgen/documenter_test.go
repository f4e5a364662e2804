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

package docgen

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/llm"
)

var testUnit = extract.Unit{
	Kind:      extract.KindFunction,
	Name:      "add",
	Signature: "def add(a, b)",
	StartLine: 1,
	EndLine:   2,
	Text:      "def add(a, b):\n    return a + b\n",
}

// scripted returns a provider answering with the given steps in order; the
// last step repeats.
func scripted(calls *atomic.Int32, steps ...func() (*llm.GenerateResponse, error)) *llm.MockProvider {
	return &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			n := int(calls.Add(1)) - 1
			if n >= len(steps) {
				n = len(steps) - 1
			}
			return steps[n]()
		},
	}
}

type namedProvider struct {
	llm.Provider
	name string
}

func (p *namedProvider) Name() string { return p.name }

func ok(text string) func() (*llm.GenerateResponse, error) {
	return func() (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{Text: text, Model: "m"}, nil
	}
}

func fail(kind llm.Kind) func() (*llm.GenerateResponse, error) {
	return func() (*llm.GenerateResponse, error) {
		return nil, &llm.Error{Provider: "mock", Kind: kind}
	}
}

func newTestDocumenter(p llm.Provider, retries int) (*Documenter, *[]time.Duration) {
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = retries
	d := NewDocumenter(p, cfg, EstimateCounter{}, nil)

	var sleeps []time.Duration
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		sleeps = append(sleeps, dur)
		return ctx.Err()
	}
	return d, &sleeps
}

func TestDocument_Success(t *testing.T) {
	var calls atomic.Int32
	d, _ := newTestDocumenter(scripted(&calls, ok("```\nAdds two numbers.\n```")), 3)

	du := d.Document(context.Background(), testUnit, extract.LanguagePython, DefaultOptions())

	assert.Equal(t, UnitOK, du.Status)
	assert.Equal(t, "Adds two numbers.", du.Documentation)
	assert.Equal(t, 1, du.Attempts)
	assert.Empty(t, du.FailureKind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDocument_RetryPolicy(t *testing.T) {
	tests := []struct {
		name         string
		steps        []func() (*llm.GenerateResponse, error)
		retries      int
		wantStatus   UnitStatus
		wantKind     llm.Kind
		wantAttempts int
	}{
		{
			name:       "rate limited exhausts retry limit",
			steps:      []func() (*llm.GenerateResponse, error){fail(llm.KindRateLimited)},
			retries:    2,
			wantStatus: UnitFailed, wantKind: llm.KindRateLimited, wantAttempts: 3,
		},
		{
			name:       "timeout then success",
			steps:      []func() (*llm.GenerateResponse, error){fail(llm.KindTimeout), ok("Done.")},
			retries:    2,
			wantStatus: UnitOK, wantAttempts: 2,
		},
		{
			name:       "unavailable shares the transient budget",
			steps:      []func() (*llm.GenerateResponse, error){fail(llm.KindUnavailable), fail(llm.KindRateLimited), fail(llm.KindTimeout)},
			retries:    2,
			wantStatus: UnitFailed, wantKind: llm.KindTimeout, wantAttempts: 3,
		},
		{
			name:       "zero retries",
			steps:      []func() (*llm.GenerateResponse, error){fail(llm.KindRateLimited)},
			retries:    0,
			wantStatus: UnitFailed, wantKind: llm.KindRateLimited, wantAttempts: 1,
		},
		{
			name:       "empty output retried once then ok",
			steps:      []func() (*llm.GenerateResponse, error){ok("   "), ok("Adds.")},
			retries:    3,
			wantStatus: UnitOK, wantAttempts: 2,
		},
		{
			name:       "invalid response retried exactly once",
			steps:      []func() (*llm.GenerateResponse, error){fail(llm.KindInvalidResponse)},
			retries:    3,
			wantStatus: UnitFailed, wantKind: llm.KindInvalidResponse, wantAttempts: 2,
		},
		{
			name:       "auth failure is not retried",
			steps:      []func() (*llm.GenerateResponse, error){fail(llm.KindAuthFailure)},
			retries:    3,
			wantStatus: UnitFailed, wantKind: llm.KindAuthFailure, wantAttempts: 1,
		},
		{
			name:       "network failure is not retried",
			steps:      []func() (*llm.GenerateResponse, error){fail(llm.KindNetwork)},
			retries:    3,
			wantStatus: UnitFailed, wantKind: llm.KindNetwork, wantAttempts: 1,
		},
		{
			name:       "bad request is not retried",
			steps:      []func() (*llm.GenerateResponse, error){fail(llm.KindBadRequest)},
			retries:    3,
			wantStatus: UnitFailed, wantKind: llm.KindBadRequest, wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			d, _ := newTestDocumenter(scripted(&calls, tt.steps...), tt.retries)

			du := d.Document(context.Background(), testUnit, extract.LanguagePython, DefaultOptions())

			assert.Equal(t, tt.wantStatus, du.Status)
			assert.Equal(t, tt.wantKind, du.FailureKind)
			assert.Equal(t, tt.wantAttempts, du.Attempts)
			assert.Equal(t, int32(tt.wantAttempts), calls.Load())
			assert.LessOrEqual(t, du.Attempts, tt.retries+2)
		})
	}
}

func TestDocument_HonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	p := scripted(&calls,
		func() (*llm.GenerateResponse, error) {
			return nil, &llm.Error{Provider: "mock", Kind: llm.KindRateLimited, RetryAfter: 30 * time.Second}
		},
		ok("Fine."),
	)
	d, sleeps := newTestDocumenter(p, 3)

	du := d.Document(context.Background(), testUnit, extract.LanguagePython, DefaultOptions())

	require.Equal(t, UnitOK, du.Status)
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 30*time.Second, (*sleeps)[0])
}

func TestDocument_CancelledBeforeDispatch(t *testing.T) {
	var calls atomic.Int32
	d, _ := newTestDocumenter(scripted(&calls, ok("x")), 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	du := d.Document(ctx, testUnit, extract.LanguagePython, DefaultOptions())

	assert.Equal(t, UnitFailed, du.Status)
	assert.Equal(t, 0, du.Attempts)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDocument_LimitedProviderWaitIsCancellable(t *testing.T) {
	var calls atomic.Int32
	limiter := llm.NewLimiter(1)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	d, _ := newTestDocumenter(llm.NewLimitedProvider(scripted(&calls, ok("x")), limiter), 3)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	du := d.Document(ctx, testUnit, extract.LanguagePython, DefaultOptions())

	assert.Equal(t, UnitFailed, du.Status)
	assert.Equal(t, int32(0), calls.Load())
}

// tracedProvider decorates a gated provider the way a tracing or logging
// wrapper would.
type tracedProvider struct {
	llm.Gated
}

func TestDocument_DecoratedGateWaitIsCancellable(t *testing.T) {
	var calls atomic.Int32
	limiter := llm.NewLimiter(1)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	d, _ := newTestDocumenter(tracedProvider{llm.NewLimitedProvider(scripted(&calls, ok("x")), limiter)}, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	du := d.Document(ctx, testUnit, extract.LanguagePython, DefaultOptions())

	assert.Equal(t, UnitFailed, du.Status)
	assert.Equal(t, ErrCancelled.Error(), du.Reason)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDocument_RoutesByProvider(t *testing.T) {
	var mockCalls, localCalls atomic.Int32
	var model atomic.Value
	local := &namedProvider{name: llm.ProviderOllama, Provider: &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			localCalls.Add(1)
			model.Store(req.Model)
			return &llm.GenerateResponse{Text: "From ollama.", Model: req.Model}, nil
		},
	}}
	d := NewRoutingDocumenter(llm.NewSet(scripted(&mockCalls, ok("From mock.")), local), DefaultConfig(), EstimateCounter{}, nil)

	opts := DefaultOptions()
	opts.Provider = "local"
	opts.Model = "llama3"
	require.NoError(t, d.CheckOptions(opts))
	du := d.Document(context.Background(), testUnit, extract.LanguagePython, opts)

	assert.Equal(t, UnitOK, du.Status)
	assert.Equal(t, "From ollama.", du.Documentation)
	assert.Equal(t, "llama3", model.Load())
	assert.Equal(t, int32(1), localCalls.Load())
	assert.Equal(t, int32(0), mockCalls.Load())

	du = d.Document(context.Background(), testUnit, extract.LanguagePython, DefaultOptions())
	assert.Equal(t, "From mock.", du.Documentation)
	assert.Equal(t, int32(1), mockCalls.Load())
}

func TestDocumenter_CheckOptionsRejectsUnconfiguredProvider(t *testing.T) {
	var calls atomic.Int32
	d, _ := newTestDocumenter(scripted(&calls, ok("x")), 3)

	opts := DefaultOptions()
	opts.Provider = llm.ProviderAnthropic
	err := d.CheckOptions(opts)
	require.ErrorIs(t, err, ErrInvalidOptions)
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)

	du := d.Document(context.Background(), testUnit, extract.LanguagePython, opts)
	assert.Equal(t, UnitFailed, du.Status)
	assert.Equal(t, llm.KindBadRequest, du.FailureKind)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDocument_CallIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &llm.MockProvider{
		GenerateFunc: func(callCtx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			cancel()
			if callCtx.Err() != nil {
				return nil, &llm.Error{Provider: "mock", Kind: llm.KindNetwork}
			}
			return &llm.GenerateResponse{Text: "Finished anyway."}, nil
		},
	}
	d, _ := newTestDocumenter(p, 3)

	du := d.Document(ctx, testUnit, extract.LanguagePython, DefaultOptions())

	assert.Equal(t, UnitOK, du.Status)
	assert.Equal(t, "Finished anyway.", du.Documentation)
}

func TestPromptBuilder(t *testing.T) {
	opts := DefaultOptions()
	opts.Style = StyleNumPy
	opts.Verbosity = VerbosityHigh
	opts.IncludeExamples = false
	opts.DocLanguage = "de"

	p := NewPromptBuilder(EstimateCounter{}, 0).Build(testUnit, extract.LanguagePython, opts)

	assert.NotEmpty(t, p.System)
	assert.Contains(t, p.User, `named "add"`)
	assert.Contains(t, p.User, "Signature: def add(a, b)")
	assert.Contains(t, p.User, "Parameters\n----------")
	assert.Contains(t, p.User, "- Include examples: no")
	assert.Contains(t, p.User, "- Include parameters: yes")
	assert.Contains(t, p.User, "German (de)")
	assert.False(t, p.Truncated)
}

func TestPromptBuilder_StyleFallsBackPerLanguage(t *testing.T) {
	opts := DefaultOptions()
	opts.Style = StyleNumPy

	p := NewPromptBuilder(nil, 0).Build(testUnit, extract.LanguageTypeScript, opts)
	assert.Contains(t, p.User, "Follow the jsdoc style.")

	p = NewPromptBuilder(nil, 0).Build(testUnit, extract.LanguageGo, Options{})
	assert.Contains(t, p.User, "Follow the godoc style.")
}

func TestPromptBuilder_TruncatesToBudget(t *testing.T) {
	unit := testUnit
	for i := 0; i < 200; i++ {
		unit.Text += "    x = a + b  # padding line\n"
	}

	p := NewPromptBuilder(EstimateCounter{}, 100).Build(unit, extract.LanguagePython, DefaultOptions())

	assert.True(t, p.Truncated)
	assert.Contains(t, p.User, "shortened")
	assert.Less(t, len(p.User), len(unit.Text))
}
