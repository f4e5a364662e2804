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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/llm"
)

// ErrCancelled is the reason recorded for units whose dispatch was stopped.
var ErrCancelled = errors.New("dispatch cancelled")

// UnitStatus is the terminal state of a documented unit.
type UnitStatus string

const (
	UnitOK      UnitStatus = "ok"
	UnitSkipped UnitStatus = "skipped"
	UnitFailed  UnitStatus = "failed"
)

// DocumentedUnit is the outcome of documenting one unit.
type DocumentedUnit struct {
	Unit          extract.Unit `json:"unit"`
	Documentation string       `json:"documentation,omitempty"`
	Status        UnitStatus   `json:"status"`
	FailureKind   llm.Kind     `json:"failure_kind,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Attempts      int          `json:"attempts"`
	Truncated     bool         `json:"truncated,omitempty"`
	Model         string       `json:"model,omitempty"`
}

// Failed reports whether the unit ended in failure.
func (d DocumentedUnit) Failed() bool { return d.Status == UnitFailed }

// Observer receives documenter events. All methods must be cheap and safe
// for concurrent use.
type Observer interface {
	ProviderCall(provider string, kind llm.Kind, d time.Duration)
	ProviderRetry(provider string, kind llm.Kind)
}

type nopObserver struct{}

func (nopObserver) ProviderCall(string, llm.Kind, time.Duration) {}
func (nopObserver) ProviderRetry(string, llm.Kind)               {}

// Config configures a Documenter.
type Config struct {
	Retry RetryConfig

	// SourceTokenBudget caps the unit source sent to the provider.
	SourceTokenBudget int

	// MaxOutputTokens is forwarded to the provider, 0 for its default.
	MaxOutputTokens int

	Temperature float64

	// CallTimeout bounds a single provider attempt, 0 for none.
	CallTimeout time.Duration
}

// DefaultConfig returns the documenter defaults.
func DefaultConfig() Config {
	return Config{
		Retry:             DefaultRetryConfig(),
		SourceTokenBudget: 6000,
		MaxOutputTokens:   1024,
		Temperature:       0.2,
		CallTimeout:       90 * time.Second,
	}
}

// Documenter documents single units with retries, routing each call to
// the provider named by the options.
type Documenter struct {
	providers *llm.Set
	prompts   *PromptBuilder
	cfg       Config
	observer  Observer
	logger    *slog.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDocumenter creates a documenter whose only provider is provider.
// counter may be nil to use the character estimate.
func NewDocumenter(provider llm.Provider, cfg Config, counter TokenCounter, logger *slog.Logger) *Documenter {
	return NewRoutingDocumenter(llm.NewSet(provider), cfg, counter, logger)
}

// NewRoutingDocumenter creates a documenter that picks a provider from
// providers for every unit by Options.Provider.
func NewRoutingDocumenter(providers *llm.Set, cfg Config, counter TokenCounter, logger *slog.Logger) *Documenter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Retry = cfg.Retry.normalized()
	return &Documenter{
		providers: providers,
		prompts:   NewPromptBuilder(counter, cfg.SourceTokenBudget),
		cfg:       cfg,
		observer:  nopObserver{},
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// SetObserver installs an event observer.
func (d *Documenter) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	d.observer = o
}

// Provider returns the default provider.
func (d *Documenter) Provider() llm.Provider { return d.providers.Default() }

// Providers returns every provider units can be routed to.
func (d *Documenter) Providers() *llm.Set { return d.providers }

// ProviderFor resolves the provider a unit with opts is sent to.
func (d *Documenter) ProviderFor(opts Options) (llm.Provider, error) {
	return d.providers.Get(opts.Provider)
}

// CheckOptions validates opts and that the provider it names is configured.
func (d *Documenter) CheckOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if _, err := d.ProviderFor(opts); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Document produces documentation for unit. It never returns an error:
// failures are reported in the returned DocumentedUnit.
//
// ctx only governs waiting between attempts; the provider call itself runs
// detached from cancellation so an in-flight request is never abandoned.
func (d *Documenter) Document(ctx context.Context, unit extract.Unit, lang extract.Language, opts Options) DocumentedUnit {
	result := DocumentedUnit{Unit: unit}

	provider, err := d.ProviderFor(opts)
	if err != nil {
		result.Status = UnitFailed
		result.FailureKind = llm.KindBadRequest
		result.Reason = err.Error()
		return result
	}

	prompt := d.prompts.Build(unit, lang, opts)
	result.Truncated = prompt.Truncated

	req := llm.GenerateRequest{
		System:      prompt.System,
		Prompt:      prompt.User,
		Model:       opts.Model,
		MaxTokens:   d.cfg.MaxOutputTokens,
		Temperature: d.cfg.Temperature,
	}

	transientLeft := d.cfg.Retry.MaxRetries
	invalidLeft := d.cfg.Retry.retryBudget(llm.KindInvalidResponse)
	transientAttempt := 0

	for {
		text, model, err := d.attempt(ctx, provider, req, opts.Format, opts.DocLanguage)
		if errors.Is(err, ErrCancelled) {
			result.Status = UnitFailed
			result.FailureKind = ""
			result.Reason = ErrCancelled.Error()
			return result
		}
		result.Attempts++
		if err == nil {
			result.Status = UnitOK
			result.Documentation = text
			result.Model = model
			result.FailureKind = ""
			result.Reason = ""
			return result
		}

		kind := llm.KindOf(err)
		if kind == "" {
			kind = llm.KindNetwork
		}
		result.FailureKind = kind
		result.Reason = err.Error()

		var wait time.Duration
		switch {
		case kind == llm.KindInvalidResponse && invalidLeft > 0:
			invalidLeft--
		case d.cfg.Retry.retryBudget(kind) > 0 && kind != llm.KindInvalidResponse && transientLeft > 0:
			transientLeft--
			wait = d.cfg.Retry.delay(transientAttempt, llm.RetryAfterOf(err))
			transientAttempt++
		default:
			result.Status = UnitFailed
			d.logger.Warn("docgen.unit.failed",
				"unit", unit.QualifiedName(),
				"kind", kind,
				"attempts", result.Attempts,
				"err", err,
			)
			return result
		}

		d.observer.ProviderRetry(provider.Name(), kind)
		d.logger.Debug("docgen.retry",
			"unit", unit.QualifiedName(),
			"attempt", result.Attempts,
			"kind", kind,
			"sleep_ms", wait.Milliseconds(),
		)
		if err := d.sleep(ctx, wait); err != nil {
			result.Status = UnitFailed
			result.Reason = ErrCancelled.Error() + " while waiting to retry: " + result.Reason
			return result
		}
	}
}

// attempt performs one provider call plus post-processing. The slot of a
// gated provider is awaited under ctx; the call itself is not.
func (d *Documenter) attempt(ctx context.Context, provider llm.Provider, req llm.GenerateRequest, format Format, docLanguage string) (string, string, error) {
	if ctx.Err() != nil {
		return "", "", ErrCancelled
	}

	name := provider.Name()
	call := provider
	if g, ok := provider.(llm.Gated); ok {
		if err := g.Limiter().Acquire(ctx); err != nil {
			return "", "", ErrCancelled
		}
		defer g.Limiter().Release()
		call = g.Unwrap()
	}

	callCtx := context.WithoutCancel(ctx)
	if d.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, d.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := call.Generate(callCtx, req)
	d.observer.ProviderCall(name, llm.KindOf(err), time.Since(start))
	if err != nil {
		var e *llm.Error
		if !errors.As(err, &e) {
			if errors.Is(err, context.DeadlineExceeded) {
				return "", "", &llm.Error{Provider: name, Kind: llm.KindTimeout, Err: err}
			}
			return "", "", &llm.Error{Provider: name, Kind: llm.KindNetwork, Err: err}
		}
		return "", "", err
	}
	if resp == nil {
		return "", "", llm.NewError(name, llm.KindInvalidResponse, "nil response")
	}

	text, err := PostProcess(resp.Text, format, docLanguage)
	if err != nil {
		return "", "", &llm.Error{Provider: name, Kind: llm.KindInvalidResponse, Err: err}
	}
	return text, resp.Model, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
