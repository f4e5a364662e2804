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

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kraklabs/codescribe/internal/config"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/export"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/jobs"
	"github.com/kraklabs/codescribe/pkg/llm"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

// Options override parts of the wiring. The zero value builds everything
// from the configuration.
type Options struct {
	// Provider replaces the adapter built from the configuration.
	Provider llm.Provider

	// Extra replaces the adapters built from the providers section.
	Extra []llm.Provider

	// Counter replaces the tiktoken counter.
	Counter docgen.TokenCounter

	// Logger is used by every component. Nil uses slog.Default().
	Logger *slog.Logger
}

// App holds the wired components of a running CodeScribe instance.
type App struct {
	Config     *config.Config
	Provider   llm.Provider
	Providers  *llm.Set
	Limiter    *llm.Limiter
	Registry   *extract.Registry
	Documenter *docgen.Documenter
	Processor  *pipeline.Processor
	Service    *pipeline.Service
	Store      *jobs.Store
	Jobs       *jobs.Manager

	// Exports is nil when cfg.ExportPath is empty.
	Exports *export.Store

	logger *slog.Logger
}

// New wires the documentation stack described by cfg.
//
// One adapter is built for the selected provider and one for every other
// entry of the providers section. All of them share a limiter that caps
// concurrent calls across every job and the synchronous path; each request
// is routed by its provider option. Documenter metrics are reported
// through the jobs package collectors.
//
// Parameters:
//   - cfg: validated configuration
//   - opts: optional overrides, mostly for tests
//
// Returns:
//   - *App: the wired components; call Close when done
//   - error: if the provider, the job store or the export store cannot be created
func New(cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider := opts.Provider
	if provider == nil {
		p, err := llm.NewProvider(cfg.ProviderConfig())
		if err != nil {
			return nil, fmt.Errorf("create provider: %w", err)
		}
		provider = p
	}

	extra := opts.Extra
	if extra == nil {
		for _, name := range cfg.ProviderNames() {
			p, err := llm.NewProvider(cfg.ProviderConfigFor(name))
			if err != nil {
				return nil, fmt.Errorf("create provider %s: %w", name, err)
			}
			extra = append(extra, p)
		}
	}

	counter := opts.Counter
	if counter == nil {
		tc, err := docgen.NewTiktokenCounter()
		if err != nil {
			logger.Warn("bootstrap.tokens.fallback", "err", err)
			counter = docgen.EstimateCounter{}
		} else {
			counter = tc
		}
	}

	limiter := llm.NewLimiter(cfg.MaxConcurrentCalls)
	limited := make([]llm.Provider, 0, len(extra))
	for _, p := range extra {
		limited = append(limited, llm.NewLimitedProvider(p, limiter))
	}
	providers := llm.NewSet(llm.NewLimitedProvider(provider, limiter), limited...).WithAlias(cfg.Provider)

	dcfg := docgen.DefaultConfig()
	dcfg.Retry.MaxRetries = cfg.RetryLimit
	dcfg.CallTimeout = cfg.CallTimeout()
	documenter := docgen.NewRoutingDocumenter(providers, dcfg, counter, logger)
	documenter.SetObserver(jobs.MetricsObserver())

	registry := extract.DefaultRegistry(logger)
	processor := pipeline.NewProcessor(registry, documenter, pipeline.ProcessorConfig{
		MaxConcurrentUnits: cfg.MaxConcurrentUnits,
		MaxFileBytes:       cfg.MaxFileBytes,
	}, logger)

	store, err := jobs.NewStore(jobs.StoreConfig{
		Retention:    cfg.Retention(),
		ReapSchedule: cfg.ReapSchedule,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create job store: %w", err)
	}

	defaults := cfg.Options()
	manager := jobs.NewManager(processor, store, jobs.Config{
		MaxFiles:           cfg.MaxFiles,
		MaxBatchBytes:      cfg.MaxBatchBytes,
		MaxConcurrentFiles: cfg.MaxConcurrentFiles,
		FailFast:           cfg.FailFast,
		Defaults:           defaults,
	}, logger)

	app := &App{
		Config:     cfg,
		Provider:   provider,
		Providers:  providers,
		Limiter:    limiter,
		Registry:   registry,
		Documenter: documenter,
		Processor:  processor,
		Service:    pipeline.NewService(processor, defaults, logger),
		Store:      store,
		Jobs:       manager,
		logger:     logger,
	}

	if cfg.ExportPath != "" {
		exports, err := export.Open(cfg.ExportPath)
		if err != nil {
			_ = app.Close(context.Background())
			return nil, fmt.Errorf("open export store: %w", err)
		}
		app.Exports = exports
	}

	logger.Info("bootstrap.ready",
		"provider", provider.Name(),
		"providers", providers.Names(),
		"languages", len(registry.Languages()),
		"max_calls", cfg.MaxConcurrentCalls,
		"exports", cfg.ExportPath != "",
	)
	return app, nil
}

// Close drains running jobs, bounded by ctx, then releases the stores.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Jobs.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close jobs: %w", err))
	}
	a.Store.Close()
	if a.Exports != nil {
		if err := a.Exports.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exports: %w", err))
		}
	}
	a.logger.Debug("bootstrap.closed")
	return errors.Join(errs...)
}
