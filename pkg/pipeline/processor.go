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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/codescribe/pkg/assemble"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/llm"
)

var (
	// ErrFileTooLarge is the file error for content above the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrBinaryContent is the file error for non-text content.
	ErrBinaryContent = errors.New("binary content")

	// ErrUnknownLanguage is returned when no language could be detected.
	ErrUnknownLanguage = errors.New("could not detect language")
)

// FileStatus is the state of one file of a batch.
type FileStatus string

const (
	FilePending FileStatus = "pending"
	FileRunning FileStatus = "running"
	FileDone    FileStatus = "done"
	FileFailed  FileStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s FileStatus) Terminal() bool { return s == FileDone || s == FileFailed }

// FileInput is one submitted file.
type FileInput struct {
	Filename string           `json:"filename"`
	Content  []byte           `json:"-"`
	Language extract.Language `json:"language,omitempty"`
}

// Metadata describes how a file was documented.
type Metadata struct {
	Language        extract.Language `json:"language"`
	Units           int              `json:"unit_count"`
	DocumentedUnits int              `json:"documented_units"`
	FailedUnits     int              `json:"failed_units"`
	Provider        string           `json:"provider"`
	Model           string           `json:"model,omitempty"`
	ProcessingMS    int64            `json:"processing_time_ms"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Prepared is a validated, extracted file ready for unit dispatch.
type Prepared struct {
	Input    FileInput
	Language extract.Language
	Units    []extract.Unit

	// ParseErr is set when extraction degraded to the whole-file unit.
	ParseErr error
}

// FileResult is the terminal outcome of one file.
type FileResult struct {
	Filename string                  `json:"filename"`
	Language extract.Language        `json:"language,omitempty"`
	Status   FileStatus              `json:"status"`
	Units    []docgen.DocumentedUnit `json:"units,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Artifact *assemble.Artifact      `json:"artifact,omitempty"`
	Metadata Metadata                `json:"metadata"`

	// Fatal is set to the failure kind that must stop the whole batch.
	Fatal llm.Kind `json:"-"`
}

// Hooks observe a file while it is processed. OnUnit is called from unit
// workers, concurrently.
type Hooks struct {
	OnUnit func(du docgen.DocumentedUnit)
}

// ProcessorConfig bounds per-file work.
type ProcessorConfig struct {
	MaxConcurrentUnits int
	MaxFileBytes       int64
}

// Processor runs one file through extraction, documentation and assembly.
type Processor struct {
	extractor  extract.Extractor
	documenter *docgen.Documenter
	cfg        ProcessorConfig
	logger     *slog.Logger
}

// NewProcessor creates a file processor.
func NewProcessor(extractor extract.Extractor, documenter *docgen.Documenter, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentUnits < 1 {
		cfg.MaxConcurrentUnits = 4
	}
	return &Processor{
		extractor:  extractor,
		documenter: documenter,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProviderName returns the name of the default provider.
func (p *Processor) ProviderName() string { return p.documenter.Provider().Name() }

// ProviderNames lists every provider a job can select.
func (p *Processor) ProviderNames() []string { return p.documenter.Providers().Names() }

// CheckOptions reports whether opts can be run, including its provider.
func (p *Processor) CheckOptions(opts docgen.Options) error {
	return p.documenter.CheckOptions(opts)
}

// Prepare validates in and extracts its units. A returned error is a
// file-level failure; parse errors are not, they land in Prepared.ParseErr.
func (p *Processor) Prepare(in FileInput) (Prepared, error) {
	prep := Prepared{Input: in}

	if p.cfg.MaxFileBytes > 0 && int64(len(in.Content)) > p.cfg.MaxFileBytes {
		return prep, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(in.Content), p.cfg.MaxFileBytes)
	}
	if extract.IsBinary(in.Content) {
		return prep, ErrBinaryContent
	}

	lang := in.Language
	if lang == "" {
		lang = extract.DetectLanguage(in.Filename, in.Content)
	} else {
		lang = extract.ParseLanguage(string(lang))
	}
	prep.Language = lang
	if lang == "" {
		if extract.IsBlank(in.Content) {
			// Nothing to document and nothing to sniff; not an error.
			return prep, nil
		}
		return prep, fmt.Errorf("%w for %q", ErrUnknownLanguage, in.Filename)
	}

	units, err := p.extractor.Extract(in.Content, lang)
	switch {
	case errors.Is(err, extract.ErrParse):
		p.logger.Warn("pipeline.file.parse_degraded", "file", in.Filename, "language", lang, "err", err)
		prep.ParseErr = err
	case err != nil:
		return prep, err
	}
	prep.Units = units
	return prep, nil
}

// Run documents every unit of prep and assembles the artifact.
// Pending units are not dispatched once ctx is done; they finish as failed.
func (p *Processor) Run(ctx context.Context, prep Prepared, opts docgen.Options, hooks Hooks) FileResult {
	start := time.Now()
	res := FileResult{
		Filename: prep.Input.Filename,
		Language: prep.Language,
		Units:    make([]docgen.DocumentedUnit, len(prep.Units)),
	}

	unitCtx, stop := context.WithCancel(ctx)
	defer stop()

	// Results are addressed by unit index; completion order is irrelevant.
	fatal := make(chan llm.Kind, 1)
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.MaxConcurrentUnits)
	for i, unit := range prep.Units {
		g.Go(func() error {
			du := p.documenter.Document(unitCtx, unit, prep.Language, opts)
			res.Units[i] = du
			if du.FailureKind == llm.KindAuthFailure {
				select {
				case fatal <- du.FailureKind:
				default:
				}
				stop()
			}
			if hooks.OnUnit != nil {
				hooks.OnUnit(du)
			}
			return nil
		})
	}
	_ = g.Wait()

	select {
	case kind := <-fatal:
		res.Fatal = kind
	default:
	}

	provider, err := p.documenter.ProviderFor(opts)
	if err != nil {
		provider = p.documenter.Provider()
	}
	res.Metadata = Metadata{
		Language:    prep.Language,
		Units:       len(res.Units),
		Provider:    provider.Name(),
		Model:       opts.Model,
		GeneratedAt: time.Now().UTC(),
	}
	for _, du := range res.Units {
		if du.Status == docgen.UnitOK {
			res.Metadata.DocumentedUnits++
			if du.Model != "" {
				res.Metadata.Model = du.Model
			}
		} else {
			res.Metadata.FailedUnits++
		}
	}
	if res.Metadata.Model == "" {
		if mp, ok := provider.(llm.ModelProvider); ok {
			res.Metadata.Model = mp.DefaultModel()
		}
	}

	art, err := assemble.Assemble(assemble.File{
		Filename: prep.Input.Filename,
		Language: prep.Language,
		Content:  prep.Input.Content,
		Units:    res.Units,
	}, opts.Format)
	res.Metadata.ProcessingMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Status = FileFailed
		res.Error = err.Error()
		return res
	}
	res.Artifact = &art
	res.Status = FileDone
	res.Error = joinErrors(parseNote(prep.ParseErr), art.Summary())

	p.logger.Info("pipeline.file.done",
		"file", res.Filename,
		"language", res.Language,
		"units", res.Metadata.Units,
		"documented", res.Metadata.DocumentedUnits,
		"failed", res.Metadata.FailedUnits,
		"duration_ms", res.Metadata.ProcessingMS,
	)
	return res
}

// Process prepares and runs a single file.
func (p *Processor) Process(ctx context.Context, in FileInput, opts docgen.Options, hooks Hooks) FileResult {
	prep, err := p.Prepare(in)
	if err != nil {
		return Failed(in, prep.Language, err)
	}
	return p.Run(ctx, prep, opts, hooks)
}

// Failed builds the result of a file rejected before dispatch.
func Failed(in FileInput, lang extract.Language, err error) FileResult {
	return FileResult{
		Filename: in.Filename,
		Language: lang,
		Status:   FileFailed,
		Error:    err.Error(),
		Metadata: Metadata{Language: lang, GeneratedAt: time.Now().UTC()},
	}
}

func parseNote(err error) string {
	if err == nil {
		return ""
	}
	return "documented as a single module: " + err.Error()
}

func joinErrors(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}
