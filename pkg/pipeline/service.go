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
	"fmt"
	"log/slog"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
)

// UnitSummary is the per-unit metadata returned by the synchronous path.
type UnitSummary struct {
	Index     int          `json:"index"`
	Kind      extract.Kind `json:"kind"`
	Name      string       `json:"name"`
	StartLine int          `json:"start_line"`
	EndLine   int          `json:"end_line"`
	Status    string       `json:"status"`
	Reason    string       `json:"reason,omitempty"`
}

// Response is the result of a synchronous documentation request.
type Response struct {
	Success       bool          `json:"success"`
	Documentation string        `json:"documentation"`
	Message       string        `json:"message"`
	Language      string        `json:"language,omitempty"`
	Format        docgen.Format `json:"format,omitempty"`
	Units         []UnitSummary `json:"units,omitempty"`
	Metadata      *Metadata     `json:"metadata,omitempty"`
}

// Service is the synchronous single-file path. It shares the Processor with
// the batch path and bypasses the job manager entirely.
type Service struct {
	processor *Processor
	defaults  docgen.Options
	logger    *slog.Logger
}

// NewService creates a synchronous documentation service.
func NewService(processor *Processor, defaults docgen.Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{processor: processor, defaults: defaults, logger: logger}
}

// Processor returns the shared file processor.
func (s *Service) Processor() *Processor { return s.processor }

// DocumentCode documents a snippet in the given language.
func (s *Service) DocumentCode(ctx context.Context, code string, lang extract.Language, opts docgen.Options) Response {
	if lang == "" {
		return Response{Message: "language is required"}
	}
	name := "snippet"
	if exts := extract.Extensions(extract.ParseLanguage(string(lang))); len(exts) > 0 {
		name += exts[0]
	}
	return s.Document(ctx, FileInput{Filename: name, Content: []byte(code), Language: lang}, opts)
}

// DocumentFile documents a whole file, detecting its language from the name
// and content.
func (s *Service) DocumentFile(ctx context.Context, filename string, content []byte, opts docgen.Options) Response {
	return s.Document(ctx, FileInput{Filename: filename, Content: content}, opts)
}

// Document documents in. An explicit in.Language skips detection.
func (s *Service) Document(ctx context.Context, in FileInput, opts docgen.Options) Response {
	opts = opts.Merge(s.defaults)
	if err := s.processor.CheckOptions(opts); err != nil {
		return Response{Message: err.Error()}
	}

	res := s.processor.Process(ctx, in, opts, Hooks{})
	resp := Response{
		Language: string(res.Language),
		Format:   opts.Format,
	}
	if res.Status == FileFailed {
		resp.Message = res.Error
		return resp
	}

	resp.Metadata = &res.Metadata
	for _, du := range res.Units {
		resp.Units = append(resp.Units, UnitSummary{
			Index:     du.Unit.Index,
			Kind:      du.Unit.Kind,
			Name:      du.Unit.QualifiedName(),
			StartLine: du.Unit.StartLine,
			EndLine:   du.Unit.EndLine,
			Status:    string(du.Status),
			Reason:    string(du.FailureKind),
		})
	}
	if res.Artifact != nil {
		resp.Documentation = res.Artifact.Content
	}

	switch {
	case res.Fatal != "":
		resp.Message = fmt.Sprintf("provider %s: %s", res.Metadata.Provider, res.Fatal)
	case len(res.Units) > 0 && res.Metadata.DocumentedUnits == 0:
		resp.Message = "no unit could be documented: " + res.Error
	default:
		resp.Success = true
		resp.Message = fmt.Sprintf("documented %d of %d units", res.Metadata.DocumentedUnits, res.Metadata.Units)
		if res.Error != "" {
			resp.Message += "; " + res.Error
		}
	}

	s.logger.Debug("pipeline.sync.done",
		"file", in.Filename,
		"success", resp.Success,
		"units", len(resp.Units),
	)
	return resp
}
