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

package httpapi

import (
	"net/http"

	"github.com/kraklabs/codescribe/internal/output"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/llm"
)

type healthResponse struct {
	Status   string             `json:"status"`
	Version  string             `json:"version"`
	Provider string             `json:"provider,omitempty"`
	Jobs     int                `json:"jobs"`
	Calls    *llm.LimiterStatus `json:"calls,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Version: s.version}
	if s.deps.Service != nil {
		resp.Provider = s.deps.Service.Processor().ProviderName()
	}
	if s.deps.Jobs != nil {
		resp.Jobs = s.deps.Jobs.Store().Len()
	}
	if s.deps.Limiter != nil {
		st := s.deps.Limiter.Status()
		resp.Calls = &st
	}
	output.WriteJSON(w, http.StatusOK, resp)
}

type languageInfo struct {
	Name       string         `json:"name"`
	Extensions []string       `json:"extensions"`
	Styles     []docgen.Style `json:"styles"`
}

func (s *Server) languages() []languageInfo {
	infos := make([]languageInfo, 0, len(s.deps.Languages))
	for _, lang := range s.deps.Languages {
		infos = append(infos, languageInfo{
			Name:       string(lang),
			Extensions: extract.Extensions(lang),
			Styles:     docgen.StylesFor(lang),
		})
	}
	return infos
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	output.WriteJSON(w, http.StatusOK, map[string]any{"languages": s.languages()})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"providers": llm.DescribeProviders()}
	if s.deps.Config != nil {
		resp["default"] = s.deps.Config.Provider
	}
	if s.deps.Service != nil {
		resp["configured"] = s.deps.Service.Processor().ProviderNames()
	}
	output.WriteJSON(w, http.StatusOK, resp)
}

type limitsInfo struct {
	MaxFiles           int   `json:"max_files"`
	MaxFileBytes       int64 `json:"max_file_bytes"`
	MaxBatchBytes      int64 `json:"max_batch_bytes"`
	MaxConcurrentFiles int   `json:"max_concurrent_files"`
	MaxConcurrentUnits int   `json:"max_concurrent_units"`
	MaxConcurrentCalls int   `json:"max_concurrent_calls"`
	RetentionSeconds   int   `json:"job_retention_seconds"`
}

type configResponse struct {
	Languages       []languageInfo     `json:"languages"`
	OutputFormats   []docgen.Format    `json:"output_formats"`
	VerbosityLevels []docgen.Verbosity `json:"verbosity_levels"`
	Providers       []string           `json:"providers"`
	Defaults        docgen.Options     `json:"defaults"`
	Limits          *limitsInfo        `json:"limits,omitempty"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	resp := configResponse{
		Languages:       s.languages(),
		OutputFormats:   docgen.Formats(),
		VerbosityLevels: []docgen.Verbosity{docgen.VerbosityLow, docgen.VerbosityMedium, docgen.VerbosityHigh},
		Providers:       llm.SupportedProviders(),
		Defaults:        s.defaults(),
	}
	if c := s.deps.Config; c != nil {
		resp.Limits = &limitsInfo{
			MaxFiles:           c.MaxFiles,
			MaxFileBytes:       c.MaxFileBytes,
			MaxBatchBytes:      c.MaxBatchBytes,
			MaxConcurrentFiles: c.MaxConcurrentFiles,
			MaxConcurrentUnits: c.MaxConcurrentUnits,
			MaxConcurrentCalls: c.MaxConcurrentCalls,
			RetentionSeconds:   c.JobRetentionSeconds,
		}
	}
	output.WriteJSON(w, http.StatusOK, resp)
}

// defaults are the options a request starts from before its own overrides.
func (s *Server) defaults() docgen.Options {
	if s.deps.Config != nil {
		return s.deps.Config.Options()
	}
	return docgen.DefaultOptions()
}
