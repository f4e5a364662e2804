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

	"github.com/gorilla/mux"

	"github.com/kraklabs/codescribe/internal/output"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/export"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	output.WriteJSON(w, http.StatusOK, map[string]any{"jobs": s.deps.Jobs.Store().List()})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Jobs.Status(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	output.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Jobs.Result(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	output.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.deps.Jobs.Cancel(id); err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.deps.Jobs.Status(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	output.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAcknowledgeJob(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Jobs.Acknowledge(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	output.WriteJSON(w, http.StatusOK, res)
}

type exportResponse struct {
	ID     string        `json:"export_id"`
	JobID  string        `json:"job_id"`
	Format docgen.Format `json:"format"`
	URL    string        `json:"url"`
}

func (s *Server) handleExportJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exports == nil {
		output.WriteError(w, http.StatusNotImplemented, "Unavailable", "exports are disabled")
		return
	}
	res, err := s.deps.Jobs.Result(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := export.NewRecord(res, docgen.ParseFormat(r.URL.Query().Get("format")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Exports.Save(r.Context(), rec); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("httpapi.export.created", "export_id", rec.ID, "job_id", rec.JobID, "format", rec.Format)
	output.WriteJSON(w, http.StatusCreated, exportResponse{
		ID:     rec.ID,
		JobID:  rec.JobID,
		Format: rec.Format,
		URL:    "/v1/exports/" + rec.ID,
	})
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exports == nil {
		output.WriteError(w, http.StatusNotImplemented, "Unavailable", "exports are disabled")
		return
	}
	rec, err := s.deps.Exports.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	body, contentType, err := export.Render(rec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(rec)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
