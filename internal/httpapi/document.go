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
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	cserrors "github.com/kraklabs/codescribe/internal/errors"
	"github.com/kraklabs/codescribe/internal/output"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/jobs"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

// multipartMemory is the in-memory share of a multipart form; the rest
// spills to temporary files.
const multipartMemory = 8 << 20

type codeRequest struct {
	Code     string          `json:"code"`
	Language string          `json:"language"`
	Config   json.RawMessage `json:"config,omitempty"`
}

type fileRequest struct {
	Filename string          `json:"filename"`
	Content  string          `json:"content"`
	Language string          `json:"language,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

type batchRequest struct {
	Files  []fileRequest   `json:"files"`
	Config json.RawMessage `json:"config,omitempty"`
}

func (s *Server) handleDocumentCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := output.DecodeJSON(r, s.maxBodyBytes, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		output.WriteError(w, http.StatusBadRequest, "InvalidRequest", "language is required")
		return
	}
	opts, err := s.options(req.Config)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := s.deps.Service.DocumentCode(r.Context(), req.Code, extract.ParseLanguage(req.Language), opts)
	s.writeResponse(w, resp)
}

func (s *Server) handleDocumentFile(w http.ResponseWriter, r *http.Request) {
	var (
		in     pipeline.FileInput
		config json.RawMessage
	)
	if isMultipart(r) {
		files, raw, err := s.readMultipart(w, r, "file")
		if err != nil {
			s.writeDecodeError(w, err)
			return
		}
		if len(files) != 1 {
			output.WriteError(w, http.StatusBadRequest, "InvalidRequest", "exactly one file is required")
			return
		}
		in, config = files[0], raw
	} else {
		var req fileRequest
		if err := output.DecodeJSON(r, s.maxBodyBytes, &req); err != nil {
			s.writeDecodeError(w, err)
			return
		}
		in, config = req.input(), req.Config
	}
	if in.Filename == "" {
		output.WriteError(w, http.StatusBadRequest, "InvalidRequest", "filename is required")
		return
	}

	opts, err := s.options(config)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, s.deps.Service.Document(r.Context(), in, opts))
}

func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var (
		files  []pipeline.FileInput
		config json.RawMessage
	)
	if isMultipart(r) {
		var err error
		files, config, err = s.readMultipart(w, r, "files")
		if err != nil {
			s.writeDecodeError(w, err)
			return
		}
	} else {
		var req batchRequest
		if err := output.DecodeJSON(r, s.maxBodyBytes, &req); err != nil {
			s.writeDecodeError(w, err)
			return
		}
		for _, f := range req.Files {
			files = append(files, f.input())
		}
		config = req.Config
	}

	opts, err := s.options(config)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := s.deps.Jobs.Submit(r.Context(), files, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("httpapi.batch.submitted", "job_id", id, "files", len(files))
	output.WriteJSON(w, http.StatusAccepted, map[string]any{
		"job_id": id,
		"status": jobs.StatusQueued,
		"files":  len(files),
	})
}

func (f fileRequest) input() pipeline.FileInput {
	in := pipeline.FileInput{Filename: f.Filename, Content: []byte(f.Content)}
	if f.Language != "" {
		in.Language = extract.ParseLanguage(f.Language)
	}
	return in
}

// options decodes the per-request overrides on top of the service defaults.
// Unset booleans keep their default value. Provider and model are merged
// afterwards so a request naming another provider does not inherit the
// default model.
func (s *Server) options(raw json.RawMessage) (docgen.Options, error) {
	defaults := s.defaults()
	opts := defaults
	opts.Provider, opts.Model = "", ""
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return opts, fmt.Errorf("%w: config: %v", docgen.ErrInvalidOptions, err)
		}
	}
	opts = opts.Merge(defaults)
	if s.deps.Service != nil {
		return opts, s.deps.Service.Processor().CheckOptions(opts)
	}
	return opts, opts.Validate()
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readMultipart collects every file uploaded under field plus the optional
// "config" form value.
func (s *Server) readMultipart(w http.ResponseWriter, r *http.Request, field string) ([]pipeline.FileInput, json.RawMessage, error) {
	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, nil, fmt.Errorf("parse multipart form: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var files []pipeline.FileInput
	for _, fh := range r.MultipartForm.File[field] {
		content, err := readPart(fh)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, pipeline.FileInput{Filename: fh.Filename, Content: content})
	}
	var config json.RawMessage
	if v := r.FormValue("config"); v != "" {
		config = json.RawMessage(v)
	}
	return files, config, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// writeResponse answers a synchronous request. Files rejected before
// extraction carry no metadata and map to 422; everything else is 200 with
// the success flag telling the caller whether documentation was produced.
func (s *Server) writeResponse(w http.ResponseWriter, resp pipeline.Response) {
	status := http.StatusOK
	if !resp.Success && resp.Metadata == nil {
		status = http.StatusUnprocessableEntity
	}
	output.WriteJSON(w, status, resp)
}

func (s *Server) writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		output.WriteError(w, http.StatusRequestEntityTooLarge, "PayloadTooLarge",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	output.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := cserrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("httpapi.error", "err", err, "status", status)
	}
	output.WriteError(w, status, cserrors.Code(err), err.Error())
}
