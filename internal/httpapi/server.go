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

// Package httpapi exposes CodeScribe over HTTP.
//
// Routes (all JSON unless noted):
//
//	GET  /health                       liveness, provider and limiter state
//	GET  /metrics                      Prometheus metrics (text format)
//	GET  /v1/config                    languages, formats, styles, defaults, limits
//	GET  /v1/languages                 supported languages and extensions
//	GET  /v1/providers                 provider catalog
//	POST /v1/document/code             document a snippet synchronously
//	POST /v1/document/file             document one uploaded file synchronously
//	POST /v1/document/batch            submit a batch job (202 + job id)
//	GET  /v1/document/batch/{id}       job status snapshot
//	GET  /v1/document/batch/{id}/result   artifacts of a finished job
//	POST /v1/document/batch/{id}/cancel   cancel a running job
//	POST /v1/document/batch/{id}/ack      fetch the result and evict the job
//	POST /v1/document/batch/{id}/export   bundle a finished job for download
//	GET  /v1/exports/{id}              download an export (Markdown or HTML)
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/codescribe/internal/config"
	"github.com/kraklabs/codescribe/pkg/export"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/jobs"
	"github.com/kraklabs/codescribe/pkg/llm"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

// Deps are the components the API serves.
type Deps struct {
	Config  *config.Config
	Service *pipeline.Service
	Jobs    *jobs.Manager

	// Exports may be nil to disable the export endpoints.
	Exports *export.Store

	// Limiter is reported on /health when set.
	Limiter *llm.Limiter

	// Languages are the languages the extractor has grammars for.
	Languages []extract.Language
}

// Server is the HTTP front end.
type Server struct {
	deps    Deps
	logger  *slog.Logger
	version string

	maxBodyBytes int64

	router *mux.Router
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMaxBodyBytes caps request bodies. The default allows a full batch
// plus encoding overhead.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// NewServer builds the router over deps.
func NewServer(deps Deps, opts ...Option) *Server {
	s := &Server{
		deps:    deps,
		logger:  slog.Default(),
		version: "dev",
		router:  mux.NewRouter(),
	}
	if deps.Config != nil && deps.Config.MaxBatchBytes > 0 {
		// Base64 or JSON escaping can inflate content; leave headroom.
		s.maxBodyBytes = 2*deps.Config.MaxBatchBytes + 1<<20
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("httpapi.listen", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	api.HandleFunc("/languages", s.handleLanguages).Methods(http.MethodGet)
	api.HandleFunc("/providers", s.handleProviders).Methods(http.MethodGet)

	api.HandleFunc("/document/code", s.handleDocumentCode).Methods(http.MethodPost)
	api.HandleFunc("/document/file", s.handleDocumentFile).Methods(http.MethodPost)

	api.HandleFunc("/document/batch", s.handleSubmitBatch).Methods(http.MethodPost)
	api.HandleFunc("/document/batch", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/document/batch/{id}", s.handleJobStatus).Methods(http.MethodGet)
	api.HandleFunc("/document/batch/{id}/result", s.handleJobResult).Methods(http.MethodGet)
	api.HandleFunc("/document/batch/{id}/cancel", s.handleCancelJob).Methods(http.MethodPost)
	api.HandleFunc("/document/batch/{id}/ack", s.handleAcknowledgeJob).Methods(http.MethodPost)
	api.HandleFunc("/document/batch/{id}/export", s.handleExportJob).Methods(http.MethodPost)
	api.HandleFunc("/exports/{id}", s.handleGetExport).Methods(http.MethodGet)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("httpapi.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
