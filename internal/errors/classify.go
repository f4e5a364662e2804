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

package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/kraklabs/codescribe/internal/config"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/export"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/jobs"
	"github.com/kraklabs/codescribe/pkg/llm"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

// FromError turns a domain error into a UserError. UserErrors pass through;
// unknown errors become internal errors.
func FromError(err error) *UserError {
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue
	}

	var lerr *llm.Error
	if stderrors.As(err, &lerr) {
		return fromProviderError(lerr)
	}

	switch {
	case stderrors.Is(err, config.ErrInvalid):
		return NewConfigError("Invalid configuration", err.Error(), "Check codescribe.yaml and CODESCRIBE_* variables", err)
	case stderrors.Is(err, docgen.ErrInvalidOptions):
		return NewInputError("Invalid generation options", err.Error(), "Run 'codescribe languages' to list styles and formats")
	case stderrors.Is(err, extract.ErrUnsupportedLanguage), stderrors.Is(err, pipeline.ErrUnknownLanguage):
		return NewInputError("Unsupported source file", err.Error(), "Supported languages: "+supportedLanguages())
	case stderrors.Is(err, pipeline.ErrFileTooLarge), stderrors.Is(err, pipeline.ErrBinaryContent):
		return NewInputError("File rejected", err.Error(), "Only text source files within max_file_bytes are documented")
	case stderrors.Is(err, jobs.ErrEmptyBatch), stderrors.Is(err, jobs.ErrTooManyFiles), stderrors.Is(err, jobs.ErrPayloadTooLarge):
		return NewInputError("Batch rejected", err.Error(), "Split the batch or raise max_files / max_batch_bytes")
	case stderrors.Is(err, jobs.ErrNotFound), stderrors.Is(err, export.ErrNotFound):
		return NewNotFoundError("Not found", err.Error(), "Finished jobs are evicted after job_retention_seconds")
	case stderrors.Is(err, jobs.ErrNotReady):
		return NewInputError("Job still running", err.Error(), "Poll the job status until it is completed or failed")
	case stderrors.Is(err, export.ErrUnsupportedFormat):
		return NewInputError("Unsupported export format", err.Error(), "Use markdown or html")
	case stderrors.Is(err, fs.ErrNotExist):
		return NewNotFoundError("File not found", err.Error(), "Check the path and try again")
	case stderrors.Is(err, fs.ErrPermission):
		return NewPermissionError("Permission denied", err.Error(), "Check the file permissions", err)
	}
	return NewInternalError("Unexpected error", err.Error(), "This is a bug. Please report it with the command you ran", err)
}

func fromProviderError(err *llm.Error) *UserError {
	cause := err.Error()
	switch err.Kind {
	case llm.KindAuthFailure:
		return NewProviderError("Provider rejected the credentials", cause,
			fmt.Sprintf("Check the API key for %s or choose another provider", err.Provider), err)
	case llm.KindRateLimited:
		return NewProviderError("Provider rate limit reached", cause, "Lower max_concurrent_calls or retry later", err)
	case llm.KindTimeout, llm.KindNetwork, llm.KindUnavailable:
		return NewNetworkError("Provider unavailable", cause, "Check connectivity to the provider and try again", err)
	case llm.KindBadRequest, llm.KindInvalidResponse:
		return NewProviderError("Provider could not document the code", cause, "Try another model or a lower verbosity", err)
	}
	return NewInternalError("Unexpected provider error", cause, "", err)
}

func supportedLanguages() string {
	var out string
	for i, l := range extract.DefaultRegistry(nil).Languages() {
		if i > 0 {
			out += ", "
		}
		out += string(l)
	}
	return out
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	var lerr *llm.Error
	if stderrors.As(err, &lerr) {
		switch lerr.Kind {
		case llm.KindAuthFailure:
			return http.StatusBadGateway
		case llm.KindRateLimited:
			return http.StatusTooManyRequests
		case llm.KindTimeout:
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}

	switch {
	case stderrors.Is(err, jobs.ErrNotFound), stderrors.Is(err, export.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, jobs.ErrNotReady):
		return http.StatusConflict
	case stderrors.Is(err, jobs.ErrPayloadTooLarge), stderrors.Is(err, pipeline.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, jobs.ErrEmptyBatch), stderrors.Is(err, jobs.ErrTooManyFiles),
		stderrors.Is(err, docgen.ErrInvalidOptions), stderrors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case stderrors.Is(err, extract.ErrUnsupportedLanguage), stderrors.Is(err, pipeline.ErrUnknownLanguage),
		stderrors.Is(err, pipeline.ErrBinaryContent):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, jobs.ErrClosed):
		return http.StatusServiceUnavailable
	}

	var ue *UserError
	if stderrors.As(err, &ue) {
		switch ue.ExitCode {
		case ExitInput:
			return http.StatusBadRequest
		case ExitNotFound:
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

// Code is the stable machine-readable error code of err for API bodies.
func Code(err error) string {
	var lerr *llm.Error
	if stderrors.As(err, &lerr) {
		return string(lerr.Kind)
	}
	codes := []struct {
		target error
		code   string
	}{
		{jobs.ErrEmptyBatch, "EmptyBatch"},
		{jobs.ErrTooManyFiles, "TooManyFiles"},
		{jobs.ErrPayloadTooLarge, "PayloadTooLarge"},
		{jobs.ErrNotFound, "NotFound"},
		{export.ErrNotFound, "NotFound"},
		{jobs.ErrNotReady, "NotReady"},
		{jobs.ErrClosed, "Unavailable"},
		{docgen.ErrInvalidOptions, "InvalidOptions"},
		{export.ErrUnsupportedFormat, "InvalidOptions"},
		{extract.ErrUnsupportedLanguage, "UnsupportedLanguage"},
		{pipeline.ErrUnknownLanguage, "UnsupportedLanguage"},
		{pipeline.ErrFileTooLarge, "PayloadTooLarge"},
		{pipeline.ErrBinaryContent, "UnsupportedLanguage"},
	}
	for _, c := range codes {
		if stderrors.Is(err, c.target) {
			return c.code
		}
	}
	return "Internal"
}
