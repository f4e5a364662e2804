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

// Package errors provides structured errors for the codescribe CLI and the
// HTTP API.
//
// A UserError carries what went wrong (Message), why (Cause) and what to do
// about it (Fix), plus the process exit code the CLI uses. The API layer
// maps the same errors to HTTP status codes with HTTPStatus.
//
//	return errors.NewProviderError(
//	    "Cannot reach the documentation provider",
//	    "OPENAI_API_KEY was rejected (401)",
//	    "Export a valid key or pick another provider with --provider",
//	    err,
//	)
//
// Format renders the colored terminal form:
//
//	Error: Cannot reach the documentation provider
//	Cause: OPENAI_API_KEY was rejected (401)
//	Fix:   Export a valid key or pick another provider with --provider
//
// # Exit Codes
//   - ExitSuccess (0): every unit documented
//   - ExitConfig (1): missing or invalid configuration
//   - ExitProvider (2): provider rejected the request (auth, quota)
//   - ExitNetwork (3): provider unreachable or timing out
//   - ExitInput (4): bad arguments or unsupported files
//   - ExitPermission (5): file access denied
//   - ExitNotFound (6): file, job or export not found
//   - ExitPartial (7): finished, but some units or files failed
//   - ExitInternal (10): bugs
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	ExitSuccess    = 0
	ExitConfig     = 1
	ExitProvider   = 2
	ExitNetwork    = 3
	ExitInput      = 4
	ExitPermission = 5
	ExitNotFound   = 6

	// ExitPartial signals a run that finished with failed units or files.
	ExitPartial = 7

	// ExitInternal signals "this is a bug that should be reported".
	ExitInternal = 10
)

// UserError is an error with context for end users.
type UserError struct {
	// Message describes what went wrong.
	Message string

	// Cause explains why it happened.
	Cause string

	// Fix is an actionable suggestion.
	Fix string

	ExitCode int

	// Err is the wrapped error, if any.
	Err error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError reports a missing or invalid configuration.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewProviderError reports a provider that refused to serve the request.
func NewProviderError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitProvider, msg, cause, fix, err)
}

// NewNetworkError reports an unreachable or slow provider.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError reports invalid user input. Input errors do not wrap.
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

// NewPermissionError reports denied file access.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitPermission, msg, cause, fix, err)
}

// NewNotFoundError reports a missing file, job or export.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, nil)
}

// NewPartialError reports a run that completed with failures.
func NewPartialError(msg, cause, fix string) *UserError {
	return newUserError(ExitPartial, msg, cause, fix, nil)
}

// NewInternalError reports a bug.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns the error for terminal display. Color is disabled by
// noColor or NO_COLOR; empty Cause and Fix lines are left out.
//
// Format swaps the global color.NoColor and restores it before returning.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")
	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the machine-readable form of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// exit is replaced in tests.
var exit = os.Exit

// FatalError prints err to stderr and exits. Errors that are not a
// UserError are first classified with FromError.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	ue := FromError(err)
	if jsonOutput {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(os.Stderr, ue.Format(false))
	}
	exit(ue.ExitCode)
}
