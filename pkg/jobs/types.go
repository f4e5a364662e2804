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

package jobs

import (
	"errors"
	"time"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

var (
	ErrEmptyBatch      = errors.New("batch contains no files")
	ErrTooManyFiles    = errors.New("too many files in batch")
	ErrPayloadTooLarge = errors.New("batch payload too large")
	ErrNotFound        = errors.New("job not found")
	ErrNotReady        = errors.New("job not finished")
	ErrClosed          = errors.New("job manager closed")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job can no longer change.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Reason explains why a job failed.
type Reason string

const (
	ReasonAuthFailure  Reason = "AuthFailure"
	ReasonCancelled    Reason = "Cancelled"
	ReasonNoValidFiles Reason = "NoValidFiles"
	ReasonFailFast     Reason = "FailFast"
)

// FileSnapshot is the published state of one file task.
type FileSnapshot struct {
	Index      int                 `json:"index"`
	Filename   string              `json:"filename"`
	Language   extract.Language    `json:"language,omitempty"`
	Status     pipeline.FileStatus `json:"status"`
	TotalUnits int                 `json:"total_units"`
	DoneUnits  int                 `json:"processed_units"`
	Error      string              `json:"error,omitempty"`
}

// Snapshot is an immutable view of a job. A new value is published after
// every state change; readers never observe a partial update.
type Snapshot struct {
	ID       string `json:"job_id"`
	Status   Status `json:"status"`
	Reason   Reason `json:"reason,omitempty"`
	Progress int    `json:"progress"`

	// TotalUnits is known once every file has been extracted.
	TotalUnits int `json:"total_units"`

	// DoneUnits counts units in a terminal state, documented or failed.
	DoneUnits       int `json:"processed_units"`
	DocumentedUnits int `json:"documented_units"`
	FailedUnits     int `json:"failed_units"`

	Files       []FileSnapshot `json:"files"`
	Options     docgen.Options `json:"options"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Result holds the artifacts of a terminal job.
type Result struct {
	ID          string                `json:"job_id"`
	Status      Status                `json:"status"`
	Reason      Reason                `json:"reason,omitempty"`
	Options     docgen.Options        `json:"options"`
	Files       []pipeline.FileResult `json:"files"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt time.Time             `json:"completed_at"`
}

// Config bounds what a job may contain and how it runs.
type Config struct {
	// MaxFiles caps the files per batch, 0 for no limit.
	MaxFiles int

	// MaxBatchBytes caps the summed content size, 0 for no limit.
	MaxBatchBytes int64

	// MaxConcurrentFiles caps files processed at once per job.
	MaxConcurrentFiles int

	// FailFast fails the whole job as soon as one file fails.
	FailFast bool

	// Defaults fill options left empty on submit.
	Defaults docgen.Options
}

// DefaultConfig returns the manager defaults.
func DefaultConfig() Config {
	return Config{
		MaxFiles:           100,
		MaxBatchBytes:      50 << 20,
		MaxConcurrentFiles: 4,
		Defaults:           docgen.DefaultOptions(),
	}
}
