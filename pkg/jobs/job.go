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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/llm"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

type eventKind int

const (
	evStarted eventKind = iota
	evPrepared
	evFileStarted
	evUnit
	evFileDone
	evCancel
	evFinished
)

// event is a state change sent to a job's owner goroutine.
type event struct {
	kind     eventKind
	file     int
	unit     docgen.DocumentedUnit
	result   pipeline.FileResult
	prepared []preparedFile
	ack      chan struct{}
}

type preparedFile struct {
	prep pipeline.Prepared
	err  error
}

// job is the shared handle of a submitted batch. Everything except snap and
// result is immutable after creation; mutable state lives in jobState.
type job struct {
	id        string
	inputs    []pipeline.FileInput
	opts      docgen.Options
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	events chan event
	done   chan struct{}

	snap   atomic.Pointer[Snapshot]
	result atomic.Pointer[Result]
}

func newJob(parent context.Context, id string, inputs []pipeline.FileInput, opts docgen.Options) *job {
	ctx, cancel := context.WithCancel(parent)
	j := &job{
		id:        id,
		inputs:    inputs,
		opts:      opts,
		createdAt: time.Now().UTC(),
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan event, 64),
		done:      make(chan struct{}),
	}

	files := make([]FileSnapshot, len(inputs))
	for i, in := range inputs {
		files[i] = FileSnapshot{Index: i, Filename: in.Filename, Language: in.Language, Status: pipeline.FilePending}
	}
	j.snap.Store(&Snapshot{
		ID:        id,
		Status:    StatusQueued,
		Files:     files,
		Options:   opts,
		CreatedAt: j.createdAt,
	})
	return j
}

// Snapshot returns the last published state.
func (j *job) Snapshot() Snapshot { return *j.snap.Load() }

type fileState struct {
	snap   FileSnapshot
	result *pipeline.FileResult
}

// jobState is the mutable state owned by a single goroutine.
type jobState struct {
	j        *job
	failFast bool

	status      Status
	reason      Reason
	completedAt time.Time
	progress    int
	prepared    bool

	files      []fileState
	totalUnits int
	doneUnits  int
	documented int
	failed     int
}

func newJobState(j *job, failFast bool) *jobState {
	snap := j.Snapshot()
	st := &jobState{j: j, failFast: failFast, status: snap.Status, files: make([]fileState, len(snap.Files))}
	for i, f := range snap.Files {
		st.files[i].snap = f
	}
	return st
}

// apply folds ev into the state. It returns the terminal transition made by
// this event, if any.
func (st *jobState) apply(ev event) (transitioned bool) {
	if ev.kind == evFinished {
		if st.status.Terminal() {
			return false
		}
		if st.allFilesTerminal() {
			st.finish(StatusCompleted, "")
		} else {
			st.finish(StatusFailed, ReasonCancelled)
		}
		return true
	}
	if st.status.Terminal() {
		// Late results of a finished job are discarded.
		return false
	}

	switch ev.kind {
	case evStarted:
		st.status = StatusRunning

	case evPrepared:
		st.prepared = true
		valid, rejected := 0, false
		for i, pf := range ev.prepared {
			f := &st.files[i]
			f.snap.Language = pf.prep.Language
			if pf.err != nil {
				res := pipeline.Failed(st.j.inputs[i], pf.prep.Language, pf.err)
				f.result = &res
				f.snap.Status = pipeline.FileFailed
				f.snap.Error = res.Error
				rejected = true
				continue
			}
			valid++
			f.snap.TotalUnits = len(pf.prep.Units)
			st.totalUnits += len(pf.prep.Units)
		}
		switch {
		case valid == 0:
			st.finish(StatusFailed, ReasonNoValidFiles)
			return true
		case rejected && st.failFast:
			st.finish(StatusFailed, ReasonFailFast)
			return true
		}

	case evFileStarted:
		st.files[ev.file].snap.Status = pipeline.FileRunning

	case evUnit:
		f := &st.files[ev.file]
		f.snap.DoneUnits++
		st.doneUnits++
		if ev.unit.Status == docgen.UnitOK {
			st.documented++
		} else {
			st.failed++
		}
		if ev.unit.FailureKind == llm.KindAuthFailure {
			st.finish(StatusFailed, ReasonAuthFailure)
			return true
		}

	case evFileDone:
		f := &st.files[ev.file]
		res := ev.result
		f.result = &res
		f.snap.Status = res.Status
		f.snap.Error = res.Error
		if missing := f.snap.TotalUnits - f.snap.DoneUnits; missing > 0 {
			f.snap.DoneUnits += missing
			st.doneUnits += missing
			st.failed += missing
		}
		switch {
		case res.Fatal == llm.KindAuthFailure:
			st.finish(StatusFailed, ReasonAuthFailure)
			return true
		case res.Status == pipeline.FileFailed && st.failFast:
			st.finish(StatusFailed, ReasonFailFast)
			return true
		}

	case evCancel:
		st.finish(StatusFailed, ReasonCancelled)
		return true
	}
	return false
}

func (st *jobState) allFilesTerminal() bool {
	if !st.prepared {
		return false
	}
	for _, f := range st.files {
		if !f.snap.Status.Terminal() {
			return false
		}
	}
	return true
}

// finish moves the job to a terminal status, fails every unfinished file and
// publishes the result.
func (st *jobState) finish(status Status, reason Reason) {
	st.status = status
	st.reason = reason
	st.completedAt = time.Now().UTC()

	files := make([]pipeline.FileResult, len(st.files))
	for i := range st.files {
		f := &st.files[i]
		if f.result == nil {
			res := pipeline.Failed(st.j.inputs[i], f.snap.Language, fmt.Errorf("not processed: job %s", reasonText(reason)))
			f.result = &res
			f.snap.Status = pipeline.FileFailed
			f.snap.Error = res.Error
		}
		files[i] = *f.result
	}

	st.j.result.Store(&Result{
		ID:          st.j.id,
		Status:      status,
		Reason:      reason,
		Options:     st.j.opts,
		Files:       files,
		CreatedAt:   st.j.createdAt,
		CompletedAt: st.completedAt,
	})
	st.j.cancel()
}

// snapshot computes progress and returns the state to publish.
func (st *jobState) snapshot() *Snapshot {
	p := 0
	if st.totalUnits > 0 {
		p = st.doneUnits * 100 / st.totalUnits
	}
	if p >= 100 && !st.allFilesTerminal() {
		p = 99
	}
	if st.status == StatusCompleted {
		p = 100
	}
	if p > st.progress {
		st.progress = p
	}

	files := make([]FileSnapshot, len(st.files))
	for i, f := range st.files {
		files[i] = f.snap
	}
	snap := &Snapshot{
		ID:              st.j.id,
		Status:          st.status,
		Reason:          st.reason,
		Progress:        st.progress,
		TotalUnits:      st.totalUnits,
		DoneUnits:       st.doneUnits,
		DocumentedUnits: st.documented,
		FailedUnits:     st.failed,
		Files:           files,
		Options:         st.j.opts,
		CreatedAt:       st.j.createdAt,
	}
	if !st.completedAt.IsZero() {
		t := st.completedAt
		snap.CompletedAt = &t
	}
	return snap
}

func reasonText(r Reason) string {
	switch r {
	case ReasonAuthFailure:
		return "stopped after an authentication failure"
	case ReasonCancelled:
		return "cancelled"
	case ReasonFailFast:
		return "stopped after a file failed"
	case ReasonNoValidFiles:
		return "had no valid files"
	}
	return "stopped"
}
