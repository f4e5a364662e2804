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
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

// Manager runs documentation jobs in the background.
//
// Every job has one owner goroutine that applies events from its runner in
// order and publishes a fresh Snapshot after each one. Status reads load
// that snapshot and never wait on the job.
type Manager struct {
	processor *pipeline.Processor
	store     *Store
	cfg       Config
	logger    *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewManager creates a job manager that registers jobs in store.
func NewManager(processor *pipeline.Processor, store *Store, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentFiles < 1 {
		cfg.MaxConcurrentFiles = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		processor:  processor,
		store:      store,
		cfg:        cfg,
		logger:     logger,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Store returns the result store jobs are registered in.
func (m *Manager) Store() *Store { return m.store }

// Submit validates a batch and starts it. Rejections are synchronous: no
// job is created and no provider is called.
func (m *Manager) Submit(ctx context.Context, files []pipeline.FileInput, opts docgen.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", ErrEmptyBatch
	}
	if m.cfg.MaxFiles > 0 && len(files) > m.cfg.MaxFiles {
		return "", fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, len(files), m.cfg.MaxFiles)
	}
	var size int64
	for _, f := range files {
		size += int64(len(f.Content))
	}
	if m.cfg.MaxBatchBytes > 0 && size > m.cfg.MaxBatchBytes {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrPayloadTooLarge, size, m.cfg.MaxBatchBytes)
	}
	opts = opts.Merge(m.cfg.Defaults)
	if err := m.processor.CheckOptions(opts); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrClosed
	}

	inputs := make([]pipeline.FileInput, len(files))
	copy(inputs, files)
	j := newJob(m.baseCtx, uuid.NewString(), inputs, opts)
	m.store.put(j)

	m.wg.Add(2)
	go m.own(j)
	go m.run(j)

	jobMetrics.init()
	jobMetrics.submitted.Inc()
	m.logger.Info("jobs.submit",
		"job", j.id,
		"files", len(inputs),
		"bytes", size,
		"provider", opts.Provider,
		"model", opts.Model,
	)
	return j.id, nil
}

// Status returns the latest snapshot of a job.
func (m *Manager) Status(id string) (Snapshot, error) {
	j, ok := m.store.get(id)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return j.Snapshot(), nil
}

// Result returns the artifacts of a terminal job.
func (m *Manager) Result(id string) (*Result, error) {
	j, ok := m.store.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	res := j.result.Load()
	if res == nil {
		return nil, ErrNotReady
	}
	return res, nil
}

// Acknowledge returns the result of a terminal job and evicts it.
func (m *Manager) Acknowledge(id string) (*Result, error) {
	res, err := m.Result(id)
	if err != nil {
		return nil, err
	}
	m.store.Delete(id)
	m.logger.Debug("jobs.acknowledge", "job", id)
	return res, nil
}

// Cancel fails a running job with ReasonCancelled. Nothing new is
// dispatched; calls already in flight finish and their results are
// dropped. Cancelling a terminal job is a no-op.
func (m *Manager) Cancel(id string) error {
	j, ok := m.store.get(id)
	if !ok {
		return ErrNotFound
	}
	if j.Snapshot().Status.Terminal() {
		return nil
	}

	ack := make(chan struct{})
	select {
	case j.events <- event{kind: evCancel, ack: ack}:
	case <-j.done:
		return nil
	}
	select {
	case <-ack:
	case <-j.done:
	}
	return nil
}

// Close stops accepting jobs and waits for running ones. When ctx ends
// first, running jobs are cancelled and Close waits for them to unwind.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		m.baseCancel()
		return nil
	case <-ctx.Done():
		m.baseCancel()
		<-drained
		return ctx.Err()
	}
}

// own is the single writer of a job's state.
func (m *Manager) own(j *job) {
	defer m.wg.Done()
	defer close(j.done)

	st := newJobState(j, m.cfg.FailFast)
	for ev := range j.events {
		if ev.kind == evUnit {
			recordUnit(ev.unit)
		}
		if st.apply(ev) {
			m.logTerminal(st)
		}
		j.snap.Store(st.snapshot())
		if ev.ack != nil {
			close(ev.ack)
		}
		if ev.kind == evFinished {
			return
		}
	}
}

func (m *Manager) logTerminal(st *jobState) {
	recordJob(st.status, st.reason)
	attrs := []any{
		"job", st.j.id,
		"status", st.status,
		"units", st.totalUnits,
		"documented", st.documented,
		"failed", st.failed,
		"duration_ms", st.completedAt.Sub(st.j.createdAt).Milliseconds(),
	}
	if st.reason != "" {
		m.logger.Warn("jobs.failed", append(attrs, "reason", st.reason)...)
		return
	}
	m.logger.Info("jobs.completed", attrs...)
}

// run extracts every file, then dispatches the valid ones under the
// per-job file cap. It always ends with evFinished.
func (m *Manager) run(j *job) {
	defer m.wg.Done()
	defer func() { j.events <- event{kind: evFinished} }()

	j.events <- event{kind: evStarted}

	// Extracting up front fixes the progress denominator before any unit
	// is dispatched.
	prepared := make([]preparedFile, len(j.inputs))
	for i, in := range j.inputs {
		prep, err := m.processor.Prepare(in)
		prepared[i] = preparedFile{prep: prep, err: err}
	}
	j.events <- event{kind: evPrepared, prepared: prepared}

	g := new(errgroup.Group)
	g.SetLimit(m.cfg.MaxConcurrentFiles)
	for i := range prepared {
		if prepared[i].err != nil {
			continue
		}
		if j.ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if j.ctx.Err() != nil {
				return nil
			}
			j.events <- event{kind: evFileStarted, file: i}
			res := m.processor.Run(j.ctx, prepared[i].prep, j.opts, pipeline.Hooks{
				OnUnit: func(du docgen.DocumentedUnit) {
					j.events <- event{kind: evUnit, file: i, unit: du}
				},
			})
			j.events <- event{kind: evFileDone, file: i, result: res}
			return nil
		})
	}
	_ = g.Wait()
}
