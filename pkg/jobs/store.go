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
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultRetention is how long a terminal job stays readable.
	DefaultRetention = time.Hour

	// DefaultReapSchedule is the cron spec of the eviction sweep.
	DefaultReapSchedule = "@every 30s"
)

// StoreConfig configures result retention.
type StoreConfig struct {
	Retention time.Duration

	// ReapSchedule is a cron spec (standard five fields or a descriptor
	// such as "@every 1m"). Empty disables the background reaper.
	ReapSchedule string
}

// Store holds jobs until they are acknowledged or their retention expires.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*job
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewStore creates a store and starts its reaper.
func NewStore(cfg StoreConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	s := &Store{
		jobs:      make(map[string]*job),
		retention: cfg.Retention,
		logger:    logger,
	}
	if cfg.ReapSchedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(cfg.ReapSchedule, func() { s.Reap(time.Now()) }); err != nil {
			return nil, fmt.Errorf("invalid reap schedule %q: %w", cfg.ReapSchedule, err)
		}
		s.cron.Start()
	}
	return s, nil
}

// Retention returns how long terminal jobs are kept.
func (s *Store) Retention() time.Duration { return s.retention }

// put registers a job.
func (s *Store) put(j *job) {
	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()
}

func (s *Store) get(id string) (*job, bool) {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	return j, ok
}

// Delete evicts a job.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// List returns snapshots of every stored job, newest first.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	out := make([]Snapshot, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// Reap evicts terminal jobs whose retention expired at now and returns how
// many were removed.
func (s *Store) Reap(now time.Time) int {
	s.mu.Lock()
	var evicted []string
	for id, j := range s.jobs {
		snap := j.Snapshot()
		if !snap.Status.Terminal() || snap.CompletedAt == nil {
			continue
		}
		if now.Sub(*snap.CompletedAt) >= s.retention {
			delete(s.jobs, id)
			evicted = append(evicted, id)
		}
	}
	s.mu.Unlock()

	if len(evicted) > 0 {
		jobMetrics.init()
		jobMetrics.evicted.Add(float64(len(evicted)))
		s.logger.Info("jobs.reap", "evicted", len(evicted))
	}
	return len(evicted)
}

// Close stops the reaper, waits for a running sweep and evicts every
// retained job. Call it after the manager has drained.
func (s *Store) Close() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	s.mu.Lock()
	n := len(s.jobs)
	s.jobs = make(map[string]*job)
	s.mu.Unlock()

	if n > 0 {
		s.logger.Debug("jobs.store.closed", "evicted", n)
	}
}
