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

package llm

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of provider calls in flight across the process.
// Waiters are admitted in FIFO order.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	active   atomic.Int64
	waiting  atomic.Int64
}

// NewLimiter creates a limiter admitting at most n concurrent calls.
// n < 1 is treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(n)),
		capacity: int64(n),
	}
}

// Acquire blocks until a slot is free or ctx is done.
// Every successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.waiting.Add(1)
	err := l.sem.Acquire(ctx, 1)
	l.waiting.Add(-1)
	if err != nil {
		return err
	}
	l.active.Add(1)
	return nil
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// LimiterStatus is a point-in-time view of a Limiter.
type LimiterStatus struct {
	Capacity int `json:"capacity"`
	Active   int `json:"active"`
	Waiting  int `json:"waiting"`
}

func (s LimiterStatus) String() string {
	return fmt.Sprintf("limiter: capacity=%d active=%d waiting=%d", s.Capacity, s.Active, s.Waiting)
}

// Status returns the current limiter counters.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Capacity: int(l.capacity),
		Active:   int(l.active.Load()),
		Waiting:  int(l.waiting.Load()),
	}
}

// LimitedProvider is a Provider whose Generate calls pass through a Limiter.
type LimitedProvider struct {
	Provider
	limiter *Limiter
}

// NewLimitedProvider wraps p so that its calls share limiter.
func NewLimitedProvider(p Provider, limiter *Limiter) *LimitedProvider {
	return &LimitedProvider{Provider: p, limiter: limiter}
}

// Generate waits for a limiter slot, then calls the wrapped provider.
func (lp *LimitedProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := lp.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("limiter wait: %w", err)
	}
	defer lp.limiter.Release()
	return lp.Provider.Generate(ctx, req)
}

// DefaultModel forwards to the wrapped provider when it knows its model.
func (lp *LimitedProvider) DefaultModel() string {
	if mp, ok := lp.Provider.(ModelProvider); ok {
		return mp.DefaultModel()
	}
	return ""
}

// Limiter returns the shared limiter.
func (lp *LimitedProvider) Limiter() *Limiter { return lp.limiter }

// Unwrap returns the provider behind the limiter.
func (lp *LimitedProvider) Unwrap() Provider { return lp.Provider }

// Gated is implemented by providers whose calls wait for a Limiter slot.
// Callers that need to await the slot under their own context acquire it
// themselves and call Unwrap directly.
type Gated interface {
	Provider
	Limiter() *Limiter
	Unwrap() Provider
}
