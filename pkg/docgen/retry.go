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

package docgen

import (
	"math/rand/v2"
	"time"

	"github.com/kraklabs/codescribe/pkg/llm"
)

// RetryConfig configures retries of transient provider failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt for
	// rate_limited, timeout and unavailable failures.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// MaxRetryAfter caps how long a server supplied Retry-After is honoured.
	MaxRetryAfter time.Duration
}

// DefaultRetryConfig returns the documenter's default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
		MaxRetryAfter:  60 * time.Second,
	}
}

// normalized fills zero values so the loop never busy-waits.
func (c RetryConfig) normalized() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.Multiplier <= 1.0 {
		c.Multiplier = d.Multiplier
	}
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = d.MaxRetryAfter
	}
	return c
}

// retryBudget returns how many retries a failure kind gets.
func (c RetryConfig) retryBudget(kind llm.Kind) int {
	switch kind {
	case llm.KindRateLimited, llm.KindTimeout, llm.KindUnavailable:
		return c.MaxRetries
	case llm.KindInvalidResponse:
		return 1
	default:
		// auth_failure, network, bad_request
		return 0
	}
}

// delay returns the wait before retry number attempt (0-based).
func (c RetryConfig) delay(attempt int, retryAfter time.Duration) time.Duration {
	d := computeBackoffWithJitter(c.InitialBackoff, attempt, c.Multiplier, c.MaxBackoff)
	if retryAfter > c.MaxRetryAfter {
		retryAfter = c.MaxRetryAfter
	}
	if retryAfter > d {
		return retryAfter
	}
	return d
}

// computeBackoffWithJitter returns exponential backoff with full jitter
func computeBackoffWithJitter(base time.Duration, attempt int, mult float64, capDur time.Duration) time.Duration {
	// exp = base * mult^attempt
	exp := float64(base)
	for i := 0; i < attempt; i++ {
		exp *= mult
	}
	d := time.Duration(exp)
	if d > capDur {
		d = capDur
	}
	// full jitter [0, d]
	if d <= 0 {
		return base
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}
