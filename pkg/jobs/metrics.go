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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/llm"
)

// metricsJobs holds Prometheus metrics for jobs and provider calls.
type metricsJobs struct {
	once sync.Once

	// Jobs
	submitted prometheus.Counter
	finished  *prometheus.CounterVec
	evicted   prometheus.Counter

	// Units
	units *prometheus.CounterVec

	// Provider
	calls        *prometheus.CounterVec
	retries      *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

var jobMetrics metricsJobs

func (m *metricsJobs) init() {
	m.once.Do(func() {
		m.submitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "codescribe_jobs_submitted_total", Help: "Jobs accepted"})
		m.finished = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codescribe_jobs_finished_total", Help: "Jobs reaching a terminal state"}, []string{"status", "reason"})
		m.evicted = prometheus.NewCounter(prometheus.CounterOpts{Name: "codescribe_jobs_evicted_total", Help: "Terminal jobs evicted after retention"})

		m.units = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codescribe_units_total", Help: "Units processed by outcome"}, []string{"status", "kind"})

		m.calls = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codescribe_provider_calls_total", Help: "Provider calls by outcome"}, []string{"provider", "outcome"})
		m.retries = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codescribe_provider_retries_total", Help: "Provider call retries"}, []string{"provider", "kind"})

		buckets := []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
		m.callDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "codescribe_provider_call_seconds", Help: "Provider call duration", Buckets: buckets}, []string{"provider"})

		prometheus.MustRegister(
			m.submitted, m.finished, m.evicted,
			m.units,
			m.calls, m.retries, m.callDuration,
		)
	})
}

func recordJob(status Status, reason Reason) {
	jobMetrics.init()
	jobMetrics.finished.WithLabelValues(string(status), string(reason)).Inc()
}

func recordUnit(du docgen.DocumentedUnit) {
	jobMetrics.init()
	jobMetrics.units.WithLabelValues(string(du.Status), string(du.FailureKind)).Inc()
}

// metricsObserver reports documenter events to Prometheus.
type metricsObserver struct{}

// MetricsObserver returns a docgen.Observer backed by the job metrics.
func MetricsObserver() docgen.Observer {
	jobMetrics.init()
	return metricsObserver{}
}

func (metricsObserver) ProviderCall(provider string, kind llm.Kind, d time.Duration) {
	outcome := string(kind)
	if outcome == "" {
		outcome = "ok"
	}
	jobMetrics.calls.WithLabelValues(provider, outcome).Inc()
	jobMetrics.callDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (metricsObserver) ProviderRetry(provider string, kind llm.Kind) {
	jobMetrics.retries.WithLabelValues(provider, string(kind)).Inc()
}
