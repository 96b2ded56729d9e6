// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package resilience

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GateMetrics holds the Prometheus instruments for a Gate.
// Recording metrics never affects control flow.
type GateMetrics struct {
	Attempts   *prometheus.CounterVec
	Successes  *prometheus.CounterVec
	Failures   *prometheus.CounterVec
	Rejections *prometheus.CounterVec
	State      *prometheus.GaugeVec
	Duration   *prometheus.HistogramVec
}

// NewGateMetrics creates and registers the gate instruments on the given
// registerer. Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewGateMetrics(reg prometheus.Registerer) *GateMetrics {
	factory := promauto.With(reg)

	return &GateMetrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bundlepress",
			Subsystem: "provider_gate",
			Name:      "attempts_total",
			Help:      "Total number of provider calls admitted by the gate",
		}, []string{"provider"}),

		Successes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bundlepress",
			Subsystem: "provider_gate",
			Name:      "successes_total",
			Help:      "Total number of successful provider calls",
		}, []string{"provider"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bundlepress",
			Subsystem: "provider_gate",
			Name:      "failures_total",
			Help:      "Total number of failed provider calls",
		}, []string{"provider"}),

		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bundlepress",
			Subsystem: "provider_gate",
			Name:      "rejections_total",
			Help:      "Total number of calls rejected before any network I/O",
		}, []string{"provider", "reason"}),

		State: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bundlepress",
			Subsystem: "provider_gate",
			Name:      "breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bundlepress",
			Subsystem: "provider_gate",
			Name:      "request_duration_seconds",
			Help:      "Latency of provider calls admitted by the gate",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}

func (m *GateMetrics) recordAttempt(provider string) {
	if m != nil {
		m.Attempts.WithLabelValues(provider).Inc()
	}
}

func (m *GateMetrics) recordOutcome(provider string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	if success {
		m.Successes.WithLabelValues(provider).Inc()
	} else {
		m.Failures.WithLabelValues(provider).Inc()
	}
	m.Duration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *GateMetrics) recordRejection(provider, reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(provider, reason).Inc()
	}
}

// ObserveState exports a breaker state transition as a gauge value.
func (m *GateMetrics) ObserveState(name string, state State) {
	if m != nil {
		m.State.WithLabelValues(name).Set(float64(state))
	}
}
