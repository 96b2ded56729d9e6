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
	"context"
	"time"
)

// Gate guards every outbound provider call with two orthogonal checks,
// applied in order: circuit breaker first, then rate limiter. Both reject
// before any network I/O happens. A single Gate instance is shared by
// reference across all provider adapters so the counters reflect the
// dependency as a whole.
type Gate struct {
	breaker *CircuitBreaker
	limiter *RateLimiter
	metrics *GateMetrics
}

// NewGate assembles a gate from its parts. metrics may be nil.
func NewGate(breaker *CircuitBreaker, limiter *RateLimiter, metrics *GateMetrics) *Gate {
	return &Gate{
		breaker: breaker,
		limiter: limiter,
		metrics: metrics,
	}
}

// Execute runs op if both gates admit the call, recording the outcome
// against the breaker and the metrics. The provider label only tags
// observability; the breaker and limiter state is shared.
func (g *Gate) Execute(ctx context.Context, provider string, op func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	generation, err := g.breaker.Allow()
	if err != nil {
		g.metrics.recordRejection(provider, "circuit_breaker")
		return err
	}

	if !g.limiter.Allow() {
		// The probe slot was never used; hand it back.
		g.breaker.Cancel(generation)
		g.metrics.recordRejection(provider, "rate_limit")
		return ErrRateLimited
	}

	g.metrics.recordAttempt(provider)

	start := time.Now()
	defer func() {
		if e := recover(); e != nil {
			g.breaker.Record(generation, false)
			g.metrics.recordOutcome(provider, false, time.Since(start))
			panic(e)
		}
	}()

	opErr := op()
	success := opErr == nil
	g.breaker.Record(generation, success)
	g.metrics.recordOutcome(provider, success, time.Since(start))

	return opErr
}

// BreakerState exposes the current breaker state for health reporting.
func (g *Gate) BreakerState() State {
	return g.breaker.GetState()
}
