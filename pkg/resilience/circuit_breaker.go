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
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrOpenState is returned when the circuit breaker rejects a call outright.
	ErrOpenState = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe slot is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed processes requests normally while counting failures.
	StateClosed State = iota
	// StateHalfOpen lets a bounded number of probe requests through.
	StateHalfOpen
	// StateOpen rejects requests immediately.
	StateOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown state: %d", int(s))
	}
}

// Counts tracks request outcomes within the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) onSuccess() {
	c.Requests++
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.Requests++
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

func (c *Counts) clear() {
	*c = Counts{}
}

// CircuitBreakerConfig holds the tunables for a CircuitBreaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and metrics.
	Name string `json:"name" yaml:"name"`

	// FailureThreshold is the number of consecutive failures that opens
	// the breaker from the closed state.
	FailureThreshold uint32 `json:"failure_threshold" yaml:"failure_threshold"`

	// Cooldown is how long the breaker stays open before admitting a
	// half-open probe.
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`

	// MaxProbes is the number of requests admitted in the half-open state.
	MaxProbes uint32 `json:"max_probes" yaml:"max_probes"`

	// OnStateChange, when set, is invoked on every state transition.
	OnStateChange func(name string, from State, to State) `json:"-" yaml:"-"`
}

// DefaultCircuitBreakerConfig returns the default breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "provider",
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
		MaxProbes:        1,
	}
}

// Validate checks the configuration for consistency.
func (c *CircuitBreakerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("circuit breaker name cannot be empty")
	}
	if c.FailureThreshold == 0 {
		return fmt.Errorf("failure_threshold must be greater than 0")
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive")
	}
	if c.MaxProbes == 0 {
		return fmt.Errorf("max_probes must be greater than 0")
	}
	return nil
}

// CircuitBreaker guards an outbound dependency.
//
// Closed counts consecutive failures and opens once the threshold is hit.
// Open rejects every call until the cooldown elapses, then transitions to
// half-open and admits MaxProbes probe calls. A successful probe closes the
// breaker and clears the failure counter; a failed probe reopens it.
//
// A generation counter invalidates results reported by calls that started
// under an earlier state, so a slow call finishing after a transition cannot
// corrupt the new generation's counts.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
	probes     uint32
}

// NewCircuitBreaker creates a circuit breaker from the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CircuitBreaker{
		name:   config.Name,
		config: config,
		state:  StateClosed,
	}, nil
}

// Allow reports whether a call may proceed. On success it returns the
// generation token that must be passed to Record once the call finishes.
func (cb *CircuitBreaker) Allow() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)

	if state == StateOpen {
		return generation, ErrOpenState
	}
	if state == StateHalfOpen {
		if cb.probes >= cb.config.MaxProbes {
			return generation, ErrTooManyRequests
		}
		cb.probes++
	}
	return generation, nil
}

// Record reports the outcome of a call previously admitted by Allow.
func (cb *CircuitBreaker) Record(generation uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, current := cb.currentState(now)
	if generation != current {
		// A state change happened while the call was in flight.
		return
	}

	if success {
		cb.onSuccess(state, now)
	} else {
		cb.onFailure(state, now)
	}
}

// Cancel returns a probe slot taken by Allow when the call was never made,
// e.g. because a later gate rejected it.
func (cb *CircuitBreaker) Cancel(generation uint64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	_, current := cb.currentState(time.Now())
	if generation == current && cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}
}

// GetState returns the current breaker state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, _ := cb.currentState(time.Now())
	return state
}

// GetCounts returns the current generation's counters.
func (cb *CircuitBreaker) GetCounts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts
}

// Reset forces the breaker back to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.toNewGeneration(time.Now(), StateClosed)
}

func (cb *CircuitBreaker) onSuccess(state State, now time.Time) {
	switch state {
	case StateClosed:
		cb.counts.onSuccess()
	case StateHalfOpen:
		cb.counts.onSuccess()
		if cb.counts.ConsecutiveSuccesses >= cb.config.MaxProbes {
			cb.toNewGeneration(now, StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		cb.counts.onFailure()
		if cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold {
			cb.toNewGeneration(now, StateOpen)
		}
	case StateHalfOpen:
		// Any probe failure reopens the breaker.
		cb.toNewGeneration(now, StateOpen)
	}
}

// currentState returns the state and generation, moving open to half-open
// once the cooldown has elapsed.
func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	if cb.state == StateOpen && cb.expiry.Before(now) {
		cb.toNewGeneration(now, StateHalfOpen)
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) toNewGeneration(now time.Time, newState State) {
	if cb.state != newState && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, cb.state, newState)
	}

	cb.generation++
	cb.counts.clear()
	cb.probes = 0
	cb.state = newState

	if newState == StateOpen {
		cb.expiry = now.Add(cb.config.Cooldown)
	} else {
		cb.expiry = time.Time{}
	}
}
