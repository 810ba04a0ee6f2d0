// Package circuitbreaker wraps upstream Binance calls with a trip/cooldown/
// half-open state machine, adapted from the teacher's internal/circuit
// breaker.go. The teacher trips on trading P&L thresholds (consecutive
// losses, hourly/daily loss); this engine has no trading logic of its own,
// so the same state machine trips on consecutive upstream call failures
// instead, guarding the Market Data Fetcher against a wedged exchange.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"
)

// State is the circuit breaker's current disposition.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config controls trip thresholds and recovery timing.
type Config struct {
	MaxConsecutiveFailures int
	CooldownPeriod         time.Duration
	FailureWindow          time.Duration
	MaxFailuresInWindow    int
}

// DefaultConfig matches the teacher's conservative defaults, translated from
// loss-percentage thresholds to failure counts.
func DefaultConfig() Config {
	return Config{
		MaxConsecutiveFailures: 5,
		CooldownPeriod:         30 * time.Second,
		FailureWindow:          time.Minute,
		MaxFailuresInWindow:    10,
	}
}

// Breaker is one circuit breaker instance, typically one per upstream client
// (per trading mode).
type Breaker struct {
	config Config

	mu                sync.Mutex
	state             State
	consecutiveFails  int
	failuresInWindow  int
	windowResetTime   time.Time
	lastTripTime      time.Time
	tripReason        string
}

func New(config Config) *Breaker {
	now := time.Now()
	return &Breaker{
		config:          config,
		state:           StateClosed,
		windowResetTime: now.Add(config.FailureWindow),
	}
}

// Allow reports whether a call should be attempted right now.
func (b *Breaker) Allow() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetWindowIfNeeded()

	if b.state == StateOpen {
		elapsed := time.Since(b.lastTripTime)
		if elapsed < b.config.CooldownPeriod {
			remaining := b.config.CooldownPeriod - elapsed
			return false, fmt.Sprintf("circuit open, cooldown remaining %v (reason: %s)", remaining.Round(time.Second), b.tripReason)
		}
		b.state = StateHalfOpen
	}

	return true, ""
}

// RecordSuccess clears the failure streak and closes the breaker if it was
// half-open and probing recovery.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFails = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
}

// RecordFailure tallies a failed upstream call and trips the breaker if
// either threshold is exceeded.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetWindowIfNeeded()
	b.consecutiveFails++
	b.failuresInWindow++

	if b.state == StateHalfOpen {
		b.trip("failed during half-open probe")
		return
	}

	if b.consecutiveFails >= b.config.MaxConsecutiveFailures {
		b.trip(fmt.Sprintf("%d consecutive failures", b.consecutiveFails))
	} else if b.failuresInWindow >= b.config.MaxFailuresInWindow {
		b.trip(fmt.Sprintf("%d failures within %v", b.failuresInWindow, b.config.FailureWindow))
	}
}

func (b *Breaker) trip(reason string) {
	b.state = StateOpen
	b.lastTripTime = time.Now()
	b.tripReason = reason
}

func (b *Breaker) resetWindowIfNeeded() {
	now := time.Now()
	if now.After(b.windowResetTime) {
		b.failuresInWindow = 0
		b.windowResetTime = now.Add(b.config.FailureWindow)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ForceReset manually closes the breaker, discarding any trip state.
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFails = 0
	b.failuresInWindow = 0
	b.tripReason = ""
}

// Stats is a snapshot for a health/status endpoint.
type Stats struct {
	State            State  `json:"state"`
	ConsecutiveFails int    `json:"consecutive_fails"`
	FailuresInWindow int    `json:"failures_in_window"`
	TripReason       string `json:"trip_reason,omitempty"`
}

func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:            b.state,
		ConsecutiveFails: b.consecutiveFails,
		FailuresInWindow: b.failuresInWindow,
		TripReason:       b.tripReason,
	}
}
