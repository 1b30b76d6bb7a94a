// Package breaker implements a per-provider circuit breaker.
//
// Each provider gets an independent breaker. State transitions:
//   - CLOSED: calls proceed; consecutive failures at or above the threshold
//     open the circuit.
//   - OPEN: calls are rejected without touching the provider until the
//     recovery timeout elapses; the OPEN to HALF_OPEN transition happens
//     lazily inside Allow, not on a timer.
//   - HALF_OPEN: exactly one trial call is admitted. Success closes the
//     circuit and resets the failure count, failure reopens it.
package breaker

import (
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// Config holds per-provider breaker settings.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before a trial
	// call is admitted.
	RecoveryTimeout time.Duration
}

// DefaultConfig provides sensible defaults for a remote provider.
var DefaultConfig = Config{
	FailureThreshold: 3,
	RecoveryTimeout:  30 * time.Second,
}

// Snapshot is a point-in-time view of breaker state for status endpoints.
type Snapshot struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitzero"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
}

// Breaker tracks failures for a single provider. Safe for concurrent use;
// the read-check-write of state and counters is a single critical section.
type Breaker struct {
	mu sync.Mutex

	cfg           Config
	state         State
	consecFails   int
	openedAt      time.Time
	lastFailureAt time.Time
	trialInFlight bool

	now func() time.Time
}

// New creates a breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultConfig.RecoveryTimeout
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed. When the circuit is OPEN and
// the recovery timeout has elapsed it transitions to HALF_OPEN and admits
// the caller as the single trial; concurrent callers in that window are
// still rejected until the trial resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.state = StateHalfOpen
			b.trialInFlight = true
			return true
		}
		return false
	case StateHalfOpen:
		// Trial already admitted; treat everyone else as still OPEN.
		if !b.trialInFlight {
			b.trialInFlight = true
			return true
		}
		return false
	}
	return false
}

// Release abandons an admitted call without recording an outcome, e.g. when
// the caller was cancelled externally. A half-open trial returns the
// circuit to OPEN with its original deadline, so the next call can become
// the trial instead.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.trialInFlight = false
	}
}

// RecordSuccess marks the outcome of an admitted call as successful.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecFails = 0
	b.state = StateClosed
	b.trialInFlight = false
}

// RecordFailure marks the outcome of an admitted call as failed.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = b.now()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = b.now()
		b.trialInFlight = false
		return
	}

	b.consecFails++
	if b.consecFails >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// Snapshot returns the current breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecFails,
		OpenedAt:            b.openedAt,
		LastFailureAt:       b.lastFailureAt,
	}
}
