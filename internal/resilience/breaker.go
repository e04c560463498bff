// Package resilience guards outbound LLM calls so a degraded provider
// fails fast instead of tying up analysis workers.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without invoking the wrapped call while
// the breaker is rejecting traffic.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker's admission mode.
type State uint8

const (
	// StateClosed admits every call.
	StateClosed State = iota
	// StateOpen rejects every call until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits a single probe to test recovery.
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

// Breaker opens after a run of consecutive failures. Once the cooldown
// has passed it lets one probe through; the probe's outcome decides
// whether the circuit closes again or re-opens for another cooldown.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	probing     bool
	now         func() time.Time // test seam
}

// NewBreaker returns a closed breaker that opens after maxFailures
// consecutive failures and rejects calls for the given cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Execute runs fn unless the breaker is rejecting calls.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}
	err := fn()
	b.record(err)
	return err
}

// State reports the current admission mode.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// admit decides whether a call may proceed, moving the breaker to
// half-open when the cooldown has elapsed.
func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			// One probe at a time; everyone else keeps failing fast.
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// record applies the outcome of an admitted call.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
		if err != nil {
			b.trip()
			return
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	if err != nil {
		b.failures++
		if b.failures >= b.maxFailures {
			b.trip()
		}
		return
	}
	b.failures = 0
}

// trip opens the circuit and starts the cooldown. Caller holds b.mu.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
}
