package fetch

import (
	"sync"
	"time"
)

// BreakerState is the state of one circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker implements the circuit breaker pattern for one host. After
// threshold consecutive failures the circuit opens; once reset has
// elapsed it half-opens and allows up to halfOpenMax probe requests.
type Breaker struct {
	mu            sync.RWMutex
	state         BreakerState
	failures      int
	halfOpenCount int
	lastFailure   time.Time

	totalRequests int64
	totalFailures int64

	threshold   int
	reset       time.Duration
	halfOpenMax int
}

// NewBreaker creates a closed breaker with the given parameters.
func NewBreaker(threshold int, reset time.Duration, halfOpenMax int) *Breaker {
	return &Breaker{
		state:       BreakerClosed,
		threshold:   threshold,
		reset:       reset,
		halfOpenMax: halfOpenMax,
	}
}

// Allow reports whether a request may proceed, transitioning an open
// circuit to half-open once the reset window has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.lastFailure) >= b.reset {
			b.state = BreakerHalfOpen
			b.halfOpenCount = 1
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.halfOpenCount < b.halfOpenMax {
			b.halfOpenCount++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful request. A success in half-open
// closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
	}
	b.failures = 0
}

// RecordFailure records a failed request. Reaching the threshold while
// closed, or any failure while half-open, opens the circuit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()
	b.totalRequests++
	b.totalFailures++

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.threshold {
			b.state = BreakerOpen
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset closes the circuit and clears the consecutive failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.halfOpenCount = 0
}

// BreakerStats is a snapshot of one breaker for diagnostics.
type BreakerStats struct {
	State         string    `json:"state"`
	Failures      int       `json:"failures"`
	TotalRequests int64     `json:"total_requests"`
	TotalFailures int64     `json:"total_failures"`
	LastFailure   time.Time `json:"last_failure,omitempty"`
}

// Stats returns a snapshot of this breaker.
func (b *Breaker) Stats() BreakerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BreakerStats{
		State:         b.state.String(),
		Failures:      b.failures,
		TotalRequests: b.totalRequests,
		TotalFailures: b.totalFailures,
		LastFailure:   b.lastFailure,
	}
}

// hostBreakers hands out one breaker per host, created on first use.
type hostBreakers struct {
	mu          sync.Mutex
	byHost      map[string]*Breaker
	threshold   int
	reset       time.Duration
	halfOpenMax int
}

func newHostBreakers(threshold int, reset time.Duration, halfOpenMax int) *hostBreakers {
	return &hostBreakers{
		byHost:      make(map[string]*Breaker),
		threshold:   threshold,
		reset:       reset,
		halfOpenMax: halfOpenMax,
	}
}

func (h *hostBreakers) forHost(host string) *Breaker {
	h.mu.Lock()
	defer h.mu.Unlock()

	breaker, ok := h.byHost[host]
	if !ok {
		breaker = NewBreaker(h.threshold, h.reset, h.halfOpenMax)
		h.byHost[host] = breaker
	}
	return breaker
}

func (h *hostBreakers) stats() map[string]BreakerStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]BreakerStats, len(h.byHost))
	for host, breaker := range h.byHost {
		out[host] = breaker.Stats()
	}
	return out
}
