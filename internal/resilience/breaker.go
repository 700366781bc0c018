// Package resilience provides reliability patterns for external service calls.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Permanent marks an error as caused by the request rather than the remote
// service. Permanent errors are returned to the caller without counting as a
// breaker failure (a rejected recipient address must not take the SMTP
// transport offline).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Breaker guards calls to one remote dependency (SMTP relay, Supabase,
// Stripe). After maxFailures consecutive transport failures it opens and
// rejects calls until timeout has passed. It then lets a single trial call
// through; the outcome of that call closes or reopens the circuit, and
// calls arriving while it runs are rejected.
type Breaker struct {
	mu          sync.Mutex
	name        string
	state       state
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	trial       bool // a half-open trial call is in flight
	now         func() time.Time
}

// NewBreaker creates an unnamed Breaker.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures: max(maxFailures, 1),
		timeout:     timeout,
		now:         time.Now,
	}
}

// NewNamedBreaker is NewBreaker with a name used in ErrCircuitOpen messages
// and state change logs.
func NewNamedBreaker(name string, maxFailures int, timeout time.Duration) *Breaker {
	b := NewBreaker(maxFailures, timeout)
	b.name = name
	return b
}

// State returns "closed", "open" or "half-open".
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateOpen && b.now().Sub(b.openedAt) >= b.timeout {
		return stateHalfOpen.String()
	}
	return b.state.String()
}

// Execute runs fn unless the circuit rejects the call with ErrCircuitOpen.
// Errors marked Permanent are returned without counting as failures.
func (b *Breaker) Execute(fn func() error) error {
	allowed, trial := b.admit()
	if !allowed {
		if b.name != "" {
			return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trial = false
	}
	if err != nil && !IsPermanent(err) {
		b.onFailure(err)
		return err
	}
	b.onSuccess()
	return err
}

// admit reports whether a call may run and whether it is the half-open trial.
func (b *Breaker) admit() (allowed, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true, false
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false, false
		}
		b.setState(stateHalfOpen, nil)
	}
	if b.trial {
		return false, false
	}
	b.trial = true
	return true, true
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(err error) {
	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.maxFailures {
		b.openedAt = b.now()
		b.setState(stateOpen, err)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.setState(stateClosed, nil)
}

// setState must be called with b.mu held.
func (b *Breaker) setState(s state, cause error) {
	if b.state == s {
		return
	}
	prev := b.state
	b.state = s
	if b.name == "" {
		return
	}
	switch s {
	case stateOpen:
		slog.Warn("circuit breaker opened", "breaker", b.name, "from", prev.String(), "failures", b.failures, "retry_in", b.timeout, "error", cause)
	default:
		slog.Info("circuit breaker state changed", "breaker", b.name, "from", prev.String(), "to", s.String())
	}
}
