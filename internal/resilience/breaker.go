// Package resilience guards calls to remote dependencies so that an outage
// fails fast instead of stalling every request behind a network timeout.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the state of a Breaker
type State int32

const (
	// StateClosed lets calls through and counts consecutive failures
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses
	StateOpen
	// StateHalfOpen lets a single probe through
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned, wrapped with the breaker name, while a breaker rejects calls
var ErrOpen = errors.New("circuit breaker is open")

// Config holds the settings of a Breaker
type Config struct {
	// Name identifies the guarded dependency in errors and callbacks
	Name string

	// Failures is the number of consecutive failures that trips the breaker
	Failures int

	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration

	// Ignore reports errors that say nothing about the dependency's health,
	// such as a missing key. Ignored errors count as successes.
	Ignore func(err error) bool

	// OnStateChange is called outside the breaker lock when a call result
	// opens or closes the breaker
	OnStateChange func(name string, from, to State)
}

// Breaker trips after a run of consecutive failures and probes the dependency
// with one call per cooldown until it succeeds again.
type Breaker struct {
	name     string
	failures int
	cooldown time.Duration
	ignore   func(error) bool
	onChange func(name string, from, to State)
	now      func() time.Time

	mu          sync.Mutex
	state       State
	consecutive int
	openedAt    time.Time
	probing     bool
}

// New creates a breaker. Zero values fall back to 5 failures and a 30s cooldown.
func New(cfg Config) *Breaker {
	b := &Breaker{
		name:     cfg.Name,
		failures: cfg.Failures,
		cooldown: cfg.Cooldown,
		ignore:   cfg.Ignore,
		onChange: cfg.OnStateChange,
		now:      time.Now,
	}
	if b.failures <= 0 {
		b.failures = 5
	}
	if b.cooldown <= 0 {
		b.cooldown = 30 * time.Second
	}
	if b.ignore == nil {
		b.ignore = func(error) bool { return false }
	}
	return b
}

// Name returns the breaker name
func (b *Breaker) Name() string { return b.name }

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Do runs fn unless the breaker is open. Context errors are returned as is
// and do not count against the dependency.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.acquire(); err != nil {
		return err
	}

	err := fn(ctx)
	healthy := err == nil || b.ignore(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	b.release(healthy)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current() {
	case StateOpen:
		return fmt.Errorf("%s: %w", b.name, ErrOpen)
	case StateHalfOpen:
		if b.probing {
			return fmt.Errorf("%s: %w", b.name, ErrOpen)
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) release(healthy bool) {
	b.mu.Lock()
	from := b.state
	state := b.current()

	if state == StateHalfOpen {
		b.probing = false
		if healthy {
			b.set(StateClosed)
		} else {
			b.set(StateOpen)
		}
	} else if healthy {
		b.consecutive = 0
	} else {
		b.consecutive++
		if b.consecutive >= b.failures {
			b.set(StateOpen)
		}
	}

	to := b.state
	b.mu.Unlock()

	if from != to && b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}

// current moves an expired open breaker to half-open. Callers hold mu.
func (b *Breaker) current() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
		b.probing = false
	}
	return b.state
}

// set changes state. Callers hold mu.
func (b *Breaker) set(s State) {
	b.state = s
	b.consecutive = 0
	if s == StateOpen {
		b.openedAt = b.now()
	}
}
