// Package client implements the purchaser-side access gate used after the
// payment provider redirects back to the course page. The webhook that
// completes the purchase races the redirect, so the gate polls the
// access-status endpoint until access flips or the attempt budget runs out.
package client

import (
	"context"
	"time"
)

// State is the gate's observable lifecycle state.
type State string

const (
	// StateLoading is the initial state before the first status check.
	StateLoading State = "loading"
	// StateVerifying means the gate is polling for the purchase to complete.
	StateVerifying State = "verifying"
	// StateGranted means a completed purchase was confirmed.
	StateGranted State = "granted"
	// StateExhausted means the attempt budget ran out without confirmation.
	// The purchase may still complete later; the caller should send the user
	// back through a slower path rather than keep hammering the endpoint.
	StateExhausted State = "exhausted"
	// StateRedirecting follows StateExhausted once the caller is expected to
	// navigate away.
	StateRedirecting State = "redirecting"
)

const (
	// DefaultPollInterval is the fixed delay between status checks. Webhook
	// delivery typically lands within a few seconds of the redirect.
	DefaultPollInterval = 3 * time.Second
	// DefaultMaxAttempts bounds the poll loop to roughly half a minute.
	DefaultMaxAttempts = 10
)

// StatusFunc reports whether the user's purchase of the course is completed.
// Errors are treated as transient: the gate keeps polling.
type StatusFunc func(ctx context.Context, courseID uint) (bool, error)

// PurchaseGate polls a StatusFunc at a fixed interval with a bounded number
// of attempts. At most one status request is in flight at a time, and no
// request is issued after access is confirmed.
type PurchaseGate struct {
	status      StatusFunc
	interval    time.Duration
	maxAttempts int
	onChange    func(State)

	state State
}

// Option configures a PurchaseGate.
type Option func(*PurchaseGate)

// WithInterval overrides the fixed polling interval.
func WithInterval(d time.Duration) Option {
	return func(g *PurchaseGate) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithMaxAttempts overrides the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(g *PurchaseGate) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithStateListener registers a callback invoked on every state transition.
func WithStateListener(fn func(State)) Option {
	return func(g *PurchaseGate) {
		g.onChange = fn
	}
}

// NewPurchaseGate creates a gate around the given status check.
func NewPurchaseGate(status StatusFunc, opts ...Option) *PurchaseGate {
	g := &PurchaseGate{
		status:      status,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultMaxAttempts,
		state:       StateLoading,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the gate's current state.
func (g *PurchaseGate) State() State {
	return g.state
}

func (g *PurchaseGate) transition(s State) {
	g.state = s
	if g.onChange != nil {
		g.onChange(s)
	}
}

// Wait polls until access is granted, the attempt budget is exhausted, or
// the context is cancelled. The first check runs immediately; subsequent
// checks wait out the fixed interval. On exhaustion the gate passes through
// StateExhausted and settles on StateRedirecting.
func (g *PurchaseGate) Wait(ctx context.Context, courseID uint) (State, error) {
	g.transition(StateVerifying)

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return g.state, ctx.Err()
			case <-time.After(g.interval):
			}
		}

		purchased, err := g.status(ctx, courseID)
		if err != nil {
			if ctx.Err() != nil {
				return g.state, ctx.Err()
			}
			// Transient failure, spend the attempt and keep going.
			continue
		}

		if purchased {
			g.transition(StateGranted)
			return StateGranted, nil
		}
	}

	g.transition(StateExhausted)
	g.transition(StateRedirecting)
	return StateRedirecting, nil
}
