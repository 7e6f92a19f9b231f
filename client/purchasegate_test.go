package client

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateGrantsWhenStatusFlips(t *testing.T) {
	var calls int32
	status := func(ctx context.Context, courseID uint) (bool, error) {
		n := atomic.AddInt32(&calls, 1)
		return n >= 3, nil
	}

	gate := NewPurchaseGate(status, WithInterval(time.Millisecond))

	state, err := gate.Wait(context.Background(), 7)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if state != StateGranted {
		t.Fatalf("expected granted, got %s", state)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected polling to stop at the granting check, got %d calls", got)
	}
	if gate.State() != StateGranted {
		t.Errorf("expected gate state granted, got %s", gate.State())
	}
}

func TestGateExhaustsAttemptBudget(t *testing.T) {
	var calls int32
	var transitions []State
	status := func(ctx context.Context, courseID uint) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	}

	gate := NewPurchaseGate(status,
		WithInterval(time.Millisecond),
		WithMaxAttempts(4),
		WithStateListener(func(s State) { transitions = append(transitions, s) }),
	)

	state, err := gate.Wait(context.Background(), 7)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if state != StateRedirecting {
		t.Fatalf("expected redirecting, got %s", state)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("expected exactly 4 polls, got %d", got)
	}

	want := []State{StateVerifying, StateExhausted, StateRedirecting}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, transitions)
		}
	}
}

func TestGateTreatsErrorsAsTransient(t *testing.T) {
	var calls int32
	status := func(ctx context.Context, courseID uint) (bool, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return false, errors.New("temporary network failure")
		}
		return true, nil
	}

	gate := NewPurchaseGate(status, WithInterval(time.Millisecond))

	state, err := gate.Wait(context.Background(), 7)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if state != StateGranted {
		t.Fatalf("expected granted after a transient error, got %s", state)
	}
}

func TestGateHonorsCancellation(t *testing.T) {
	status := func(ctx context.Context, courseID uint) (bool, error) {
		return false, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	gate := NewPurchaseGate(status, WithInterval(time.Hour))

	done := make(chan struct{})
	var state State
	var err error
	go func() {
		state, err = gate.Wait(ctx, 7)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if state == StateGranted {
		t.Error("cancellation must not grant access")
	}
}

func TestGateDefaults(t *testing.T) {
	gate := NewPurchaseGate(func(ctx context.Context, courseID uint) (bool, error) {
		return true, nil
	})

	if gate.interval != DefaultPollInterval {
		t.Errorf("expected default interval %v, got %v", DefaultPollInterval, gate.interval)
	}
	if gate.maxAttempts != DefaultMaxAttempts {
		t.Errorf("expected default attempts %d, got %d", DefaultMaxAttempts, gate.maxAttempts)
	}
	if gate.State() != StateLoading {
		t.Errorf("expected initial state loading, got %s", gate.State())
	}
}
