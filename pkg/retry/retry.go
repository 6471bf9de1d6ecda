// Package retry runs an operation through a small, explicit retry state machine:
//
//	Attempting(n) -> Success
//	Attempting(n) -> TransientFailure -> Backoff -> Attempting(n+1)
//	Attempting(n) -> PermanentFailure -> Failed
//
// Only errors wrapped with Transient are retried. The attempt ceiling is exact:
// an operation that always fails transiently runs precisely Policy.Attempts times.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type State int

const (
	Attempting State = iota
	TransientFailure
	Backoff
	PermanentFailure
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case TransientFailure:
		return "transient_failure"
	case Backoff:
		return "backoff"
	case PermanentFailure:
		return "permanent_failure"
	case Success:
		return "success"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Policy bounds the number of attempts and shapes the delay between them.
type Policy struct {
	Attempts   int
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// Transition is reported to the observer on every state change.
type Transition struct {
	Attempt int
	State   State
	Err     error
	Wait    time.Duration
}

type Machine struct {
	policy  Policy
	sleep   func(ctx context.Context, d time.Duration) error
	observe func(Transition)
}

type Option func(*Machine)

// WithSleep replaces the context-aware sleep used between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Machine) {
		m.sleep = sleep
	}
}

func WithObserver(observe func(Transition)) Option {
	return func(m *Machine) {
		m.observe = observe
	}
}

func New(policy Policy, opts ...Option) *Machine {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	if policy.Max <= 0 {
		policy.Max = backoff.DefaultMaxInterval
	}
	m := &Machine{
		policy:  policy,
		sleep:   sleepContext,
		observe: func(Transition) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Do runs op until it succeeds, fails permanently or the attempt ceiling is
// reached. It returns the number of attempts made and the last error with any
// transient marker removed.
func (m *Machine) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	delays := m.delays()
	attempt := 1
	state := Attempting
	var lastErr error

	for {
		switch state {
		case Attempting:
			m.observe(Transition{Attempt: attempt, State: state})
			if err := ctx.Err(); err != nil {
				lastErr = err
				state = Failed
				continue
			}
			lastErr = op(ctx, attempt)
			switch {
			case lastErr == nil:
				state = Success
			case IsTransient(lastErr):
				state = TransientFailure
			default:
				state = PermanentFailure
			}

		case TransientFailure:
			m.observe(Transition{Attempt: attempt, State: state, Err: lastErr})
			if attempt >= m.policy.Attempts {
				state = Failed
				continue
			}
			state = Backoff

		case Backoff:
			wait := delays.NextBackOff()
			m.observe(Transition{Attempt: attempt, State: state, Err: lastErr, Wait: wait})
			if err := m.sleep(ctx, wait); err != nil {
				lastErr = err
				state = Failed
				continue
			}
			attempt++
			state = Attempting

		case PermanentFailure:
			m.observe(Transition{Attempt: attempt, State: state, Err: lastErr})
			state = Failed

		case Success:
			m.observe(Transition{Attempt: attempt, State: state})
			return attempt, nil

		case Failed:
			m.observe(Transition{Attempt: attempt, State: state, Err: lastErr})
			return attempt, unwrapTransient(lastErr)
		}
	}
}

func (m *Machine) delays() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.policy.Base
	b.Multiplier = m.policy.Multiplier
	b.MaxInterval = m.policy.Max
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func unwrapTransient(err error) error {
	var t *transientError
	if errors.As(err, &t) {
		return t.err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
