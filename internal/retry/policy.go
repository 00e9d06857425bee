// Package retry implements the bounded reconnect policy: a fixed number of
// attempts with a growing delay and a terminal give-up state reported to the
// caller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrGaveUp is returned once every attempt failed.
var ErrGaveUp = errors.New("gave up")

// Status is the connection state surfaced to the caller.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusRetrying   Status = "retrying"
	StatusConnected  Status = "connected"
	StatusGaveUp     Status = "gave_up"
)

// Update is passed to the status callback after every state change.
type Update struct {
	Status    Status
	Attempt   int
	NextDelay time.Duration
	Err       error
}

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy is the web client's reconnect schedule: three attempts, the
// first retry after two seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as final: Do stops retrying and gives up at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delays returns the wait before each retry; its length is attempts-1.
func (p Policy) Delays() []time.Duration {
	n := p.attempts() - 1
	delays := make([]time.Duration, 0, n)
	delay := p.InitialDelay
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	for i := 0; i < n; i++ {
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		delays = append(delays, delay)
		delay = time.Duration(float64(delay) * multiplier)
	}
	return delays
}

// Do runs fn until it succeeds, the attempts run out, or ctx is done.
// onStatus may be nil.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onStatus func(Update)) error {
	report := func(u Update) {
		if onStatus != nil {
			onStatus(u)
		}
	}
	delays := p.Delays()
	total := p.attempts()

	var lastErr error
	for attempt := 1; attempt <= total; attempt++ {
		report(Update{Status: StatusConnecting, Attempt: attempt})
		lastErr = fn(ctx)
		if lastErr == nil {
			report(Update{Status: StatusConnected, Attempt: attempt})
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			report(Update{Status: StatusGaveUp, Attempt: attempt, Err: perm.err})
			return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, attempt, perm.err)
		}
		if attempt == total {
			break
		}

		delay := delays[attempt-1]
		report(Update{Status: StatusRetrying, Attempt: attempt, NextDelay: delay, Err: lastErr})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			report(Update{Status: StatusGaveUp, Attempt: attempt, Err: ctx.Err()})
			return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, attempt, ctx.Err())
		case <-timer.C:
		}
	}

	report(Update{Status: StatusGaveUp, Attempt: total, Err: lastErr})
	return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, total, lastErr)
}
