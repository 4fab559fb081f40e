// Package retry runs remote calls with a bounded number of attempts and linear backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/eolscan/eolscan/log"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// BaseDelay is multiplied by the attempt number to get the wait after that attempt.
	BaseDelay time.Duration
	// OnRetry is called before each wait with the attempt that just failed (1-based).
	OnRetry func(attempt int, err error)
	// FinalErrorMessage replaces the message of the error returned once attempts are exhausted.
	FinalErrorMessage string
}

// Error is returned when every attempt failed.
type Error struct {
	Operation string
	Attempts  int
	Message   string
	Err       error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. Do returns it immediately, unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// linear waits base, 2*base, 3*base, ... between attempts.
type linear struct {
	base    time.Duration
	attempt int
}

func (l *linear) NextBackOff() time.Duration {
	l.attempt++
	return l.base * time.Duration(l.attempt)
}

func (l *linear) Reset() { l.attempt = 0 }

// Do calls fn until it succeeds, returns a Permanent error, or p.Attempts calls have failed.
// The wait only blocks the calling goroutine; ctx cancellation ends it early.
func Do[T any](ctx context.Context, operation string, fn func(ctx context.Context) (T, error), p Policy) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		attempt   int
		last      error
		permanent bool
	)

	op := func() (T, error) {
		attempt++
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}

		var pe *backoff.PermanentError
		if errors.As(err, &pe) {
			permanent = true
			last = pe.Unwrap()
		} else {
			last = err
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		log.WithFields(log.Fields{"operation": operation, "attempt": attempt, "wait": wait}).
			Debugf("retrying after error: %v", err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&linear{base: p.BaseDelay}),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(notify),
	)

	switch {
	case err == nil:
		return res, nil
	case permanent:
		return res, last
	case ctx.Err() != nil:
		return res, err
	}

	return res, &Error{
		Operation: operation,
		Attempts:  attempt,
		Message:   finalMessage(operation, p.FinalErrorMessage, last),
		Err:       last,
	}
}

func finalMessage(operation, override string, last error) string {
	switch {
	case override != "":
		return override
	case last != nil && last.Error() != "":
		return last.Error()
	default:
		return operation + " failed, please contact your administrator"
	}
}
