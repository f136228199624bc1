// Package supervisor runs long-lived fallible workloads forever, restarting
// them with exponential backoff after errors and panics and reporting every
// transition as an Event.
package supervisor

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/nhle/mail-notifier/internal/backoff"
)

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run calls work until it succeeds. Every attempt is announced with a
// Started event. An error or a panic advances b, is reported together with
// the resulting delay, and is followed by sleep before the next attempt.
//
// Run only returns when work succeeds, in which case a Done event is
// emitted and the value is returned, or when ctx is cancelled.
func Run[V any](
	ctx context.Context,
	work func(ctx context.Context) (V, error),
	notify func(Event[V]),
	sleep SleepFunc,
	b *backoff.State,
) (V, error) {
	if sleep == nil {
		sleep = Sleep
	}

	var zero V
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		notify(Event[V]{Kind: Started})

		var (
			value V
			err   error
			pc    panics.Catcher
		)
		pc.Try(func() {
			value, err = work(ctx)
		})

		var ev Event[V]
		if recovered := pc.Recovered(); recovered != nil {
			ev = Event[V]{Kind: Panicked, Panic: recovered}
		} else if err != nil {
			ev = Event[V]{Kind: Error, Err: err}
		} else {
			notify(Event[V]{Kind: Done, Value: value})
			return value, nil
		}

		ev.NextRetryIn = b.Advance()
		notify(ev)

		if err := sleep(ctx, ev.NextRetryIn); err != nil {
			return zero, err
		}
	}
}
