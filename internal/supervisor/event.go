package supervisor

import (
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
)

// EventKind identifies a supervisor lifecycle event.
type EventKind int

const (
	// Started precedes every attempt, the first one included.
	Started EventKind = iota
	// Done is emitted once, when the workload returns successfully.
	Done
	// Error is emitted when an attempt returns an error.
	Error
	// Panicked is emitted when an attempt panics.
	Panicked
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Done:
		return "done"
	case Error:
		return "error"
	case Panicked:
		return "panicked"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one entry of the supervisor's event stream. Which fields are
// set depends on Kind: Value for Done, Err for Error, Panic for Panicked.
// NextRetryIn is the delay slept before the next Started and is set for
// Error and Panicked.
type Event[V any] struct {
	Kind        EventKind
	Value       V
	Err         error
	Panic       *panics.Recovered
	NextRetryIn time.Duration
}

// Reason returns the failure carried by an Error or Panicked event, or nil.
func (e Event[V]) Reason() error {
	switch e.Kind {
	case Error:
		return e.Err
	case Panicked:
		if e.Panic != nil {
			return e.Panic.AsError()
		}
	}
	return nil
}
