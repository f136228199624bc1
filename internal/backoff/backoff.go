// Package backoff holds the exponential retry delay used by the supervisor.
package backoff

import (
	"math"
	"time"
)

// State is a multiplicative backoff clamped at Max.
type State struct {
	// Factor multiplies Value after every Advance.
	Factor uint32
	// Max caps the stored delay.
	Max time.Duration
	// Value is the delay the next Advance returns.
	Value time.Duration
}

// New returns a State starting at initial.
func New(factor uint32, initial, max time.Duration) *State {
	return &State{Factor: factor, Max: max, Value: initial}
}

// Peek returns the delay the next Advance will return.
func (s *State) Peek() time.Duration {
	return s.Value
}

// Advance returns the current delay and grows the stored one for next
// time. Multiplication saturates instead of overflowing.
func (s *State) Advance() time.Duration {
	current := s.Value

	next := time.Duration(math.MaxInt64)
	if f := time.Duration(s.Factor); f == 0 || current <= time.Duration(math.MaxInt64)/f {
		next = current * f
	}
	s.Value = min(next, s.Max)

	return current
}
