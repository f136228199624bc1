package backoff

import (
	"math"
	"testing"
	"time"
)

func TestAdvance(t *testing.T) {
	s := New(2, time.Second, 30*time.Second)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := s.Advance(); got != w {
			t.Errorf("Advance() #%d = %v, want %v", i+1, got, w)
		}
	}
}

func TestAdvanceMonotonic(t *testing.T) {
	tests := []struct {
		name    string
		factor  uint32
		initial time.Duration
		max     time.Duration
	}{
		{name: "double", factor: 2, initial: time.Second, max: 30 * time.Second},
		{name: "triple small", factor: 3, initial: time.Millisecond, max: time.Minute},
		{name: "initial equals max", factor: 2, initial: 5 * time.Second, max: 5 * time.Second},
		{name: "huge factor", factor: math.MaxUint32, initial: time.Hour, max: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.factor, tt.initial, tt.max)

			prev := s.Advance()
			if prev != tt.initial {
				t.Fatalf("first Advance() = %v, want %v", prev, tt.initial)
			}
			for range 64 {
				got := s.Advance()
				if got < prev {
					t.Fatalf("Advance() = %v after %v, want non-decreasing", got, prev)
				}
				if got > tt.max {
					t.Fatalf("Advance() = %v, want at most %v", got, tt.max)
				}
				prev = got
			}
			if prev != tt.max {
				t.Errorf("settled at %v, want %v", prev, tt.max)
			}
		})
	}
}

func TestAdvanceSaturates(t *testing.T) {
	s := &State{Factor: 10, Max: time.Duration(math.MaxInt64), Value: time.Duration(math.MaxInt64 / 2)}

	s.Advance()
	if got := s.Peek(); got != time.Duration(math.MaxInt64) {
		t.Errorf("Peek() after overflow = %v, want saturated max", got)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	s := New(2, time.Second, time.Minute)

	if s.Peek() != time.Second || s.Peek() != time.Second {
		t.Fatalf("Peek() changed state")
	}
	s.Advance()
	if got := s.Peek(); got != 2*time.Second {
		t.Errorf("Peek() = %v, want 2s", got)
	}
}
