// Package clock abstracts wall time so periodic components can be driven
// with virtual time in tests instead of real timers.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed is a settable clock for tests.
type Fixed struct {
	Current time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{Current: t} }

func (f *Fixed) Now() time.Time { return f.Current }

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.Current = f.Current.Add(d) }

// Set jumps the fixed clock to t.
func (f *Fixed) Set(t time.Time) { f.Current = t }
