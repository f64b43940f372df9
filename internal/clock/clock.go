// Package clock provides the high-resolution time source the metronome
// schedules against. Times are float64 seconds since the clock's origin,
// the same unit the click timestamps use, and are always taken from Go's
// monotonic reading so wall-clock steps never move a beat.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current position on a monotonic timeline in seconds.
type Clock interface {
	Now() float64
}

// Monotonic measures seconds elapsed since it was created.
type Monotonic struct {
	origin time.Time
}

// NewMonotonic starts a clock at 0.
func NewMonotonic() *Monotonic {
	return &Monotonic{origin: time.Now()}
}

// Now returns seconds since the clock was created.
func (m *Monotonic) Now() float64 {
	return time.Since(m.origin).Seconds()
}

// Origin returns the wall time that corresponds to Now() == 0.
func (m *Monotonic) Origin() time.Time {
	return m.origin
}

// Manual is a clock that only moves when told to. It is used for offline
// rendering and for deterministic tests.
type Manual struct {
	mu  sync.Mutex
	now float64
}

// NewManual returns a manual clock positioned at start seconds.
func NewManual(start float64) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to an absolute position. Moving backwards is ignored.
func (m *Manual) Set(t float64) {
	m.mu.Lock()
	if t > m.now {
		m.now = t
	}
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now += d.Seconds()
	m.mu.Unlock()
}

// Seconds converts a duration into clock units.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}
