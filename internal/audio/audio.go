// Package audio turns scheduled click timestamps into sound. A click is an
// immutable rendered template; each scheduled click is an independent voice
// that only records the sample it starts on, so a late or dropped click
// never disturbs the next one.
package audio

import (
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Schedule after the sink has been closed.
	ErrClosed = errors.New("audio sink closed")
	// ErrLate is returned when a click's start sample has already been rendered.
	ErrLate = errors.New("click scheduled in the past")
	// ErrNotOpen is returned by Schedule before Open has succeeded.
	ErrNotOpen = errors.New("audio sink not open")
)

// Sink emits one click at an exact future clock timestamp.
type Sink interface {
	Schedule(at float64) error
}

// Opener is implemented by sinks that need a device or context opened
// before clicks can be heard. Open must be safe to call more than once.
type Opener interface {
	Open() error
}

// State describes how the audio path is doing.
type State string

const (
	StateOK       State = "ok"
	StateDegraded State = "degraded"
	StateDisabled State = "disabled"
)

// Status is the observable health of the audio path. A degraded status
// means the metronome keeps running but clicks are not being heard.
type Status struct {
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
	Late  uint64 `json:"late,omitempty"`
}

// Healthy reports whether clicks are currently audible.
func (s Status) Healthy() bool {
	return s.State == StateOK
}

// Recorder is a Sink that keeps every scheduled timestamp. It never makes
// a sound; export and tests use it to observe the click timeline.
type Recorder struct {
	mu    sync.Mutex
	times []float64
	opens int

	// OpenErr, when set, is returned by Open.
	OpenErr error
	// ScheduleErr, when set, is returned by Schedule after recording.
	ScheduleErr error
}

func (r *Recorder) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	return r.OpenErr
}

func (r *Recorder) Schedule(at float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, at)
	return r.ScheduleErr
}

// Times returns a copy of the recorded timestamps in scheduling order.
func (r *Recorder) Times() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.times...)
}

// Opens returns how many times Open was called.
func (r *Recorder) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

// Reset forgets the recorded timestamps.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.times = nil
	r.mu.Unlock()
}
