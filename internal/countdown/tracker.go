package countdown

import (
	"math"
	"sync"

	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/clock"
)

// Exercise carries the per-exercise parameters that shape a phase.
type Exercise struct {
	BPM          int        `json:"bpm"`
	Style        beat.Style `json:"beat_style"`
	PrepMeasures int        `json:"prep_measures"`
	BreakSeconds float64    `json:"break_seconds"`
	Autoplay     bool       `json:"autoplay"`
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	Clock      clock.Clock
	BannerText string
	ShortBreak float64
}

// Tracker follows one overlay across phases. Callers report the seconds
// remaining (about once a second) and every beat; Render smooths the
// remaining time against the clock at frame rate.
type Tracker struct {
	clock      clock.Clock
	bannerText string
	shortBreak float64

	mu         sync.Mutex
	phase      Phase
	ex         Exercise
	reported   float64
	reportedAt float64
	initial    float64
	beat       beat.State
	lastCount  int
}

// NewTracker returns a tracker in the idle phase.
func NewTracker(opts TrackerOptions) *Tracker {
	if opts.Clock == nil {
		opts.Clock = clock.NewMonotonic()
	}
	return &Tracker{
		clock:      opts.Clock,
		bannerText: opts.BannerText,
		shortBreak: opts.ShortBreak,
		phase:      PhaseIdle,
	}
}

// Configure replaces the banner text and the short-break limit. The next
// rendered frame uses them.
func (t *Tracker) Configure(bannerText string, shortBreak float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bannerText = bannerText
	t.shortBreak = shortBreak
}

// Begin starts a new phase. The progress reference, the beat position and
// the retained count all start over.
func (t *Tracker) Begin(phase Phase, seconds float64, ex Exercise) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	t.ex = ex
	t.beat = beat.State{}
	t.lastCount = 0
	t.initial = 0
	t.reportLocked(seconds)
}

// Report records a new seconds-remaining value for the current phase.
func (t *Tracker) Report(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reportLocked(seconds)
}

func (t *Tracker) reportLocked(seconds float64) {
	if seconds > 0 && seconds > t.initial {
		t.initial = seconds
	}
	t.reported = seconds
	t.reportedAt = t.clock.Now()
}

// Beat records the metronome position. A tick of 0 means the metronome
// has not clicked in this phase yet and clears any retained count.
func (t *Tracker) Beat(st beat.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.beat = st

	in := t.inputsLocked()
	switch {
	case st.Tick == 0 || RestProgress(in) || t.ex.BPM <= 0 || t.ex.PrepMeasures <= 0:
		t.lastCount = 0
	case st.Tick <= LeadInBeats(t.ex.PrepMeasures, t.ex.Style):
		t.lastCount = st.BeatInMeasure
	}
}

// Close returns the tracker to idle.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseIdle
	t.reported = 0
	t.initial = 0
	t.beat = beat.State{}
	t.lastCount = 0
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// InitialSeconds returns the largest remaining value seen this phase.
func (t *Tracker) InitialSeconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initial
}

// Inputs returns the render inputs for the current instant.
func (t *Tracker) Inputs() Inputs {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputsLocked()
}

// Render evaluates the current frame.
func (t *Tracker) Render() Directives {
	return Render(t.Inputs())
}

func (t *Tracker) inputsLocked() Inputs {
	return Inputs{
		Phase:            t.phase,
		SecondsRemaining: t.remainingLocked(),
		InitialSeconds:   t.initial,
		BPM:              t.ex.BPM,
		Style:            t.ex.Style,
		PrepMeasures:     t.ex.PrepMeasures,
		BeatTick:         t.beat.Tick,
		BeatInMeasure:    t.beat.BeatInMeasure,
		BreakSeconds:     t.ex.BreakSeconds,
		Autoplay:         t.ex.Autoplay,
		ShortBreak:       t.shortBreak,
		LastCount:        t.lastCount,
		BannerText:       t.bannerText,
	}
}

// remainingLocked is the reported value minus the time since it was
// reported, never below zero.
func (t *Tracker) remainingLocked() float64 {
	if t.reported <= 0 {
		return 0
	}
	elapsed := t.clock.Now() - t.reportedAt
	return math.Max(t.reported-elapsed, 0)
}
