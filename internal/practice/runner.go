// Package practice runs a plan: it counts down each prep or rest phase at
// one second per step, starts the metronome so the lead-in clicks land in
// the last seconds of that phase, keeps it clicking for the exercise's
// work time, and stops it before moving on.
package practice

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/countdown"
	"github.com/large-farva/cadence/internal/metronome"
	"github.com/large-farva/cadence/internal/plan"
)

// ErrRunning is returned by Run while another run is in progress.
var ErrRunning = errors.New("practice already running")

// Stage is where the runner is inside the current exercise.
type Stage string

const (
	StageIdle    Stage = "idle"
	StagePrep    Stage = "prep"
	StageRest    Stage = "rest"
	StageWaiting Stage = "waiting"
	StageWork    Stage = "work"
	StageDone    Stage = "done"
	StageStopped Stage = "stopped"
)

// Command steers a running plan.
type Command string

const (
	// CommandSkip ends the current countdown or work block early.
	CommandSkip Command = "skip"
	// CommandNext starts the next exercise when autoplay is off.
	CommandNext Command = "next"
)

// Metronome is the part of the scheduler the runner drives.
type Metronome interface {
	Start(bpm int)
	Stop()
	SetBeatStyle(style beat.Style)
	Snapshot() metronome.Snapshot
}

// Update describes the runner's position after every step.
type Update struct {
	Plan      string        `json:"plan"`
	Index     int           `json:"index"`
	Total     int           `json:"total"`
	Stage     Stage         `json:"stage"`
	Exercise  plan.Exercise `json:"exercise"`
	Remaining int           `json:"remaining"`
	Duration  int           `json:"duration"`
}

// Options configures a Runner.
type Options struct {
	Metronome Metronome
	Tracker   *countdown.Tracker
	Logger    *log.Logger

	// Autoplay moves from one exercise to the next through a rest phase.
	// Without it the runner waits for CommandNext and counts a fresh prep.
	Autoplay    bool
	PrepSeconds int
	// Second is the countdown step; tests shorten it.
	Second time.Duration
}

// Runner executes one plan at a time.
type Runner struct {
	metro       Metronome
	tracker     *countdown.Tracker
	log         *log.Logger
	autoplay    bool
	prepSeconds int
	second      time.Duration

	commands chan Command

	mu             sync.Mutex
	running        bool
	session        string
	current        Update
	updateCallback func(Update)
}

// New creates a runner. A nil Tracker gets a private one.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Tracker == nil {
		opts.Tracker = countdown.NewTracker(countdown.TrackerOptions{})
	}
	if opts.Second <= 0 {
		opts.Second = time.Second
	}
	if opts.PrepSeconds < 0 {
		opts.PrepSeconds = 0
	}
	return &Runner{
		metro:       opts.Metronome,
		tracker:     opts.Tracker,
		log:         opts.Logger,
		autoplay:    opts.Autoplay,
		prepSeconds: opts.PrepSeconds,
		second:      opts.Second,
		commands:    make(chan Command, 4),
		current:     Update{Stage: StageIdle},
	}
}

// SetUpdateCallback registers a function called after every step. It runs
// on the Run goroutine and must not block for long.
func (r *Runner) SetUpdateCallback(fn func(Update)) {
	r.mu.Lock()
	r.updateCallback = fn
	r.mu.Unlock()
}

// SetDefaults replaces the autoplay and prep settings used by plans that
// do not carry their own. A run already in progress keeps its values.
func (r *Runner) SetDefaults(autoplay bool, prepSeconds int) {
	if prepSeconds < 0 {
		prepSeconds = 0
	}
	r.mu.Lock()
	r.autoplay = autoplay
	r.prepSeconds = prepSeconds
	r.mu.Unlock()
}

// Tracker returns the countdown tracker the runner reports into.
func (r *Runner) Tracker() *countdown.Tracker {
	return r.tracker
}

// Current returns the most recent update.
func (r *Runner) Current() Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Running reports whether a plan is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Send queues a command for the running plan. It reports false when the
// runner is idle or the queue is full.
func (r *Runner) Send(cmd Command) bool {
	if !r.Running() {
		return false
	}
	select {
	case r.commands <- cmd:
		return true
	default:
		return false
	}
}

// Beat forwards a metronome snapshot to the countdown tracker. Snapshots
// from sessions the runner did not start are ignored, so stale ticks from
// a previous exercise never leak into the next phase.
func (r *Runner) Beat(snap metronome.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.Session == "" || snap.Session != r.session {
		return
	}
	r.tracker.Beat(snap.Beat())
}

// Run executes p and blocks until it finishes or ctx is cancelled. The
// metronome is always stopped on return.
func (r *Runner) Run(ctx context.Context, p plan.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRunning
	}
	r.running = true
	defAutoplay, defPrep := r.autoplay, r.prepSeconds
	r.mu.Unlock()

	// Drop commands left over from a previous run.
	for len(r.commands) > 0 {
		<-r.commands
	}

	autoplay := p.AutoplayOr(defAutoplay)
	prep := defPrep
	if p.PrepSeconds > 0 {
		prep = p.PrepSeconds
	}

	r.log.Printf("practice: starting %q (%d exercises, autoplay=%v)", p.Title, len(p.Exercises), autoplay)

	err := r.run(ctx, p, autoplay, prep)

	r.stopMetronome()
	r.tracker.Close()

	final := Update{Plan: p.Title, Total: len(p.Exercises), Stage: StageDone}
	if err != nil {
		final.Stage = StageStopped
		level := "[warn] "
		if errors.Is(err, context.Canceled) {
			level = ""
		}
		r.log.Printf("%spractice: stopped %q: %v", level, p.Title, err)
	} else {
		r.log.Printf("practice: finished %q", p.Title)
	}
	final.Index = r.Current().Index
	r.emit(final)

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return err
}

func (r *Runner) run(ctx context.Context, p plan.Plan, autoplay bool, prep int) error {
	for i, ex := range p.Exercises {
		base := Update{Plan: p.Title, Index: i, Total: len(p.Exercises), Exercise: ex}

		phase, secs := countdown.PhasePrep, prep
		if i > 0 {
			if autoplay {
				phase, secs = countdown.PhaseRest, p.BreakBefore(i)
			} else {
				u := base
				u.Stage = StageWaiting
				r.emit(u)
				if r.sleepOrCommand(ctx, math.MaxInt64, CommandNext, CommandSkip) == sleepCancelled {
					return ctx.Err()
				}
			}
		}

		started, err := r.countdown(ctx, base, phase, secs, p.BreakBefore(i), autoplay)
		if err != nil {
			return err
		}
		if !started {
			r.startMetronome(ex)
		}

		if err := r.work(ctx, base); err != nil {
			return err
		}
		r.stopMetronome()
	}
	return nil
}

// countdown runs one prep or rest phase. It reports whether the metronome
// was started for the lead-in.
func (r *Runner) countdown(ctx context.Context, base Update, phase countdown.Phase, secs, breakSecs int, autoplay bool) (bool, error) {
	ex := base.Exercise
	threshold := int(countdown.LeadInThreshold(ex.BPM, ex.PrepMeasures, ex.Style))
	if secs < threshold {
		secs = threshold
	}
	if secs <= 0 {
		return false, nil
	}

	stage := StagePrep
	if phase == countdown.PhaseRest {
		stage = StageRest
	}

	r.metro.SetBeatStyle(ex.Style)
	r.tracker.Begin(phase, float64(secs), countdown.Exercise{
		BPM:          ex.BPM,
		Style:        ex.Style,
		PrepMeasures: ex.PrepMeasures,
		BreakSeconds: float64(breakSecs),
		Autoplay:     autoplay,
	})

	u := base
	u.Stage, u.Duration = stage, secs

	started := false
	for remaining := secs; remaining > 0; {
		if threshold > 0 && remaining <= threshold && !started {
			r.startMetronome(ex)
			started = true
		}
		u.Remaining = remaining
		r.emit(u)

		switch r.sleepOrCommand(ctx, r.second, CommandSkip) {
		case sleepCancelled:
			return started, ctx.Err()
		case sleepInterrupted:
			r.log.Printf("[debug] practice: skipped %s before %q", stage, ex.Title)
			remaining = 0
		default:
			remaining--
		}
		r.tracker.Report(float64(remaining))
	}
	r.tracker.Close()
	return started, nil
}

func (r *Runner) work(ctx context.Context, base Update) error {
	u := base
	u.Stage, u.Duration = StageWork, base.Exercise.WorkSeconds
	for remaining := u.Duration; remaining > 0; remaining-- {
		u.Remaining = remaining
		r.emit(u)
		switch r.sleepOrCommand(ctx, r.second, CommandSkip) {
		case sleepCancelled:
			return ctx.Err()
		case sleepInterrupted:
			r.log.Printf("[debug] practice: skipped %q", base.Exercise.Title)
			return nil
		}
	}
	return nil
}

func (r *Runner) startMetronome(ex plan.Exercise) {
	if ex.BPM <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metro.SetBeatStyle(ex.Style)
	r.metro.Start(ex.BPM)
	r.session = r.metro.Snapshot().Session
}

func (r *Runner) stopMetronome() {
	r.mu.Lock()
	r.session = ""
	r.mu.Unlock()
	r.metro.Stop()
}

func (r *Runner) emit(u Update) {
	r.mu.Lock()
	r.current = u
	fn := r.updateCallback
	r.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// sleepResult indicates what ended a sleep period.
type sleepResult int

const (
	sleepCompleted   sleepResult = iota // timer expired normally
	sleepCancelled                      // context was cancelled
	sleepInterrupted                    // an accepted command arrived
)

// sleepOrCommand blocks for d, until ctx is cancelled, or until one of the
// accepted commands arrives. Other commands are discarded.
func (r *Runner) sleepOrCommand(ctx context.Context, d time.Duration, accept ...Command) sleepResult {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return sleepCancelled
		case <-t.C:
			return sleepCompleted
		case cmd := <-r.commands:
			for _, a := range accept {
				if cmd == a {
					return sleepInterrupted
				}
			}
		}
	}
}
