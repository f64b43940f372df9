// Package metronome owns the click scheduler: a lookahead loop that hands
// exact clock timestamps to an audio sink a little ahead of time and
// advances the beat position without accumulating timer drift.
//
// The poll timer only decides how often the loop wakes up. When a click
// sounds is decided by the high-resolution clock: every wake-up schedules
// all ticks that fall inside [now, now+lookahead), each exactly 60/bpm
// seconds after the previous one.
package metronome

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/cadence/internal/audio"
	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/clock"
)

// Defaults for the lookahead loop.
const (
	DefaultPollInterval = 25 * time.Millisecond
	DefaultLookahead    = 100 * time.Millisecond
	DefaultStartOffset  = 50 * time.Millisecond
)

// Options configures a Scheduler.
type Options struct {
	Clock  clock.Clock
	Sink   audio.Sink // nil runs silently with a disabled audio status
	Logger *log.Logger
	Style  beat.Style

	PollInterval time.Duration
	Lookahead    time.Duration
	StartOffset  time.Duration
}

// Snapshot is the observable state bundle of the scheduler.
type Snapshot struct {
	Session       string       `json:"session,omitempty"`
	Playing       bool         `json:"playing"`
	BPM           int          `json:"bpm"`
	Style         beat.Style   `json:"beat_style"`
	Tick          uint64       `json:"tick"`
	BeatInMeasure int          `json:"beat_in_measure"`
	At            float64      `json:"at"` // clock time of the click behind Tick, 0 before the first
	Audio         audio.Status `json:"audio"`
}

// Beat returns the beat position carried by the snapshot.
func (s Snapshot) Beat() beat.State {
	return beat.State{Tick: s.Tick, BeatInMeasure: s.BeatInMeasure}
}

type statusReporter interface {
	Status() audio.Status
}

// Scheduler drives one metronome session at a time.
type Scheduler struct {
	clock       clock.Clock
	sink        audio.Sink
	log         *log.Logger
	poll        time.Duration
	lookahead   float64
	startOffset float64

	mu         sync.Mutex
	running    bool
	bpm        int
	style      beat.Style
	state      beat.State
	next       float64
	lastAt     float64
	session    string
	stopCh     chan struct{}
	loopDone   chan struct{}
	audio      audio.Status
	audioState audio.State

	feed *feed
}

// New returns an idle scheduler.
func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.NewMonotonic()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.StartOffset <= 0 {
		opts.StartOffset = DefaultStartOffset
	}
	if opts.Style == "" {
		opts.Style = beat.StyleNone
	}

	st := audio.Status{State: audio.StateOK}
	if opts.Sink == nil {
		st = audio.Status{State: audio.StateDisabled}
	}

	return &Scheduler{
		clock:       opts.Clock,
		sink:        opts.Sink,
		log:         opts.Logger,
		poll:        opts.PollInterval,
		lookahead:   opts.Lookahead.Seconds(),
		startOffset: opts.StartOffset.Seconds(),
		style:       opts.Style,
		audio:       st,
		audioState:  st.State,
		feed:        newFeed(),
	}
}

// Start begins clicking at bpm. A non-positive bpm is ignored. Calling
// Start while already running restarts the session in place: the same
// poll loop continues, the tick count starts again from zero.
func (s *Scheduler) Start(bpm int) {
	if bpm <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.openSinkLocked()

	s.bpm = bpm
	s.state = beat.State{}
	s.lastAt = 0
	s.next = s.clock.Now() + s.startOffset
	s.session = uuid.NewString()

	if !s.running {
		s.running = true
		s.stopCh = make(chan struct{})
		s.loopDone = make(chan struct{})
		go s.loop(s.stopCh, s.loopDone)
	}

	s.log.Printf("metronome: start %d bpm %s (session %s)", bpm, s.style, s.session)
	s.publishLocked()
	s.pollLocked()
}

// Stop ends the session. It is idempotent and safe to call while a poll
// iteration is in flight; the loop is cancelled exactly once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.bpm = 0
		s.state = beat.State{}
		s.mu.Unlock()
		return
	}

	close(s.stopCh)
	done := s.loopDone
	s.stopCh = nil
	s.loopDone = nil
	s.running = false
	s.bpm = 0
	s.state = beat.State{}
	s.lastAt = 0
	s.next = 0
	s.session = ""
	s.log.Printf("metronome: stop")
	s.publishLocked()
	s.mu.Unlock()

	<-done
}

// Toggle stops a running session or starts one at bpm.
func (s *Scheduler) Toggle(bpm int) {
	if s.Playing() {
		s.Stop()
		return
	}
	s.Start(bpm)
}

// SetBpm changes the tempo for ticks not yet scheduled. Ticks already
// handed to the sink keep their timestamps.
func (s *Scheduler) SetBpm(bpm int) {
	if bpm <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bpm == bpm {
		return
	}
	s.bpm = bpm
	s.publishLocked()
}

// SetBeatStyle changes the grouping used for the next beat-in-measure
// computation. Audio timing is unaffected.
func (s *Scheduler) SetBeatStyle(style beat.Style) {
	if style == "" {
		style = beat.StyleNone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.style == style {
		return
	}
	s.style = style
	s.publishLocked()
}

// Playing reports whether a session is running.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot returns the current state bundle.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a feed of every state change, one Snapshot per
// scheduled tick plus one per start, stop, tempo or style change.
func (s *Scheduler) Subscribe() *Subscription {
	return s.feed.subscribe()
}

// AudioStatus reports whether clicks are audible. The metronome keeps
// running when they are not.
func (s *Scheduler) AudioStatus() audio.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioStatusLocked()
}

func (s *Scheduler) loop(stopCh, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(s.poll)
	defer t.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-t.C:
			s.mu.Lock()
			if s.stopCh != stopCh {
				s.mu.Unlock()
				return
			}
			s.pollLocked()
			s.mu.Unlock()
		}
	}
}

// Poll runs one lookahead pass outside the background loop. Offline
// renderers pair it with a manual clock and a long PollInterval.
func (s *Scheduler) Poll() {
	s.mu.Lock()
	s.pollLocked()
	s.mu.Unlock()
}

func (s *Scheduler) pollLocked() {
	if !s.running || s.bpm <= 0 {
		return
	}
	horizon := s.clock.Now() + s.lookahead
	for s.next < horizon {
		s.scheduleLocked(s.next)
		s.state = s.state.Advance(s.style)
		s.lastAt = s.next
		s.publishLocked()
		s.next += beat.SecondsPerBeat(s.bpm)
	}
}

func (s *Scheduler) scheduleLocked(at float64) {
	if s.sink == nil {
		return
	}
	err := s.sink.Schedule(at)
	if err == nil {
		return
	}
	if errors.Is(err, audio.ErrLate) {
		s.audio.Late++
		return
	}
	s.audio = audio.Status{State: audio.StateDegraded, Error: err.Error(), Late: s.audio.Late}
	s.noteAudioLocked()
}

func (s *Scheduler) openSinkLocked() {
	op, ok := s.sink.(audio.Opener)
	if !ok {
		return
	}
	if err := op.Open(); err != nil {
		s.audio = audio.Status{State: audio.StateDegraded, Error: err.Error(), Late: s.audio.Late}
	} else if s.audio.State != audio.StateOK {
		s.audio = audio.Status{State: audio.StateOK, Late: s.audio.Late}
	}
	s.noteAudioLocked()
}

// noteAudioLocked logs audio health transitions once rather than per tick.
func (s *Scheduler) noteAudioLocked() {
	st := s.audioStatusLocked()
	if st.State == s.audioState {
		return
	}
	if st.Healthy() {
		s.log.Printf("metronome: audio recovered")
	} else {
		s.log.Printf("[warn] metronome: audio %s, continuing silently: %s", st.State, st.Error)
	}
	s.audioState = st.State
}

func (s *Scheduler) audioStatusLocked() audio.Status {
	if r, ok := s.sink.(statusReporter); ok {
		st := r.Status()
		if st.State == audio.StateOK && s.audio.State == audio.StateDegraded {
			return s.audio
		}
		return st
	}
	return s.audio
}

// snapshotLocked clamps the beat to the current style, since a style
// change between ticks can leave it past the end of the shorter measure.
func (s *Scheduler) snapshotLocked() Snapshot {
	bim := s.state.BeatInMeasure
	if n := s.style.BeatsPerMeasure(); bim > n {
		bim = n
	}
	return Snapshot{
		Session:       s.session,
		Playing:       s.running,
		BPM:           s.bpm,
		Style:         s.style,
		Tick:          s.state.Tick,
		BeatInMeasure: bim,
		At:            s.lastAt,
		Audio:         s.audioStatusLocked(),
	}
}

func (s *Scheduler) publishLocked() {
	s.feed.publish(s.snapshotLocked())
}
