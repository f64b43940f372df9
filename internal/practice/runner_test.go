package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/countdown"
	"github.com/large-farva/cadence/internal/metronome"
	"github.com/large-farva/cadence/internal/plan"
)

// journal records metronome calls and runner updates in one timeline.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	j.events = append(j.events, fmt.Sprintf(format, args...))
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

type fakeMetronome struct {
	j       *journal
	mu      sync.Mutex
	session int
	bpm     int
	style   beat.Style
}

func (f *fakeMetronome) Start(bpm int) {
	f.mu.Lock()
	f.session++
	f.bpm = bpm
	f.mu.Unlock()
	f.j.add("start %d", bpm)
}

func (f *fakeMetronome) Stop() {
	f.mu.Lock()
	wasPlaying := f.bpm > 0
	f.bpm = 0
	f.mu.Unlock()
	if wasPlaying {
		f.j.add("stop")
	}
}

func (f *fakeMetronome) SetBeatStyle(style beat.Style) {
	f.mu.Lock()
	f.style = style
	f.mu.Unlock()
}

func (f *fakeMetronome) Snapshot() metronome.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bpm == 0 {
		return metronome.Snapshot{Style: f.style}
	}
	return metronome.Snapshot{Session: fmt.Sprintf("s%d", f.session), Playing: true, BPM: f.bpm, Style: f.style}
}

func newTestRunner(autoplay bool) (*Runner, *fakeMetronome, *journal) {
	j := &journal{}
	m := &fakeMetronome{j: j}
	r := New(Options{
		Metronome:   m,
		Autoplay:    autoplay,
		PrepSeconds: 3,
		Second:      time.Millisecond,
	})
	r.SetUpdateCallback(func(u Update) {
		j.add("%s %d %d", u.Stage, u.Index, u.Remaining)
	})
	return r, m, j
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunStartsMetronomeAtLeadInThreshold(t *testing.T) {
	r, _, j := newTestRunner(true)
	p := plan.Plan{
		Title: "t",
		Exercises: []plan.Exercise{
			// 120 bpm, 4/4, one measure: 2s lead-in.
			{Title: "a", BPM: 120, Style: beat.Style44, PrepMeasures: 1, WorkSeconds: 2, RestSeconds: 5},
			// No lead-in: the metronome starts with the work block.
			{Title: "b", BPM: 90, Style: beat.StyleNone, WorkSeconds: 1},
		},
	}
	if err := r.Run(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"prep 0 3",
		"start 120",
		"prep 0 2",
		"prep 0 1",
		"work 0 2",
		"work 0 1",
		"stop",
		"rest 1 5",
		"rest 1 4",
		"rest 1 3",
		"rest 1 2",
		"rest 1 1",
		"start 90",
		"work 1 1",
		"stop",
		"done 1 0",
	}
	if got := j.list(); !equal(got, want) {
		t.Errorf("timeline:\n got %q\nwant %q", got, want)
	}
	if r.Running() {
		t.Error("still running after Run returned")
	}
}

func TestRunStretchesShortPhaseToFitLeadIn(t *testing.T) {
	r, _, j := newTestRunner(true)
	r.prepSeconds = 0
	p := plan.Plan{Exercises: []plan.Exercise{
		// 60 bpm 3/4 one measure needs 3s even with no prep time.
		{BPM: 60, Style: beat.Style34, PrepMeasures: 1, WorkSeconds: 1},
	}}
	if err := r.Run(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	got := j.list()
	want := []string{"start 60", "prep 0 3", "prep 0 2", "prep 0 1", "work 0 1", "stop", "done 0 0"}
	if !equal(got, want) {
		t.Errorf("timeline:\n got %q\nwant %q", got, want)
	}
}

func TestRunWaitsForNextWithoutAutoplay(t *testing.T) {
	r, _, j := newTestRunner(false)
	r.prepSeconds = 1
	p := plan.Plan{Exercises: []plan.Exercise{
		{BPM: 0, WorkSeconds: 1},
		{BPM: 0, WorkSeconds: 1},
	}}

	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background(), p) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.Current().Stage != StageWaiting {
		if time.Now().After(deadline) {
			t.Fatalf("runner never waited, stage %q", r.Current().Stage)
		}
		time.Sleep(time.Millisecond)
	}
	if !r.Send(CommandNext) {
		t.Fatal("Send(next) rejected")
	}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	want := []string{"prep 0 1", "work 0 1", "waiting 1 0", "prep 1 1", "work 1 1", "done 1 0"}
	if got := j.list(); !equal(got, want) {
		t.Errorf("timeline:\n got %q\nwant %q", got, want)
	}
}

func TestSetDefaultsAppliesToNextRun(t *testing.T) {
	r, _, j := newTestRunner(true)
	r.SetDefaults(false, 2)
	p := plan.Plan{Exercises: []plan.Exercise{
		{BPM: 0, WorkSeconds: 1},
		{BPM: 0, WorkSeconds: 1},
	}}

	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background(), p) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.Current().Stage != StageWaiting {
		if time.Now().After(deadline) {
			t.Fatalf("runner never waited, stage %q", r.Current().Stage)
		}
		time.Sleep(time.Millisecond)
	}
	r.Send(CommandNext)
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	want := []string{"prep 0 2", "prep 0 1", "work 0 1", "waiting 1 0", "prep 1 2", "prep 1 1", "work 1 1", "done 1 0"}
	if got := j.list(); !equal(got, want) {
		t.Errorf("timeline:\n got %q\nwant %q", got, want)
	}
}

func TestRunCancel(t *testing.T) {
	r, m, j := newTestRunner(true)
	r.second = time.Hour
	p := plan.Plan{Exercises: []plan.Exercise{{BPM: 100, Style: beat.Style44, PrepMeasures: 1, WorkSeconds: 60}}}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx, p) }()

	deadline := time.Now().Add(2 * time.Second)
	for m.Snapshot().BPM == 0 {
		if time.Now().After(deadline) {
			t.Fatal("metronome never started")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if m.Snapshot().Playing {
		t.Error("metronome left running after cancel")
	}
	events := j.list()
	if last := events[len(events)-1]; last != "stopped 0 0" {
		t.Errorf("last event = %q, want stopped", last)
	}
	if r.Tracker().Phase() != countdown.PhaseIdle {
		t.Error("tracker not closed after cancel")
	}
}

func TestRunSkip(t *testing.T) {
	r, _, j := newTestRunner(true)
	r.second = time.Hour
	p := plan.Plan{Exercises: []plan.Exercise{{BPM: 100, WorkSeconds: 600}}}

	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background(), p) }()

	waitStage := func(s Stage) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for r.Current().Stage != s {
			if time.Now().After(deadline) {
				t.Fatalf("stage %q never reached, at %q", s, r.Current().Stage)
			}
			time.Sleep(time.Millisecond)
		}
	}

	waitStage(StagePrep)
	r.Send(CommandSkip)
	waitStage(StageWork)
	r.Send(CommandSkip)

	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	want := []string{"prep 0 3", "start 100", "work 0 600", "stop", "done 0 0"}
	if got := j.list(); !equal(got, want) {
		t.Errorf("timeline:\n got %q\nwant %q", got, want)
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	r, _, _ := newTestRunner(true)
	r.second = time.Hour
	p := plan.Plan{Exercises: []plan.Exercise{{WorkSeconds: 5}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, p)

	deadline := time.Now().Add(2 * time.Second)
	for !r.Running() {
		if time.Now().After(deadline) {
			t.Fatal("runner never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := r.Run(ctx, p); !errors.Is(err, ErrRunning) {
		t.Errorf("second Run = %v, want ErrRunning", err)
	}
}

func TestRunRejectsInvalidPlan(t *testing.T) {
	r, _, _ := newTestRunner(true)
	if err := r.Run(context.Background(), plan.Plan{}); !errors.Is(err, plan.ErrEmpty) {
		t.Errorf("Run(empty) = %v, want ErrEmpty", err)
	}
	if r.Send(CommandSkip) {
		t.Error("Send accepted while idle")
	}
}

func TestBeatIgnoresForeignSessions(t *testing.T) {
	j := &journal{}
	m := &fakeMetronome{j: j}
	tr := countdown.NewTracker(countdown.TrackerOptions{})
	r := New(Options{Metronome: m, Tracker: tr})

	ex := plan.Exercise{BPM: 120, Style: beat.Style44, PrepMeasures: 1, WorkSeconds: 1}
	tr.Begin(countdown.PhasePrep, 2, countdown.Exercise{BPM: 120, Style: beat.Style44, PrepMeasures: 1})
	r.startMetronome(ex)

	r.Beat(metronome.Snapshot{Session: "other", Tick: 3, BeatInMeasure: 3})
	if in := tr.Inputs(); in.BeatTick != 0 {
		t.Fatalf("foreign tick reached the tracker: %+v", in)
	}

	r.Beat(metronome.Snapshot{Session: "s1", Tick: 1, BeatInMeasure: 1})
	if d := tr.Render(); !d.HasCount || d.Count != 1 {
		t.Errorf("own tick not forwarded: %+v", d)
	}

	r.stopMetronome()
	r.Beat(metronome.Snapshot{Session: "s1", Tick: 2, BeatInMeasure: 2})
	if in := tr.Inputs(); in.BeatTick != 1 {
		t.Errorf("tick after stop reached the tracker: %+v", in)
	}
}
