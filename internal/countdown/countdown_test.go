package countdown

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/clock"
)

func TestLeadInThreshold(t *testing.T) {
	tests := []struct {
		bpm, prep int
		style     beat.Style
		want      float64
	}{
		{120, 2, beat.Style44, 4},
		{100, 1, beat.Style44, 3},
		{90, 1, beat.Style44, 3},
		{60, 1, beat.Style34, 3},
		{240, 1, beat.StyleNone, 1}, // 0.25s rounds up to the 1s minimum
		{0, 2, beat.Style44, 0},
		{-5, 2, beat.Style44, 0},
		{120, 0, beat.Style44, 0},
	}
	for _, tt := range tests {
		if got := LeadInThreshold(tt.bpm, tt.prep, tt.style); got != tt.want {
			t.Errorf("LeadInThreshold(%d, %d, %s) = %v, want %v", tt.bpm, tt.prep, tt.style, got, tt.want)
		}
	}
}

func TestRenderHidden(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
	}{
		{"idle", Inputs{Phase: PhaseIdle, SecondsRemaining: 5}},
		{"zero value", Inputs{}},
		{"no time left", Inputs{Phase: PhasePrep, SecondsRemaining: 0, BPM: 120, PrepMeasures: 1}},
		{"negative", Inputs{Phase: PhaseRest, SecondsRemaining: -1}},
	}
	for _, tt := range tests {
		if d := Render(tt.in); d.Visible || d.ShowBanner || d.ShowProgress || d.HasCount {
			t.Errorf("%s: directives = %+v, want hidden", tt.name, d)
		}
	}
}

// A 10s rest at 120 bpm in 4/4 with two lead-in measures: the bar runs for
// the first 6s, then the count plays 1..4, 1..4.
func TestRestScenarioBarThenCount(t *testing.T) {
	clk := clock.NewManual(0)
	tr := NewTracker(TrackerOptions{Clock: clk})
	tr.Begin(PhaseRest, 10, Exercise{BPM: 120, Style: beat.Style44, PrepMeasures: 2})

	prev := math.Inf(1)
	for i := 0; i < 60; i++ {
		clk.Set(float64(i) / 10)
		if i%10 == 0 {
			tr.Report(float64(10 - i/10))
		}
		d := tr.Render()
		if !d.ShowProgress {
			t.Fatalf("t=%.1fs: no progress bar, directives %+v", float64(i)/10, d)
		}
		if d.ShowBanner || d.HasCount {
			t.Fatalf("t=%.1fs: banner or count during the silent rest: %+v", float64(i)/10, d)
		}
		if d.ProgressPercent > prev {
			t.Fatalf("t=%.1fs: progress rose from %v to %v", float64(i)/10, prev, d.ProgressPercent)
		}
		prev = d.ProgressPercent
	}
	if prev > 2 {
		t.Errorf("progress just before the lead-in = %v, want close to 0", prev)
	}

	clk.Set(6)
	tr.Report(4)
	d := tr.Render()
	if d.ShowProgress {
		t.Fatalf("bar still shown at the lead-in threshold: %+v", d)
	}
	if !d.ShowBanner || d.BannerText != DefaultBannerText {
		t.Fatalf("want get ready banner before the first click, got %+v", d)
	}

	var st beat.State
	want := []int{1, 2, 3, 4, 1, 2, 3, 4}
	for i, w := range want {
		st = st.Advance(beat.Style44)
		tr.Beat(st)
		d := tr.Render()
		if d.ShowBanner || !d.HasCount || d.Count != w {
			t.Fatalf("tick %d: directives %+v, want count %d", i+1, d, w)
		}
		if d.Accent != (w == 1) {
			t.Errorf("tick %d: accent = %v", i+1, d.Accent)
		}
	}

	// Past the lead-in window the last count is kept.
	st = st.Advance(beat.Style44)
	tr.Beat(st)
	if d := tr.Render(); !d.HasCount || d.Count != 4 {
		t.Errorf("after the window: %+v, want retained count 4", d)
	}
}

func TestRestProgressReachesZeroAtThreshold(t *testing.T) {
	in := Inputs{Phase: PhaseRest, InitialSeconds: 10, BPM: 120, Style: beat.Style44, PrepMeasures: 2}

	in.SecondsRemaining = 10
	if d := Render(in); d.ProgressPercent != 100 {
		t.Errorf("progress at start = %v, want 100", d.ProgressPercent)
	}
	in.SecondsRemaining = 7
	if d := Render(in); math.Abs(d.ProgressPercent-50) > 1e-9 {
		t.Errorf("progress halfway = %v, want 50", d.ProgressPercent)
	}
	in.SecondsRemaining = 4
	if d := Render(in); d.ShowProgress || d.ProgressPercent != 0 {
		t.Errorf("at threshold: %+v, want no bar and 0%%", d)
	}
	if got := progress(4, 10, 4); got != 0 {
		t.Errorf("progress(4, 10, 4) = %v, want exactly 0", got)
	}
}

func TestRestWithoutLeadInIsAllProgress(t *testing.T) {
	in := Inputs{Phase: PhaseRest, SecondsRemaining: 2, InitialSeconds: 8}
	d := Render(in)
	if !d.ShowProgress || math.Abs(d.ProgressPercent-25) > 1e-9 {
		t.Errorf("directives = %+v, want bar at 25%%", d)
	}
	if d.ShowBanner || d.HasCount {
		t.Errorf("banner or count without a lead-in: %+v", d)
	}
	if d.Message != MessageRest {
		t.Errorf("message = %q", d.Message)
	}
}

func TestRestShorterThanLeadIn(t *testing.T) {
	// A 3s rest with a 4s lead-in never shows the bar.
	in := Inputs{Phase: PhaseRest, SecondsRemaining: 3, InitialSeconds: 3, BPM: 120, Style: beat.Style44, PrepMeasures: 2}
	d := Render(in)
	if d.ShowProgress {
		t.Errorf("bar shown for a rest inside the lead-in: %+v", d)
	}
	if !d.ShowBanner {
		t.Errorf("want banner, got %+v", d)
	}
}

func TestShortBreakForcesBanner(t *testing.T) {
	in := Inputs{
		Phase:            PhaseRest,
		SecondsRemaining: 3,
		InitialSeconds:   3,
		BPM:              100,
		Style:            beat.Style44,
		PrepMeasures:     1,
		BreakSeconds:     3,
		Autoplay:         true,
	}
	d := Render(in)
	if !d.ShowBanner || !d.Forced || d.BannerText != "get ready" {
		t.Fatalf("directives = %+v, want forced get ready banner", d)
	}
	if d.HasCount {
		t.Errorf("count shown with the banner: %+v", d)
	}

	in.BeatTick, in.BeatInMeasure = 1, 1
	d = Render(in)
	if d.ShowBanner || d.Forced || !d.HasCount || d.Count != 1 {
		t.Errorf("after first tick: %+v, want count 1", d)
	}
}

func TestShortBreakNeedsAutoplayAndShortBreak(t *testing.T) {
	base := Inputs{
		Phase: PhaseRest, SecondsRemaining: 3, InitialSeconds: 3,
		BPM: 100, Style: beat.Style44, PrepMeasures: 1,
		BreakSeconds: 3, Autoplay: true,
	}

	manual := base
	manual.Autoplay = false
	if d := Render(manual); !d.ShowBanner || d.Forced {
		t.Errorf("manual start: %+v, want plain banner", d)
	}

	long := base
	long.BreakSeconds = 30
	if d := Render(long); d.Forced {
		t.Errorf("30s break forced the banner: %+v", d)
	}

	custom := base
	custom.BreakSeconds = 8
	custom.ShortBreak = 10
	if d := Render(custom); !d.Forced {
		t.Errorf("8s break under a 10s limit not forced: %+v", d)
	}
}

func TestNoneStyleNeverCycles(t *testing.T) {
	clk := clock.NewManual(0)
	tr := NewTracker(TrackerOptions{Clock: clk})
	tr.Begin(PhasePrep, 2, Exercise{BPM: 60, Style: beat.StyleNone, PrepMeasures: 2})

	var st beat.State
	for i := 0; i < 2; i++ {
		st = st.Advance(beat.StyleNone)
		tr.Beat(st)
		d := tr.Render()
		if !d.HasCount || d.Count != 1 {
			t.Fatalf("tick %d: %+v, want count 1", i+1, d)
		}
		if d.Accent {
			t.Errorf("tick %d accented under none", i+1)
		}
	}
}

func TestPrepWithoutTempoShowsNothingButMessage(t *testing.T) {
	d := Render(Inputs{Phase: PhasePrep, SecondsRemaining: 5, InitialSeconds: 5, BeatTick: 3, BeatInMeasure: 3})
	if !d.Visible || d.ShowBanner || d.HasCount || d.ShowProgress {
		t.Errorf("directives = %+v, want message only", d)
	}
	if d.Seconds != 5 {
		t.Errorf("Seconds = %d, want 5", d.Seconds)
	}
}

func TestCustomBannerText(t *testing.T) {
	d := Render(Inputs{Phase: PhasePrep, SecondsRemaining: 4, BPM: 120, Style: beat.Style44, PrepMeasures: 1, BannerText: "ready?"})
	if d.BannerText != "ready?" {
		t.Errorf("BannerText = %q", d.BannerText)
	}
}

func TestTrackerConfigure(t *testing.T) {
	tr := NewTracker(TrackerOptions{Clock: clock.NewManual(0)})
	tr.Begin(PhasePrep, 4, Exercise{BPM: 120, Style: beat.Style44, PrepMeasures: 1})
	if d := tr.Render(); d.BannerText != DefaultBannerText {
		t.Fatalf("BannerText = %q", d.BannerText)
	}
	tr.Configure("count in", 2)
	if d := tr.Render(); !d.ShowBanner || d.BannerText != "count in" {
		t.Errorf("after Configure: %+v", d)
	}
	if in := tr.Inputs(); in.ShortBreak != 2 {
		t.Errorf("ShortBreak = %v", in.ShortBreak)
	}
}

func TestTrackerInitialSecondsOnlyGrows(t *testing.T) {
	tr := NewTracker(TrackerOptions{Clock: clock.NewManual(0)})
	tr.Begin(PhaseRest, 10, Exercise{})
	tr.Report(9)
	tr.Report(0)
	if got := tr.InitialSeconds(); got != 10 {
		t.Errorf("InitialSeconds = %v, want 10", got)
	}
	tr.Report(12)
	if got := tr.InitialSeconds(); got != 12 {
		t.Errorf("InitialSeconds = %v, want 12", got)
	}

	tr.Begin(PhasePrep, 5, Exercise{})
	if got := tr.InitialSeconds(); got != 5 {
		t.Errorf("InitialSeconds after new phase = %v, want 5", got)
	}
}

func TestTrackerSmoothsBetweenReports(t *testing.T) {
	clk := clock.NewManual(100)
	tr := NewTracker(TrackerOptions{Clock: clk})
	tr.Begin(PhaseRest, 10, Exercise{})

	clk.Advance(250 * time.Millisecond)
	if got := tr.Inputs().SecondsRemaining; math.Abs(got-9.75) > 1e-9 {
		t.Errorf("remaining = %v, want 9.75", got)
	}
	clk.Advance(20 * time.Second)
	if got := tr.Inputs().SecondsRemaining; got != 0 {
		t.Errorf("remaining = %v, want clamped to 0", got)
	}
	if tr.Render().Visible {
		t.Error("overlay visible after time ran out")
	}
}

func TestTrackerClearsCountOnNewPhaseAndTickZero(t *testing.T) {
	tr := NewTracker(TrackerOptions{Clock: clock.NewManual(0)})
	ex := Exercise{BPM: 120, Style: beat.Style34, PrepMeasures: 1}
	tr.Begin(PhasePrep, 2, ex)

	var st beat.State
	for i := 0; i < 4; i++ {
		st = st.Advance(beat.Style34)
		tr.Beat(st)
	}
	if d := tr.Render(); d.Count != 3 {
		t.Fatalf("retained count = %d, want 3", d.Count)
	}

	tr.Beat(beat.State{})
	if d := tr.Render(); d.HasCount || !d.ShowBanner {
		t.Errorf("after tick reset: %+v, want banner", d)
	}

	tr.Beat(beat.State{Tick: 5, BeatInMeasure: 2})
	if d := tr.Render(); d.HasCount {
		t.Errorf("count shown past the window with nothing retained: %+v", d)
	}

	tr.Begin(PhaseRest, 2, ex)
	if d := tr.Render(); d.HasCount {
		t.Errorf("new phase kept the old count: %+v", d)
	}
}

func TestTrackerClose(t *testing.T) {
	tr := NewTracker(TrackerOptions{Clock: clock.NewManual(0)})
	tr.Begin(PhasePrep, 5, Exercise{BPM: 100, PrepMeasures: 1})
	tr.Close()
	if tr.Phase() != PhaseIdle || tr.Render().Visible {
		t.Errorf("tracker not idle after Close")
	}
}

func TestOverlayFramesAndClose(t *testing.T) {
	tr := NewTracker(TrackerOptions{Clock: clock.NewManual(0)})
	tr.Begin(PhaseRest, 10, Exercise{})

	var (
		frames atomic.Int64
		mu     sync.Mutex
		last   Directives
	)
	o := NewOverlay(tr, time.Millisecond, func(d Directives) {
		mu.Lock()
		last = d
		mu.Unlock()
		frames.Add(1)
	})

	deadline := time.Now().Add(2 * time.Second)
	for frames.Load() < 5 {
		if time.Now().After(deadline) {
			t.Fatal("overlay produced no frames")
		}
		time.Sleep(time.Millisecond)
	}

	o.Close()
	o.Close()
	select {
	case <-o.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	n := frames.Load()
	time.Sleep(10 * time.Millisecond)
	if frames.Load() != n {
		t.Error("frame callback ran after Close")
	}

	mu.Lock()
	defer mu.Unlock()
	if !last.ShowProgress || last.ProgressPercent != 100 {
		t.Errorf("last frame = %+v, want full bar", last)
	}
}
