// Package countdown decides what the prep/rest overlay shows on each frame.
//
// Render is a pure function: given the phase, the (smoothed) seconds left,
// the exercise tempo and the current beat position, it returns whether to
// draw the rest progress bar, the "get ready" banner or the numeric beat
// count. Tracker holds the little state a frame needs between reports:
// the 100% reference for the bar, the time of the last report for
// smoothing, and the last count shown.
package countdown

import (
	"math"

	"github.com/large-farva/cadence/internal/beat"
)

// DefaultBannerText is shown before the first lead-in click.
const DefaultBannerText = "get ready"

// DefaultShortBreak is the longest break, in seconds, that never gets a
// numeric lead-in count.
const DefaultShortBreak = 5.0

// Messages shown under the main directive.
const (
	MessageRest = "rest"
	MessagePrep = "up next"
)

// Phase is the overlay phase supplied by the caller.
type Phase string

const (
	PhaseIdle Phase = "idle"
	PhasePrep Phase = "prep"
	PhaseRest Phase = "rest"
)

// Inputs is everything a frame depends on.
type Inputs struct {
	Phase            Phase
	SecondsRemaining float64 // already smoothed to the frame time
	InitialSeconds   float64 // 100% reference for the progress bar

	BPM           int
	Style         beat.Style
	PrepMeasures  int
	BeatTick      uint64
	BeatInMeasure int

	BreakSeconds float64
	Autoplay     bool
	ShortBreak   float64 // 0 means DefaultShortBreak

	// LastCount is the count displayed on an earlier frame of this phase,
	// 0 when none has been shown yet.
	LastCount  int
	BannerText string
}

// Directives tells a renderer what to draw.
type Directives struct {
	Visible bool `json:"visible"`

	ShowProgress    bool    `json:"show_progress"`
	ProgressPercent float64 `json:"progress_percent"`

	ShowBanner bool   `json:"show_banner"`
	BannerText string `json:"banner_text,omitempty"`
	Forced     bool   `json:"forced,omitempty"`

	HasCount bool `json:"has_count"`
	Count    int  `json:"count,omitempty"`
	Accent   bool `json:"accent,omitempty"`

	Message string `json:"message,omitempty"`
	Seconds int    `json:"seconds"`
}

// LeadInThreshold returns how many whole seconds of the phase the lead-in
// clicks occupy: max(1, ceil(prepMeasures*N*60/bpm)), or 0 when there is
// no lead-in.
func LeadInThreshold(bpm, prepMeasures int, style beat.Style) float64 {
	if bpm <= 0 || prepMeasures <= 0 {
		return 0
	}
	beats := prepMeasures * style.BeatsPerMeasure()
	secs := math.Ceil(float64(beats*60) / float64(bpm))
	return math.Max(1, secs)
}

// LeadInBeats returns how many ticks belong to the counted lead-in.
func LeadInBeats(prepMeasures int, style beat.Style) uint64 {
	if prepMeasures <= 0 {
		return 0
	}
	return uint64(prepMeasures * style.BeatsPerMeasure())
}

// RestProgress reports whether the frame belongs to the silent part of a
// rest, where only the progress bar is drawn.
func RestProgress(in Inputs) bool {
	if in.Phase != PhaseRest {
		return false
	}
	threshold := LeadInThreshold(in.BPM, in.PrepMeasures, in.Style)
	return threshold == 0 || in.SecondsRemaining > threshold
}

// Render evaluates one frame. It has no error paths: a missing tempo or
// lead-in simply suppresses the count and banner.
func Render(in Inputs) Directives {
	var d Directives
	if in.Phase == PhaseIdle || in.Phase == "" || in.SecondsRemaining <= 0 {
		return d
	}
	d.Visible = true
	d.Seconds = int(math.Ceil(in.SecondsRemaining))

	restProgress := RestProgress(in)
	threshold := LeadInThreshold(in.BPM, in.PrepMeasures, in.Style)
	leadIn := in.BPM > 0 && in.PrepMeasures > 0

	if restProgress {
		d.ShowProgress = true
		d.ProgressPercent = progress(in.SecondsRemaining, in.InitialSeconds, threshold)
		d.Message = MessageRest
		return d
	}
	d.Message = MessagePrep

	if !leadIn {
		return d
	}

	if in.BeatTick == 0 {
		d.ShowBanner = true
		d.BannerText = in.BannerText
		if d.BannerText == "" {
			d.BannerText = DefaultBannerText
		}
		d.Forced = shortBreak(in, threshold)
		return d
	}

	window := LeadInBeats(in.PrepMeasures, in.Style)
	switch {
	case in.BeatTick <= window && in.BeatInMeasure > 0:
		d.Count = in.BeatInMeasure
	case in.BeatTick > window && in.LastCount > 0:
		d.Count = in.LastCount
	}
	if d.Count > 0 {
		d.HasCount = true
		d.Accent = d.Count == 1 && in.Style.Accented()
	}
	return d
}

// shortBreak reports whether a very short autoplay break must hold the
// banner instead of trying to count.
func shortBreak(in Inputs, threshold float64) bool {
	limit := in.ShortBreak
	if limit <= 0 {
		limit = DefaultShortBreak
	}
	return in.Autoplay &&
		in.BreakSeconds <= limit &&
		in.SecondsRemaining <= threshold &&
		in.BeatTick == 0
}

// progress maps remaining seconds onto [0,100], reaching 0 exactly when
// remaining falls to the lead-in threshold.
func progress(remaining, initial, threshold float64) float64 {
	if initial <= 0 {
		return 100
	}
	threshold = math.Min(initial, threshold)
	window := initial - threshold
	var p float64
	if window <= 0 {
		p = remaining / initial
	} else {
		p = math.Max(remaining-threshold, 0) / window
	}
	return 100 * math.Min(math.Max(p, 0), 1)
}
