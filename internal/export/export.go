// Package export renders a click track offline. It runs the live
// scheduler against a manual clock, so an exported file clicks exactly
// where the metronome would, and writes the result as WAV or MIDI.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/large-farva/cadence/internal/audio"
	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/clock"
	"github.com/large-farva/cadence/internal/metronome"
)

// MaxBeats bounds a single export.
const MaxBeats = 100000

// Click is one scheduled beat on the exported timeline.
type Click struct {
	At            float64 // seconds from the start of the file
	Tick          uint64
	BeatInMeasure int
}

// Accent reports whether the click is the accented first beat.
func (c Click) Accent(style beat.Style) bool {
	return c.BeatInMeasure == 1 && style.Accented()
}

// Request describes a click track.
type Request struct {
	BPM   int
	Style beat.Style
	Beats int
}

func (r Request) validate() error {
	if r.BPM <= 0 {
		return errors.New("bpm must be > 0")
	}
	if r.Beats <= 0 || r.Beats > MaxBeats {
		return fmt.Errorf("beats must be between 1 and %d", MaxBeats)
	}
	return nil
}

// Timeline drives a scheduler on a manual clock until it has scheduled
// r.Beats clicks and returns them in order.
func Timeline(r Request) ([]Click, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	clk := clock.NewManual(0)
	rec := &audio.Recorder{}
	s := metronome.New(metronome.Options{
		Clock:        clk,
		Sink:         rec,
		Style:        r.Style,
		PollInterval: time.Hour,
	})
	sub := s.Subscribe()
	defer sub.Close()

	s.Start(r.BPM)
	for len(rec.Times()) < r.Beats {
		clk.Advance(metronome.DefaultPollInterval)
		s.Poll()
	}
	s.Stop()

	clicks := make([]Click, 0, r.Beats)
	for snap := range sub.C {
		if !snap.Playing {
			break
		}
		if snap.Tick == 0 || len(clicks) == r.Beats {
			continue
		}
		clicks = append(clicks, Click{At: snap.At, Tick: snap.Tick, BeatInMeasure: snap.BeatInMeasure})
	}
	if len(clicks) != r.Beats {
		return nil, fmt.Errorf("scheduler produced %d clicks, want %d", len(clicks), r.Beats)
	}
	return clicks, nil
}

// WAV writes the click track as 16-bit mono PCM using the same click
// voice as live playback.
func WAV(w io.Writer, r Request, p audio.ClickParams) error {
	clicks, err := Timeline(r)
	if err != nil {
		return err
	}
	times := make([]float64, len(clicks))
	for i, c := range clicks {
		times[i] = c.At
	}
	last := clicks[len(clicks)-1].At
	length := last + beat.SecondsPerBeat(r.BPM)
	if tail := last + p.Stop.Seconds(); tail > length {
		length = tail
	}
	return audio.Bounce(w, p, times, length)
}

// General MIDI percussion on channel 10.
const (
	midiChannel    = 9
	ticksPerBeat   = 960
	noteAccent     = 76 // hi wood block
	noteBeat       = 77 // low wood block
	velocityAccent = 120
	velocityBeat   = 90
	noteLength     = ticksPerBeat / 8
)

// MIDI writes the click track as a format 1 SMF: a tempo track and a
// percussion track with one note per click.
func MIDI(w io.Writer, r Request) error {
	clicks, err := Timeline(r)
	if err != nil {
		return err
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerBeat)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(uint8(r.Style.BeatsPerMeasure()), 4))
	tempo.Add(0, smf.MetaTempo(float64(r.BPM)))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return fmt.Errorf("add tempo track: %w", err)
	}

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("click"))
	var pos uint32
	first := clicks[0].At
	for _, c := range clicks {
		at := uint32(math.Round((c.At - first) * float64(r.BPM) / 60 * ticksPerBeat))
		key, vel := uint8(noteBeat), uint8(velocityBeat)
		if c.Accent(r.Style) {
			key, vel = noteAccent, velocityAccent
		}
		track.Add(at-pos, midi.NoteOn(midiChannel, key, vel))
		track.Add(noteLength, midi.NoteOff(midiChannel, key))
		pos = at + noteLength
	}
	track.Close(ticksPerBeat - noteLength)
	if err := sm.Add(track); err != nil {
		return fmt.Errorf("add click track: %w", err)
	}

	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}
