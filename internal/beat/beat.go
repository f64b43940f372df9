// Package beat defines the time-signature grouping of clicks and the
// per-tick position derived from it.
package beat

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStyle is returned when a beat style string is not recognised.
var ErrUnknownStyle = errors.New("unknown beat style")

// Style groups ticks into measures.
type Style string

const (
	StyleNone Style = "none"
	Style24   Style = "2/4"
	Style34   Style = "3/4"
	Style44   Style = "4/4"
)

// Styles lists every supported style in display order.
var Styles = []Style{Style44, Style34, Style24, StyleNone}

// BeatsPerMeasure returns 1, 2, 3 or 4. Unknown styles count as none.
func (s Style) BeatsPerMeasure() int {
	switch s {
	case Style24:
		return 2
	case Style34:
		return 3
	case Style44:
		return 4
	default:
		return 1
	}
}

// Accented reports whether the style distinguishes the first beat.
func (s Style) Accented() bool {
	return s.BeatsPerMeasure() > 1
}

func (s Style) String() string {
	if s == "" {
		return string(StyleNone)
	}
	return string(s)
}

// ParseStyle accepts "none", "off", "", "2/4", "3/4" and "4/4".
func ParseStyle(v string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "none", "off":
		return StyleNone, nil
	case "2/4":
		return Style24, nil
	case "3/4":
		return Style34, nil
	case "4/4":
		return Style44, nil
	}
	return StyleNone, fmt.Errorf("%w: %q", ErrUnknownStyle, v)
}

// MarshalText lets a Style round-trip through JSON, TOML and YAML.
func (s Style) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Style) UnmarshalText(b []byte) error {
	parsed, err := ParseStyle(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// State is the beat position after the most recent scheduled tick.
// The zero value means no tick has fired in the current session.
type State struct {
	Tick          uint64 `json:"tick"`
	BeatInMeasure int    `json:"beat_in_measure"`
}

// Advance returns the state after one more tick under style.
func (st State) Advance(style Style) State {
	tick := st.Tick + 1
	n := uint64(style.BeatsPerMeasure())
	return State{
		Tick:          tick,
		BeatInMeasure: int((tick-1)%n) + 1,
	}
}

// Downbeat reports whether the state sits on the first beat of a measure.
func (st State) Downbeat() bool {
	return st.BeatInMeasure == 1
}

// TempoMarking names the Italian tempo range that bpm falls into.
func TempoMarking(bpm int) string {
	switch {
	case bpm < 60:
		return "Largo"
	case bpm < 66:
		return "Larghetto"
	case bpm < 76:
		return "Adagio"
	case bpm < 108:
		return "Andante"
	case bpm < 120:
		return "Moderato"
	case bpm < 168:
		return "Allegro"
	case bpm < 200:
		return "Presto"
	default:
		return "Prestissimo"
	}
}

// SecondsPerBeat returns 60/bpm, or 0 when bpm is not positive.
func SecondsPerBeat(bpm int) float64 {
	if bpm <= 0 {
		return 0
	}
	return 60 / float64(bpm)
}
