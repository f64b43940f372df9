// Package plan reads practice plans: an ordered list of exercises, each
// with a tempo, beat style, lead-in length, and work and rest durations.
// Plans are read-only YAML documents; nothing here ever writes one back.
package plan

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/large-farva/cadence/internal/beat"
)

// ErrEmpty is returned for a plan with no exercises.
var ErrEmpty = errors.New("plan has no exercises")

// MaxBPM bounds exercise tempos.
const MaxBPM = 400

// Plan is one practice session.
type Plan struct {
	Title       string     `yaml:"title"        json:"title"`
	Autoplay    *bool      `yaml:"autoplay"     json:"autoplay,omitempty"`
	PrepSeconds int        `yaml:"prep_seconds" json:"prep_seconds,omitempty"`
	Exercises   []Exercise `yaml:"exercises"    json:"exercises"`
}

// Exercise is one timed block of clicking.
type Exercise struct {
	Title        string     `yaml:"title"         json:"title"`
	BPM          int        `yaml:"bpm"           json:"bpm"`
	Style        beat.Style `yaml:"beat_style"    json:"beat_style"`
	PrepMeasures int        `yaml:"prep_measures" json:"prep_measures"`
	WorkSeconds  int        `yaml:"work_seconds"  json:"work_seconds"`
	RestSeconds  int        `yaml:"rest_seconds"  json:"rest_seconds"`
}

// Load reads and validates the plan at path.
func Load(path string) (Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(b)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML plan, fills in defaults and validates it.
func Parse(b []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Plan{}, fmt.Errorf("parse plan yaml: %w", err)
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func (p *Plan) normalize() {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		p.Title = "Practice"
	}
	for i := range p.Exercises {
		ex := &p.Exercises[i]
		ex.Title = strings.TrimSpace(ex.Title)
		if ex.Title == "" {
			ex.Title = fmt.Sprintf("Exercise %d", i+1)
		}
		if ex.Style == "" {
			ex.Style = beat.StyleNone
		}
	}
}

// Validate checks every exercise.
func (p Plan) Validate() error {
	if len(p.Exercises) == 0 {
		return ErrEmpty
	}
	if p.PrepSeconds < 0 {
		return errors.New("prep_seconds must be >= 0")
	}
	for i, ex := range p.Exercises {
		if err := ex.validate(); err != nil {
			return fmt.Errorf("exercise %d (%s): %w", i+1, ex.Title, err)
		}
	}
	return nil
}

func (ex Exercise) validate() error {
	if ex.BPM < 0 || ex.BPM > MaxBPM {
		return fmt.Errorf("bpm must be between 0 and %d", MaxBPM)
	}
	if _, err := beat.ParseStyle(string(ex.Style)); err != nil {
		return err
	}
	if ex.PrepMeasures < 0 {
		return errors.New("prep_measures must be >= 0")
	}
	if ex.WorkSeconds <= 0 {
		return errors.New("work_seconds must be > 0")
	}
	if ex.RestSeconds < 0 {
		return errors.New("rest_seconds must be >= 0")
	}
	return nil
}

// AutoplayOr returns the plan's autoplay setting, or def when unset.
func (p Plan) AutoplayOr(def bool) bool {
	if p.Autoplay == nil {
		return def
	}
	return *p.Autoplay
}

// BreakBefore returns the rest in seconds that precedes exercise i. The
// first exercise has no rest before it.
func (p Plan) BreakBefore(i int) int {
	if i <= 0 || i > len(p.Exercises) {
		return 0
	}
	return p.Exercises[i-1].RestSeconds
}

// TotalSeconds returns the work and rest time of the whole plan, not
// counting the initial prep.
func (p Plan) TotalSeconds() int {
	total := 0
	for i, ex := range p.Exercises {
		total += ex.WorkSeconds
		if i < len(p.Exercises)-1 {
			total += ex.RestSeconds
		}
	}
	return total
}

// Sample is the built-in plan used when none is configured.
func Sample() Plan {
	return Plan{
		Title: "Warm-up",
		Exercises: []Exercise{
			{Title: "Single strokes", BPM: 80, Style: beat.Style44, PrepMeasures: 1, WorkSeconds: 60, RestSeconds: 15},
			{Title: "Double strokes", BPM: 100, Style: beat.Style44, PrepMeasures: 2, WorkSeconds: 60, RestSeconds: 15},
			{Title: "Triplets", BPM: 90, Style: beat.Style34, PrepMeasures: 1, WorkSeconds: 45, RestSeconds: 5},
			{Title: "Free time", BPM: 0, Style: beat.StyleNone, WorkSeconds: 30},
		},
	}
}
