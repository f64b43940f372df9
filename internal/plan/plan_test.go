package plan

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/large-farva/cadence/internal/beat"
)

const samplePlan = `
title: Tuesday
autoplay: false
prep_seconds: 8
exercises:
  - title: Paradiddles
    bpm: 96
    beat_style: "4/4"
    prep_measures: 2
    work_seconds: 90
    rest_seconds: 20
  - bpm: 72
    beat_style: "3/4"
    work_seconds: 60
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Tuesday" || p.PrepSeconds != 8 {
		t.Errorf("header = %q prep %d", p.Title, p.PrepSeconds)
	}
	if p.AutoplayOr(true) {
		t.Error("autoplay: false not honoured")
	}
	if len(p.Exercises) != 2 {
		t.Fatalf("got %d exercises, want 2", len(p.Exercises))
	}
	first := p.Exercises[0]
	if first.BPM != 96 || first.Style != beat.Style44 || first.PrepMeasures != 2 || first.WorkSeconds != 90 || first.RestSeconds != 20 {
		t.Errorf("first exercise = %+v", first)
	}
	second := p.Exercises[1]
	if second.Title != "Exercise 2" {
		t.Errorf("default title = %q", second.Title)
	}
	if second.Style != beat.Style34 {
		t.Errorf("style = %q", second.Style)
	}
}

func TestParseDefaults(t *testing.T) {
	p, err := Parse([]byte("exercises:\n  - work_seconds: 10\n"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Practice" {
		t.Errorf("Title = %q", p.Title)
	}
	if p.Exercises[0].Style != beat.StyleNone {
		t.Errorf("Style = %q, want none", p.Exercises[0].Style)
	}
	if !p.AutoplayOr(true) {
		t.Error("unset autoplay should fall back to the default")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "title: nothing\n", ""},
		{"bad yaml", "exercises: [\n", "parse plan yaml"},
		{"unknown style", "exercises:\n  - work_seconds: 5\n    beat_style: 7/8\n", "unknown beat style"},
		{"negative bpm", "exercises:\n  - work_seconds: 5\n    bpm: -1\n", "bpm must be"},
		{"too fast", "exercises:\n  - work_seconds: 5\n    bpm: 900\n", "bpm must be"},
		{"no work", "exercises:\n  - bpm: 100\n", "work_seconds"},
		{"negative rest", "exercises:\n  - work_seconds: 5\n    rest_seconds: -2\n", "rest_seconds"},
		{"negative prep", "exercises:\n  - work_seconds: 5\n    prep_measures: -1\n", "prep_measures"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.doc))
		if err == nil {
			t.Errorf("%s: no error", tt.name)
			continue
		}
		if tt.want == "" {
			if !errors.Is(err, ErrEmpty) {
				t.Errorf("%s: err = %v, want ErrEmpty", tt.name, err)
			}
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want mention of %q", tt.name, err, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Exercises) != 2 {
		t.Errorf("got %d exercises", len(p.Exercises))
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want ErrNotExist", err)
	}
}

func TestBreakBeforeAndTotal(t *testing.T) {
	p := Sample()
	if got := p.BreakBefore(0); got != 0 {
		t.Errorf("BreakBefore(0) = %d", got)
	}
	if got := p.BreakBefore(1); got != 15 {
		t.Errorf("BreakBefore(1) = %d, want 15", got)
	}
	if got := p.BreakBefore(3); got != 5 {
		t.Errorf("BreakBefore(3) = %d, want 5", got)
	}
	if got := p.BreakBefore(99); got != 0 {
		t.Errorf("BreakBefore(99) = %d", got)
	}
	// 60+15 + 60+15 + 45+5 + 30
	if got := p.TotalSeconds(); got != 230 {
		t.Errorf("TotalSeconds = %d, want 230", got)
	}
}

func TestSampleIsValid(t *testing.T) {
	if err := Sample().Validate(); err != nil {
		t.Fatal(err)
	}
}
