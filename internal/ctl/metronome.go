package ctl

import (
	"fmt"
	"strings"

	"github.com/large-farva/cadence/internal/metronome"
)

// TempoOptions carries the optional tempo and style for start and toggle.
type TempoOptions struct {
	BPM   int
	Style string
	JSON  bool
}

type metronomeResult struct {
	OK           bool               `json:"ok"`
	Metronome    metronome.Snapshot `json:"metronome"`
	TempoMarking string             `json:"tempo_marking,omitempty"`
}

// Start begins clicking. Zero BPM uses the daemon's configured default.
func Start(baseURL string, opts TempoOptions) error {
	return metronomeControl(baseURL, "/api/start", tempoBody(opts), opts.JSON)
}

// Stop ends the current session.
func Stop(baseURL string, jsonOutput bool) error {
	return metronomeControl(baseURL, "/api/stop", nil, jsonOutput)
}

// Toggle stops a running session or starts one.
func Toggle(baseURL string, opts TempoOptions) error {
	return metronomeControl(baseURL, "/api/toggle", tempoBody(opts), opts.JSON)
}

// SetBPM changes the tempo of the running session.
func SetBPM(baseURL string, bpm int, jsonOutput bool) error {
	if bpm <= 0 {
		return fmt.Errorf("bpm must be positive")
	}
	return metronomeControl(baseURL, "/api/bpm", map[string]any{"bpm": bpm}, jsonOutput)
}

// SetStyle changes the beat grouping.
func SetStyle(baseURL, style string, jsonOutput bool) error {
	return metronomeControl(baseURL, "/api/style", map[string]any{"style": style}, jsonOutput)
}

func tempoBody(opts TempoOptions) map[string]any {
	body := map[string]any{}
	if opts.BPM > 0 {
		body["bpm"] = opts.BPM
	}
	if opts.Style != "" {
		body["style"] = opts.Style
	}
	return body
}

func metronomeControl(baseURL, path string, body any, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var result metronomeResult
	if err := postJSON(baseURL, path, body, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	label := colorize(green, "PLAYING")
	if !result.Metronome.Playing {
		label = colorize(dim, "STOPPED")
	}
	fmt.Printf("\n  %s  %s\n\n", label, describeTempo(result.Metronome, result.TempoMarking))
	return nil
}

// control posts to a command endpoint that answers {"ok", "message"}.
func control(baseURL, path string, body any, label string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var result struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
		Error   string `json:"error,omitempty"`
	}
	if err := postJSON(baseURL, path, body, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	if result.OK {
		fmt.Printf("\n  %s  %s\n\n", colorize(green, label), result.Message)
	} else {
		fmt.Printf("\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
	}
	return nil
}
