package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/large-farva/cadence/internal/audio"
	"github.com/large-farva/cadence/internal/countdown"
	"github.com/large-farva/cadence/internal/metronome"
	"github.com/large-farva/cadence/internal/practice"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string                `json:"name"`
	State         string                `json:"state"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Metronome     metronome.Snapshot    `json:"metronome"`
	TempoMarking  string                `json:"tempo_marking,omitempty"`
	Audio         audio.Status          `json:"audio"`
	Clients       int                   `json:"clients"`
	Practice      *practice.Update      `json:"practice,omitempty"`
	Countdown     *countdown.Directives `json:"countdown,omitempty"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)

	fmt.Println()
	fmt.Println(header("  CADENCE STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Tempo:"), describeTempo(s.Metronome, s.TempoMarking))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Audio:"), describeAudio(s.Audio))
	if p := s.Practice; p != nil {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Practice:"), describePhase(*p))
	}
	fmt.Printf("  %-12s %d\n", colorize(dim, "Clients:"), s.Clients)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Println()

	return nil
}

func describeTempo(m metronome.Snapshot, marking string) string {
	if !m.Playing {
		return colorize(dim, "stopped") + "  " + m.Style.String()
	}
	s := fmt.Sprintf("%d bpm  %s", m.BPM, m.Style)
	if marking != "" {
		s += "  " + colorize(dim, marking)
	}
	return s
}

func describeAudio(st audio.Status) string {
	s := colorize(audioColor(string(st.State)), string(st.State))
	if st.Late > 0 {
		s += fmt.Sprintf("  %d late", st.Late)
	}
	if st.Error != "" {
		s += "  " + colorize(dim, st.Error)
	}
	return s
}

func describePhase(u practice.Update) string {
	title := u.Exercise.Title
	if title == "" {
		title = u.Plan
	}
	s := fmt.Sprintf("%s  %d/%d  %s", padRight(string(u.Stage), 8), u.Index+1, u.Total, title)
	if u.Duration > 0 {
		s += fmt.Sprintf("  %ds left", u.Remaining)
	}
	return s
}
