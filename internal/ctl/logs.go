package ctl

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"
)

// LogLevels and LogComponents are the values cadenced tags its log lines
// with.
var (
	LogLevels     = []string{"debug", "info", "warn", "error"}
	LogComponents = []string{"cadenced", "metronome", "audio", "practice"}
)

// LogsOptions configures the logs command.
type LogsOptions struct {
	Level     string
	Component string
	Limit     int
	Tail      bool
	JSON      bool
}

type logLine struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

// Logs shows recent daemon log lines, or streams them live with --tail.
func Logs(baseURL string, opts LogsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	if opts.Level != "" && !slices.Contains(LogLevels, opts.Level) {
		return fmt.Errorf("unknown level %q (want one of %s)", opts.Level, strings.Join(LogLevels, ", "))
	}
	if opts.Component != "" && !slices.Contains(LogComponents, opts.Component) {
		return fmt.Errorf("unknown component %q (want one of %s)", opts.Component, strings.Join(LogComponents, ", "))
	}

	if opts.Tail {
		return Watch(baseURL, WatchOptions{
			Filter: []string{"log"},
			JSON:   opts.JSON,
		})
	}

	var resp struct {
		Logs []logLine `json:"logs"`
	}
	if err := getJSON(baseURL, logsPath(opts), &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}
	renderLogs(os.Stdout, resp.Logs, opts)
	return nil
}

func logsPath(opts LogsOptions) string {
	q := url.Values{}
	if opts.Level != "" {
		q.Set("level", opts.Level)
	}
	if opts.Component != "" {
		q.Set("component", opts.Component)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprint(opts.Limit))
	}
	if len(q) == 0 {
		return "/api/logs"
	}
	return "/api/logs?" + q.Encode()
}

func renderLogs(w io.Writer, lines []logLine, opts LogsOptions) {
	title := "  CADENCED LOGS"
	if opts.Component != "" {
		title += " (" + opts.Component + ")"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, header(title))
	fmt.Fprintln(w, colorize(dim, "  "+strings.Repeat("─", 70)))

	if len(lines) == 0 {
		fmt.Fprintln(w, "  No log lines.")
		fmt.Fprintln(w)
		return
	}

	counts := map[string]int{}
	for _, l := range lines {
		ts := l.TS
		if t, err := time.Parse(time.RFC3339Nano, l.TS); err == nil {
			ts = t.Local().Format("15:04:05.000")
		}
		fmt.Fprintf(w, "  %s %s  %s %s\n",
			colorize(dim, ts),
			formatLogLevel(l.Level),
			colorize(cyan, padRight(l.Component, 10)),
			l.Message,
		)
		counts[l.Level]++
	}

	var summary []string
	for _, lvl := range LogLevels {
		if n := counts[lvl]; n > 0 {
			summary = append(summary, fmt.Sprintf("%d %s", n, lvl))
		}
	}
	fmt.Fprintln(w, colorize(dim, "  "+strings.Repeat("─", 70)))
	fmt.Fprintf(w, "  %d lines: %s\n\n", len(lines), strings.Join(summary, ", "))
}
