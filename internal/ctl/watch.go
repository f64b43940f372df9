package ctl

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/telemetry"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(green, "connected"), colorize(dim, u.String()))
		if len(opts.Filter) > 0 {
			fmt.Printf("  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))
		fmt.Println()
	}

	// Build a filter set for O(1) lookup.
	filterSet := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filterSet[f] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			// Apply event type filter.
			if len(filterSet) > 0 {
				var ev telemetry.Event
				if err := json.Unmarshal(msg, &ev); err == nil && !filterSet[string(ev.Type)] {
					continue
				}
			}

			if opts.JSON {
				fmt.Println(string(msg))
			} else {
				renderEvent(os.Stdout, msg)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

// renderEvent parses a JSON event and prints it in a human-friendly format.
// Falls back to raw JSON for unrecognized event types.
func renderEvent(w io.Writer, raw []byte) {
	var env telemetry.Event
	if err := json.Unmarshal(raw, &env); err != nil {
		fmt.Fprintf(w, "  %s\n", string(raw))
		return
	}
	ts := colorize(dim, formatEventTime(env.TS))

	switch env.Type {
	case telemetry.EventHeartbeat:
		var ev telemetry.Heartbeat
		_ = json.Unmarshal(raw, &ev)
		uptimeStr := formatDuration(time.Duration(ev.UptimeSeconds) * time.Second)
		fmt.Fprintf(w, "  %s %s  %s  up %s  audio %s\n",
			ts,
			colorize(dim, "heartbeat"),
			colorize(stateColor(ev.State), ev.State),
			colorize(dim, uptimeStr),
			colorize(audioColor(string(ev.Audio.State)), string(ev.Audio.State)),
		)

	case telemetry.EventState:
		var ev telemetry.StateTransition
		_ = json.Unmarshal(raw, &ev)
		fmt.Fprintf(w, "  %s %s  %s %s %s\n",
			ts,
			colorize(bold, "STATE"),
			colorize(stateColor(ev.From), ev.From),
			colorize(dim, "->"),
			colorize(stateColor(ev.To), ev.To),
		)

	case telemetry.EventBeat:
		var ev telemetry.Beat
		_ = json.Unmarshal(raw, &ev)
		switch {
		case !ev.Playing:
			fmt.Fprintf(w, "  %s %s  %s\n", ts, colorize(cyan, "beat     "), colorize(dim, "stopped"))
		case ev.Tick == 0:
			fmt.Fprintf(w, "  %s %s  %d bpm %s  %s\n", ts, colorize(cyan, "beat     "), ev.BPM, ev.Style, colorize(dim, beat.TempoMarking(ev.BPM)))
		default:
			fmt.Fprintf(w, "  %s %s  %s  #%d  %d bpm\n",
				ts,
				colorize(cyan, "beat     "),
				lights(ev.BeatInMeasure, ev.Style.BeatsPerMeasure()),
				ev.Tick,
				ev.BPM,
			)
		}

	case telemetry.EventPhase:
		var ev telemetry.Phase
		_ = json.Unmarshal(raw, &ev)
		fmt.Fprintf(w, "  %s %s  %s\n", ts, colorize(blue, "phase    "), describePhase(ev.Update))

	case telemetry.EventCountdown:
		var ev telemetry.Countdown
		_ = json.Unmarshal(raw, &ev)
		line := describeOverlay(ev.Directives)
		if line == "" {
			line = colorize(dim, "hidden")
		}
		fmt.Fprintf(w, "  %s %s  %s\n", ts, colorize(yellow, "countdown"), line)

	case telemetry.EventLog:
		var ev telemetry.LogLine
		_ = json.Unmarshal(raw, &ev)
		src := ""
		if ev.Component != "" {
			src = colorize(dim, "["+ev.Component+"] ")
		}
		fmt.Fprintf(w, "  %s %s  %s%s\n", ts, formatLogLevel(ev.Level), src, ev.Message)

	default:
		// Unknown event type, dump as indented JSON so nothing is lost.
		var v any
		_ = json.Unmarshal(raw, &v)
		pretty, err := json.MarshalIndent(v, "  ", "  ")
		if err != nil {
			fmt.Fprintf(w, "  %s\n", string(raw))
			return
		}
		fmt.Fprintf(w, "  %s\n", string(pretty))
	}
}

// formatEventTime extracts and shortens the timestamp from an event.
func formatEventTime(tsRaw string) string {
	if tsRaw == "" {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return tsRaw
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	case "debug":
		return colorize(dim, "DEBUG")
	default:
		return padRight(level, 5)
	}
}
