// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between cadenced and its clients. The daemon
// broadcasts these structs directly; cadencectl decodes them back.
package telemetry

import (
	"time"

	"github.com/large-farva/cadence/internal/audio"
	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/countdown"
	"github.com/large-farva/cadence/internal/metronome"
	"github.com/large-farva/cadence/internal/practice"
)

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventBeat      EventType = "beat"
	EventPhase     EventType = "phase"
	EventCountdown EventType = "countdown"
	EventLog       EventType = "log"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewEvent stamps an envelope with the current time.
func NewEvent(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string       `json:"state"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	BPM           int          `json:"bpm"`
	Audio         audio.Status `json:"audio"`
}

// StateTransition is emitted whenever the daemon moves between operating
// states (e.g. IDLE -> PLAYING).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// Beat carries one metronome snapshot: every scheduled tick plus every
// start, stop, tempo and style change.
type Beat struct {
	Event
	Session       string       `json:"session,omitempty"`
	Playing       bool         `json:"playing"`
	BPM           int          `json:"bpm"`
	Style         beat.Style   `json:"beat_style"`
	Tick          uint64       `json:"tick"`
	BeatInMeasure int          `json:"beat_in_measure"`
	At            float64      `json:"at"`
	Audio         audio.Status `json:"audio"`
}

// NewBeat wraps a scheduler snapshot.
func NewBeat(s metronome.Snapshot, component string) Beat {
	return Beat{
		Event:         NewEvent(EventBeat, component),
		Session:       s.Session,
		Playing:       s.Playing,
		BPM:           s.BPM,
		Style:         s.Style,
		Tick:          s.Tick,
		BeatInMeasure: s.BeatInMeasure,
		At:            s.At,
		Audio:         s.Audio,
	}
}

// Phase reports the practice runner's position.
type Phase struct {
	Event
	practice.Update
}

// Countdown carries the overlay directives whenever they change.
type Countdown struct {
	Event
	countdown.Directives
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}
