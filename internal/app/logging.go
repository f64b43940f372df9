package app

import (
	"fmt"
	"log"
	"strings"

	"github.com/large-farva/cadence/internal/telemetry"
)

// logBufSize bounds the in-memory log history served by /api/logs.
const logBufSize = 500

type logEntry struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// logf writes a message to the process log, keeps it in the ring buffer and
// broadcasts it to WebSocket clients. Messages below the configured level
// are discarded.
func (a *App) logf(level, comp, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if levelRank[level] < levelRank[strings.ToLower(a.getConfig().Logging.Level)] {
		return
	}
	a.log.Printf("[%s] %s: %s", comp, level, msg)

	e := logEntry{TS: telemetry.NowTS(), Level: level, Component: comp, Message: msg}
	a.logBufMu.Lock()
	a.logBuf = append(a.logBuf, e)
	if len(a.logBuf) > logBufSize {
		a.logBuf = a.logBuf[len(a.logBuf)-logBufSize:]
	}
	a.logBufMu.Unlock()

	a.wsHub.BroadcastJSON(telemetry.LogLine{
		Event:   telemetry.NewEvent(telemetry.EventLog, comp),
		Level:   level,
		Message: msg,
	})
}

func (a *App) logs() []logEntry {
	a.logBufMu.Lock()
	defer a.logBufMu.Unlock()
	out := make([]logEntry, len(a.logBuf))
	copy(out, a.logBuf)
	return out
}

// componentLogger returns a *log.Logger for packages that take one. Each
// line it receives is routed through logf. A line may open with a level tag
// such as "[warn] "; untagged lines log at info. A leading "name: " that
// repeats the component is dropped.
func (a *App) componentLogger(name string) *log.Logger {
	return log.New(logBridge{app: a, component: name}, "", 0)
}

type logBridge struct {
	app       *App
	component string
}

func (b logBridge) Write(p []byte) (int, error) {
	level, msg := splitLevel(strings.TrimRight(string(p), "\n"))
	msg = strings.TrimPrefix(msg, b.component+": ")
	b.app.logf(level, b.component, "%s", msg)
	return len(p), nil
}

// splitLevel separates a leading "[level] " tag from msg.
func splitLevel(msg string) (string, string) {
	if strings.HasPrefix(msg, "[") {
		if end := strings.Index(msg, "] "); end > 0 {
			if level := msg[1:end]; isLevel(level) {
				return level, msg[end+2:]
			}
		}
	}
	return "info", msg
}

func isLevel(level string) bool {
	_, ok := levelRank[level]
	return ok
}
