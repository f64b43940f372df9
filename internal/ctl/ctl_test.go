package ctl

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/large-farva/cadence/internal/countdown"
	"github.com/large-farva/cadence/internal/metronome"
	"github.com/large-farva/cadence/internal/practice"
	"github.com/large-farva/cadence/internal/telemetry"
)

// fakeDaemon records the last request body per path and answers with the
// canned responses.
type fakeDaemon struct {
	bodies    map[string]map[string]any
	responses map[string]any
	codes     map[string]int
}

func newFakeDaemon(t *testing.T) (*fakeDaemon, *httptest.Server) {
	t.Helper()
	d := &fakeDaemon{
		bodies:    map[string]map[string]any{},
		responses: map[string]any{},
		codes:     map[string]int{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		d.bodies[r.URL.Path] = body
		code := d.codes[r.URL.Path]
		if code == 0 {
			code = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(d.responses[r.URL.Path])
	}))
	t.Cleanup(srv.Close)
	return d, srv
}

func TestStartSendsTempo(t *testing.T) {
	d, srv := newFakeDaemon(t)
	d.responses["/api/start"] = metronomeResult{OK: true, Metronome: metronome.Snapshot{Playing: true, BPM: 96, Style: "3/4"}}

	if err := Start(srv.URL, TempoOptions{BPM: 96, Style: "3/4"}); err != nil {
		t.Fatal(err)
	}
	got := d.bodies["/api/start"]
	if got["bpm"].(float64) != 96 || got["style"] != "3/4" {
		t.Errorf("body = %v", got)
	}

	if err := Start(srv.URL, TempoOptions{}); err != nil {
		t.Fatal(err)
	}
	if len(d.bodies["/api/start"]) != 0 {
		t.Errorf("empty options sent %v", d.bodies["/api/start"])
	}
}

func TestSetBPMRejectsNonPositive(t *testing.T) {
	_, srv := newFakeDaemon(t)
	if err := SetBPM(srv.URL, 0, false); err == nil {
		t.Error("SetBPM(0) succeeded")
	}
}

func TestDaemonErrorMessage(t *testing.T) {
	d, srv := newFakeDaemon(t)
	d.codes["/api/practice/skip"] = http.StatusConflict
	d.responses["/api/practice/skip"] = map[string]any{"ok": false, "error": "no practice running"}

	err := PracticeSkip(srv.URL, false)
	if err == nil || !strings.Contains(err.Error(), "no practice running") || !strings.Contains(err.Error(), "409") {
		t.Errorf("err = %v", err)
	}
}

func TestPracticeStartSendsPath(t *testing.T) {
	d, srv := newFakeDaemon(t)
	d.responses["/api/practice/start"] = map[string]any{"ok": true, "message": "practice started: Scales"}

	if err := PracticeStart(srv.URL, PracticeOptions{Path: "/srv/plans/scales.yaml", JSON: true}); err != nil {
		t.Fatal(err)
	}
	if d.bodies["/api/practice/start"]["path"] != "/srv/plans/scales.yaml" {
		t.Errorf("body = %v", d.bodies["/api/practice/start"])
	}
}

func TestStatusDecodes(t *testing.T) {
	d, srv := newFakeDaemon(t)
	d.responses["/api/status"] = StatusResponse{
		Name:      "cadence",
		State:     "PRACTICE",
		Metronome: metronome.Snapshot{Playing: true, BPM: 120, Style: "4/4"},
		Practice:  &practice.Update{Plan: "Scales", Total: 2, Stage: practice.StageWork, Duration: 60, Remaining: 12},
	}
	if err := Status(srv.URL, false); err != nil {
		t.Fatal(err)
	}
}

func TestHealthReportsChecks(t *testing.T) {
	d, srv := newFakeDaemon(t)
	d.codes["/healthz"] = http.StatusServiceUnavailable
	d.responses["/healthz"] = HealthResponse{
		Healthy: false,
		Checks:  map[string]map[string]any{"audio": {"ok": false, "state": "degraded"}},
	}
	h, status, err := fetchHealth(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusServiceUnavailable || h.Healthy || h.Checks["audio"]["state"] != "degraded" {
		t.Errorf("health = %d %+v", status, h)
	}
}

func render(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	renderEvent(&buf, b)
	return buf.String()
}

func TestRenderBeat(t *testing.T) {
	ev := telemetry.NewBeat(metronome.Snapshot{Playing: true, BPM: 120, Style: "4/4", Tick: 6, BeatInMeasure: 2}, "metronome")
	out := render(t, ev)
	if !strings.Contains(out, "● ● ○ ○") || !strings.Contains(out, "#6") {
		t.Errorf("beat line = %q", out)
	}

	ev = telemetry.NewBeat(metronome.Snapshot{}, "metronome")
	if out := render(t, ev); !strings.Contains(out, "stopped") {
		t.Errorf("stop line = %q", out)
	}
}

func TestRenderCountdown(t *testing.T) {
	ev := telemetry.Countdown{
		Event:      telemetry.NewEvent(telemetry.EventCountdown, "countdown"),
		Directives: countdown.Directives{Visible: true, HasCount: true, Count: 1, Accent: true, Message: "rest", Seconds: 2},
	}
	out := render(t, ev)
	if !strings.Contains(out, "rest 2s") || !strings.Contains(out, "1!") {
		t.Errorf("countdown line = %q", out)
	}

	ev.Directives = countdown.Directives{Visible: true, ShowProgress: true, ProgressPercent: 50, Message: "rest", Seconds: 8}
	if out := render(t, ev); !strings.Contains(out, "==========") || !strings.Contains(out, "50%") {
		t.Errorf("progress line = %q", out)
	}

	ev.Directives = countdown.Directives{}
	if out := render(t, ev); !strings.Contains(out, "hidden") {
		t.Errorf("hidden line = %q", out)
	}
}

func TestRenderPhaseAndLog(t *testing.T) {
	out := render(t, telemetry.Phase{
		Event:  telemetry.NewEvent(telemetry.EventPhase, "practice"),
		Update: practice.Update{Plan: "Scales", Index: 1, Total: 3, Stage: practice.StageRest, Duration: 10, Remaining: 4},
	})
	if !strings.Contains(out, "rest") || !strings.Contains(out, "2/3") || !strings.Contains(out, "4s left") {
		t.Errorf("phase line = %q", out)
	}

	out = render(t, telemetry.LogLine{
		Event:   telemetry.NewEvent(telemetry.EventLog, "audio"),
		Level:   "warn",
		Message: "device lost",
	})
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "[audio] device lost") {
		t.Errorf("log line = %q", out)
	}
}

func TestRenderUnknownFallsBackToJSON(t *testing.T) {
	out := render(t, map[string]any{"type": "mystery", "value": 7})
	if !strings.Contains(out, `"value": 7`) {
		t.Errorf("unknown line = %q", out)
	}
}

func TestLogsPath(t *testing.T) {
	tests := []struct {
		opts LogsOptions
		want string
	}{
		{LogsOptions{}, "/api/logs"},
		{LogsOptions{Level: "warn", Limit: 5}, "/api/logs?level=warn&limit=5"},
		{LogsOptions{Component: "audio"}, "/api/logs?component=audio"},
	}
	for _, tt := range tests {
		if got := logsPath(tt.opts); got != tt.want {
			t.Errorf("logsPath(%+v) = %q, want %q", tt.opts, got, tt.want)
		}
	}
}

func TestLogsRejectsUnknownFilters(t *testing.T) {
	_, srv := newFakeDaemon(t)
	if err := Logs(srv.URL, LogsOptions{Level: "loud"}); err == nil || !strings.Contains(err.Error(), "unknown level") {
		t.Errorf("level err = %v", err)
	}
	if err := Logs(srv.URL, LogsOptions{Component: "mixer"}); err == nil || !strings.Contains(err.Error(), "unknown component") {
		t.Errorf("component err = %v", err)
	}
}

func TestRenderLogs(t *testing.T) {
	var buf bytes.Buffer
	renderLogs(&buf, []logLine{
		{TS: "2026-01-02T03:04:05Z", Level: "info", Component: "metronome", Message: "start 120 bpm 4/4"},
		{TS: "2026-01-02T03:04:06Z", Level: "warn", Component: "audio", Message: "audio degraded"},
		{TS: "2026-01-02T03:04:07Z", Level: "warn", Component: "audio", Message: "late by 3ms"},
	}, LogsOptions{Component: "audio"})
	out := buf.String()
	for _, want := range []string{"CADENCED LOGS (audio)", "start 120 bpm 4/4", "WARN", "3 lines: 1 info, 2 warn"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	renderLogs(&buf, nil, LogsOptions{})
	if !strings.Contains(buf.String(), "No log lines.") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestVersionDecodesDaemon(t *testing.T) {
	d, srv := newFakeDaemon(t)
	d.responses["/api/version"] = map[string]any{
		"version":    "1.2.0",
		"go_version": "go1.26",
		"audio":      map[string]any{"device": "aplay", "sample_rate": 48000, "state": "ok"},
		"styles":     []string{"4/4", "3/4", "2/4", "none"},
		"max_bpm":    400,
	}
	var v DaemonVersion
	if err := getJSON(srv.URL, "/api/version", &v); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	renderVersion(&buf, v, nil)
	out := buf.String()
	for _, want := range []string{"1.2.0 (go1.26)", "aplay @ 48000 Hz", "ok", "1-400 bpm (Largo to Prestissimo)", "4/4  3/4  2/4  none"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionDaemonUnreachable(t *testing.T) {
	var buf bytes.Buffer
	renderVersion(&buf, DaemonVersion{}, errors.New("connection refused"))
	if out := buf.String(); !strings.Contains(out, "unreachable: connection refused") || strings.Contains(out, "tempo") {
		t.Errorf("output = %q", out)
	}
}

func TestLights(t *testing.T) {
	tests := []struct {
		lit, n int
		want   string
	}{
		{1, 4, "● ○ ○ ○"},
		{3, 3, "● ● ●"},
		{0, 2, "○ ○"},
		{1, 1, "●"},
	}
	for _, tt := range tests {
		if got := lights(tt.lit, tt.n); got != tt.want {
			t.Errorf("lights(%d, %d) = %q, want %q", tt.lit, tt.n, got, tt.want)
		}
	}
}

func TestExportFormat(t *testing.T) {
	tests := []struct{ format, output, want string }{
		{"", "click.wav", "wav"},
		{"", "click.mid", "midi"},
		{"midi", "click.bin", "midi"},
		{"", "click.mp3", ""},
	}
	for _, tt := range tests {
		if got := exportFormat(tt.format, tt.output); got != tt.want {
			t.Errorf("exportFormat(%q, %q) = %q, want %q", tt.format, tt.output, got, tt.want)
		}
	}
}

func TestExportWritesFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"click.wav", "click.mid"} {
		path := filepath.Join(dir, name)
		if err := Export(ExportOptions{BPM: 120, Style: "4/4", Beats: 8, Output: path}); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}

	bad := filepath.Join(dir, "bad.wav")
	if err := Export(ExportOptions{BPM: 0, Beats: 8, Output: bad}); err == nil {
		t.Error("export with bpm 0 succeeded")
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("failed export left a file behind")
	}
}
