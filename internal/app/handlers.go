package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/large-farva/cadence/internal/audio"
	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/config"
	"github.com/large-farva/cadence/internal/plan"
	"github.com/large-farva/cadence/internal/practice"
)

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]any{}
	allOK := true

	st := a.metro.AudioStatus()
	switch st.State {
	case audio.StateDegraded:
		checks["audio"] = map[string]any{"ok": false, "state": st.State, "error": st.Error, "late": st.Late}
		allOK = false
	default:
		checks["audio"] = map[string]any{"ok": true, "state": st.State, "late": st.Late}
	}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil && a.configPath != config.DefaultPath {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	checks["websocket"] = map[string]any{
		"ok":      true,
		"clients": a.wsHub.Clients(),
		"dropped": a.wsHub.Dropped(),
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := a.metro.Snapshot()
	resp := map[string]any{
		"name":           "cadence",
		"state":          a.state.Load().(string),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"metronome":      snap,
		"audio":          snap.Audio,
		"clients":        a.wsHub.Clients(),
	}
	if snap.BPM > 0 {
		resp["tempo_marking"] = beat.TempoMarking(snap.BPM)
	}
	if a.runner.Running() {
		resp["practice"] = a.runner.Current()
		resp["countdown"] = a.tracker.Render()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()
	device := cfg.Audio.DeviceCommand
	if !cfg.Audio.Enabled {
		device = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
		"audio": map[string]any{
			"device":      device,
			"sample_rate": cfg.Audio.SampleRate,
			"state":       a.metro.AudioStatus().State,
		},
		"styles":  beat.Styles,
		"max_bpm": plan.MaxBPM,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.getConfig())
}

func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if a.configPath == "" {
		jsonError(w, "no config file path set", http.StatusInternalServerError)
		return
	}

	newCfg, err := config.Load(a.configPath)
	if err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	a.applyConfig(newCfg)

	a.logf("info", component, "config reloaded from %s", a.configPath)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "configuration reloaded from " + a.configPath,
	})
}

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := a.logs()

	level := r.URL.Query().Get("level")
	comp := r.URL.Query().Get("component")
	if level != "" || comp != "" {
		var filtered []logEntry
		for _, e := range entries {
			if (level == "" || e.Level == level) && (comp == "" || e.Component == comp) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}

	if entries == nil {
		entries = []logEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// ---------------------------------------------------------------------------
// Metronome controls
// ---------------------------------------------------------------------------

type tempoRequest struct {
	BPM   int    `json:"bpm"`
	Style string `json:"style"`
}

// decodeTempo reads an optional JSON body. An empty body yields the zero
// request.
func decodeTempo(r *http.Request) (tempoRequest, error) {
	var req tempoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	if req.BPM < 0 || req.BPM > plan.MaxBPM {
		return req, fmt.Errorf("bpm must be between 1 and %d", plan.MaxBPM)
	}
	return req, nil
}

func (a *App) handleStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if a.practicing() {
		jsonError(w, "practice is running", http.StatusConflict)
		return
	}
	req, err := decodeTempo(r)
	if err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	style, bpm, err := a.startTempo(req)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.metro.SetBeatStyle(style)
	a.metro.Start(bpm)
	writeSnapshot(w, a)
}

// startTempo fills in the configured defaults for whatever a start request
// leaves out.
func (a *App) startTempo(req tempoRequest) (beat.Style, int, error) {
	cfg := a.getConfig()
	style := cfg.Metronome.DefaultStyle
	if req.Style != "" {
		var err error
		if style, err = beat.ParseStyle(req.Style); err != nil {
			return style, 0, err
		}
	}
	bpm := req.BPM
	if bpm == 0 {
		bpm = cfg.Metronome.DefaultBPM
	}
	return style, bpm, nil
}

func (a *App) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if a.practicing() {
		jsonError(w, "practice is running", http.StatusConflict)
		return
	}
	a.metro.Stop()
	writeSnapshot(w, a)
}

func (a *App) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if a.practicing() {
		jsonError(w, "practice is running", http.StatusConflict)
		return
	}
	req, err := decodeTempo(r)
	if err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	style, bpm, err := a.startTempo(req)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !a.metro.Playing() {
		a.metro.SetBeatStyle(style)
	}
	a.metro.Toggle(bpm)
	writeSnapshot(w, a)
}

func (a *App) handleBPM(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	req, err := decodeTempo(r)
	if err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.BPM <= 0 {
		jsonError(w, "bpm must be positive", http.StatusBadRequest)
		return
	}
	a.metro.SetBpm(req.BPM)
	writeSnapshot(w, a)
}

func (a *App) handleStyle(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	req, err := decodeTempo(r)
	if err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	style, err := beat.ParseStyle(req.Style)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.metro.SetBeatStyle(style)
	writeSnapshot(w, a)
}

// ---------------------------------------------------------------------------
// Practice
// ---------------------------------------------------------------------------

func (a *App) handlePractice(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running":   a.runner.Running(),
		"current":   a.runner.Current(),
		"countdown": a.tracker.Render(),
	})
}

func (a *App) handlePracticeStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	// Optional body: {"plan": {...}} or {"path": "/srv/plans/x.yaml"}.
	var body struct {
		Plan json.RawMessage `json:"plan"`
		Path string          `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	p, source, err := a.resolvePlan(body.Plan, body.Path)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.startPractice(p); err != nil {
		if errors.Is(err, practice.ErrRunning) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.logf("info", "practice", "started %q from %s (%d exercises)", p.Title, source, len(p.Exercises))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"message":       "practice started: " + p.Title,
		"plan":          p,
		"total_seconds": p.TotalSeconds(),
	})
}

// resolvePlan picks the plan to run: an inline plan, then a posted path,
// then the configured plan file, then the built-in sample.
func (a *App) resolvePlan(inline json.RawMessage, path string) (plan.Plan, string, error) {
	if len(inline) > 0 && string(inline) != "null" {
		// JSON is valid YAML, so the plan parser handles inline bodies too.
		p, err := plan.Parse(inline)
		return p, "request", err
	}
	if path == "" {
		path = a.getConfig().Practice.Plan
	}
	if path != "" {
		p, err := plan.Load(path)
		return p, path, err
	}
	return plan.Sample(), "built-in sample", nil
}

func (a *App) handlePracticeStop(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if !a.stopPractice() {
		jsonError(w, "no practice running", http.StatusConflict)
		return
	}
	a.logf("info", "practice", "stopped")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "practice stopped"})
}

func (a *App) handlePracticeCommand(cmd practice.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if !a.runner.Send(cmd) {
			jsonError(w, "no practice running", http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": string(cmd) + " sent"})
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSnapshot answers a metronome command with the resulting state.
func writeSnapshot(w http.ResponseWriter, a *App) {
	snap := a.metro.Snapshot()
	resp := map[string]any{"ok": true, "metronome": snap}
	if snap.BPM > 0 {
		resp["tempo_marking"] = beat.TempoMarking(snap.BPM)
	}
	writeJSON(w, http.StatusOK, resp)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}
