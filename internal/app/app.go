// Package app wires together the HTTP server, WebSocket hub, metronome
// scheduler, audio engine, countdown overlay and practice runner. It owns
// the daemon's lifecycle and is the single source of truth for the current
// operating state.
package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/cadence/internal/audio"
	"github.com/large-farva/cadence/internal/clock"
	"github.com/large-farva/cadence/internal/config"
	"github.com/large-farva/cadence/internal/countdown"
	"github.com/large-farva/cadence/internal/metronome"
	"github.com/large-farva/cadence/internal/plan"
	"github.com/large-farva/cadence/internal/practice"
	"github.com/large-farva/cadence/internal/telemetry"
	"github.com/large-farva/cadence/internal/ws"
)

// Daemon states.
const (
	StateBooting  = "BOOTING"
	StateIdle     = "IDLE"
	StatePlaying  = "PLAYING"
	StatePractice = "PRACTICE"
)

const component = "cadenced"

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	// Clock and Output override the monotonic clock and the configured
	// audio device. Second shortens the practice countdown step.
	Clock  clock.Clock
	Output audio.Output
	Second time.Duration
}

// App is the top-level daemon process.
type App struct {
	log        *log.Logger
	cfgMu      sync.RWMutex
	cfg        config.Config
	configPath string
	bind       string
	server     *http.Server

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, etc.)

	wsHub   *ws.Hub
	engine  *audio.Engine // nil when audio is disabled
	metro   *metronome.Scheduler
	tracker *countdown.Tracker
	runner  *practice.Runner

	baseCtx        context.Context
	practiceMu     sync.Mutex
	practiceCancel context.CancelFunc
	practiceDone   chan struct{}

	frameMu   sync.Mutex
	lastFrame countdown.Directives

	logBufMu sync.Mutex
	logBuf   []logEntry
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) *App {
	a := &App{
		log:        opts.Logger,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(),
		baseCtx:    context.Background(),
	}
	if a.log == nil {
		a.log = log.Default()
	}
	a.state.Store(StateBooting)

	clk := opts.Clock
	if clk == nil {
		clk = clock.NewMonotonic()
	}
	cfg := opts.Cfg

	var sink audio.Sink
	out := opts.Output
	if out == nil {
		out = cfg.Audio.Output()
	}
	if out != nil {
		a.engine = audio.NewEngine(audio.EngineOptions{
			Clock:  clk,
			Click:  cfg.Audio.Click(),
			Frame:  cfg.Audio.Frame(),
			Output: out,
			Logger: a.componentLogger("audio"),
		})
		sink = a.engine
	}

	a.metro = metronome.New(metronome.Options{
		Clock:        clk,
		Sink:         sink,
		Logger:       a.componentLogger("metronome"),
		Style:        cfg.Metronome.DefaultStyle,
		PollInterval: cfg.Metronome.PollInterval(),
		Lookahead:    cfg.Metronome.Lookahead(),
		StartOffset:  cfg.Metronome.StartOffset(),
	})

	a.tracker = countdown.NewTracker(countdown.TrackerOptions{
		Clock:      clk,
		BannerText: cfg.Countdown.BannerText,
		ShortBreak: cfg.Countdown.ShortBreakSeconds,
	})

	a.runner = practice.New(practice.Options{
		Metronome:   a.metro,
		Tracker:     a.tracker,
		Logger:      a.componentLogger("practice"),
		Autoplay:    cfg.Practice.Autoplay,
		PrepSeconds: cfg.Countdown.PrepSeconds,
		Second:      opts.Second,
	})
	a.runner.SetUpdateCallback(a.onPhase)

	return a
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker, beat feed
// and countdown overlay. It blocks until the context is cancelled or the
// server returns an error.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" && a.getConfig().Server.Bind != "" {
		bind = a.getConfig().Server.Bind
	}
	if bind == "" {
		bind = "127.0.0.1:8090"
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.logf("info", component, "listening on http://%s", bind)

	a.start(ctx)
	go a.heartbeatLoop(ctx)

	go func() {
		<-ctx.Done()
		a.logf("info", component, "shutdown requested")
		a.stopPractice()
		a.metro.Stop()
		if a.engine != nil {
			_ = a.engine.Close()
		}
		_ = a.server.Shutdown(context.Background())
	}()

	return a.server.Serve(ln)
}

// start launches the background loops that do not depend on the listener.
func (a *App) start(ctx context.Context) {
	a.practiceMu.Lock()
	a.baseCtx = ctx
	a.practiceMu.Unlock()
	go a.wsHub.Run(ctx)
	go a.beatLoop(ctx)

	overlay := countdown.NewOverlay(a.tracker, a.getConfig().Countdown.FrameInterval(), a.onFrame)
	go func() {
		<-ctx.Done()
		overlay.Close()
	}()

	a.transition(StateIdle)
}

// Handler returns the daemon's HTTP routes.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/reload", a.handleReload)
	mux.HandleFunc("/api/logs", a.handleLogs)
	mux.HandleFunc("/api/start", a.handleStart)
	mux.HandleFunc("/api/stop", a.handleStop)
	mux.HandleFunc("/api/toggle", a.handleToggle)
	mux.HandleFunc("/api/bpm", a.handleBPM)
	mux.HandleFunc("/api/style", a.handleStyle)
	mux.HandleFunc("/api/practice", a.handlePractice)
	mux.HandleFunc("/api/practice/start", a.handlePracticeStart)
	mux.HandleFunc("/api/practice/stop", a.handlePracticeStop)
	mux.HandleFunc("/api/practice/skip", a.handlePracticeCommand(practice.CommandSkip))
	mux.HandleFunc("/api/practice/next", a.handlePracticeCommand(practice.CommandNext))
	mux.Handle("/ws", a.wsHub.Handler())
	return mux
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	a.wsHub.BroadcastJSON(telemetry.StateTransition{
		Event: telemetry.NewEvent(telemetry.EventState, component),
		From:  old,
		To:    newState,
	})
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap := a.metro.Snapshot()
			a.wsHub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.NewEvent(telemetry.EventHeartbeat, component),
				State:         a.state.Load().(string),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
				BPM:           snap.BPM,
				Audio:         snap.Audio,
			})
		}
	}
}

// beatLoop relays every scheduler snapshot to the practice runner and to
// WebSocket clients, and follows play/stop for the daemon state.
func (a *App) beatLoop(ctx context.Context) {
	sub := a.metro.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			a.runner.Beat(snap)
			a.wsHub.BroadcastJSON(telemetry.NewBeat(snap, "metronome"))
			if a.practicing() {
				continue
			}
			if snap.Playing {
				a.transition(StatePlaying)
			} else {
				a.transition(StateIdle)
			}
		}
	}
}

// onFrame broadcasts overlay directives when they differ from the last
// frame sent.
func (a *App) onFrame(d countdown.Directives) {
	a.frameMu.Lock()
	if d == a.lastFrame {
		a.frameMu.Unlock()
		return
	}
	a.lastFrame = d
	a.frameMu.Unlock()

	a.wsHub.BroadcastJSON(telemetry.Countdown{
		Event:      telemetry.NewEvent(telemetry.EventCountdown, "countdown"),
		Directives: d,
	})
}

func (a *App) onPhase(u practice.Update) {
	a.wsHub.BroadcastJSON(telemetry.Phase{
		Event:  telemetry.NewEvent(telemetry.EventPhase, "practice"),
		Update: u,
	})
}

// startPractice runs p in the background. It fails if a plan is already
// running.
func (a *App) startPractice(p plan.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}

	a.practiceMu.Lock()
	defer a.practiceMu.Unlock()
	if a.practiceCancel != nil {
		return practice.ErrRunning
	}

	ctx, cancel := context.WithCancel(a.baseCtx)
	done := make(chan struct{})
	a.practiceCancel = cancel
	a.practiceDone = done

	a.metro.Stop()
	a.transition(StatePractice)

	go func() {
		defer close(done)
		err := a.runner.Run(ctx, p)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logf("error", "practice", "practice failed: %v", err)
		}

		a.practiceMu.Lock()
		if a.practiceDone == done {
			a.practiceCancel = nil
			a.practiceDone = nil
		}
		a.practiceMu.Unlock()
		cancel()
		a.transition(StateIdle)
	}()
	return nil
}

// stopPractice cancels a running plan and waits for it to wind down. It
// reports whether a plan was running.
func (a *App) stopPractice() bool {
	a.practiceMu.Lock()
	cancel, done := a.practiceCancel, a.practiceDone
	a.practiceMu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (a *App) practicing() bool {
	a.practiceMu.Lock()
	defer a.practiceMu.Unlock()
	return a.practiceCancel != nil
}

func (a *App) getConfig() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// applyConfig swaps in a reloaded config and pushes the settings that can
// change at runtime into the tracker, the runner and an idle metronome.
// Audio and scheduler timings stay as they were at startup.
func (a *App) applyConfig(cfg config.Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()

	a.tracker.Configure(cfg.Countdown.BannerText, cfg.Countdown.ShortBreakSeconds)
	a.runner.SetDefaults(cfg.Practice.Autoplay, cfg.Countdown.PrepSeconds)
	if !a.metro.Playing() && !a.practicing() {
		a.metro.SetBeatStyle(cfg.Metronome.DefaultStyle)
	}
}
