package tui

import (
	"context"
	"errors"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/large-farva/cadence/internal/audio"
	"github.com/large-farva/cadence/internal/clock"
	"github.com/large-farva/cadence/internal/config"
	"github.com/large-farva/cadence/internal/countdown"
	"github.com/large-farva/cadence/internal/metronome"
	"github.com/large-farva/cadence/internal/plan"
	"github.com/large-farva/cadence/internal/practice"
)

// Options configures a local practice session.
type Options struct {
	Plan   plan.Plan
	Cfg    config.Config
	Logger *log.Logger

	// Output overrides the configured audio device. A nil Output with
	// audio disabled in Cfg runs silently.
	Output audio.Output

	// In and Out replace the terminal; tests use them.
	In  io.Reader
	Out io.Writer
}

// Run plays opts.Plan in the terminal with a local metronome, audio engine
// and countdown overlay. It returns when the plan finishes or the user
// quits.
func Run(ctx context.Context, opts Options) error {
	if err := opts.Plan.Validate(); err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cfg := opts.Cfg
	clk := clock.NewMonotonic()

	var sink audio.Sink
	out := opts.Output
	if out == nil {
		out = cfg.Audio.Output()
	}
	var engine *audio.Engine
	if out != nil {
		engine = audio.NewEngine(audio.EngineOptions{
			Clock:  clk,
			Click:  cfg.Audio.Click(),
			Frame:  cfg.Audio.Frame(),
			Output: out,
			Logger: logger,
		})
		sink = engine
		defer engine.Close()
	}

	metro := metronome.New(metronome.Options{
		Clock:        clk,
		Sink:         sink,
		Logger:       logger,
		Style:        cfg.Metronome.DefaultStyle,
		PollInterval: cfg.Metronome.PollInterval(),
		Lookahead:    cfg.Metronome.Lookahead(),
		StartOffset:  cfg.Metronome.StartOffset(),
	})
	defer metro.Stop()

	tracker := countdown.NewTracker(countdown.TrackerOptions{
		Clock:      clk,
		BannerText: cfg.Countdown.BannerText,
		ShortBreak: cfg.Countdown.ShortBreakSeconds,
	})
	runner := practice.New(practice.Options{
		Metronome:   metro,
		Tracker:     tracker,
		Logger:      logger,
		Autoplay:    cfg.Practice.Autoplay,
		PrepSeconds: cfg.Countdown.PrepSeconds,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var progOpts []tea.ProgramOption
	if opts.In != nil {
		progOpts = append(progOpts, tea.WithInput(opts.In))
	}
	if opts.Out != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Out))
	} else {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	progOpts = append(progOpts, tea.WithContext(ctx))

	m := newModel(opts.Plan.Title, runner, cancel)
	p := tea.NewProgram(m, progOpts...)

	runner.SetUpdateCallback(func(u practice.Update) { p.Send(phaseMsg(u)) })

	sub := metro.Subscribe()
	defer sub.Close()
	go func() {
		for snap := range sub.C {
			runner.Beat(snap)
			p.Send(beatMsg(snap))
		}
	}()

	overlay := countdown.NewOverlay(tracker, cfg.Countdown.FrameInterval(), func(d countdown.Directives) {
		p.Send(frameMsg(d))
	})
	defer overlay.Close()

	runDone := make(chan error, 1)
	go func() {
		err := runner.Run(ctx, opts.Plan)
		runDone <- err
		p.Send(doneMsg{err: err})
	}()

	final, err := p.Run()
	cancel()
	runErr := <-runDone

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if fm, ok := final.(model); ok && fm.done && runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
