// Cadencectl is the command-line client for a running cadenced instance.
// It also runs practice plans locally in the terminal and exports click
// tracks without a daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/large-farva/cadence/internal/config"
	"github.com/large-farva/cadence/internal/ctl"
	"github.com/large-farva/cadence/internal/plan"
	"github.com/large-farva/cadence/internal/tui"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8090", "Cadence daemon URL")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter beat,countdown)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --bpm are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Filter by log level (debug, info, warn, error)")
		logFlags.StringVar(&opts.Component, "component", "", "Filter by component (cadenced, metronome, audio, practice)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	// ── Metronome ─────────────────────────────────────────────────
	case "start", "toggle":
		opts := ctl.TempoOptions{JSON: *jsonOut}
		tempoFlags := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
		tempoFlags.IntVar(&opts.BPM, "bpm", 0, "Tempo (default: daemon's metronome.default_bpm)")
		tempoFlags.StringVar(&opts.Style, "style", "", "Beat style: 4/4, 3/4, 2/4 or none")
		_ = tempoFlags.Parse(subArgs)
		if cmd == "start" {
			err = ctl.Start(*host, opts)
		} else {
			err = ctl.Toggle(*host, opts)
		}

	case "stop":
		err = ctl.Stop(*host, *jsonOut)

	case "bpm":
		var bpm int
		if len(subArgs) > 0 {
			_, err = fmt.Sscanf(subArgs[0], "%d", &bpm)
		}
		if err == nil {
			err = ctl.SetBPM(*host, bpm, *jsonOut)
		}

	case "style":
		if len(subArgs) < 1 {
			usage()
			os.Exit(2)
		}
		err = ctl.SetStyle(*host, subArgs[0], *jsonOut)

	case "reload":
		err = ctl.Reload(*host, *jsonOut)

	// ── Practice ──────────────────────────────────────────────────
	case "practice":
		err = practice(*host, *jsonOut, subArgs)

	// ── Offline ───────────────────────────────────────────────────
	case "export":
		opts := ctl.ExportOptions{JSON: *jsonOut}
		expFlags := pflag.NewFlagSet("export", pflag.ContinueOnError)
		expFlags.StringVar(&opts.Format, "format", "", "wav or midi (default: from the output extension)")
		expFlags.IntVar(&opts.BPM, "bpm", 100, "Tempo")
		expFlags.StringVar(&opts.Style, "style", "4/4", "Beat style")
		expFlags.IntVar(&opts.Beats, "beats", 16, "Number of clicks")
		expFlags.StringVarP(&opts.Output, "output", "o", "", "Output file")
		configPath := expFlags.String("config", "", "Config TOML for the click voice")
		_ = expFlags.Parse(subArgs)
		if *configPath != "" {
			var cfg config.Config
			if cfg, err = config.Load(*configPath); err == nil {
				opts.Click = cfg.Audio.Click()
			}
		}
		if err == nil {
			err = ctl.Export(opts)
		}

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// practice dispatches the practice subcommands. "run" plays a plan locally
// in the terminal; the rest steer the daemon's runner.
func practice(host string, jsonOut bool, args []string) error {
	sub := "status"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "status":
		return ctl.PracticeStatus(host, jsonOut)
	case "start":
		opts := ctl.PracticeOptions{JSON: jsonOut}
		if len(args) > 0 {
			opts.Path = args[0]
		}
		return ctl.PracticeStart(host, opts)
	case "stop":
		return ctl.PracticeStop(host, jsonOut)
	case "skip":
		return ctl.PracticeSkip(host, jsonOut)
	case "next":
		return ctl.PracticeNext(host, jsonOut)
	case "run":
		return runLocal(args)
	default:
		return fmt.Errorf("unknown practice command %q", sub)
	}
}

func runLocal(args []string) error {
	fs := pflag.NewFlagSet("practice run", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", config.DefaultPath, "Config TOML")
	silent := fs.Bool("silent", false, "Do not open the audio device")
	logFile := fs.String("log", "", "Write engine logs to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *silent {
		cfg.Audio.Enabled = false
	}

	p := plan.Sample()
	if fs.NArg() > 0 {
		if p, err = plan.Load(fs.Arg(0)); err != nil {
			return err
		}
	} else if cfg.Practice.Plan != "" {
		if p, err = plan.Load(cfg.Practice.Plan); err != nil {
			return err
		}
	}

	var logger *log.Logger
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logger = log.New(f, "cadencectl ", log.LstdFlags|log.Lmicroseconds)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, tui.Options{Plan: p, Cfg: cfg, Logger: logger})
}

func usage() {
	fmt.Print(`
  cadencectl - Cadence metronome control CLI

  USAGE
    cadencectl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, tempo, audio and practice position
    health          Check daemon and component health
    version         Show CLI and daemon builds, audio path and tempo range
    config          Show the daemon's running configuration
    logs            Show recent daemon log lines (--level, --component, --limit, --tail)

  COMMANDS (metronome)
    start           Start clicking (--bpm N, --style S)
    stop            Stop clicking
    toggle          Start or stop (--bpm N, --style S)
    bpm N           Change the tempo
    style S         Change the beat style (4/4, 3/4, 2/4, none)
    reload          Reload configuration from disk

  COMMANDS (practice)
    practice [status]       Show the daemon's practice position
    practice start [PATH]   Run a plan on the daemon (default: configured plan)
    practice stop           Cancel the running plan
    practice skip           End the current countdown or work block
    practice next           Start the next exercise when autoplay is off
    practice run [PATH]     Play a plan locally in the terminal

  COMMANDS (offline)
    export          Write a click track (--bpm, --style, --beats, -o FILE)

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8090)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  EXAMPLES
    cadencectl status
    cadencectl start --bpm 120 --style 3/4
    cadencectl bpm 96
    cadencectl practice start /srv/plans/scales.yaml
    cadencectl practice run --silent plans/scales.yaml
    cadencectl export --bpm 90 --beats 64 -o click.wav
    cadencectl watch --filter countdown,phase

`)
}
