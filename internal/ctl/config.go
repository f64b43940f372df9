package ctl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/large-farva/cadence/internal/config"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	var cfg config.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(header("  DAEMON CONFIGURATION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))

	section := func(name string) {
		fmt.Printf("\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Printf("    %-20s %v\n", colorize(dim, key+":"), val)
	}

	section("server")
	field("bind", cfg.Server.Bind)

	section("logging")
	field("level", cfg.Logging.Level)

	section("metronome")
	field("default_bpm", cfg.Metronome.DefaultBPM)
	field("default_style", cfg.Metronome.DefaultStyle)
	field("poll_interval_ms", cfg.Metronome.PollIntervalMS)
	field("lookahead_ms", cfg.Metronome.LookaheadMS)
	field("start_offset_ms", cfg.Metronome.StartOffsetMS)

	section("audio")
	field("enabled", cfg.Audio.Enabled)
	field("sample_rate", cfg.Audio.SampleRate)
	field("frequency_hz", cfg.Audio.FrequencyHz)
	field("peak_gain", cfg.Audio.PeakGain)
	field("envelope_ms", fmt.Sprintf("%g / %g / %g", cfg.Audio.AttackMS, cfg.Audio.DecayMS, cfg.Audio.StopMS))
	field("frame_ms", cfg.Audio.FrameMS)
	field("device", strings.TrimSpace(cfg.Audio.DeviceCommand+" "+strings.Join(cfg.Audio.DeviceArgs, " ")))

	section("countdown")
	field("frame_interval_ms", cfg.Countdown.FrameIntervalMS)
	field("banner_text", cfg.Countdown.BannerText)
	field("short_break_seconds", cfg.Countdown.ShortBreakSeconds)
	field("prep_seconds", cfg.Countdown.PrepSeconds)

	section("practice")
	field("plan", cfg.Practice.Plan)
	field("autoplay", cfg.Practice.Autoplay)

	fmt.Println()

	return nil
}
