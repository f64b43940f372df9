// Package config handles loading, defaulting, and validation of the cadence
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/cadence/internal/audio"
	"github.com/large-farva/cadence/internal/beat"
)

// DefaultPath is where cadenced looks for its config when none is given.
const DefaultPath = "/etc/cadence/cadence.toml"

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Server    ServerConfig    `toml:"server"    json:"server"`
	Logging   LoggingConfig   `toml:"logging"   json:"logging"`
	Metronome MetronomeConfig `toml:"metronome" json:"metronome"`
	Audio     AudioConfig     `toml:"audio"     json:"audio"`
	Countdown CountdownConfig `toml:"countdown" json:"countdown"`
	Practice  PracticeConfig  `toml:"practice"  json:"practice"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type MetronomeConfig struct {
	DefaultBPM     int        `toml:"default_bpm"      json:"default_bpm"`
	DefaultStyle   beat.Style `toml:"default_style"    json:"default_style"`
	PollIntervalMS int        `toml:"poll_interval_ms" json:"poll_interval_ms"`
	LookaheadMS    int        `toml:"lookahead_ms"     json:"lookahead_ms"`
	StartOffsetMS  int        `toml:"start_offset_ms"  json:"start_offset_ms"`
}

type AudioConfig struct {
	Enabled       bool     `toml:"enabled"        json:"enabled"`
	SampleRate    int      `toml:"sample_rate"    json:"sample_rate"`
	FrequencyHz   float64  `toml:"frequency_hz"   json:"frequency_hz"`
	PeakGain      float64  `toml:"peak_gain"      json:"peak_gain"`
	AttackMS      float64  `toml:"attack_ms"      json:"attack_ms"`
	DecayMS       float64  `toml:"decay_ms"       json:"decay_ms"`
	StopMS        float64  `toml:"stop_ms"        json:"stop_ms"`
	FrameMS       int      `toml:"frame_ms"       json:"frame_ms"`
	DeviceCommand string   `toml:"device_command" json:"device_command"`
	DeviceArgs    []string `toml:"device_args"    json:"device_args"`
}

type CountdownConfig struct {
	FrameIntervalMS   int     `toml:"frame_interval_ms"   json:"frame_interval_ms"`
	BannerText        string  `toml:"banner_text"         json:"banner_text"`
	ShortBreakSeconds float64 `toml:"short_break_seconds" json:"short_break_seconds"`
	PrepSeconds       int     `toml:"prep_seconds"        json:"prep_seconds"`
}

type PracticeConfig struct {
	Plan     string `toml:"plan"     json:"plan"`
	Autoplay bool   `toml:"autoplay" json:"autoplay"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	click := audio.DefaultClick()
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1:8090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metronome: MetronomeConfig{
			DefaultBPM:     100,
			DefaultStyle:   beat.Style44,
			PollIntervalMS: 25,
			LookaheadMS:    100,
			StartOffsetMS:  50,
		},
		Audio: AudioConfig{
			Enabled:       true,
			SampleRate:    click.SampleRate,
			FrequencyHz:   click.FrequencyHz,
			PeakGain:      click.PeakGain,
			AttackMS:      1,
			DecayMS:       50,
			StopMS:        60,
			FrameMS:       10,
			DeviceCommand: "aplay",
		},
		Countdown: CountdownConfig{
			FrameIntervalMS:   50,
			BannerText:        "get ready",
			ShortBreakSeconds: 5,
			PrepSeconds:       5,
		},
		Practice: PracticeConfig{
			Autoplay: true,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. A missing file at DefaultPath is not an error: the
// defaults are used as they are.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	if cfg.Metronome.DefaultBPM < 1 || cfg.Metronome.DefaultBPM > 400 {
		return errors.New("metronome.default_bpm must be between 1 and 400")
	}
	if cfg.Metronome.PollIntervalMS < 1 {
		return errors.New("metronome.poll_interval_ms must be >= 1")
	}
	if cfg.Metronome.LookaheadMS <= cfg.Metronome.PollIntervalMS {
		return errors.New("metronome.lookahead_ms must be greater than poll_interval_ms")
	}
	if cfg.Metronome.StartOffsetMS < 1 {
		return errors.New("metronome.start_offset_ms must be >= 1")
	}
	if cfg.Audio.SampleRate < 8000 {
		return errors.New("audio.sample_rate must be >= 8000")
	}
	if cfg.Audio.FrequencyHz <= 0 || cfg.Audio.FrequencyHz >= float64(cfg.Audio.SampleRate)/2 {
		return errors.New("audio.frequency_hz must be between 0 and half the sample rate")
	}
	if cfg.Audio.PeakGain <= 0 || cfg.Audio.PeakGain > 1 {
		return errors.New("audio.peak_gain must be in (0, 1]")
	}
	if cfg.Audio.AttackMS <= 0 || cfg.Audio.DecayMS <= cfg.Audio.AttackMS || cfg.Audio.StopMS < cfg.Audio.DecayMS {
		return errors.New("audio envelope must satisfy 0 < attack_ms < decay_ms <= stop_ms")
	}
	if cfg.Audio.FrameMS < 1 {
		return errors.New("audio.frame_ms must be >= 1")
	}
	if cfg.Countdown.FrameIntervalMS < 1 {
		return errors.New("countdown.frame_interval_ms must be >= 1")
	}
	if cfg.Countdown.ShortBreakSeconds < 0 {
		return errors.New("countdown.short_break_seconds must be >= 0")
	}
	if cfg.Countdown.PrepSeconds < 0 {
		return errors.New("countdown.prep_seconds must be >= 0")
	}
	return nil
}

// Click returns the click voice described by the [audio] section.
func (c AudioConfig) Click() audio.ClickParams {
	p := audio.DefaultClick()
	p.SampleRate = c.SampleRate
	p.FrequencyHz = c.FrequencyHz
	p.PeakGain = c.PeakGain
	p.Attack = millis(c.AttackMS)
	p.Decay = millis(c.DecayMS)
	p.Stop = millis(c.StopMS)
	return p
}

// Output returns the device the engine writes PCM into, or nil when audio
// is disabled. An aplay device with no arguments gets raw mono S16_LE at
// the configured rate.
func (c AudioConfig) Output() audio.Output {
	if !c.Enabled || c.DeviceCommand == "" {
		return nil
	}
	args := c.DeviceArgs
	if len(args) == 0 && c.DeviceCommand == "aplay" {
		args = audio.AplayArgs(c.SampleRate, c.Frame())
	}
	return audio.CommandOutput(c.DeviceCommand, args...)
}

// Frame returns the audio render period.
func (c AudioConfig) Frame() time.Duration {
	return time.Duration(c.FrameMS) * time.Millisecond
}

// PollInterval returns the scheduler wake-up period.
func (c MetronomeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Lookahead returns the scheduling window.
func (c MetronomeConfig) Lookahead() time.Duration {
	return time.Duration(c.LookaheadMS) * time.Millisecond
}

// StartOffset returns the delay before the first click of a session.
func (c MetronomeConfig) StartOffset() time.Duration {
	return time.Duration(c.StartOffsetMS) * time.Millisecond
}

// FrameInterval returns the overlay redraw period.
func (c CountdownConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
