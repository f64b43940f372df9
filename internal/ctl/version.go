package ctl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/large-farva/cadence/internal/beat"
)

// Build-time variables set via -ldflags.
var (
	Version   = "dev"
	GoVersion = "unknown"
)

// DaemonVersion is the body of GET /api/version.
type DaemonVersion struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	BuiltAt   string `json:"built_at"`
	Audio     struct {
		Device     string `json:"device"`
		SampleRate int    `json:"sample_rate"`
		State      string `json:"state"`
	} `json:"audio"`
	Styles []beat.Style `json:"styles"`
	MaxBPM int          `json:"max_bpm"`
}

// VersionInfo prints the CLI build next to the daemon's build, audio path
// and tempo range.
func VersionInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var daemon DaemonVersion
	daemonErr := getJSON(baseURL, "/api/version", &daemon)

	if jsonOutput {
		resp := map[string]any{
			"cli": map[string]any{
				"version":    Version,
				"go_version": GoVersion,
			},
		}
		if daemonErr == nil {
			resp["daemon"] = daemon
		} else {
			resp["daemon_error"] = daemonErr.Error()
		}
		return printJSON(resp)
	}

	renderVersion(os.Stdout, daemon, daemonErr)
	return nil
}

func renderVersion(w io.Writer, d DaemonVersion, daemonErr error) {
	row := func(label, value string) {
		fmt.Fprintf(w, "  %-10s %s\n", colorize(dim, label), value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, header("  CADENCE"))
	fmt.Fprintln(w, colorize(dim, "  "+strings.Repeat("─", 38)))
	row("cadencectl", Version+" ("+GoVersion+")")
	if daemonErr != nil {
		row("cadenced", colorize(red, "unreachable: "+daemonErr.Error()))
		fmt.Fprintln(w)
		return
	}
	row("cadenced", d.Version+" ("+d.GoVersion+")")
	if d.BuiltAt != "" {
		row("built", d.BuiltAt)
	}

	audio := "off"
	if d.Audio.Device != "" {
		audio = fmt.Sprintf("%s @ %d Hz", d.Audio.Device, d.Audio.SampleRate)
	}
	row("audio", audio+"  "+colorize(audioColor(d.Audio.State), d.Audio.State))

	styles := make([]string, len(d.Styles))
	for i, s := range d.Styles {
		styles[i] = s.String()
	}
	if d.MaxBPM > 0 {
		row("tempo", fmt.Sprintf("1-%d bpm (%s to %s)", d.MaxBPM, beat.TempoMarking(1), beat.TempoMarking(d.MaxBPM)))
	}
	if len(styles) > 0 {
		row("styles", strings.Join(styles, "  "))
	}
	fmt.Fprintln(w)
}
