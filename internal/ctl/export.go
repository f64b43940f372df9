package ctl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/large-farva/cadence/internal/audio"
	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/export"
)

// ExportOptions controls the offline export command. It does not talk to
// the daemon.
type ExportOptions struct {
	Format string // "wav" or "midi"; empty picks from the output extension
	BPM    int
	Style  string
	Beats  int
	Output string
	Click  audio.ClickParams
	JSON   bool
}

// Export renders a click track to a file.
func Export(opts ExportOptions) error {
	style, err := beat.ParseStyle(opts.Style)
	if err != nil {
		return err
	}
	if opts.Output == "" {
		return fmt.Errorf("output file required")
	}
	format := exportFormat(opts.Format, opts.Output)
	if format == "" {
		return fmt.Errorf("unknown export format %q (want wav or midi)", opts.Format)
	}
	if opts.Click.SampleRate == 0 {
		opts.Click = audio.DefaultClick()
	}

	req := export.Request{BPM: opts.BPM, Style: style, Beats: opts.Beats}

	f, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	n, err := writeExport(f, format, req, opts.Click)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(opts.Output)
		return err
	}

	if opts.JSON {
		return printJSON(map[string]any{
			"ok":     true,
			"format": format,
			"output": opts.Output,
			"bytes":  n,
			"bpm":    req.BPM,
			"style":  style,
			"beats":  req.Beats,
		})
	}

	fmt.Printf("\n  %s  %d beats at %d bpm %s -> %s (%s)\n\n",
		colorize(green, "EXPORTED"),
		req.Beats, req.BPM, style,
		opts.Output, formatBytes(n),
	)
	return nil
}

func exportFormat(format, output string) string {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(output), ".")
	}
	switch strings.ToLower(format) {
	case "wav":
		return "wav"
	case "mid", "midi", "smf":
		return "midi"
	default:
		return ""
	}
}

func writeExport(w io.Writer, format string, req export.Request, click audio.ClickParams) (int64, error) {
	cw := &countingWriter{w: w}
	var err error
	if format == "wav" {
		err = export.WAV(cw, req, click)
	} else {
		err = export.MIDI(cw, req)
	}
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
