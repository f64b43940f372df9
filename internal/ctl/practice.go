package ctl

import (
	"fmt"
	"strings"

	"github.com/large-farva/cadence/internal/countdown"
	"github.com/large-farva/cadence/internal/practice"
)

// PracticeOptions controls the practice-start command.
type PracticeOptions struct {
	// Path is a plan file on the daemon's host. Empty runs the daemon's
	// configured plan.
	Path string
	JSON bool
}

// PracticeStart asks the daemon to run a plan.
func PracticeStart(baseURL string, opts PracticeOptions) error {
	var body any
	if opts.Path != "" {
		body = map[string]string{"path": opts.Path}
	}
	return control(baseURL, "/api/practice/start", body, "STARTED", opts.JSON)
}

// PracticeStop cancels the running plan.
func PracticeStop(baseURL string, jsonOutput bool) error {
	return control(baseURL, "/api/practice/stop", nil, "STOPPED", jsonOutput)
}

// PracticeSkip ends the current countdown or work block early.
func PracticeSkip(baseURL string, jsonOutput bool) error {
	return control(baseURL, "/api/practice/skip", nil, "SKIPPED", jsonOutput)
}

// PracticeNext starts the next exercise when autoplay is off.
func PracticeNext(baseURL string, jsonOutput bool) error {
	return control(baseURL, "/api/practice/next", nil, "NEXT", jsonOutput)
}

// PracticeStatus shows the runner position and the current overlay.
func PracticeStatus(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Running   bool                 `json:"running"`
		Current   practice.Update      `json:"current"`
		Countdown countdown.Directives `json:"countdown"`
	}
	if err := getJSON(baseURL, "/api/practice", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  PRACTICE"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	if !resp.Running {
		fmt.Printf("  %s\n\n", colorize(dim, "no plan running"))
		return nil
	}
	ex := resp.Current.Exercise
	fmt.Printf("  %-12s %s\n", colorize(dim, "Plan:"), resp.Current.Plan)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Phase:"), describePhase(resp.Current))
	fmt.Printf("  %-12s %d bpm  %s  %d prep measures\n", colorize(dim, "Exercise:"), ex.BPM, ex.Style, ex.PrepMeasures)
	if line := describeOverlay(resp.Countdown); line != "" {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Overlay:"), line)
	}
	fmt.Println()
	return nil
}

// describeOverlay renders countdown directives on one line.
func describeOverlay(d countdown.Directives) string {
	if !d.Visible {
		return ""
	}
	var parts []string
	if d.Message != "" {
		parts = append(parts, fmt.Sprintf("%s %ds", d.Message, d.Seconds))
	}
	if d.ShowBanner {
		parts = append(parts, colorize(bold, strings.ToUpper(d.BannerText)))
	}
	if d.ShowProgress {
		parts = append(parts, fmt.Sprintf("[%s] %3.0f%%", progressBar(int(d.ProgressPercent), 20), d.ProgressPercent))
	}
	if d.HasCount {
		c := fmt.Sprintf("%d", d.Count)
		if d.Accent {
			c = colorize(red, c+"!")
		} else {
			c = colorize(bold, c)
		}
		parts = append(parts, c)
	}
	if d.Forced {
		parts = append(parts, colorize(dim, "(short break)"))
	}
	return strings.Join(parts, "  ")
}
