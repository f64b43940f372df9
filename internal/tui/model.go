// Package tui is the terminal practice overlay: a Bubble Tea program that
// shows the current exercise, the countdown banner, the numeric lead-in
// count or the rest progress bar, and a row of metronome lights.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/large-farva/cadence/internal/beat"
	"github.com/large-farva/cadence/internal/countdown"
	"github.com/large-farva/cadence/internal/metronome"
	"github.com/large-farva/cadence/internal/practice"
)

// Messages delivered into the program from the engine goroutines.
type (
	frameMsg countdown.Directives
	beatMsg  metronome.Snapshot
	phaseMsg practice.Update
	doneMsg  struct{ err error }
)

var (
	colAccent = lipgloss.Color("#BF616A")
	colBeat   = lipgloss.Color("#A3BE8C")
	colDim    = lipgloss.Color("#4C566A")
	colTitle  = lipgloss.Color("#88C0D0")
	colBanner = lipgloss.Color("#EBCB8B")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colTitle)
	dimStyle    = lipgloss.NewStyle().Foreground(colDim)
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(colBanner).Padding(1, 2)
	countStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4)
	accentStyle = countStyle.Foreground(colAccent)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colDim).Padding(0, 1)
	litStyle    = lipgloss.NewStyle().Foreground(colBeat)
	litAccent   = lipgloss.NewStyle().Foreground(colAccent)
)

// commander is the runner's command input.
type commander interface {
	Send(cmd practice.Command) bool
}

type model struct {
	title string
	cmds  commander
	quit  func()

	update practice.Update
	frame  countdown.Directives
	snap   metronome.Snapshot
	bar    progress.Model
	width  int

	done bool
	err  error
}

func newModel(title string, cmds commander, quit func()) model {
	return model{
		title:  title,
		cmds:   cmds,
		quit:   quit,
		update: practice.Update{Stage: practice.StageIdle},
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = clampWidth(msg.Width - 8)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.quit != nil {
				m.quit()
			}
			return m, tea.Quit
		case "s":
			if m.cmds != nil {
				m.cmds.Send(practice.CommandSkip)
			}
		case "n", "enter", " ":
			if m.cmds != nil {
				m.cmds.Send(practice.CommandNext)
			}
		}
	case frameMsg:
		m.frame = countdown.Directives(msg)
	case beatMsg:
		m.snap = metronome.Snapshot(msg)
	case phaseMsg:
		m.update = practice.Update(msg)
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.exerciseLine())
	b.WriteString("\n\n")

	if o := m.overlayView(); o != "" {
		b.WriteString(panelStyle.Render(o))
		b.WriteString("\n\n")
	}

	b.WriteString(lightsRow(m.snap))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(dimStyle.Render("stopped: " + m.err.Error()))
	case m.done:
		b.WriteString(dimStyle.Render("plan finished"))
	case m.update.Stage == practice.StageWaiting:
		b.WriteString(dimStyle.Render("n next • s skip • q quit"))
	default:
		b.WriteString(dimStyle.Render("s skip • q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m model) exerciseLine() string {
	u := m.update
	if u.Total == 0 {
		return dimStyle.Render("starting...")
	}
	ex := u.Exercise
	line := fmt.Sprintf("%d/%d  %s  %d bpm %s  %s",
		u.Index+1, u.Total, ex.Title, ex.BPM, ex.Style, beat.TempoMarking(ex.BPM))
	stage := string(u.Stage)
	if u.Duration > 0 {
		stage += fmt.Sprintf(" %ds", u.Remaining)
	}
	return line + "\n" + dimStyle.Render(stage)
}

func (m model) overlayView() string {
	d := m.frame
	if !d.Visible {
		return ""
	}
	var parts []string
	switch {
	case d.ShowBanner:
		parts = append(parts, bannerStyle.Render(strings.ToUpper(d.BannerText)))
	case d.HasCount && d.Accent:
		parts = append(parts, accentStyle.Render(fmt.Sprintf("%d", d.Count)))
	case d.HasCount:
		parts = append(parts, countStyle.Render(fmt.Sprintf("%d", d.Count)))
	}
	if d.ShowProgress {
		parts = append(parts, m.bar.ViewAs(d.ProgressPercent/100))
	}
	if d.Message != "" {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%s %ds", d.Message, d.Seconds)))
	}
	return lipgloss.JoinVertical(lipgloss.Center, parts...)
}

// lightsRow draws one lamp per beat of the measure with lamps 1 through
// the current beat lit.
func lightsRow(s metronome.Snapshot) string {
	n := s.Style.BeatsPerMeasure()
	lit := 0
	if s.Playing && s.Tick > 0 {
		lit = s.BeatInMeasure
	}
	lamps := make([]string, n)
	for i := 1; i <= n; i++ {
		switch {
		case i > lit:
			lamps[i-1] = dimStyle.Render("○")
		case i == 1 && s.Style.Accented():
			lamps[i-1] = litAccent.Render("●")
		default:
			lamps[i-1] = litStyle.Render("●")
		}
	}
	return strings.Join(lamps, " ")
}

func clampWidth(w int) int {
	switch {
	case w < 10:
		return 10
	case w > 60:
		return 60
	default:
		return w
	}
}
