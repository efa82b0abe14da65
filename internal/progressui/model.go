// Package progressui shows export progress in a Bubble Tea program.
package progressui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxBarWidth = 60

type state int

const (
	stateRunning state = iota
	stateDone
	stateFailed
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// ProgressMsg carries a progress fraction in [0, 1].
type ProgressMsg float64

// DoneMsg reports a saved export.
type DoneMsg struct {
	Location string
	Learners int
}

// ErrMsg reports a failed export.
type ErrMsg struct {
	Err error
}

// Job runs the export, reporting progress through report.
type Job func(ctx context.Context, report func(float64)) (DoneMsg, error)

// Model implements the export progress UI.
type Model struct {
	bar     progress.Model
	percent float64
	state   state
	done    DoneMsg
	err     error
	cancel  context.CancelFunc
	width   int
}

// NewModel constructs a progress model. cancel is called when the user
// interrupts a running export.
func NewModel(cancel context.CancelFunc) *Model {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = maxBarWidth
	return &Model{bar: bar, cancel: cancel}
}

// Percent returns the fraction currently shown.
func (m *Model) Percent() float64 {
	return m.percent
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(maxBarWidth, msg.Width-4))
		return m, nil
	case ProgressMsg:
		if m.state == stateRunning {
			m.percent = min(max(float64(msg), 0), 1)
		}
		return m, nil
	case DoneMsg:
		m.state = stateDone
		m.done = msg
		m.percent = 1
		return m, nil
	case ErrMsg:
		m.state = stateFailed
		m.err = msg.Err
		m.percent = 0
		if errors.Is(msg.Err, context.Canceled) {
			return m, tea.Quit
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.state == stateRunning && m.cancel != nil {
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		}
		if m.state == stateRunning {
			return m, nil
		}
		switch msg.String() {
		case "enter", "esc", "q", " ":
			m.dismiss()
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var lines []string
	switch m.state {
	case stateRunning:
		lines = append(lines,
			titleStyle.Render("Exporting your CSV data..."),
			m.bar.ViewAs(m.percent),
			helpStyle.Render("ctrl+c: cancel"),
		)
	case stateDone:
		lines = append(lines,
			successStyle.Render("Export successful!"),
			m.bar.ViewAs(m.percent),
			fmt.Sprintf("%d learners saved to %s", m.done.Learners, m.done.Location),
			helpStyle.Render("enter: dismiss"),
		)
	case stateFailed:
		lines = append(lines,
			errorStyle.Render("Export failed: "+m.err.Error()),
			helpStyle.Render("enter: dismiss"),
		)
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *Model) dismiss() {
	m.percent = 0
}

// Run shows the progress UI on out while job runs and returns the job's
// outcome once both have finished.
func Run(ctx context.Context, out io.Writer, job Job) (DoneMsg, error) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(cancel)
	p := tea.NewProgram(m, tea.WithOutput(out), tea.WithContext(ctx))

	type outcome struct {
		done DoneMsg
		err  error
	}
	finished := make(chan outcome, 1)
	go func() {
		done, err := job(jobCtx, func(v float64) { p.Send(ProgressMsg(v)) })
		if err != nil {
			p.Send(ErrMsg{Err: err})
		} else {
			p.Send(done)
		}
		finished <- outcome{done: done, err: err}
	}()

	_, runErr := p.Run()
	// The job keeps running if the program exits early; stop it and wait.
	cancel()
	res := <-finished
	if res.err != nil {
		return res.done, res.err
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return res.done, runErr
	}
	return res.done, nil
}
