// Package tui renders pipeline progress in the terminal: a live bubbletea
// view for interactive sessions and static lipgloss summaries for the
// final report.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/pipeline"
)

// ErrAborted is returned by RunProgress when the user quits the view before
// the work finished.
var ErrAborted = errors.New("aborted by user")

// PipelineEventMsg carries one pipeline.Event into the program.
type PipelineEventMsg struct {
	Event pipeline.Event
}

// DoneMsg reports that the work behind the view has returned.
type DoneMsg struct {
	Err error
}

// KeyMap holds the bindings active in the progress view.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q/ctrl+c", "abort"),
		),
	}
}

type phaseState int

const (
	phasePending phaseState = iota
	phaseRunning
	phaseDone
)

// ProgressModel is the bubbletea model of the progress view.
type ProgressModel struct {
	theme   Theme
	keys    KeyMap
	spinner spinner.Model
	cancel  context.CancelFunc

	state      map[pipeline.Phase]phaseState
	detail     map[pipeline.Phase]string
	attempt    string
	advisories []string

	done    bool
	aborted bool
	err     error
}

// NewProgressModel returns a model with every phase pending. cancel is
// called when the user aborts; it may be nil.
func NewProgressModel(cancel context.CancelFunc) ProgressModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	theme := DefaultTheme()
	sp.Style = theme.Attempt
	return ProgressModel{
		theme:   theme,
		keys:    DefaultKeyMap(),
		spinner: sp,
		cancel:  cancel,
		state:   make(map[pipeline.Phase]phaseState, len(pipeline.Phases)),
		detail:  make(map[pipeline.Phase]string, len(pipeline.Phases)),
	}
}

// Init starts the spinner.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update applies pipeline events, spinner ticks and key presses.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PipelineEventMsg:
		m.apply(msg.Event)
		return m, nil
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.aborted = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *ProgressModel) apply(ev pipeline.Event) {
	switch ev.Type {
	case pipeline.EventPhaseStarted:
		m.state[ev.Phase] = phaseRunning
	case pipeline.EventPhaseCompleted:
		m.state[ev.Phase] = phaseDone
		m.detail[ev.Phase] = ev.Message
	case pipeline.EventAttempt:
		m.attempt = ev.Message
	case pipeline.EventAdvisory:
		m.advisories = append(m.advisories, ev.Message)
	}
}

// Done reports whether the work finished.
func (m ProgressModel) Done() bool { return m.done }

// Aborted reports whether the user quit early.
func (m ProgressModel) Aborted() bool { return m.aborted }

// Err is the error the work returned.
func (m ProgressModel) Err() error { return m.err }

// View renders the phase checklist.
func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(m.theme.Title.Render("storytotest"))
	b.WriteString("\n")

	for _, phase := range pipeline.Phases {
		label := string(phase)
		switch m.state[phase] {
		case phaseRunning:
			line := m.spinner.View() + " " + m.theme.PhaseRunning.Render(label)
			if phase == pipeline.PhaseGenerate && m.attempt != "" {
				line += "  " + m.theme.Attempt.Render(m.attempt)
			}
			b.WriteString(line)
		case phaseDone:
			b.WriteString(m.theme.PhaseDone.Render(IconDone + " " + label))
			if d := m.detail[phase]; d != "" {
				b.WriteString("  " + m.theme.PhaseDetail.Render(d))
			}
		default:
			b.WriteString(m.theme.PhasePending.Render(IconPending + " " + label))
		}
		b.WriteString("\n")
	}

	for _, a := range m.advisories {
		b.WriteString(m.theme.Advisory.Render(IconWarning + " " + a))
		b.WriteString("\n")
	}

	if !m.done {
		b.WriteString("\n")
		b.WriteString(m.theme.Help.Render(fmt.Sprintf("%s %s", m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc)))
		b.WriteString("\n")
	}
	return b.String()
}
