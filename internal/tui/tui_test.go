package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/pipeline"
)

func update(t *testing.T, m ProgressModel, msg tea.Msg) (ProgressModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(ProgressModel)
	require.True(t, ok)
	return pm, cmd
}

func phaseEvent(typ string, phase pipeline.Phase, msg string) PipelineEventMsg {
	return PipelineEventMsg{Event: pipeline.Event{Type: typ, Phase: phase, Message: msg}}
}

func TestProgressModel_Phases(t *testing.T) {
	t.Parallel()
	m := NewProgressModel(nil)
	assert.NotNil(t, m.Init())

	view := m.View()
	for _, p := range pipeline.Phases {
		assert.Contains(t, view, IconPending+" "+string(p))
	}

	m, _ = update(t, m, phaseEvent(pipeline.EventPhaseStarted, pipeline.PhaseDetect, "detecting framework"))
	m, _ = update(t, m, phaseEvent(pipeline.EventPhaseCompleted, pipeline.PhaseDetect, "framework: vitest"))
	m, _ = update(t, m, phaseEvent(pipeline.EventPhaseStarted, pipeline.PhaseGenerate, "generating"))
	m, _ = update(t, m, PipelineEventMsg{Event: pipeline.Event{Type: pipeline.EventAttempt, Message: "Attempt 2/3 (fixing errors...)"}})
	m, _ = update(t, m, PipelineEventMsg{Event: pipeline.Event{Type: pipeline.EventAdvisory, Message: pipeline.AdvisoryNoMatches}})

	view = m.View()
	assert.Contains(t, view, IconDone+" detecting framework")
	assert.Contains(t, view, "framework: vitest")
	assert.Contains(t, view, "Attempt 2/3 (fixing errors...)")
	assert.Contains(t, view, IconWarning+" "+pipeline.AdvisoryNoMatches)
	assert.Contains(t, view, IconPending+" indexing")
	assert.Contains(t, view, "abort")
}

func TestProgressModel_DoneQuits(t *testing.T) {
	t.Parallel()
	cause := errors.New("pipeline: indexing: boom")
	m, cmd := update(t, NewProgressModel(nil), DoneMsg{Err: cause})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Done())
	assert.False(t, m.Aborted())
	assert.ErrorIs(t, m.Err(), cause)
	assert.NotContains(t, m.View(), "abort")
}

func TestProgressModel_QuitCancels(t *testing.T) {
	t.Parallel()
	cancelled := false
	m := NewProgressModel(func() { cancelled = true })

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Nil(t, cmd)
	assert.False(t, cancelled)

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, cancelled)
	assert.True(t, m.Aborted())
}

func TestRunProgress(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	cause := errors.New("generation failed")

	err := RunProgress(context.Background(), func(_ context.Context, events chan<- pipeline.Event) error {
		events <- pipeline.Event{Type: pipeline.EventPhaseStarted, Phase: pipeline.PhaseIndex}
		events <- pipeline.Event{Type: pipeline.EventPhaseCompleted, Phase: pipeline.PhaseIndex, Message: "3 interfaces"}
		return cause
	}, tea.WithInput(nil), tea.WithOutput(&out), tea.WithoutRenderer())

	assert.ErrorIs(t, err, cause)
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()
	theme := DefaultTheme()

	passed := theme.RenderSummary(Summary{
		Path:              "__tests__/CartItem.test.tsx",
		Framework:         "vitest",
		Attempts:          2,
		MaxAttempts:       3,
		Passed:            true,
		IndexedInterfaces: 3,
		IndexedClasses:    1,
		MatchedInterfaces: 2,
		MatchedClasses:    1,
	})
	assert.Contains(t, passed, "Tests passed after 2 attempt(s)")
	assert.Contains(t, passed, "__tests__/CartItem.test.tsx")
	assert.Contains(t, passed, "3 interfaces, 1 classes")
	assert.Contains(t, passed, "2/3")
	assert.NotContains(t, passed, "Branch")

	failed := theme.RenderSummary(Summary{
		Attempts:   3,
		LastError:  "expected 1\nreceived 2",
		Advisories: []string{pipeline.AdvisoryNoFramework},
	})
	assert.Contains(t, failed, "did not pass after 3 attempt(s)")
	assert.Contains(t, failed, "  expected 1\n  received 2")
	assert.Contains(t, failed, pipeline.AdvisoryNoFramework)
}

func TestRenderCodeAndPlan(t *testing.T) {
	t.Parallel()
	theme := DefaultTheme()

	code := theme.RenderCode("Cart.test.tsx", "it('adds', () => {})\n")
	assert.Contains(t, code, "Cart.test.tsx")
	assert.Contains(t, code, "it('adds', () => {})")

	plan := theme.RenderPlan("Dry run", []string{"index", "generate"})
	assert.True(t, strings.Contains(plan, " 1. index") && strings.Contains(plan, " 2. generate"))
}

func TestIndent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "  a\n\n  b", indent("a\n\nb", 2))
}
