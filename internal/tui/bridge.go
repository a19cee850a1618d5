package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/pipeline"
)

// eventBuffer sizes the channel handed to the work function.
const eventBuffer = 64

// Work is the job displayed by RunProgress. It reports progress on events
// and must not close the channel.
type Work func(ctx context.Context, events chan<- pipeline.Event) error

// RunProgress runs work while the progress view renders its events. It
// returns work's error, or ErrAborted when the user quit first.
func RunProgress(ctx context.Context, work Work, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(cancel), opts...)
	events := make(chan pipeline.Event, eventBuffer)
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		for ev := range events {
			SendPipelineEvent(p, ev)
		}
	}()
	go func() {
		err := work(ctx, events)
		close(events)
		<-drained
		p.Send(DoneMsg{Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: running progress view: %w", err)
	}
	m, ok := final.(ProgressModel)
	if !ok {
		return nil
	}
	if m.Aborted() {
		return ErrAborted
	}
	return m.Err()
}

// SendPipelineEvent forwards ev to the running program p.
func SendPipelineEvent(p *tea.Program, ev pipeline.Event) {
	p.Send(PipelineEventMsg{Event: ev})
}
