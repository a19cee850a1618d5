package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
)

const defaultMaxIterations = 100

// ErrWorkflowFailed is returned when a step moves the run to StepFailed
// without reporting an error of its own.
var ErrWorkflowFailed = errors.New("workflow reached terminal failure step")

// StepError reports the step whose failure ended a run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %q: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Engine executes Definitions against a Registry.
type Engine struct {
	registry      *Registry
	events        chan<- Event
	dryRun        bool
	maxIterations int
	logger        *log.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDryRun makes the engine call DryRun instead of Execute and follow the
// success transition of every step.
func WithDryRun(dryRun bool) EngineOption {
	return func(e *Engine) { e.dryRun = dryRun }
}

// WithEventChannel sets the channel that receives lifecycle events. Sends
// never block; events are dropped when the channel is full.
func WithEventChannel(ch chan<- Event) EngineOption {
	return func(e *Engine) { e.events = ch }
}

// WithLogger replaces the engine logger.
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithMaxIterations caps the number of steps a single Run may execute.
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) { e.maxIterations = n }
}

// NewEngine returns an Engine for registry.
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:      registry,
		maxIterations: defaultMaxIterations,
		logger:        logging.New(logging.ComponentWorkflow),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives def from state, or from a fresh State at def.InitialStep when
// state is nil. It returns the final state together with a *StepError when
// the run ends in StepFailed.
func (e *Engine) Run(ctx context.Context, def *Definition, state *State) (*State, error) {
	if state == nil {
		state = NewState(uuid.NewString(), def.Name, def.InitialStep)
	}
	if state.ID == "" {
		state.ID = uuid.NewString()
	}

	e.emit(Event{
		Type:       WEWorkflowStarted,
		WorkflowID: state.ID,
		Step:       state.CurrentStep,
		Message:    fmt.Sprintf("workflow %q started", def.Name),
	})
	e.logger.Debug("workflow started", "workflow", def.Name, "id", state.ID, "step", state.CurrentStep)

	stepDefs := make(map[string]*StepDefinition, len(def.Steps))
	for i := range def.Steps {
		stepDefs[def.Steps[i].Name] = &def.Steps[i]
	}

	for iteration := 0; iteration < e.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return state, fmt.Errorf("engine: context cancelled before step %q: %w", state.CurrentStep, err)
		}

		current := state.CurrentStep
		stepDef, ok := stepDefs[current]
		if !ok {
			return state, fmt.Errorf("engine: step %q not found in workflow definition", current)
		}
		handler, err := e.registry.Get(current)
		if err != nil {
			return state, fmt.Errorf("engine: %w", err)
		}

		e.emit(Event{Type: WEStepStarted, WorkflowID: state.ID, Step: current, Message: fmt.Sprintf("step %q started", current)})

		startedAt := time.Now()
		var (
			event   string
			stepErr error
		)
		if e.dryRun {
			description := handler.DryRun(state)
			event = EventSuccess
			e.emit(Event{
				Type:       WEStepSkipped,
				WorkflowID: state.ID,
				Step:       current,
				Event:      event,
				Message:    description,
			})
			e.logger.Debug("step dry-run", "step", current, "description", description)
		} else {
			event, stepErr = e.safeExecute(ctx, handler, state, current)
		}

		record := StepRecord{Step: current, Event: event, StartedAt: startedAt, Duration: time.Since(startedAt)}
		if stepErr != nil {
			record.Error = stepErr.Error()
			record.Event = EventFailure
			event = EventFailure
		}
		state.AddStepRecord(record)

		if stepErr != nil {
			e.emit(Event{
				Type:       WEStepFailed,
				WorkflowID: state.ID,
				Step:       current,
				Event:      EventFailure,
				Message:    fmt.Sprintf("step %q failed", current),
				Error:      stepErr.Error(),
			})
			e.logger.Debug("step failed", "step", current, "error", stepErr)
		} else {
			e.emit(Event{
				Type:       WEStepCompleted,
				WorkflowID: state.ID,
				Step:       current,
				Event:      event,
				Message:    fmt.Sprintf("step %q completed with event %q", current, event),
			})
			e.logger.Debug("step completed", "step", current, "event", event, "duration", record.Duration)
		}

		next, ok := stepDef.Transitions[event]
		if !ok {
			if stepErr != nil {
				return state, &StepError{Step: current, Err: stepErr}
			}
			return state, fmt.Errorf("engine: step %q: no transition for event %q", current, event)
		}
		state.CurrentStep = next

		switch next {
		case StepDone:
			e.emit(Event{
				Type:       WEWorkflowCompleted,
				WorkflowID: state.ID,
				Step:       StepDone,
				Message:    fmt.Sprintf("workflow %q completed", def.Name),
			})
			e.logger.Debug("workflow completed", "workflow", def.Name, "id", state.ID)
			return state, nil
		case StepFailed:
			cause := stepErr
			if cause == nil {
				cause = ErrWorkflowFailed
			}
			e.emit(Event{
				Type:       WEWorkflowFailed,
				WorkflowID: state.ID,
				Step:       StepFailed,
				Message:    fmt.Sprintf("workflow %q failed at step %q", def.Name, current),
				Error:      cause.Error(),
			})
			e.logger.Debug("workflow failed", "workflow", def.Name, "id", state.ID, "step", current)
			return state, &StepError{Step: current, Err: cause}
		}
	}

	return state, fmt.Errorf("engine: workflow %q exceeded maximum iterations (%d)", def.Name, e.maxIterations)
}

// Validate reports structural problems in def: a missing initial step,
// steps without handlers and transitions to unknown steps.
func (e *Engine) Validate(def *Definition) []error {
	var errs []error

	valid := make(map[string]struct{}, len(def.Steps)+2)
	for _, sd := range def.Steps {
		valid[sd.Name] = struct{}{}
	}
	valid[StepDone] = struct{}{}
	valid[StepFailed] = struct{}{}

	if _, ok := valid[def.InitialStep]; !ok || def.InitialStep == StepDone || def.InitialStep == StepFailed {
		errs = append(errs, fmt.Errorf("engine: initial step %q not found in workflow definition", def.InitialStep))
	}
	for _, sd := range def.Steps {
		if !e.registry.Has(sd.Name) {
			errs = append(errs, fmt.Errorf("engine: step %q has no registered handler", sd.Name))
		}
		for event, target := range sd.Transitions {
			if _, ok := valid[target]; !ok {
				errs = append(errs, fmt.Errorf("engine: step %q transition %q references unknown step %q", sd.Name, event, target))
			}
		}
	}
	return errs
}

// safeExecute converts a panicking handler into a step error.
func (e *Engine) safeExecute(ctx context.Context, handler StepHandler, state *State, step string) (event string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: step %q panicked: %v", step, r)
		}
	}()
	return handler.Execute(ctx, state)
}

// emit stamps ev and sends it without blocking.
func (e *Engine) emit(ev Event) {
	if e.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case e.events <- ev:
	default:
	}
}
