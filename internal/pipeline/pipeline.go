// Package pipeline runs the story-to-test stages for one invocation:
// framework detection, symbol indexing, story parsing, matching, import
// resolution and the validation loop.
//
// A Pipeline holds no state between invocations. Every Run builds its own
// index, parse and match result and hands them back to the caller.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/framework"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/imports"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/match"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/metrics"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/story"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/symbols"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/validate"
)

// DefaultTestDir is the generated-test directory relative to the workspace.
const DefaultTestDir = "__tests__"

// Phase names one pipeline stage. The value doubles as its progress label.
type Phase string

const (
	PhaseDetect   Phase = "detecting framework"
	PhaseIndex    Phase = "indexing"
	PhaseParse    Phase = "parsing"
	PhaseMatch    Phase = "matching"
	PhaseImports  Phase = "resolving imports"
	PhaseGenerate Phase = "generating"
)

// Phases lists every stage in execution order.
var Phases = []Phase{PhaseDetect, PhaseIndex, PhaseParse, PhaseMatch, PhaseImports, PhaseGenerate}

// Event types emitted by Pipeline.
const (
	EventPhaseStarted   = "phase_started"
	EventPhaseCompleted = "phase_completed"
	EventAttempt        = "attempt"
	EventAdvisory       = "advisory"
)

// Advisory messages. They are reported but never fail a run.
const (
	AdvisoryNoMatches   = "No matching interfaces or classes found for this story"
	AdvisoryNoFramework = "Test framework could not be detected"
)

// Event reports pipeline progress.
type Event struct {
	Type        string
	Phase       Phase
	Message     string
	Attempt     int
	MaxAttempts int
	Timestamp   time.Time
}

// Config is the per-invocation input of a Pipeline.
type Config struct {
	// Workspace is the root of the TypeScript project.
	Workspace string
	// TestDir is where tests are written. Relative values are joined to
	// Workspace; empty means DefaultTestDir.
	TestDir     string
	Index       symbols.Options
	Matcher     match.Matcher
	Model       string
	MaxAttempts int
	// Extra is appended to every generation request as additional guidance.
	Extra string
}

// Plan is everything the pipeline computes before calling the model.
type Plan struct {
	Story      story.Parsed
	Framework  framework.Framework
	Index      *symbols.Index
	Match      match.Result
	Imports    []string
	TestDir    string
	Workspace  string
	Advisories []string
}

// Result is the outcome of a full run.
type Result struct {
	*Plan
	Outcome validate.Outcome
}

// Pipeline wires the stages together for one invocation.
type Pipeline struct {
	cfg     Config
	gen     validate.Generator
	exec    validate.Executor
	events  chan<- Event
	metrics *metrics.Metrics
	logger  *log.Logger

	build  func(ctx context.Context, root string, opts symbols.Options) (*symbols.Index, error)
	detect func(workspace string) framework.Framework
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEvents sets the channel that receives progress events.
func WithEvents(ch chan<- Event) Option {
	return func(p *Pipeline) {
		p.events = ch
	}
}

// WithMetrics records validation metrics for the run.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithLogger replaces the component logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New returns a Pipeline for cfg. gen and exec back the validation loop.
func New(cfg Config, gen validate.Generator, exec validate.Executor, opts ...Option) *Pipeline {
	if cfg.Matcher == nil {
		cfg.Matcher = match.SubstringMatcher{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = validate.DefaultMaxAttempts
	}
	p := &Pipeline{
		cfg:    cfg,
		gen:    gen,
		exec:   exec,
		logger: logging.New(logging.ComponentPipeline),
		build:  symbols.Build,
		detect: framework.Detect,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TestDir returns the absolute directory tests are written to.
func (p *Pipeline) TestDir() string {
	return resolveTestDir(p.cfg.Workspace, p.cfg.TestDir)
}

func resolveTestDir(workspace, testDir string) string {
	if testDir == "" {
		testDir = DefaultTestDir
	}
	if filepath.IsAbs(testDir) {
		return filepath.Clean(testDir)
	}
	return filepath.Join(workspace, testDir)
}

// Prepare runs every stage up to and including import resolution. It never
// calls the model, so it backs dry runs as well as Run.
func (p *Pipeline) Prepare(ctx context.Context, storyText string) (*Plan, error) {
	workspace, err := filepath.Abs(p.cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolving workspace: %w", err)
	}
	plan := &Plan{
		Workspace: workspace,
		TestDir:   resolveTestDir(workspace, p.cfg.TestDir),
	}

	p.begin(PhaseDetect)
	plan.Framework = p.detect(workspace)
	if plan.Framework == framework.Unknown {
		p.advise(plan, AdvisoryNoFramework)
	}
	p.end(PhaseDetect, fmt.Sprintf("framework: %s", plan.Framework))

	p.begin(PhaseIndex)
	idx, err := p.build(ctx, workspace, p.cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", PhaseIndex, err)
	}
	plan.Index = idx
	p.end(PhaseIndex, fmt.Sprintf("%d interfaces, %d classes in %d files", len(idx.Interfaces), len(idx.Classes), idx.Files))

	p.begin(PhaseParse)
	plan.Story = story.Parse(storyText)
	p.end(PhaseParse, fmt.Sprintf("%d entities, %d actions", plan.Story.Entities.Len(), plan.Story.Actions.Len()))

	p.begin(PhaseMatch)
	plan.Match = p.cfg.Matcher.Match(idx, plan.Story.Entities)
	if plan.Match.Empty() {
		p.advise(plan, AdvisoryNoMatches)
	}
	p.end(PhaseMatch, fmt.Sprintf("%d interfaces, %d classes", len(plan.Match.Interfaces), len(plan.Match.Classes)))

	p.begin(PhaseImports)
	plan.Imports = imports.ResolveAll(plan.Match.Interfaces, plan.TestDir)
	p.end(PhaseImports, fmt.Sprintf("%d imports", len(plan.Imports)))

	p.logger.Debug("plan ready",
		"workspace", workspace,
		"framework", plan.Framework,
		"fingerprint", idx.Fingerprint,
		"entities", plan.Story.Entities.Sorted(),
	)
	return plan, nil
}

// Generate runs the validation loop for plan.
func (p *Pipeline) Generate(ctx context.Context, plan *Plan) (validate.Outcome, error) {
	p.begin(PhaseGenerate)

	loopEvents := make(chan validate.Event, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range loopEvents {
			p.emit(Event{
				Type:        EventAttempt,
				Phase:       PhaseGenerate,
				Message:     ev.Message,
				Attempt:     ev.Attempt,
				MaxAttempts: ev.MaxAttempts,
			})
		}
	}()

	loop := validate.NewLoop(p.gen, p.exec, loopEvents).WithMetrics(p.metrics)
	outcome, err := loop.Run(ctx, validate.Params{
		Story:       plan.Story.RawText,
		Match:       plan.Match,
		TestDir:     plan.TestDir,
		Framework:   plan.Framework,
		Imports:     plan.Imports,
		Workspace:   plan.Workspace,
		BaseExtra:   p.cfg.Extra,
		Model:       p.cfg.Model,
		MaxAttempts: p.cfg.MaxAttempts,
	})
	close(loopEvents)
	wg.Wait()

	if err != nil {
		return outcome, fmt.Errorf("pipeline: %s: %w", PhaseGenerate, err)
	}
	p.end(PhaseGenerate, fmt.Sprintf("passed=%t after %d attempt(s)", outcome.Passed, outcome.Attempts))
	return outcome, nil
}

// Run executes every stage for storyText.
func (p *Pipeline) Run(ctx context.Context, storyText string) (*Result, error) {
	plan, err := p.Prepare(ctx, storyText)
	if err != nil {
		return nil, err
	}
	outcome, err := p.Generate(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &Result{Plan: plan, Outcome: outcome}, nil
}

// WriteArtifact writes the outcome's code to <testDir>/<FileName> and returns
// the written path.
func WriteArtifact(testDir string, outcome validate.Outcome) (string, error) {
	if err := os.MkdirAll(testDir, 0o755); err != nil {
		return "", fmt.Errorf("pipeline: creating %s: %w", testDir, err)
	}
	path := filepath.Join(testDir, outcome.FileName)
	if err := os.WriteFile(path, []byte(outcome.Code), 0o644); err != nil {
		return "", fmt.Errorf("pipeline: writing %s: %w", path, err)
	}
	return path, nil
}

func (p *Pipeline) begin(phase Phase) {
	p.logger.Debug("phase started", "phase", string(phase))
	p.emit(Event{Type: EventPhaseStarted, Phase: phase, Message: string(phase)})
}

func (p *Pipeline) end(phase Phase, detail string) {
	p.logger.Debug("phase completed", "phase", string(phase), "detail", detail)
	p.emit(Event{Type: EventPhaseCompleted, Phase: phase, Message: detail})
}

func (p *Pipeline) advise(plan *Plan, msg string) {
	plan.Advisories = append(plan.Advisories, msg)
	p.logger.Warn(msg)
	p.emit(Event{Type: EventAdvisory, Message: msg})
}

// emit sends ev without blocking. Events are dropped when the channel is nil
// or full.
func (p *Pipeline) emit(ev Event) {
	if p.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case p.events <- ev:
	default:
	}
}
