// Package validate drives test generation and execution in a bounded retry
// loop, feeding each failure back into the next generation attempt.
package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/execute"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/framework"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/generate"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/match"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/metrics"
)

// DefaultMaxAttempts is used when Params.MaxAttempts is not positive.
const DefaultMaxAttempts = 3

// Event types emitted by Loop.
const (
	EventAttemptStarted = "attempt_started"
	EventAttemptPassed  = "attempt_passed"
	EventAttemptFailed  = "attempt_failed"
	EventLoopCompleted  = "loop_completed"
)

// Event reports loop progress to an optional subscriber.
type Event struct {
	Type        string
	Attempt     int
	MaxAttempts int
	Message     string
	Timestamp   time.Time
}

// Generator produces one test artifact.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (generate.Artifact, error)
}

// Executor runs one test file.
type Executor interface {
	Run(ctx context.Context, testFile string, fw framework.Framework, workspace string) execute.Result
}

// Params describes one validation run.
type Params struct {
	Story     string
	Match     match.Result
	TestDir   string
	Framework framework.Framework
	Imports   []string
	// Workspace is where the test command runs. Empty means TestDir.
	Workspace string
	// BaseExtra is passed to every attempt as additional guidance.
	BaseExtra   string
	Model       string
	MaxAttempts int
}

// Outcome is the loop's final artifact and verdict. Attempts is always
// between 1 and the attempt limit, and LastError is empty when Passed.
type Outcome struct {
	Code      string
	FileName  string
	Attempts  int
	Passed    bool
	LastError string
}

// Loop runs the generate-execute-retry cycle.
type Loop struct {
	gen     Generator
	exec    Executor
	events  chan<- Event
	metrics *metrics.Metrics
	logger  *log.Logger
}

// NewLoop returns a Loop. events may be nil; events are dropped when the
// channel is nil or full.
func NewLoop(gen Generator, exec Executor, events chan<- Event) *Loop {
	return &Loop{
		gen:    gen,
		exec:   exec,
		events: events,
		logger: logging.New(logging.ComponentValidate),
	}
}

// WithMetrics attaches attempt and loop counters.
func (l *Loop) WithMetrics(m *metrics.Metrics) *Loop {
	l.metrics = m
	return l
}

// FeedbackInstructions returns the extra instructions for an attempt that
// follows a failure with the given error text.
func FeedbackInstructions(prevErr, baseExtra string) string {
	return strings.TrimSpace(fmt.Sprintf("Previous attempt failed: %s. Fix these errors. %s", prevErr, baseExtra))
}

// ProgressMessage is the human label for attempt n of max.
func ProgressMessage(n, max int) string {
	msg := fmt.Sprintf("Attempt %d/%d", n, max)
	if n > 1 {
		msg += " (fixing errors...)"
	}
	return msg
}

// tempFileName returns a collision-resistant name for attempt n.
func tempFileName(n int) string {
	return fmt.Sprintf("storytotest-attempt-%d-%d-%s%s",
		n, time.Now().UnixMilli(), uuid.NewString()[:8], generate.TestFileSuffix)
}

// Run executes up to p.MaxAttempts attempts. Each attempt generates a test,
// writes it to a temporary file inside p.TestDir so relative imports
// resolve, runs it and removes the file. The first passing attempt ends the
// loop; otherwise the most recent artifact and error are returned with
// Passed false. A generation or write error aborts the loop and is returned.
func (l *Loop) Run(ctx context.Context, p Params) (Outcome, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	workspace := p.Workspace
	if workspace == "" {
		workspace = p.TestDir
	}

	if err := os.MkdirAll(p.TestDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("validate: creating test dir: %w", err)
	}

	l.logger.Info("validation started",
		"max_attempts", maxAttempts,
		"framework", p.Framework,
		"interfaces", len(p.Match.Interfaces),
		"classes", len(p.Match.Classes),
	)

	var (
		out     Outcome
		lastErr string
	)
	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("validate: attempt %d: %w", n, err)
		}

		l.emit(Event{Type: EventAttemptStarted, Attempt: n, MaxAttempts: maxAttempts, Message: ProgressMessage(n, maxAttempts)})

		extra := p.BaseExtra
		if n > 1 {
			extra = FeedbackInstructions(lastErr, p.BaseExtra)
		}

		art, err := l.gen.Generate(ctx, generate.Request{
			Story:             p.Story,
			Interfaces:        p.Match.Interfaces,
			Classes:           p.Match.Classes,
			TestDir:           p.TestDir,
			Framework:         p.Framework,
			Imports:           p.Imports,
			ExtraInstructions: extra,
			Model:             p.Model,
		})
		if err != nil {
			l.metrics.ObserveAttempt(metrics.ResultError, 0)
			return out, fmt.Errorf("validate: attempt %d: %w", n, err)
		}

		res, err := l.runAttempt(ctx, n, art, p.Framework, p.TestDir, workspace)
		if err != nil {
			return out, err
		}

		out = Outcome{Code: art.Code, FileName: art.FileName, Attempts: n, Passed: res.Passed}
		if res.Passed {
			l.metrics.ObserveAttempt(metrics.ResultPassed, res.Duration)
			l.emit(Event{Type: EventAttemptPassed, Attempt: n, MaxAttempts: maxAttempts, Message: fmt.Sprintf("Attempt %d passed", n)})
			break
		}

		l.metrics.ObserveAttempt(metrics.ResultFailed, res.Duration)
		lastErr = res.Error
		out.LastError = lastErr
		l.emit(Event{Type: EventAttemptFailed, Attempt: n, MaxAttempts: maxAttempts, Message: fmt.Sprintf("Attempt %d failed", n)})
		l.logger.Warn("attempt failed", "attempt", n, "max_attempts", maxAttempts, "error", firstLine(lastErr))
	}

	l.metrics.ObserveLoop(out.Passed)
	l.emit(Event{
		Type:        EventLoopCompleted,
		Attempt:     out.Attempts,
		MaxAttempts: maxAttempts,
		Message:     completionMessage(out),
	})
	l.logger.Info("validation finished", "passed", out.Passed, "attempts", out.Attempts, "file", out.FileName)
	return out, nil
}

// runAttempt writes art to a temporary file, executes it and removes it.
func (l *Loop) runAttempt(ctx context.Context, n int, art generate.Artifact, fw framework.Framework, testDir, workspace string) (execute.Result, error) {
	path := filepath.Join(testDir, tempFileName(n))
	if err := os.WriteFile(path, []byte(art.Code), 0o644); err != nil {
		return execute.Result{}, fmt.Errorf("validate: attempt %d: writing %s: %w", n, filepath.Base(path), err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			l.logger.Debug("removing temp test file", "path", path, "error", err)
		}
	}()

	return l.exec.Run(ctx, path, fw, workspace), nil
}

func completionMessage(out Outcome) string {
	if out.Passed {
		return fmt.Sprintf("Passed after %d attempt(s)", out.Attempts)
	}
	return fmt.Sprintf("Did not pass after %d attempt(s)", out.Attempts)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// emit sends ev without blocking. Events are dropped when the channel is nil
// or full.
func (l *Loop) emit(ev Event) {
	if l.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case l.events <- ev:
	default:
	}
}
