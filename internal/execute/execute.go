// Package execute runs a single generated test file with the workspace's
// test framework and reports pass or fail with the captured error text.
package execute

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/framework"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
)

// UnsupportedMessage is the Result.Error for frameworks that cannot be run.
const UnsupportedMessage = "Unsupported or unknown test framework."

// DefaultMaxOutputBytes caps each captured stream.
const DefaultMaxOutputBytes = 1024 * 1024

// ErrUnsupportedFramework is returned by Command for frameworks without a
// single-file runner.
var ErrUnsupportedFramework = errors.New("unsupported or unknown test framework")

// Result is the outcome of one test run.
type Result struct {
	Passed bool
	// Error is empty when Passed is true.
	Error string
	// ExitCode is -1 when the process never started, was killed, or timed out.
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Options configures a Runner.
type Options struct {
	// Timeout bounds one run. Zero disables it.
	Timeout time.Duration
	// MaxOutputBytes caps each of stdout and stderr. Zero means
	// DefaultMaxOutputBytes.
	MaxOutputBytes int
}

// Runner executes test files.
type Runner struct {
	opts   Options
	logger *log.Logger
	// command builds argv for a framework and file; replaced in tests.
	command func(fw framework.Framework, file string) ([]string, error)
}

// NewRunner returns a Runner with the given options.
func NewRunner(opts Options) *Runner {
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return &Runner{
		opts:    opts,
		logger:  logging.New(logging.ComponentExecute),
		command: Command,
	}
}

// Command returns the argv that runs file under fw.
func Command(fw framework.Framework, file string) ([]string, error) {
	switch fw {
	case framework.Vitest:
		return []string{"npx", "vitest", "run", file}, nil
	case framework.Jest:
		return []string{"npm", "test", "--", file}, nil
	default:
		return nil, fmt.Errorf("execute: %s: %w", fw, ErrUnsupportedFramework)
	}
}

// Run executes testFile in workspace, or in the file's directory when
// workspace is empty. Failures are reported in the Result, never as an
// error; unsupported frameworks return immediately without spawning.
func (r *Runner) Run(ctx context.Context, testFile string, fw framework.Framework, workspace string) Result {
	argv, err := r.command(fw, testFile)
	if err != nil {
		r.logger.Warn("test framework cannot be run", "framework", fw)
		return Result{Error: UnsupportedMessage, ExitCode: -1}
	}

	dir := workspace
	if dir == "" {
		dir = filepath.Dir(testFile)
	}

	execCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	setProcGroup(cmd)

	stdout := newCappedBuffer(r.opts.MaxOutputBytes)
	stderr := newCappedBuffer(r.opts.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("running test", "command", strings.Join(argv, " "), "dir", dir)
	start := time.Now()
	runErr := cmd.Run()
	res := Result{Duration: time.Since(start)}

	if runErr == nil {
		res.Passed = true
		r.logger.Info("test passed", "file", filepath.Base(testFile), "duration", res.Duration.Round(time.Millisecond))
		return res
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && exitErr.ExitCode() >= 0 {
		res.ExitCode = exitErr.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		res.Error = firstNonEmpty(stderr.String(), stdout.String(), ctx.Err().Error())
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.Error = firstNonEmpty(stderr.String(), stdout.String(),
			fmt.Sprintf("test run timed out after %s", r.opts.Timeout))
	default:
		res.Error = firstNonEmpty(stderr.String(), stdout.String(), runErr.Error())
	}

	r.logger.Warn("test failed",
		"file", filepath.Base(testFile),
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"output_truncated", stdout.truncated || stderr.truncated,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return ""
}
