// Package git wraps the git CLI for committing generated tests to a local
// branch.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
)

// ErrNotRepository is returned by NewClient when workDir is not inside a git
// work tree or git is not installed.
var ErrNotRepository = errors.New("not a git repository or git not installed")

// Client runs git commands in a working directory.
type Client struct {
	// WorkDir is the working directory for git commands.
	// If empty, commands run in the current directory.
	WorkDir string

	// GitBin is the path to the git binary. Defaults to "git".
	GitBin string

	logger *log.Logger
}

// NewClient returns a Client for workDir after checking that it is a git
// work tree.
func NewClient(workDir string) (*Client, error) {
	g := &Client{
		WorkDir: workDir,
		GitBin:  "git",
		logger:  logging.New(logging.ComponentGit),
	}
	if _, err := g.run(context.Background(), "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("git: %w: %v", ErrNotRepository, err)
	}
	return g, nil
}

// Root returns the top-level directory of the work tree.
func (g *Client) Root(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("git: root: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the name of the current branch. A detached HEAD is an
// error.
func (g *Client) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git: current branch: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		return "", fmt.Errorf("git: current branch: detached HEAD state")
	}
	return branch, nil
}

// BranchExists reports whether the named local branch exists.
func (g *Client) BranchExists(ctx context.Context, branch string) (bool, error) {
	exitCode, stdout, _, err := g.runSilent(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	if err != nil && exitCode == -1 {
		return false, fmt.Errorf("git: branch exists %q: %w", branch, err)
	}
	return exitCode == 0 && strings.TrimSpace(stdout) != "", nil
}

// CreateBranch creates and checks out name, starting from base or from HEAD
// when base is empty.
func (g *Client) CreateBranch(ctx context.Context, name, base string) error {
	args := []string{"checkout", "-b", name}
	if base != "" {
		args = append(args, base)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git: create branch %q: %w", name, err)
	}
	return nil
}

// Checkout switches to branch.
func (g *Client) Checkout(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, "checkout", branch); err != nil {
		return fmt.Errorf("git: checkout %q: %w", branch, err)
	}
	return nil
}

// Add stages the given paths.
func (g *Client) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git: add: %w", err)
	}
	return nil
}

// Commit records the staged changes of paths with message. Other staged or
// unstaged changes in the work tree are left alone.
func (g *Client) Commit(ctx context.Context, message string, paths ...string) error {
	args := append([]string{"commit", "-m", message, "--"}, paths...)
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git: commit: %w", err)
	}
	return nil
}

// HeadCommit returns the short SHA of HEAD.
func (g *Client) HeadCommit(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git: head commit: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// run executes a git command and returns stdout. stderr is included in the
// error when the command fails.
func (g *Client) run(ctx context.Context, args ...string) (string, error) {
	_, stdout, stderr, err := g.runSilent(ctx, args...)
	if err != nil {
		return "", err
	}
	if stdout == "" && stderr != "" {
		// checkout reports success on stderr.
		return stderr, nil
	}
	return stdout, nil
}

// runSilent executes a git command and returns the exit code, stdout, stderr
// and an error. exitCode is -1 when the process could not be started.
func (g *Client) runSilent(ctx context.Context, args ...string) (int, string, string, error) {
	bin := g.GitBin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = g.WorkDir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if g.logger != nil {
		g.logger.Debug("git", "args", strings.Join(args, " "), "dir", g.WorkDir)
	}

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code := exitErr.ExitCode()
			stderr := strings.TrimSpace(stderrBuf.String())
			stdout := strings.TrimSpace(stdoutBuf.String())
			return code, stdout, stderr, fmt.Errorf("exit status %d: %s", code, stderr)
		}
		return -1, "", "", runErr
	}
	return 0, stdoutBuf.String(), stderrBuf.String(), nil
}
