package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Branch name prefixes for generated-test branches.
const (
	issueBranchPrefix = "test/issue-"
	storyBranchPrefix = "test/story-"
)

// IssueBranch returns the remote branch name for an issue run started at t.
func IssueBranch(number int, t time.Time) string {
	return issueBranchPrefix + strconv.Itoa(number) + "-" + strconv.FormatInt(t.UnixMilli(), 10)
}

// StoryBranch returns the local branch name for an interactive run started
// at t.
func StoryBranch(t time.Time) string {
	return storyBranchPrefix + strconv.FormatInt(t.UnixMilli(), 10)
}

// CommitMessage is the commit message for a generated test file.
func CommitMessage(fileName string) string {
	return "Add generated tests: " + fileName
}

// GitClient is the subset of git operations BranchManager needs.
type GitClient interface {
	Root(ctx context.Context) (string, error)
	CreateBranch(ctx context.Context, name, base string) error
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string, paths ...string) error
	HeadCommit(ctx context.Context) (string, error)
}

// BranchManager commits generated tests to fresh local branches.
type BranchManager struct {
	git    GitClient
	now    func() time.Time
	logger *log.Logger
}

// NewBranchManager returns a BranchManager backed by client.
func NewBranchManager(client GitClient) *BranchManager {
	return &BranchManager{git: client, now: time.Now}
}

// WithLogger attaches a logger for branch and commit notices.
func (b *BranchManager) WithLogger(logger *log.Logger) *BranchManager {
	b.logger = logger
	return b
}

// CommitTest creates a story branch from HEAD and commits the file at path
// to it. It returns the branch name and the short commit SHA.
func (b *BranchManager) CommitTest(ctx context.Context, path string) (branch, sha string, err error) {
	root, err := b.git.Root(ctx)
	if err != nil {
		return "", "", fmt.Errorf("branch manager: %w", err)
	}
	rel, err := repoRelative(root, path)
	if err != nil {
		return "", "", fmt.Errorf("branch manager: %w", err)
	}

	branch = StoryBranch(b.now())
	if err := b.git.CreateBranch(ctx, branch, ""); err != nil {
		return "", "", fmt.Errorf("branch manager: %w", err)
	}
	if err := b.git.Add(ctx, rel); err != nil {
		return branch, "", fmt.Errorf("branch manager: %w", err)
	}
	if err := b.git.Commit(ctx, CommitMessage(filepath.Base(rel)), rel); err != nil {
		return branch, "", fmt.Errorf("branch manager: %w", err)
	}
	sha, err = b.git.HeadCommit(ctx)
	if err != nil {
		return branch, "", fmt.Errorf("branch manager: %w", err)
	}
	if b.logger != nil {
		b.logger.Info("committed generated test", "branch", branch, "commit", sha, "file", rel)
	}
	return branch, sha, nil
}

// repoRelative returns path relative to root in slash form. Symlinked temp
// directories are resolved on both sides first.
func repoRelative(root, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the repository %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}
