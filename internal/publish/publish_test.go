package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/github"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/metrics"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/pipeline"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/validate"
)

var _ Tracker = (*github.Client)(nil)
var _ Runner = (*pipeline.Pipeline)(nil)

type comment struct {
	number int
	body   string
}

type commit struct {
	branch, path, content, message string
}

type pullRequest struct {
	title, body, head, base string
}

// fakeTracker records every write and serves branch SHAs from a map.
type fakeTracker struct {
	mu       sync.Mutex
	shas     map[string]string
	shaErr   error
	branches map[string]string
	commits  []commit
	prs      []pullRequest
	comments []comment

	createBranchErr error
	commitErr       error
	prErr           error
	commentErr      error
	lookups         []string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		shas:     map[string]string{"main": "sha-main"},
		branches: map[string]string{},
	}
}

func (f *fakeTracker) BranchSHA(_ context.Context, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, branch)
	if f.shaErr != nil {
		return "", f.shaErr
	}
	sha, ok := f.shas[branch]
	if !ok {
		return "", fmt.Errorf("github: branch %q: %w", branch, github.ErrBranchNotFound)
	}
	return sha, nil
}

func (f *fakeTracker) CreateBranch(_ context.Context, name, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createBranchErr != nil {
		return f.createBranchErr
	}
	f.branches[name] = sha
	return nil
}

func (f *fakeTracker) CommitFile(_ context.Context, branch, path, content, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, commit{branch, path, content, message})
	return nil
}

func (f *fakeTracker) CreatePullRequest(_ context.Context, title, body, head, base string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prErr != nil {
		return "", f.prErr
	}
	f.prs = append(f.prs, pullRequest{title, body, head, base})
	return fmt.Sprintf("https://github.com/acme/shop/pull/%d", len(f.prs)), nil
}

func (f *fakeTracker) CommentOnIssue(ctx context.Context, number int, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, comment{number, body})
	return f.commentErr
}

// fakeRunner returns a fixed outcome and records the stories it was given.
type fakeRunner struct {
	outcome validate.Outcome
	err     error
	stories []string
}

func (r *fakeRunner) Run(_ context.Context, story string) (*pipeline.Result, error) {
	r.stories = append(r.stories, story)
	if r.err != nil {
		return nil, r.err
	}
	return &pipeline.Result{
		Plan:    &pipeline.Plan{Advisories: []string{pipeline.AdvisoryNoFramework}},
		Outcome: r.outcome,
	}, nil
}

func passingRunner() *fakeRunner {
	return &fakeRunner{outcome: validate.Outcome{
		Code:     "describe('cart', () => {})",
		FileName: "CartItem.test.tsx",
		Attempts: 2,
		Passed:   true,
	}}
}

var cartIssue = Issue{
	Number:  7,
	Title:   "Add items to cart",
	Body:    "As a shopper I want to add a CartItem to my Cart",
	HTMLURL: "https://github.com/acme/shop/issues/7",
}

func newWorkflow(tr Tracker, r Runner, m *metrics.Metrics) *Workflow {
	w := New(tr, r, Options{Metrics: m, Logger: logging.Discard()})
	w.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return w
}

func TestProcessIssue_Success(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	runner := passingRunner()
	m := metrics.New()

	res := newWorkflow(tr, runner, m).ProcessIssue(context.Background(), cartIssue)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "https://github.com/acme/shop/pull/1", res.PRURL)
	assert.Empty(t, res.Error)

	assert.Equal(t, []string{"Add items to cart\nAs a shopper I want to add a CartItem to my Cart"}, runner.stories)
	assert.Equal(t, map[string]string{"test/issue-7-1700000000000": "sha-main"}, tr.branches)

	require.Len(t, tr.commits, 1)
	assert.Equal(t, commit{
		branch:  "test/issue-7-1700000000000",
		path:    "__tests__/CartItem.test.tsx",
		content: "describe('cart', () => {})",
		message: "Add generated tests for issue #7",
	}, tr.commits[0])

	require.Len(t, tr.prs, 1)
	pr := tr.prs[0]
	assert.Equal(t, "Tests for issue #7: Add items to cart", pr.title)
	assert.Equal(t, "test/issue-7-1700000000000", pr.head)
	assert.Equal(t, "main", pr.base)
	assert.Contains(t, pr.body, "This PR was automatically generated from issue #7.")
	assert.Contains(t, pr.body, "**Issue:** [Add items to cart](https://github.com/acme/shop/issues/7)")
	assert.Contains(t, pr.body, "**Validation:** Passed after 2 attempt(s)")
	assert.Contains(t, pr.body, "As a shopper I want to add a CartItem to my Cart")

	require.Len(t, tr.comments, 1)
	assert.Equal(t, 7, tr.comments[0].number)
	assert.Equal(t, "Tests have been passed validation and a pull request has been created.\n\n"+
		"**PR:** https://github.com/acme/shop/pull/1\n\n"+
		"Validation attempts: 2", tr.comments[0].body)

	assert.InDelta(t, 1, testutil.ToFloat64(m.WorkflowRuns.WithLabelValues(metrics.WorkflowSuccess)), 0)
}

func TestProcessIssue_FallsBackToMaster(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	tr.shas = map[string]string{"master": "sha-master"}

	res := newWorkflow(tr, passingRunner(), nil).ProcessIssue(context.Background(), cartIssue)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"main", "master"}, tr.lookups)
	assert.Equal(t, "sha-master", tr.branches["test/issue-7-1700000000000"])
	require.Len(t, tr.prs, 1)
	assert.Equal(t, "master", tr.prs[0].base)
}

func TestProcessIssue_BaseLookupErrorDoesNotFallBack(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	tr.shaErr = errors.New("github: reading branch \"main\": 403 Forbidden")

	res := newWorkflow(tr, passingRunner(), nil).ProcessIssue(context.Background(), cartIssue)

	assert.False(t, res.Success)
	assert.Equal(t, []string{"main"}, tr.lookups)
	assert.Equal(t, `github: reading branch "main": 403 Forbidden`, res.Error)
}

func TestProcessIssue_ExistingBranchIsFine(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	tr.createBranchErr = fmt.Errorf("github: creating branch: %w", github.ErrAlreadyExists)

	res := newWorkflow(tr, passingRunner(), nil).ProcessIssue(context.Background(), cartIssue)

	require.True(t, res.Success, res.Error)
	require.Len(t, tr.commits, 1)
	assert.Equal(t, "test/issue-7-1700000000000", tr.commits[0].branch)
}

func TestProcessIssue_UnvalidatedTestsStillPublished(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	runner := &fakeRunner{outcome: validate.Outcome{
		Code:      "it('x', () => {})",
		FileName:  "generated.test.tsx",
		Attempts:  3,
		LastError: "expected 1 to be 2",
	}}

	res := newWorkflow(tr, runner, nil).ProcessIssue(context.Background(), cartIssue)

	require.True(t, res.Success, res.Error)
	assert.Contains(t, tr.prs[0].body, "**Validation:** Did not pass after 3 attempt(s) - expected 1 to be 2")
	assert.Contains(t, tr.comments[0].body, "Tests have been generated (validation did not pass) and a pull request has been created.")
	assert.Contains(t, tr.comments[0].body, "Validation attempts: 3")
}

func TestProcessIssue_FailureComment(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		setup   func(tr *fakeTracker, r *fakeRunner)
		wantErr string
	}{
		{
			name:    "pipeline error",
			setup:   func(_ *fakeTracker, r *fakeRunner) { r.err = errors.New("pipeline: indexing: symbols: workspace missing") },
			wantErr: "pipeline: indexing: symbols: workspace missing",
		},
		{
			name:    "commit error",
			setup:   func(tr *fakeTracker, _ *fakeRunner) { tr.commitErr = errors.New("github: committing: boom") },
			wantErr: "github: committing: boom",
		},
		{
			name:    "pull request error",
			setup:   func(tr *fakeTracker, _ *fakeRunner) { tr.prErr = errors.New("github: creating pull request: 422") },
			wantErr: "github: creating pull request: 422",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := newFakeTracker()
			runner := passingRunner()
			tt.setup(tr, runner)
			m := metrics.New()

			res := newWorkflow(tr, runner, m).ProcessIssue(context.Background(), cartIssue)

			assert.False(t, res.Success)
			assert.Empty(t, res.PRURL)
			assert.Equal(t, tt.wantErr, res.Error)
			require.Len(t, tr.comments, 1)
			assert.Equal(t, comment{7, "Test generation failed: " + tt.wantErr}, tr.comments[0])
			assert.InDelta(t, 1, testutil.ToFloat64(m.WorkflowRuns.WithLabelValues(metrics.WorkflowFailure)), 0)
		})
	}
}

func TestProcessIssue_FailureCommentErrorIsSwallowed(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	tr.commentErr = errors.New("github: commenting: 500")
	runner := &fakeRunner{err: errors.New("model unavailable")}

	res := newWorkflow(tr, runner, nil).ProcessIssue(context.Background(), cartIssue)

	assert.False(t, res.Success)
	assert.Equal(t, "model unavailable", res.Error)
	assert.Len(t, tr.comments, 1)
}

// blockingRunner waits for the run's context to end, like a generation that
// outlives webhook.run_timeout.
type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, _ string) (*pipeline.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcessIssue_FailureCommentSurvivesExpiredRun(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := newWorkflow(tr, blockingRunner{}, nil).ProcessIssue(ctx, cartIssue)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())
	require.Len(t, tr.comments, 1)
	assert.Equal(t, 7, tr.comments[0].number)
	assert.Equal(t, "Test generation failed: "+res.Error, tr.comments[0].body)
}

func TestProcessIssue_SuccessCommentErrorFailsRun(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	tr.commentErr = errors.New("comments disabled")

	res := newWorkflow(tr, passingRunner(), nil).ProcessIssue(context.Background(), cartIssue)

	assert.False(t, res.Success)
	assert.Equal(t, "comments disabled", res.Error)
	// The success comment and the failure comment were both attempted.
	assert.Len(t, tr.comments, 2)
}

func TestProcessIssue_EmptyIssue(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	runner := passingRunner()

	res := newWorkflow(tr, runner, nil).ProcessIssue(context.Background(), Issue{Number: 3, Title: "  "})

	assert.False(t, res.Success)
	assert.Equal(t, "issue has no title or body", res.Error)
	assert.Empty(t, runner.stories)
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	tr := newFakeTracker()
	runner := passingRunner()

	steps, err := newWorkflow(tr, runner, nil).Describe(context.Background(), cartIssue)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"build the story from issue #7",
		"index the workspace and generate validated tests",
		"resolve the base branch (main, falling back to master)",
		"create branch test/issue-7-1700000000000",
		`commit __tests__/<file> with "Add generated tests for issue #7"`,
		`open pull request "Tests for issue #7: Add items to cart"`,
		"comment on issue #7 with the pull request link",
	}, steps)
	assert.Empty(t, runner.stories)
	assert.Empty(t, tr.lookups)
	assert.Empty(t, tr.comments)
}

func TestPRBody_NoDescription(t *testing.T) {
	t.Parallel()
	body, err := PRBody(Issue{Number: 1, Title: "T", HTMLURL: "u"}, validate.Outcome{Attempts: 1})
	require.NoError(t, err)
	assert.Contains(t, body, "_No description provided._")
	assert.Contains(t, body, "Did not pass after 1 attempt(s) - unknown error")
}

func TestStory(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Title", Story(Issue{Title: "Title"}))
	assert.Equal(t, "Title\nBody", Story(Issue{Title: " Title", Body: "Body\n"}))
}
