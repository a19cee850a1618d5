// Package publish turns a labelled issue into a pull request carrying
// generated tests. The work runs as a linear workflow on the workflow
// engine; any step failure is reported back on the issue.
package publish

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/github"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/metrics"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/pipeline"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/validate"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/workflow"
)

// Issue is the tracker issue a run is started for.
type Issue = github.Issue

// Default branch names tried, in order, when resolving the PR base.
const (
	DefaultBaseBranch     = "main"
	DefaultFallbackBranch = "master"
)

// DefaultNotifyTimeout bounds the failure comment when Options leaves it
// unset.
const DefaultNotifyTimeout = 30 * time.Second

// Step names of the publish workflow, in execution order.
const (
	StepBuildStory   = "build_story"
	StepGenerate     = "generate_tests"
	StepResolveBase  = "resolve_base"
	StepCreateBranch = "create_branch"
	StepCommit       = "commit_file"
	StepOpenPR       = "open_pr"
	StepComment      = "comment"
)

// State keys shared between steps.
const (
	keyIssue  = "issue"
	keyStory  = "story"
	keyResult = "result"
	keyBase   = "base_branch"
	keySHA    = "base_sha"
	keyBranch = "branch"
	keyPath   = "file_path"
	keyPRURL  = "pr_url"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Tracker is the subset of the issue tracker the workflow writes to.
type Tracker interface {
	BranchSHA(ctx context.Context, branch string) (string, error)
	CreateBranch(ctx context.Context, name, sha string) error
	CommitFile(ctx context.Context, branch, path, content, message string) error
	CreatePullRequest(ctx context.Context, title, body, head, base string) (string, error)
	CommentOnIssue(ctx context.Context, number int, body string) error
}

// Runner produces tests for a story. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, story string) (*pipeline.Result, error)
}

// Result is the outcome of ProcessIssue. Exactly one of PRURL and Error is
// set.
type Result struct {
	Success bool
	PRURL   string
	Error   string
}

// Options configures a Workflow. Zero values select the defaults.
type Options struct {
	// TestDir is the repository-relative directory the test is committed
	// to.
	TestDir        string
	BaseBranch     string
	FallbackBranch string
	Metrics        *metrics.Metrics
	Events         chan<- workflow.Event
	Logger         *log.Logger
	// NotifyTimeout bounds the failure comment, which is posted even after
	// the run's own context has expired.
	NotifyTimeout  time.Duration
}

// Workflow publishes generated tests for issues.
type Workflow struct {
	tracker  Tracker
	runner   Runner
	opts     Options
	registry *workflow.Registry
	def      *workflow.Definition
	logger   *log.Logger
	now      func() time.Time
}

// New returns a Workflow that generates with runner and writes through
// tracker.
func New(tracker Tracker, runner Runner, opts Options) *Workflow {
	if opts.TestDir == "" {
		opts.TestDir = pipeline.DefaultTestDir
	}
	if opts.BaseBranch == "" {
		opts.BaseBranch = DefaultBaseBranch
	}
	if opts.FallbackBranch == "" {
		opts.FallbackBranch = DefaultFallbackBranch
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = DefaultNotifyTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(logging.ComponentPublish)
	}

	w := &Workflow{
		tracker: tracker,
		runner:  runner,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
	steps := w.steps()
	w.registry = workflow.NewRegistry()
	w.registry.Register(steps...)

	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name())
	}
	w.def = workflow.Linear("publish", "generate tests for an issue and open a pull request", names...)
	return w
}

// ProcessIssue runs the workflow for issue. Failures never escape as
// errors: they are posted to the issue and returned in Result.Error.
func (w *Workflow) ProcessIssue(ctx context.Context, issue Issue) Result {
	started := w.now()
	w.logger.Info("processing issue", "issue", issue.Number, "title", issue.Title)

	state := workflow.NewState("", w.def.Name, w.def.InitialStep)
	state.Set(keyIssue, issue)

	final, err := w.engine().Run(ctx, w.def, state)
	if err != nil {
		msg := failureMessage(err)
		w.logger.Error("workflow failed", "issue", issue.Number, "error", msg)
		w.notifyFailure(ctx, issue.Number, msg)
		w.opts.Metrics.ObserveWorkflow(false, time.Since(started))
		return Result{Error: msg}
	}

	url := final.String(keyPRURL)
	w.opts.Metrics.ObserveWorkflow(true, time.Since(started))
	w.logger.Info("workflow completed", "issue", issue.Number, "pr", url)
	return Result{Success: true, PRURL: url}
}

// Describe returns what each step would do for issue without touching the
// tracker or the model.
func (w *Workflow) Describe(ctx context.Context, issue Issue) ([]string, error) {
	events := make(chan workflow.Event, 4*len(w.def.Steps)+4)
	state := workflow.NewState("", w.def.Name, w.def.InitialStep)
	state.Set(keyIssue, issue)

	eng := workflow.NewEngine(w.registry,
		workflow.WithDryRun(true),
		workflow.WithEventChannel(events),
		workflow.WithLogger(w.logger),
	)
	_, err := eng.Run(ctx, w.def, state)
	close(events)
	if err != nil {
		return nil, fmt.Errorf("publish: describing workflow: %w", err)
	}

	var out []string
	for ev := range events {
		if ev.Type == workflow.WEStepSkipped {
			out = append(out, ev.Message)
		}
	}
	return out, nil
}

func (w *Workflow) engine() *workflow.Engine {
	return workflow.NewEngine(w.registry,
		workflow.WithEventChannel(w.opts.Events),
		workflow.WithLogger(w.logger),
	)
}

// notifyFailure posts the failure comment. It detaches from ctx so a run
// that died on its deadline still reports back. Its own error is only logged.
func (w *Workflow) notifyFailure(ctx context.Context, number int, msg string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opts.NotifyTimeout)
	defer cancel()
	if err := w.tracker.CommentOnIssue(ctx, number, "Test generation failed: "+msg); err != nil {
		w.logger.Warn("failed to comment on issue", "issue", number, "error", err)
	}
}

// failureMessage extracts the cause of a failed run without the engine's
// step prefix.
func failureMessage(err error) string {
	var se *workflow.StepError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	if err.Error() == "" {
		return "Unknown error"
	}
	return err.Error()
}

// Story joins an issue's title and body into the story text.
func Story(issue Issue) string {
	return strings.TrimSpace(issue.Title + "\n" + issue.Body)
}

// CommitMessage is the commit message used for issue number.
func CommitMessage(number int) string {
	return fmt.Sprintf("Add generated tests for issue #%d", number)
}

// PRTitle is the pull request title used for issue.
func PRTitle(issue Issue) string {
	return fmt.Sprintf("Tests for issue #%d: %s", issue.Number, issue.Title)
}

// PRBody renders the pull request description.
func PRBody(issue Issue, outcome validate.Outcome) (string, error) {
	return render("pr_body.tmpl", map[string]any{"Issue": issue, "Outcome": outcome})
}

// IssueComment renders the success comment posted on the issue.
func IssueComment(prURL string, outcome validate.Outcome) (string, error) {
	return render("comment.tmpl", map[string]any{"PRURL": prURL, "Outcome": outcome})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("publish: rendering %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// steps returns the handlers in execution order.
func (w *Workflow) steps() []workflow.StepHandler {
	return []workflow.StepHandler{
		&step{
			name: StepBuildStory,
			describe: func(s *workflow.State) string {
				return fmt.Sprintf("build the story from issue #%d", issueOf(s).Number)
			},
			run: w.buildStory,
		},
		&step{
			name:     StepGenerate,
			describe: func(*workflow.State) string { return "index the workspace and generate validated tests" },
			run:      w.generate,
		},
		&step{
			name: StepResolveBase,
			describe: func(*workflow.State) string {
				return fmt.Sprintf("resolve the base branch (%s, falling back to %s)", w.opts.BaseBranch, w.opts.FallbackBranch)
			},
			run: w.resolveBase,
		},
		&step{
			name: StepCreateBranch,
			describe: func(s *workflow.State) string {
				return fmt.Sprintf("create branch %s", pipeline.IssueBranch(issueOf(s).Number, w.now()))
			},
			run: w.createBranch,
		},
		&step{
			name: StepCommit,
			describe: func(s *workflow.State) string {
				return fmt.Sprintf("commit %s/<file> with %q", w.opts.TestDir, CommitMessage(issueOf(s).Number))
			},
			run: w.commit,
		},
		&step{
			name: StepOpenPR,
			describe: func(s *workflow.State) string {
				return fmt.Sprintf("open pull request %q", PRTitle(issueOf(s)))
			},
			run: w.openPR,
		},
		&step{
			name: StepComment,
			describe: func(s *workflow.State) string {
				return fmt.Sprintf("comment on issue #%d with the pull request link", issueOf(s).Number)
			},
			run: w.comment,
		},
	}
}

func (w *Workflow) buildStory(_ context.Context, s *workflow.State) error {
	story := Story(issueOf(s))
	if story == "" {
		return errors.New("issue has no title or body")
	}
	s.Set(keyStory, story)
	return nil
}

func (w *Workflow) generate(ctx context.Context, s *workflow.State) error {
	res, err := w.runner.Run(ctx, s.String(keyStory))
	if err != nil {
		return err
	}
	if res.Plan != nil {
		for _, a := range res.Advisories {
			w.logger.Warn(a, "issue", issueOf(s).Number)
		}
	}
	w.logger.Info("validation finished",
		"passed", res.Outcome.Passed,
		"attempts", res.Outcome.Attempts,
		"file", res.Outcome.FileName,
	)
	s.Set(keyResult, res)
	return nil
}

func (w *Workflow) resolveBase(ctx context.Context, s *workflow.State) error {
	base := w.opts.BaseBranch
	sha, err := w.tracker.BranchSHA(ctx, base)
	if errors.Is(err, github.ErrBranchNotFound) {
		w.logger.Debug("base branch not found, trying fallback", "branch", base, "fallback", w.opts.FallbackBranch)
		base = w.opts.FallbackBranch
		sha, err = w.tracker.BranchSHA(ctx, base)
	}
	if err != nil {
		return err
	}
	s.Set(keyBase, base)
	s.Set(keySHA, sha)
	return nil
}

func (w *Workflow) createBranch(ctx context.Context, s *workflow.State) error {
	branch := pipeline.IssueBranch(issueOf(s).Number, w.now())
	err := w.tracker.CreateBranch(ctx, branch, s.String(keySHA))
	if err != nil && !errors.Is(err, github.ErrAlreadyExists) {
		return err
	}
	s.Set(keyBranch, branch)
	return nil
}

func (w *Workflow) commit(ctx context.Context, s *workflow.State) error {
	res := resultOf(s)
	if res.Outcome.FileName == "" {
		return errors.New("no generated test to commit")
	}
	file := path.Join(w.opts.TestDir, res.Outcome.FileName)
	if err := w.tracker.CommitFile(ctx, s.String(keyBranch), file, res.Outcome.Code, CommitMessage(issueOf(s).Number)); err != nil {
		return err
	}
	s.Set(keyPath, file)
	return nil
}

func (w *Workflow) openPR(ctx context.Context, s *workflow.State) error {
	issue := issueOf(s)
	body, err := PRBody(issue, resultOf(s).Outcome)
	if err != nil {
		return err
	}
	url, err := w.tracker.CreatePullRequest(ctx, PRTitle(issue), body, s.String(keyBranch), s.String(keyBase))
	if err != nil {
		return err
	}
	s.Set(keyPRURL, url)
	return nil
}

func (w *Workflow) comment(ctx context.Context, s *workflow.State) error {
	body, err := IssueComment(s.String(keyPRURL), resultOf(s).Outcome)
	if err != nil {
		return err
	}
	return w.tracker.CommentOnIssue(ctx, issueOf(s).Number, body)
}

func issueOf(s *workflow.State) Issue {
	is, _ := workflow.Value[Issue](s, keyIssue)
	return is
}

func resultOf(s *workflow.State) *pipeline.Result {
	res, _ := workflow.Value[*pipeline.Result](s, keyResult)
	if res == nil {
		return &pipeline.Result{}
	}
	return res
}

// step adapts a function to workflow.StepHandler.
type step struct {
	name     string
	describe func(*workflow.State) string
	run      func(context.Context, *workflow.State) error
}

func (st *step) Name() string { return st.name }

func (st *step) DryRun(s *workflow.State) string { return st.describe(s) }

func (st *step) Execute(ctx context.Context, s *workflow.State) (string, error) {
	if err := st.run(ctx, s); err != nil {
		return workflow.EventFailure, err
	}
	return workflow.EventSuccess, nil
}
