package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/config"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/git"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/metrics"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/pipeline"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/tui"
)

var generateFlags struct {
	story       string
	storyFile   string
	yes         bool
	preview     bool
	commit      bool
	model       string
	maxAttempts int
	matcher     string
	testDir     string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and validate a test file for a user story",
	Long: `Index the TypeScript workspace, match the story against its interfaces and
classes, ask the model for a test file and run it until it passes or the
attempt limit is reached.

The story is read from --story, --story-file (use - for stdin) or an
interactive prompt.

Examples:
  storytotest generate --story "As a user I want to add items to my cart"
  storytotest generate --story-file story.txt --preview
  echo "As an admin I want to ban users" | storytotest generate --story-file - --yes
  storytotest generate --dry-run --story "As a user I want to log in"`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateFlags.story, "story", "s", "", "User story text")
	f.StringVarP(&generateFlags.storyFile, "story-file", "f", "", "Read the story from a file (- for stdin)")
	f.BoolVarP(&generateFlags.yes, "yes", "y", false, "Write the test without asking for confirmation")
	f.BoolVar(&generateFlags.preview, "preview", false, "Print the generated code before the write confirmation")
	f.BoolVar(&generateFlags.commit, "commit", false, "Commit the test to a new local test/story-<ts> branch")
	f.StringVar(&generateFlags.model, "model", "", "Override generation.model")
	f.IntVar(&generateFlags.maxAttempts, "max-attempts", 0, "Override generation.max_attempts")
	f.StringVar(&generateFlags.matcher, "matcher", "", "Override generation.matcher (substring or scored)")
	f.StringVar(&generateFlags.testDir, "test-dir", "", "Override project.test_dir")
	generateCmd.MarkFlagsMutuallyExclusive("story", "story-file")
	rootCmd.AddCommand(generateCmd)
}

// interactive reports whether prompts and the progress view may be used.
// Tests replace it.
var interactive = func() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// promptStory and confirmWrite front the huh forms. Tests replace them.
var (
	promptStory  = pipeline.PromptStory
	confirmWrite = pipeline.ConfirmWrite
)

func runGenerate(cmd *cobra.Command, _ []string) error {
	logger := logging.New(logging.ComponentCLI)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	theme := tui.DefaultTheme()

	storyText, err := readStory(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadValidConfig(generateOverrides(cmd))
	if err != nil {
		return err
	}
	workspace, err := filepath.Abs(cfg.Project.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("resolving workspace: %w", err)
	}

	if flagDryRun {
		p, err := newPipeline(cfg, workspace, nil)
		if err != nil {
			return err
		}
		plan, err := p.Prepare(ctx, storyText)
		if err != nil {
			return err
		}
		fmt.Fprint(out, theme.RenderPlan("Dry run: nothing will be generated or written", planSteps(cfg, plan)))
		return nil
	}

	apiKey, _ := lookupEnv(envOpenAIKey)
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%s is not set", envOpenAIKey)
	}
	completer := completerFactory(cfg, apiKey)
	m := metrics.New()

	var (
		res     *pipeline.Result
		testDir string
	)
	work := func(ctx context.Context, events chan<- pipeline.Event) error {
		p, err := newPipeline(cfg, workspace, completer, pipeline.WithEvents(events), pipeline.WithMetrics(m))
		if err != nil {
			return err
		}
		testDir = p.TestDir()
		res, err = p.Run(ctx, storyText)
		return err
	}

	if interactive() && !flagQuiet {
		err = tui.RunProgress(ctx, work)
	} else {
		err = runWithLog(ctx, logger, work)
	}
	if err != nil {
		return err
	}

	if generateFlags.preview {
		fmt.Fprintln(out, theme.RenderCode(res.Outcome.FileName, res.Outcome.Code))
	}

	target := filepath.Join(testDir, res.Outcome.FileName)
	if !generateFlags.yes && interactive() {
		err := confirmWrite(pipeline.WriteSummary(target, res.Outcome.Attempts, res.Outcome.Passed))
		if errors.Is(err, pipeline.ErrWizardCancelled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Discarded generated test.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	path, err := pipeline.WriteArtifact(testDir, res.Outcome)
	if err != nil {
		return err
	}

	summary := tui.Summary{
		Path:              path,
		Framework:         res.Framework.String(),
		Attempts:          res.Outcome.Attempts,
		MaxAttempts:       cfg.Generation.MaxAttempts,
		Passed:            res.Outcome.Passed,
		LastError:         res.Outcome.LastError,
		IndexedInterfaces: len(res.Index.Interfaces),
		IndexedClasses:    len(res.Index.Classes),
		MatchedInterfaces: len(res.Match.Interfaces),
		MatchedClasses:    len(res.Match.Classes),
		Advisories:        res.Advisories,
	}

	if generateFlags.commit {
		client, err := git.NewClient(workspace)
		if err != nil {
			return err
		}
		branch, sha, err := pipeline.NewBranchManager(client).WithLogger(logger).CommitTest(ctx, path)
		if err != nil {
			return err
		}
		summary.Branch, summary.Commit = branch, sha
	}

	if !flagQuiet {
		fmt.Fprint(out, theme.RenderSummary(summary))
	}
	return nil
}

// readStory resolves the story from flags, stdin or the prompt.
func readStory(cmd *cobra.Command) (string, error) {
	var text string
	switch {
	case generateFlags.story != "":
		text = generateFlags.story
	case generateFlags.storyFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading story from stdin: %w", err)
		}
		text = string(data)
	case generateFlags.storyFile != "":
		data, err := os.ReadFile(generateFlags.storyFile)
		if err != nil {
			return "", fmt.Errorf("reading story file: %w", err)
		}
		text = string(data)
	case interactive():
		return promptStory()
	default:
		return "", errors.New("no story given: use --story or --story-file")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("story is empty")
	}
	return text, nil
}

func generateOverrides(cmd *cobra.Command) *config.CLIOverrides {
	o := &config.CLIOverrides{}
	flags := cmd.Flags()
	if flags.Changed("model") {
		o.Model = &generateFlags.model
	}
	if flags.Changed("max-attempts") {
		o.MaxAttempts = &generateFlags.maxAttempts
	}
	if flags.Changed("matcher") {
		o.Matcher = &generateFlags.matcher
	}
	if flags.Changed("test-dir") {
		o.TestDir = &generateFlags.testDir
	}
	return o
}

// loadValidConfig resolves the config and fails on validation errors.
// Warnings are logged.
func loadValidConfig(overrides *config.CLIOverrides) (*config.Config, error) {
	resolved, meta, err := loadConfig(overrides)
	if err != nil {
		return nil, err
	}
	result := config.Validate(resolved.Config, meta)
	for _, w := range result.Warnings() {
		log.Warn("config", "field", w.Field, "issue", w.Message)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return resolved.Config, nil
}

// runWithLog runs work and turns its events into log lines.
func runWithLog(ctx context.Context, logger *log.Logger, work tui.Work) error {
	events := make(chan pipeline.Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case pipeline.EventPhaseCompleted:
				logger.Info(string(ev.Phase), "result", ev.Message)
			case pipeline.EventAttempt:
				logger.Info(ev.Message)
			case pipeline.EventAdvisory:
				logger.Warn(ev.Message)
			}
		}
	}()
	err := work(ctx, events)
	close(events)
	<-done
	return err
}

// planSteps describes what a real run would do with plan.
func planSteps(cfg *config.Config, plan *pipeline.Plan) []string {
	steps := []string{
		fmt.Sprintf("framework: %s", plan.Framework),
		fmt.Sprintf("indexed %d interfaces, %d classes in %d files",
			len(plan.Index.Interfaces), len(plan.Index.Classes), plan.Index.Files),
		fmt.Sprintf("story entities: %s", strings.Join(plan.Story.Entities.Sorted(), ", ")),
		fmt.Sprintf("matched %d interfaces, %d classes", len(plan.Match.Interfaces), len(plan.Match.Classes)),
		fmt.Sprintf("resolved %d imports", len(plan.Imports)),
		fmt.Sprintf("would call %s up to %d time(s)", cfg.Generation.Model, cfg.Generation.MaxAttempts),
		fmt.Sprintf("would write into %s", plan.TestDir),
	}
	for _, a := range plan.Advisories {
		steps = append(steps, "warning: "+a)
	}
	return steps
}
