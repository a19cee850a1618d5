package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/config"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/execute"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/generate"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/github"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/llm"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/match"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/metrics"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/pipeline"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/publish"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/symbols"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/validate"
)

// Environment variable holding the completion API key for interactive runs.
const envOpenAIKey = "OPENAI_API_KEY"

// lookupEnv resolves environment variables for every command. Tests replace
// it.
var lookupEnv config.EnvFunc = os.LookupEnv

// completerFactory builds the completion client. Tests replace it with an
// llm.MockCompleter.
var completerFactory = func(cfg *config.Config, apiKey string) llm.Completer {
	return llm.NewOpenAI(llm.OpenAIOptions{
		APIKey:            apiKey,
		BaseURL:           cfg.Generation.BaseURL,
		RequestsPerMinute: cfg.Generation.RequestsPerMinute,
		HTTPRetries:       cfg.Generation.HTTPRetries,
		Timeout:           cfg.Generation.Timeout.Std(),
	})
}

// executorFactory builds the test runner. Tests replace it to avoid npx.
var executorFactory = func(cfg *config.Config) validate.Executor {
	return execute.NewRunner(execute.Options{
		Timeout:        cfg.Execution.Timeout.Std(),
		MaxOutputBytes: cfg.Execution.MaxOutputBytes,
	})
}

// newPipeline wires a Pipeline for workspace from cfg.
func newPipeline(cfg *config.Config, workspace string, completer llm.Completer, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	matcher, err := match.New(cfg.Generation.Matcher)
	if err != nil {
		return nil, fmt.Errorf("configuring matcher: %w", err)
	}
	gen := generate.New(completer, generate.Options{
		Model:       cfg.Generation.Model,
		Temperature: float32(cfg.Generation.Temperature),
		MaxTokens:   cfg.Generation.MaxTokens,
	})
	return pipeline.New(pipeline.Config{
		Workspace: workspace,
		TestDir:   cfg.Project.TestDir,
		Index: symbols.Options{
			Globs:  cfg.Project.SourceGlobs,
			Ignore: cfg.Project.IgnoreGlobs,
		},
		Matcher:     matcher,
		Model:       cfg.Generation.Model,
		MaxAttempts: cfg.Generation.MaxAttempts,
		Extra:       cfg.Generation.ExtraInstructions,
	}, gen, executorFactory(cfg), opts...), nil
}

// issueTracker is the GitHub surface the publish and serve commands use.
type issueTracker interface {
	publish.Tracker
	Issue(ctx context.Context, number int) (github.Issue, error)
}

// trackerFactory builds the GitHub client. Tests replace it with a fake.
var trackerFactory = func(cfg *config.Config, creds *config.Credentials) (issueTracker, error) {
	client, err := github.New(github.Options{
		Token:   creds.GitHubToken,
		Owner:   creds.GitHubOwner,
		Repo:    creds.GitHubRepo,
		Retries: cfg.GitHub.HTTPRetries,
		Timeout: cfg.GitHub.Timeout.Std(),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// newPublishWorkflow wires the publish workflow for one set of credentials.
// The pipeline runs against creds.WorkspaceRoot.
func newPublishWorkflow(cfg *config.Config, creds *config.Credentials, tracker publish.Tracker, m *metrics.Metrics, logger *log.Logger) (*publish.Workflow, error) {
	runner, err := newPipeline(cfg, creds.WorkspaceRoot, completerFactory(cfg, creds.OpenAIKey),
		pipeline.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	return publish.New(tracker, runner, publish.Options{
		TestDir:        cfg.Project.TestDir,
		BaseBranch:     cfg.GitHub.BaseBranch,
		FallbackBranch: cfg.GitHub.FallbackBranch,
		Metrics:        m,
		Logger:         logger,
		NotifyTimeout:  cfg.GitHub.Timeout.Std(),
	}), nil
}
