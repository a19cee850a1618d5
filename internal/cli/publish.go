package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/config"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/metrics"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/tui"
)

var publishIssue int

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Generate tests for a GitHub issue and open a pull request",
	Long: `Fetch a GitHub issue, generate and validate tests from its title and body,
commit them to a test/issue-<n>-<ts> branch and open a pull request.

Credentials come from GITHUB_TOKEN, GITHUB_OWNER, GITHUB_REPO, OPENAI_API_KEY
and WORKSPACE_ROOT.

Examples:
  storytotest publish --issue 42
  storytotest publish --issue 42 --dry-run`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().IntVar(&publishIssue, "issue", 0, "Issue number")
	_ = publishCmd.MarkFlagRequired("issue")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, _ []string) error {
	if publishIssue <= 0 {
		return errors.New("--issue must be a positive issue number")
	}
	ctx := cmd.Context()
	logger := logging.New(logging.ComponentPublish)

	cfg, err := loadValidConfig(nil)
	if err != nil {
		return err
	}
	creds, err := config.LoadCredentials(lookupEnv, cfg)
	if err != nil {
		return err
	}

	tracker, err := trackerFactory(cfg, creds)
	if err != nil {
		return err
	}
	issue, err := tracker.Issue(ctx, publishIssue)
	if err != nil {
		return err
	}

	wf, err := newPublishWorkflow(cfg, creds, tracker, metrics.New(), logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagDryRun {
		steps, err := wf.Describe(ctx, issue)
		if err != nil {
			return err
		}
		fmt.Fprint(out, tui.DefaultTheme().RenderPlan(fmt.Sprintf("Dry run: issue #%d", issue.Number), steps))
		return nil
	}

	res := wf.ProcessIssue(ctx, issue)
	if !res.Success {
		return fmt.Errorf("publishing issue #%d: %s", issue.Number, res.Error)
	}
	fmt.Fprintln(out, res.PRURL)
	return nil
}
