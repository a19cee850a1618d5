package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
)

// Global flag values accessible to all subcommands.
var (
	flagVerbose bool
	flagQuiet   bool
	flagConfig  string
	flagDir     string
	flagDryRun  bool
	flagNoColor bool
)

// rootCmd is the base command for storytotest.
var rootCmd = &cobra.Command{
	Use:   "storytotest",
	Short: "Turn user stories into validated TypeScript tests",
	Long: `storytotest reads a user story, finds the TypeScript interfaces and classes
it talks about, asks a language model for a test file and runs that file until
it passes or the attempt limit is reached.

It works interactively (storytotest generate) or as a GitHub webhook that
opens a pull request for every issue labelled ready-for-tests.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupGlobals,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: STORYTOTEST_VERBOSE)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: STORYTOTEST_QUIET)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to storytotest.toml config file")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Override working directory")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Show planned actions without calling the model or GitHub")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output (env: STORYTOTEST_NO_COLOR, NO_COLOR)")
}

// setupGlobals applies env fallbacks, logging, color and --dir before any
// subcommand runs.
func setupGlobals(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if !flags.Changed("verbose") && os.Getenv("STORYTOTEST_VERBOSE") != "" {
		flagVerbose = true
	}
	if !flags.Changed("quiet") && os.Getenv("STORYTOTEST_QUIET") != "" {
		flagQuiet = true
	}
	if !flags.Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv("STORYTOTEST_NO_COLOR") != "") {
		flagNoColor = true
	}

	jsonFormat := os.Getenv("STORYTOTEST_LOG_FORMAT") == "json"
	logging.Setup(flagVerbose, flagQuiet, jsonFormat)

	if flagNoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	if flagDir != "" {
		if err := os.Chdir(flagDir); err != nil {
			return fmt.Errorf("changing directory to %s: %w", flagDir, err)
		}
	}
	return nil
}

// Execute runs the root command and returns the exit code. SIGINT and
// SIGTERM cancel the command context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

// NewRootCmd returns the root command with every subcommand registered.
// The completion and man page generators walk it.
func NewRootCmd() *cobra.Command {
	return rootCmd
}
