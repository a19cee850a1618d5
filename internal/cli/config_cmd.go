package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/config"
)

// configCmd groups the show and validate subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Inspect and validate storytotest configuration.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// configShowCmd prints the resolved configuration with the source of every
// value.
var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"debug"},
	Short:   "Show resolved configuration with source annotations",
	Long: `Display the fully-resolved configuration showing each value and
where it came from (cli flag, environment variable, config file, or default).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resolved, _, err := loadConfig(nil)
		if err != nil {
			return err
		}
		printResolvedConfig(cmd.OutOrStdout(), resolved)
		return nil
	},
}

// configValidateCmd validates the resolved configuration.
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and report issues",
	Long:  "Check the configuration for errors and warnings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		resolved, meta, err := loadConfig(nil)
		if err != nil {
			return err
		}
		result := config.Validate(resolved.Config, meta)
		printValidationResult(cmd.OutOrStdout(), result)
		if result.HasErrors() {
			return fmt.Errorf("configuration has %d error(s)", len(result.Errors()))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig resolves configuration from --config (or discovery from the
// working directory), the environment and overrides.
func loadConfig(overrides *config.CLIOverrides) (*config.ResolvedConfig, *toml.MetaData, error) {
	resolved, meta, err := config.Load(flagConfig, ".", lookupEnv, overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return resolved, meta, nil
}

// sourceStyle colors a source label. --no-color switches lipgloss to the
// Ascii profile, which drops the color.
func sourceStyle(src config.ConfigSource) lipgloss.Style {
	switch src {
	case config.SourceFile:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	case config.SourceEnv:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	case config.SourceCLI:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	}
}

var (
	styleHeader   = lipgloss.NewStyle().Bold(true)
	styleSection  = lipgloss.NewStyle().Bold(true)
	styleErrorLbl = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleWarnLbl  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleSuccess  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

const fieldWidth = 22

func printResolvedConfig(out io.Writer, rc *config.ResolvedConfig) {
	const title = "Resolved Configuration"
	fmt.Fprintln(out, styleHeader.Render(title))
	fmt.Fprintln(out, strings.Repeat("=", len(title)))
	fmt.Fprintln(out)

	if rc.Path != "" {
		fmt.Fprintf(out, "Config file: %s\n", rc.Path)
	} else {
		fmt.Fprintln(out, "Config file: none found")
	}

	values := configValues(rc.Config)
	section := ""
	for _, key := range config.Keys {
		sec, name, _ := strings.Cut(key, ".")
		if sec != section {
			section = sec
			fmt.Fprintln(out)
			fmt.Fprintln(out, styleSection.Render("["+sec+"]"))
		}
		printField(out, name, values[key], rc.Sources[key])
	}
}

// configValues renders every key in config.Keys the way it would appear in
// storytotest.toml.
func configValues(c *config.Config) map[string]string {
	return map[string]string{
		"project.workspace_root":         fmtStr(c.Project.WorkspaceRoot),
		"project.test_dir":               fmtStr(c.Project.TestDir),
		"project.source_globs":           fmtSlice(c.Project.SourceGlobs),
		"project.ignore_globs":           fmtSlice(c.Project.IgnoreGlobs),
		"generation.model":               fmtStr(c.Generation.Model),
		"generation.temperature":         strconv.FormatFloat(c.Generation.Temperature, 'g', -1, 64),
		"generation.max_tokens":          strconv.Itoa(c.Generation.MaxTokens),
		"generation.max_attempts":        strconv.Itoa(c.Generation.MaxAttempts),
		"generation.matcher":             fmtStr(c.Generation.Matcher),
		"generation.extra_instructions":  fmtStr(c.Generation.ExtraInstructions),
		"generation.base_url":            fmtStr(c.Generation.BaseURL),
		"generation.requests_per_minute": strconv.Itoa(c.Generation.RequestsPerMinute),
		"generation.http_retries":        strconv.Itoa(c.Generation.HTTPRetries),
		"generation.timeout":             fmtStr(c.Generation.Timeout.String()),
		"execution.timeout":              fmtStr(c.Execution.Timeout.String()),
		"execution.max_output_bytes":     strconv.Itoa(c.Execution.MaxOutputBytes),
		"github.owner":                   fmtStr(c.GitHub.Owner),
		"github.repo":                    fmtStr(c.GitHub.Repo),
		"github.base_branch":             fmtStr(c.GitHub.BaseBranch),
		"github.fallback_branch":         fmtStr(c.GitHub.FallbackBranch),
		"github.http_retries":            strconv.Itoa(c.GitHub.HTTPRetries),
		"github.timeout":                 fmtStr(c.GitHub.Timeout.String()),
		"webhook.addr":                   fmtStr(c.Webhook.Addr),
		"webhook.path":                   fmtStr(c.Webhook.Path),
		"webhook.trigger_label":          fmtStr(c.Webhook.TriggerLabel),
		"webhook.run_timeout":            fmtStr(c.Webhook.RunTimeout.String()),
	}
}

// printField writes a single key = value (source: ...) line.
func printField(out io.Writer, name, value string, src config.ConfigSource) {
	padded := fmt.Sprintf("  %-*s", fieldWidth, name)
	srcLabel := sourceStyle(src).Render(fmt.Sprintf("(source: %s)", src))
	fmt.Fprintf(out, "%s = %-40s %s\n", padded, value, srcLabel)
}

func fmtStr(s string) string {
	return fmt.Sprintf("%q", s)
}

func fmtSlice(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func printValidationResult(out io.Writer, result *config.ValidationResult) {
	const title = "Configuration Validation"
	fmt.Fprintln(out, styleHeader.Render(title))
	fmt.Fprintln(out, strings.Repeat("=", len(title)))
	fmt.Fprintln(out)

	errs := result.Errors()
	warns := result.Warnings()

	if len(errs) == 0 && len(warns) == 0 {
		fmt.Fprintln(out, styleSuccess.Render("No issues found."))
		return
	}

	if len(errs) > 0 {
		fmt.Fprintln(out, styleErrorLbl.Render("Errors:"))
		for _, issue := range errs {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	if len(warns) > 0 {
		fmt.Fprintln(out, styleWarnLbl.Render("Warnings:"))
		for _, issue := range warns {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%d error(s), %d warning(s)\n", len(errs), len(warns))
}
