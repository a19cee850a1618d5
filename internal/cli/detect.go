package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/framework"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the test framework detected in the workspace",
	Long: `Inspect the workspace's package.json and config files and print the test
framework generated tests will target: vitest, jest, playwright or unknown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadValidConfig(nil)
		if err != nil {
			return err
		}
		workspace, err := filepath.Abs(cfg.Project.WorkspaceRoot)
		if err != nil {
			return fmt.Errorf("resolving workspace: %w", err)
		}
		fw := framework.Detect(workspace)
		fmt.Fprintln(cmd.OutOrStdout(), fw)
		if !fw.Runnable() {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: generated %s tests cannot be validated locally\n", fw)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
