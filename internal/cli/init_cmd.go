package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/config"
)

var (
	initFlagForce bool
	initFlagOwner string
	initFlagRepo  string
	initFlagModel string
)

// initCmd writes a starter storytotest.toml into the working directory. It
// never reads an existing config, so it is safe in a fresh directory.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter storytotest.toml",
	Long: `Write a starter storytotest.toml into the current directory (or --dir).
An existing file is kept unless --force is supplied.

Examples:
  storytotest init
  storytotest init --owner acme --repo shop-web
  storytotest init --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlagForce, "force", false, "Overwrite an existing storytotest.toml")
	initCmd.Flags().StringVar(&initFlagOwner, "owner", "", "GitHub repository owner")
	initCmd.Flags().StringVar(&initFlagRepo, "repo", "", "GitHub repository name")
	initCmd.Flags().StringVar(&initFlagModel, "model", "", "Model used for generation")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	destDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	vars := config.DefaultTemplateVars()
	vars.Owner = initFlagOwner
	vars.Repo = initFlagRepo
	if initFlagModel != "" {
		vars.Model = initFlagModel
	}

	path, err := config.WriteConfigTemplate(destDir, vars, initFlagForce)
	if errors.Is(err, config.ErrConfigExists) {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Created %s\n\n", path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Edit %s to point at your TypeScript sources\n", config.ConfigFileName)
	fmt.Fprintln(out, "  2. Export OPENAI_API_KEY")
	fmt.Fprintln(out, "  3. Run: storytotest generate --story \"As a user I want ...\"")
	return nil
}
