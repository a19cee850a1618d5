package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/symbols"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/tui"
)

var indexFormat string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Print the exported interfaces and classes of the workspace",
	Long: `Scan the configured source globs and print every exported interface-like
and class-like declaration.

Examples:
  storytotest index
  storytotest index --format json
  storytotest --dir ../shop-web index --format yaml`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexFormat, "format", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	switch indexFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q: use text, json or yaml", indexFormat)
	}

	cfg, err := loadValidConfig(nil)
	if err != nil {
		return err
	}
	workspace, err := filepath.Abs(cfg.Project.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("resolving workspace: %w", err)
	}

	idx, err := symbols.Build(cmd.Context(), workspace, symbols.Options{
		Globs:  cfg.Project.SourceGlobs,
		Ignore: cfg.Project.IgnoreGlobs,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch indexFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(idx)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(idx); err != nil {
			return fmt.Errorf("encoding index: %w", err)
		}
		return enc.Close()
	default:
		printIndex(out, idx)
		return nil
	}
}

func printIndex(out io.Writer, idx *symbols.Index) {
	theme := tui.DefaultTheme()
	section := func(title string, decls []symbols.Descriptor) {
		fmt.Fprintln(out, theme.Title.Render(fmt.Sprintf("%s (%d)", title, len(decls))))
		for _, d := range decls {
			fmt.Fprintf(out, "  %s  %s", d.Name, theme.Label.Render(d.FilePath))
			if d.IsDefaultExport {
				fmt.Fprint(out, theme.Label.Render("  [default]"))
			}
			fmt.Fprintln(out)
			if names := d.MemberNames(); len(names) > 0 {
				fmt.Fprintf(out, "      %s\n", strings.Join(names, ", "))
			}
		}
	}
	section("Interfaces", idx.Interfaces)
	fmt.Fprintln(out)
	section("Classes", idx.Classes)
	fmt.Fprintf(out, "\n%d files scanned, fingerprint %s\n", idx.Files, idx.Fingerprint)
}
