package config

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/charmbracelet/log"
)

//go:embed templates/storytotest.toml.tmpl
var templateFS embed.FS

const configTemplatePath = "templates/storytotest.toml.tmpl"

// ErrConfigExists is returned by WriteConfigTemplate when the target exists
// and force is false.
var ErrConfigExists = errors.New("config file already exists")

// TemplateVars are the values substituted into the starter config.
type TemplateVars struct {
	WorkspaceRoot string
	TestDir       string
	SourceGlobs   []string
	Model         string
	Owner         string
	Repo          string
}

// DefaultTemplateVars returns TemplateVars filled from NewDefaults.
func DefaultTemplateVars() TemplateVars {
	d := NewDefaults()
	return TemplateVars{
		WorkspaceRoot: d.Project.WorkspaceRoot,
		TestDir:       d.Project.TestDir,
		SourceGlobs:   d.Project.SourceGlobs,
		Model:         d.Generation.Model,
	}
}

// RenderConfigTemplate renders the starter storytotest.toml.
func RenderConfigTemplate(vars TemplateVars) ([]byte, error) {
	raw, err := templateFS.ReadFile(configTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("reading embedded template: %w", err)
	}
	tmpl, err := template.New("storytotest.toml").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing config template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("executing config template: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConfigTemplate writes storytotest.toml into destDir and returns its
// path. Existing files are kept unless force is set.
func WriteConfigTemplate(destDir string, vars TemplateVars, force bool) (string, error) {
	dest := filepath.Join(destDir, ConfigFileName)
	if _, err := os.Stat(dest); err == nil && !force {
		return dest, fmt.Errorf("%w: %s", ErrConfigExists, dest)
	}

	content, err := RenderConfigTemplate(vars)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", destDir, err)
	}
	if err := os.WriteFile(dest, content, 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	log.Debug("wrote config template", "path", dest)
	return dest, nil
}
