package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testdataPath returns the path to a file under the repo-root testdata/config.
func testdataPath(t *testing.T, name string) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Join(wd, "..", "..", "testdata", "config", name)
}

// --- LoadFromFile ---

func TestLoadFromFile_ValidFull(t *testing.T) {
	t.Parallel()
	cfg, md, err := LoadFromFile(testdataPath(t, "valid-full.toml"))
	require.NoError(t, err)

	assert.Equal(t, "web", cfg.Project.WorkspaceRoot)
	assert.Equal(t, "__tests__", cfg.Project.TestDir)
	assert.Equal(t, []string{"src/**/*.{ts,tsx}", "packages/*/src/**/*.ts"}, cfg.Project.SourceGlobs)
	assert.Equal(t, []string{"**/node_modules/**"}, cfg.Project.IgnoreGlobs)

	assert.Equal(t, "gpt-4o-mini", cfg.Generation.Model)
	assert.InDelta(t, 0.2, cfg.Generation.Temperature, 1e-9)
	assert.Equal(t, 3000, cfg.Generation.MaxTokens)
	assert.Equal(t, 4, cfg.Generation.MaxAttempts)
	assert.Equal(t, "scored", cfg.Generation.Matcher)
	assert.Equal(t, 30, cfg.Generation.RequestsPerMinute)
	assert.Equal(t, 90*time.Second, cfg.Generation.Timeout.Std())

	assert.Equal(t, 3*time.Minute, cfg.Execution.Timeout.Std())
	assert.Equal(t, 524288, cfg.Execution.MaxOutputBytes)

	assert.Equal(t, "acme", cfg.GitHub.Owner)
	assert.Equal(t, "storefront", cfg.GitHub.Repo)
	assert.Equal(t, 15*time.Second, cfg.GitHub.Timeout.Std())

	assert.Equal(t, ":9090", cfg.Webhook.Addr)
	assert.Equal(t, "/hooks/github", cfg.Webhook.Path)
	assert.Equal(t, "needs-tests", cfg.Webhook.TriggerLabel)
	assert.Equal(t, 10*time.Minute, cfg.Webhook.RunTimeout.Std())

	assert.Empty(t, md.Undecoded())
}

func TestLoadFromFile_UnknownKeysReported(t *testing.T) {
	t.Parallel()
	_, md, err := LoadFromFile(testdataPath(t, "unknown-keys.toml"))
	require.NoError(t, err)

	var keys []string
	for _, k := range md.Undecoded() {
		keys = append(keys, k.String())
	}
	assert.Contains(t, keys, "project.flavour")
	assert.Contains(t, keys, "deploy")
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
	}{
		{name: "syntax error", path: "invalid-syntax.toml"},
		{name: "bad duration", path: "invalid-duration.toml"},
		{name: "missing file", path: "does-not-exist.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, _, err := LoadFromFile(testdataPath(t, tt.path))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "loading config")
		})
	}
}

// --- FindConfigFile ---

func TestFindConfigFile_WalksUp(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	want := filepath.Join(root, ConfigFileName)
	require.NoError(t, os.WriteFile(want, []byte("[project]\n"), 0o644))

	got, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindConfigFile_NotFound(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	got, err := FindConfigFile(dir)
	require.NoError(t, err)
	// A parent of the temp dir could in theory hold a config; only assert
	// that nothing inside the temp dir was returned.
	if got != "" {
		assert.NotContains(t, got, dir)
	}
}

// --- Load ---

func TestLoad_ExplicitPathResolvesOverDefaults(t *testing.T) {
	t.Parallel()
	rc, meta, err := Load(testdataPath(t, "valid-partial.toml"), "", noEnv, nil)
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.Equal(t, "gpt-4o", rc.Config.Generation.Model)
	assert.Equal(t, SourceFile, rc.Sources["generation.model"])
	// Explicit zero in the file wins over the 0.3 default.
	assert.Zero(t, rc.Config.Generation.Temperature)
	assert.Equal(t, SourceFile, rc.Sources["generation.temperature"])
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultMaxAttempts, rc.Config.Generation.MaxAttempts)
	assert.Equal(t, SourceDefault, rc.Sources["generation.max_attempts"])
	assert.Equal(t, testdataPath(t, "valid-partial.toml"), rc.Path)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	rc, meta, err := Load("", dir, noEnv, nil)
	require.NoError(t, err)
	if rc.Path == "" {
		assert.Nil(t, meta)
		assert.Equal(t, NewDefaults(), rc.Config)
	}
}
