package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderConfigTemplate_DecodesAndValidates(t *testing.T) {
	t.Parallel()
	vars := DefaultTemplateVars()
	vars.Owner = "acme"
	vars.Repo = "storefront"

	content, err := RenderConfigTemplate(vars)
	require.NoError(t, err)

	var cfg Config
	md, err := toml.Decode(string(content), &cfg)
	require.NoError(t, err)
	assert.Empty(t, md.Undecoded())
	assert.Equal(t, DefaultSourceGlobs, cfg.Project.SourceGlobs)
	assert.Equal(t, "acme", cfg.GitHub.Owner)

	vr := Validate(&cfg, &md)
	assert.False(t, vr.HasErrors(), "%+v", vr.Issues)
}

func TestWriteConfigTemplate_RespectsForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path, err := WriteConfigTemplate(dir, DefaultTemplateVars(), false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), path)

	require.NoError(t, os.WriteFile(path, []byte("# edited\n"), 0o600))

	_, err = WriteConfigTemplate(dir, DefaultTemplateVars(), false)
	assert.ErrorIs(t, err, ErrConfigExists)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# edited\n", string(data))

	_, err = WriteConfigTemplate(dir, DefaultTemplateVars(), true)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[generation]")
}
