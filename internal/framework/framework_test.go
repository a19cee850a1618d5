package framework

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestDetect(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		files map[string]string
		want  Framework
	}{
		{
			name: "vitest dev dependency beats jest config",
			files: map[string]string{
				"package.json":   `{"devDependencies": {"vitest": "^1.0.0"}}`,
				"jest.config.js": "module.exports = {};",
			},
			want: Vitest,
		},
		{
			name:  "vitest beats jest when both listed",
			files: map[string]string{"package.json": `{"dependencies": {"jest": "29"}, "devDependencies": {"vitest": "1"}}`},
			want:  Vitest,
		},
		{
			name:  "jest globals",
			files: map[string]string{"package.json": `{"devDependencies": {"@jest/globals": "29"}}`},
			want:  Jest,
		},
		{
			name:  "playwright test package",
			files: map[string]string{"package.json": `{"devDependencies": {"@playwright/test": "1.40"}}`},
			want:  Playwright,
		},
		{
			name:  "jest config only",
			files: map[string]string{"jest.config.ts": "export default {};"},
			want:  Jest,
		},
		{
			name:  "vite config only",
			files: map[string]string{"vite.config.ts": "export default {};"},
			want:  Vitest,
		},
		{
			name:  "jest config checked before vitest config",
			files: map[string]string{"vitest.config.ts": "", "jest.config.mjs": ""},
			want:  Jest,
		},
		{
			name:  "playwright config",
			files: map[string]string{"playwright.config.cjs": ""},
			want:  Playwright,
		},
		{
			name: "invalid manifest falls through to configs",
			files: map[string]string{
				"package.json":     `{"devDependencies": `,
				"vitest.config.js": "",
			},
			want: Vitest,
		},
		{
			name:  "nothing",
			files: map[string]string{"package.json": `{"dependencies": {"react": "18"}}`},
			want:  Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Detect(workspace(t, tt.files)))
		})
	}
}

func TestDetect_MissingWorkspace(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Unknown, Detect(filepath.Join(t.TempDir(), "nope")))
}

func TestParse(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Jest, Parse("jest"))
	assert.Equal(t, Vitest, Parse("vitest"))
	assert.Equal(t, Playwright, Parse("playwright"))
	assert.Equal(t, Unknown, Parse("mocha"))
	assert.Equal(t, Unknown, Parse(""))
}

func TestFramework_ImportLineAndRunnable(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `import { describe, it, expect, vi } from "vitest";`, Vitest.ImportLine())
	assert.Equal(t, `import { describe, it, expect, jest } from "@jest/globals";`, Jest.ImportLine())
	assert.Equal(t, `import { test, expect } from "@playwright/test";`, Playwright.ImportLine())
	assert.Empty(t, Unknown.ImportLine())

	assert.True(t, Jest.Runnable())
	assert.True(t, Vitest.Runnable())
	assert.False(t, Playwright.Runnable())
	assert.False(t, Unknown.Runnable())
}
