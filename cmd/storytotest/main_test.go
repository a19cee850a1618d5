package main_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// projectRoot walks up from the working directory to the go.mod.
func projectRoot(tb testing.TB) string {
	tb.Helper()
	dir, err := os.Getwd()
	require.NoError(tb, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			tb.Fatal("could not find project root (no go.mod found in any parent directory)")
		}
		dir = parent
	}
}

// buildBinary compiles the command into a temp dir. The tree-sitter
// grammar needs cgo.
func buildBinary(tb testing.TB) string {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping binary build in short mode")
	}
	binPath := filepath.Join(tb.TempDir(), "storytotest")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/storytotest/")
	cmd.Dir = projectRoot(tb)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	output, err := cmd.CombinedOutput()
	require.NoError(tb, err, "go build failed: %s", string(output))
	return binPath
}

func TestBinary_Help(t *testing.T) {
	bin := buildBinary(t)

	output, err := exec.Command(bin, "--help").CombinedOutput()
	require.NoError(t, err, string(output))
	assert.Contains(t, string(output), "storytotest")
	assert.Contains(t, string(output), "generate")
}

func TestBinary_VersionJSON(t *testing.T) {
	bin := buildBinary(t)

	output, err := exec.Command(bin, "version", "--json").Output()
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal(output, &info))
	assert.NotEmpty(t, info["version"])
	assert.NotEmpty(t, info["go_version"])
}

func TestBinary_UnknownCommandExitsNonZero(t *testing.T) {
	bin := buildBinary(t)

	output, err := exec.Command(bin, "no-such-command").CombinedOutput()
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.True(t, strings.Contains(string(output), "unknown command"))
}

// BenchmarkBinaryStartup measures process launch to exit for
// "storytotest version".
func BenchmarkBinaryStartup(b *testing.B) {
	bin := buildBinary(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := exec.Command(bin, "version").Run(); err != nil {
			b.Fatalf("version failed: %v", err)
		}
	}
}
