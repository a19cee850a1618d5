package storytotest_test

import (
	"bufio"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above the working directory")
		}
		dir = parent
	}
}

// makefile is the parsed shape of the Makefile: variables, rule recipes
// and the .PHONY list.
type makefile struct {
	raw     string
	vars    map[string]string
	recipes map[string][]string
	phony   map[string]bool
}

var (
	reVar  = regexp.MustCompile(`^([A-Z_]+)\s*[:?]?=\s*(.*)$`)
	reRule = regexp.MustCompile(`^([a-z][a-z0-9-]*):`)
)

func parseMakefile(t *testing.T) makefile {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(repoRoot(t), "Makefile"))
	require.NoError(t, err)

	mf := makefile{
		raw:     string(data),
		vars:    map[string]string{},
		recipes: map[string][]string{},
		phony:   map[string]bool{},
	}
	var current string
	sc := bufio.NewScanner(strings.NewReader(mf.raw))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "\t") && current != "":
			mf.recipes[current] = append(mf.recipes[current], strings.TrimSpace(line))
		case strings.HasPrefix(line, ".PHONY:"):
			for _, name := range strings.Fields(strings.TrimPrefix(line, ".PHONY:")) {
				mf.phony[name] = true
			}
			current = ""
		case reVar.MatchString(line):
			m := reVar.FindStringSubmatch(line)
			mf.vars[m[1]] = m[2]
			current = ""
		case reRule.MatchString(line):
			current = reRule.FindStringSubmatch(line)[1]
			mf.recipes[current] = nil
		case strings.TrimSpace(line) == "":
			current = ""
		}
	}
	require.NoError(t, sc.Err())
	return mf
}

func TestMakefile_Targets(t *testing.T) {
	t.Parallel()
	mf := parseMakefile(t)

	for _, target := range []string{"build", "build-debug", "test", "vet", "clean", "completions", "manpages"} {
		t.Run(target, func(t *testing.T) {
			t.Parallel()
			recipe, ok := mf.recipes[target]
			require.True(t, ok, "target %q missing", target)
			assert.NotEmpty(t, recipe, "target %q has no recipe", target)
			assert.True(t, mf.phony[target], "target %q is not .PHONY", target)
		})
	}
}

func TestMakefile_BuildsTheCLI(t *testing.T) {
	t.Parallel()
	mf := parseMakefile(t)

	assert.Equal(t, "storytotest", mf.vars["BINARY"])
	require.Len(t, mf.recipes["build"], 1)
	assert.Contains(t, mf.recipes["build"][0], "-o $(DIST)/$(BINARY) ./cmd/$(BINARY)")
	assert.Contains(t, mf.recipes["build-debug"][0], `-gcflags "all=-N -l"`)
	assert.Contains(t, mf.recipes["build-debug"][0], "$(DIST)/$(BINARY)-debug")
	assert.Contains(t, strings.Join(mf.recipes["clean"], "\n"), "rm -rf $(DIST)")

	_, err := os.Stat(filepath.Join(repoRoot(t), "cmd", "storytotest", "main.go"))
	assert.NoError(t, err)
}

// tree-sitter's grammars are C; without cgo the symbols package cannot link.
func TestMakefile_ExportsCGO(t *testing.T) {
	t.Parallel()
	mf := parseMakefile(t)

	assert.Regexp(t, `(?m)^export CGO_ENABLED=1$`, mf.raw)
}

// The -X paths must name the module and variables that actually exist,
// otherwise the linker silently ignores them.
func TestMakefile_LdflagsTargetBuildinfo(t *testing.T) {
	t.Parallel()
	root := repoRoot(t)
	mf := parseMakefile(t)

	goMod, err := os.ReadFile(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
	module := strings.TrimPrefix(strings.SplitN(string(goMod), "\n", 2)[0], "module ")
	assert.Equal(t, module, mf.vars["PKG"])

	docGo, err := os.ReadFile(filepath.Join(root, "internal", "buildinfo", "doc.go"))
	require.NoError(t, err)

	for _, name := range []string{"Version", "Commit", "Date"} {
		assert.Contains(t, mf.raw, "-X $(PKG)/internal/buildinfo."+name+"=$(", "ldflags do not set %s", name)
		assert.Regexp(t, `(?m)^\s+`+name+`\s+= "`, string(docGo), "buildinfo.%s is not a string var", name)
	}
}

func TestMakeBuild_StampsVersion(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	if _, err := exec.LookPath("make"); err != nil {
		t.Skip("make not installed")
	}
	root := repoRoot(t)
	t.Cleanup(func() { _ = exec.Command("make", "-C", root, "clean").Run() })

	build := exec.Command("make", "-C", root, "build",
		"VERSION=9.9.9-ci", "COMMIT=c0ffee1", "DATE=2026-01-02T03:04:05Z")
	out, err := build.CombinedOutput()
	require.NoError(t, err, "make build: %s", out)

	version := exec.Command(filepath.Join(root, "dist", "storytotest"), "version", "--json")
	out, err = version.Output()
	require.NoError(t, err)

	var info struct {
		Version string `json:"version"`
		Commit  string `json:"commit"`
		Date    string `json:"date"`
	}
	require.NoError(t, json.Unmarshal(out, &info))
	assert.Equal(t, "9.9.9-ci", info.Version)
	assert.Equal(t, "c0ffee1", info.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.Date)
}
