package config

import (
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
)

// ConfigSource identifies where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value came from built-in defaults.
	SourceDefault ConfigSource = "default"
	// SourceFile indicates the value came from storytotest.toml.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
	// SourceCLI indicates the value came from a CLI flag.
	SourceCLI ConfigSource = "cli"
)

// ResolvedConfig holds the merged configuration with per-key source tracking.
type ResolvedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource // dotted key, e.g. "generation.model"
	Path    string                  // config file used, empty if none
}

// CLIOverrides captures flag values that can override configuration. A nil
// pointer means the flag was not given.
type CLIOverrides struct {
	WorkspaceRoot *string
	TestDir       *string
	Model         *string
	MaxAttempts   *int
	Matcher       *string
	WebhookAddr   *string
}

// EnvFunc looks up environment variables. os.LookupEnv in production.
type EnvFunc func(key string) (string, bool)

// Keys lists every dotted configuration key in display order.
var Keys = []string{
	"project.workspace_root",
	"project.test_dir",
	"project.source_globs",
	"project.ignore_globs",
	"generation.model",
	"generation.temperature",
	"generation.max_tokens",
	"generation.max_attempts",
	"generation.matcher",
	"generation.extra_instructions",
	"generation.base_url",
	"generation.requests_per_minute",
	"generation.http_retries",
	"generation.timeout",
	"execution.timeout",
	"execution.max_output_bytes",
	"github.owner",
	"github.repo",
	"github.base_branch",
	"github.fallback_branch",
	"github.http_retries",
	"github.timeout",
	"webhook.addr",
	"webhook.path",
	"webhook.trigger_label",
	"webhook.run_timeout",
}

// Resolve merges configuration in priority order:
// CLI flags > environment variables > config file > defaults.
//
// When meta is non-nil a file key overrides the default whenever it is
// present in the file, even with a zero value. Without metadata only non-zero
// file values override.
func Resolve(defaults, fileConfig *Config, meta *toml.MetaData, envFn EnvFunc, overrides *CLIOverrides) *ResolvedConfig {
	if defaults == nil {
		defaults = &Config{}
	}
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	merged := cloneConfig(defaults)
	rc := &ResolvedConfig{
		Config:  merged,
		Sources: make(map[string]ConfigSource, len(Keys)),
	}
	for _, k := range Keys {
		rc.Sources[k] = SourceDefault
	}

	if fileConfig != nil {
		resolveFromFile(rc, fileConfig, meta)
	}
	resolveFromEnv(rc, envFn)
	resolveFromCLI(rc, overrides)

	return rc
}

// --- Layer 2: File ---

func resolveFromFile(rc *ResolvedConfig, f *Config, meta *toml.MetaData) {
	c := rc.Config
	m := fileMerger{rc: rc, meta: meta}

	mergeValue(m, &c.Project.WorkspaceRoot, f.Project.WorkspaceRoot, "project.workspace_root")
	mergeValue(m, &c.Project.TestDir, f.Project.TestDir, "project.test_dir")
	m.slice(&c.Project.SourceGlobs, f.Project.SourceGlobs, "project.source_globs")
	m.slice(&c.Project.IgnoreGlobs, f.Project.IgnoreGlobs, "project.ignore_globs")

	mergeValue(m, &c.Generation.Model, f.Generation.Model, "generation.model")
	mergeValue(m, &c.Generation.Temperature, f.Generation.Temperature, "generation.temperature")
	mergeValue(m, &c.Generation.MaxTokens, f.Generation.MaxTokens, "generation.max_tokens")
	mergeValue(m, &c.Generation.MaxAttempts, f.Generation.MaxAttempts, "generation.max_attempts")
	mergeValue(m, &c.Generation.Matcher, f.Generation.Matcher, "generation.matcher")
	mergeValue(m, &c.Generation.ExtraInstructions, f.Generation.ExtraInstructions, "generation.extra_instructions")
	mergeValue(m, &c.Generation.BaseURL, f.Generation.BaseURL, "generation.base_url")
	mergeValue(m, &c.Generation.RequestsPerMinute, f.Generation.RequestsPerMinute, "generation.requests_per_minute")
	mergeValue(m, &c.Generation.HTTPRetries, f.Generation.HTTPRetries, "generation.http_retries")
	mergeValue(m, &c.Generation.Timeout, f.Generation.Timeout, "generation.timeout")

	mergeValue(m, &c.Execution.Timeout, f.Execution.Timeout, "execution.timeout")
	mergeValue(m, &c.Execution.MaxOutputBytes, f.Execution.MaxOutputBytes, "execution.max_output_bytes")

	mergeValue(m, &c.GitHub.Owner, f.GitHub.Owner, "github.owner")
	mergeValue(m, &c.GitHub.Repo, f.GitHub.Repo, "github.repo")
	mergeValue(m, &c.GitHub.BaseBranch, f.GitHub.BaseBranch, "github.base_branch")
	mergeValue(m, &c.GitHub.FallbackBranch, f.GitHub.FallbackBranch, "github.fallback_branch")
	mergeValue(m, &c.GitHub.HTTPRetries, f.GitHub.HTTPRetries, "github.http_retries")
	mergeValue(m, &c.GitHub.Timeout, f.GitHub.Timeout, "github.timeout")

	mergeValue(m, &c.Webhook.Addr, f.Webhook.Addr, "webhook.addr")
	mergeValue(m, &c.Webhook.Path, f.Webhook.Path, "webhook.path")
	mergeValue(m, &c.Webhook.TriggerLabel, f.Webhook.TriggerLabel, "webhook.trigger_label")
	mergeValue(m, &c.Webhook.RunTimeout, f.Webhook.RunTimeout, "webhook.run_timeout")
}

type fileMerger struct {
	rc   *ResolvedConfig
	meta *toml.MetaData
}

func (m fileMerger) defined(key string, zero bool) bool {
	if m.meta != nil {
		return m.meta.IsDefined(strings.Split(key, ".")...)
	}
	return !zero
}

func (m fileMerger) slice(target *[]string, value []string, key string) {
	if !m.defined(key, len(value) == 0) {
		return
	}
	*target = append([]string(nil), value...)
	m.rc.Sources[key] = SourceFile
}

func mergeValue[T comparable](m fileMerger, target *T, value T, key string) {
	var zero T
	if !m.defined(key, value == zero) {
		return
	}
	*target = value
	m.rc.Sources[key] = SourceFile
}

// --- Layer 3: Environment ---
//
//	STORYTOTEST_WORKSPACE    -> project.workspace_root
//	WORKSPACE_ROOT           -> project.workspace_root (lower priority)
//	STORYTOTEST_TEST_DIR     -> project.test_dir
//	STORYTOTEST_MODEL        -> generation.model
//	STORYTOTEST_MAX_ATTEMPTS -> generation.max_attempts
//	OPENAI_BASE_URL          -> generation.base_url
//	GITHUB_OWNER             -> github.owner
//	GITHUB_REPO              -> github.repo
//	STORYTOTEST_WEBHOOK_ADDR -> webhook.addr
func resolveFromEnv(rc *ResolvedConfig, envFn EnvFunc) {
	c := rc.Config

	envString(rc, envFn, "WORKSPACE_ROOT", &c.Project.WorkspaceRoot, "project.workspace_root")
	envString(rc, envFn, "STORYTOTEST_WORKSPACE", &c.Project.WorkspaceRoot, "project.workspace_root")
	envString(rc, envFn, "STORYTOTEST_TEST_DIR", &c.Project.TestDir, "project.test_dir")
	envString(rc, envFn, "STORYTOTEST_MODEL", &c.Generation.Model, "generation.model")
	envString(rc, envFn, "OPENAI_BASE_URL", &c.Generation.BaseURL, "generation.base_url")
	envString(rc, envFn, "GITHUB_OWNER", &c.GitHub.Owner, "github.owner")
	envString(rc, envFn, "GITHUB_REPO", &c.GitHub.Repo, "github.repo")
	envString(rc, envFn, "STORYTOTEST_WEBHOOK_ADDR", &c.Webhook.Addr, "webhook.addr")

	if val, ok := envFn("STORYTOTEST_MAX_ATTEMPTS"); ok && val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			logging.New(logging.ComponentConfig).Warn("ignoring invalid env value",
				"key", "STORYTOTEST_MAX_ATTEMPTS", "value", val)
		} else {
			c.Generation.MaxAttempts = n
			rc.Sources["generation.max_attempts"] = SourceEnv
		}
	}
}

func envString(rc *ResolvedConfig, envFn EnvFunc, name string, target *string, key string) {
	val, ok := envFn(name)
	if !ok || val == "" {
		return
	}
	*target = val
	rc.Sources[key] = SourceEnv
}

// --- Layer 4: CLI overrides ---

func resolveFromCLI(rc *ResolvedConfig, o *CLIOverrides) {
	c := rc.Config
	cliValue(rc, o.WorkspaceRoot, &c.Project.WorkspaceRoot, "project.workspace_root")
	cliValue(rc, o.TestDir, &c.Project.TestDir, "project.test_dir")
	cliValue(rc, o.Model, &c.Generation.Model, "generation.model")
	cliValue(rc, o.MaxAttempts, &c.Generation.MaxAttempts, "generation.max_attempts")
	cliValue(rc, o.Matcher, &c.Generation.Matcher, "generation.matcher")
	cliValue(rc, o.WebhookAddr, &c.Webhook.Addr, "webhook.addr")
}

func cliValue[T any](rc *ResolvedConfig, override *T, target *T, key string) {
	if override == nil {
		return
	}
	*target = *override
	rc.Sources[key] = SourceCLI
}

// cloneConfig returns a deep copy of src. Only the slices need copying.
func cloneConfig(src *Config) *Config {
	dst := *src
	dst.Project.SourceGlobs = append([]string(nil), src.Project.SourceGlobs...)
	dst.Project.IgnoreGlobs = append([]string(nil), src.Project.IgnoreGlobs...)
	return &dst
}
