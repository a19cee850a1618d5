package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration structure mapping to storytotest.toml.
type Config struct {
	Project    ProjectConfig    `toml:"project"`
	Generation GenerationConfig `toml:"generation"`
	Execution  ExecutionConfig  `toml:"execution"`
	GitHub     GitHubConfig     `toml:"github"`
	Webhook    WebhookConfig    `toml:"webhook"`
}

// ProjectConfig maps to the [project] section.
type ProjectConfig struct {
	// WorkspaceRoot is the TypeScript project the pipeline works against.
	WorkspaceRoot string `toml:"workspace_root" validate:"required"`
	// TestDir is where generated tests land, relative to WorkspaceRoot.
	TestDir     string   `toml:"test_dir" validate:"required"`
	SourceGlobs []string `toml:"source_globs" validate:"required,min=1,dive,required"`
	IgnoreGlobs []string `toml:"ignore_globs" validate:"dive,required"`
}

// GenerationConfig maps to the [generation] section.
type GenerationConfig struct {
	Model             string   `toml:"model" validate:"required"`
	Temperature       float64  `toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int      `toml:"max_tokens" validate:"gt=0"`
	MaxAttempts       int      `toml:"max_attempts" validate:"gte=1,lte=10"`
	Matcher           string   `toml:"matcher" validate:"oneof=substring scored"`
	ExtraInstructions string   `toml:"extra_instructions"`
	BaseURL           string   `toml:"base_url" validate:"omitempty,url"`
	RequestsPerMinute int      `toml:"requests_per_minute" validate:"gte=0"`
	HTTPRetries       int      `toml:"http_retries" validate:"gte=0,lte=10"`
	Timeout           Duration `toml:"timeout" validate:"gt=0"`
}

// ExecutionConfig maps to the [execution] section.
type ExecutionConfig struct {
	Timeout        Duration `toml:"timeout" validate:"gt=0"`
	MaxOutputBytes int      `toml:"max_output_bytes" validate:"gt=0"`
}

// GitHubConfig maps to the [github] section. The token is never read from
// the file; see Credentials.
type GitHubConfig struct {
	Owner          string   `toml:"owner"`
	Repo           string   `toml:"repo"`
	BaseBranch     string   `toml:"base_branch" validate:"required"`
	FallbackBranch string   `toml:"fallback_branch"`
	HTTPRetries    int      `toml:"http_retries" validate:"gte=0,lte=10"`
	Timeout        Duration `toml:"timeout" validate:"gt=0"`
}

// WebhookConfig maps to the [webhook] section.
type WebhookConfig struct {
	Addr         string   `toml:"addr" validate:"required"`
	Path         string   `toml:"path" validate:"required,startswith=/"`
	TriggerLabel string   `toml:"trigger_label" validate:"required"`
	RunTimeout   Duration `toml:"run_timeout" validate:"gt=0"`
}

// Duration is a time.Duration that decodes from TOML strings such as "90s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
