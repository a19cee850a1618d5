package config

import "time"

// Default values shared with callers that need them outside a Config.
const (
	DefaultModel            = "gpt-4-turbo"
	DefaultTemperature      = 0.3
	DefaultMaxTokens        = 2000
	DefaultMaxAttempts      = 3
	DefaultMaxOutputBytes   = 1024 * 1024
	DefaultTestDir          = "__tests__"
	DefaultTriggerLabel     = "ready-for-tests"
	DefaultWebhookWorkspace = "/tmp/workspace"
)

// DefaultSourceGlobs are the TypeScript locations indexed when the config
// does not name any.
var DefaultSourceGlobs = []string{
	"src/**/*.{ts,tsx}",
	"app/**/*.{ts,tsx}",
	"lib/**/*.{ts,tsx}",
	"components/**/*.{ts,tsx}",
}

// NewDefaults returns a Config populated with all default values.
func NewDefaults() *Config {
	return &Config{
		Project: ProjectConfig{
			WorkspaceRoot: ".",
			TestDir:       DefaultTestDir,
			SourceGlobs:   append([]string(nil), DefaultSourceGlobs...),
			IgnoreGlobs:   []string{"**/node_modules/**", "**/*.d.ts"},
		},
		Generation: GenerationConfig{
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			MaxAttempts: DefaultMaxAttempts,
			Matcher:     "substring",
			HTTPRetries: 2,
			Timeout:     Duration(2 * time.Minute),
		},
		Execution: ExecutionConfig{
			Timeout:        Duration(5 * time.Minute),
			MaxOutputBytes: DefaultMaxOutputBytes,
		},
		GitHub: GitHubConfig{
			BaseBranch:     "main",
			FallbackBranch: "master",
			HTTPRetries:    2,
			Timeout:        Duration(30 * time.Second),
		},
		Webhook: WebhookConfig{
			Addr:         ":8080",
			Path:         "/api/webhook/github",
			TriggerLabel: DefaultTriggerLabel,
			RunTimeout:   Duration(20 * time.Minute),
		},
	}
}
