package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMissingCredentials is the error kind for absent secrets or identifiers.
var ErrMissingCredentials = errors.New("missing required environment variables")

// MissingCredentialsError lists every missing variable at once.
type MissingCredentialsError struct {
	Names []string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingCredentials, strings.Join(e.Names, ", "))
}

func (e *MissingCredentialsError) Unwrap() error { return ErrMissingCredentials }

// Credentials are the secrets and identifiers the publish workflow needs.
// They come from the process environment, never from storytotest.toml.
type Credentials struct {
	GitHubToken   string `env:"GITHUB_TOKEN" validate:"required"`
	GitHubOwner   string `env:"GITHUB_OWNER" validate:"required"`
	GitHubRepo    string `env:"GITHUB_REPO" validate:"required"`
	OpenAIKey     string `env:"OPENAI_API_KEY" validate:"required"`
	WorkspaceRoot string `env:"WORKSPACE_ROOT" validate:"required"`
	// WebhookSecret enables X-Hub-Signature-256 checks when set.
	WebhookSecret string `env:"GITHUB_WEBHOOK_SECRET"`
}

var envValidator = newValidator("env")

// LoadCredentials reads Credentials through envFn. Owner and repo fall back
// to cfg.GitHub when the environment does not set them; the workspace root
// falls back to DefaultWebhookWorkspace. All missing values are reported
// together in a *MissingCredentialsError.
func LoadCredentials(envFn EnvFunc, cfg *Config) (*Credentials, error) {
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	lookup := func(name string) string {
		v, _ := envFn(name)
		return strings.TrimSpace(v)
	}

	creds := &Credentials{WorkspaceRoot: DefaultWebhookWorkspace}
	v := reflect.ValueOf(creds).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if val := lookup(t.Field(i).Tag.Get("env")); val != "" {
			v.Field(i).SetString(val)
		}
	}

	if cfg != nil {
		if creds.GitHubOwner == "" {
			creds.GitHubOwner = cfg.GitHub.Owner
		}
		if creds.GitHubRepo == "" {
			creds.GitHubRepo = cfg.GitHub.Repo
		}
	}

	if err := envValidator.Struct(creds); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("config: validating credentials: %w", err)
		}
		missing := &MissingCredentialsError{}
		for _, fe := range verrs {
			missing.Names = append(missing.Names, fe.Field())
		}
		return nil, missing
	}
	return creds, nil
}
