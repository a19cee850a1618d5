package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// ValidationSeverity indicates whether a validation issue is an error or warning.
type ValidationSeverity string

const (
	// SeverityError marks an unusable configuration.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning marks a configuration that works but is probably wrong.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g. "generation.max_attempts"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors reports whether any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors()) > 0
}

// HasWarnings reports whether any issue has warning severity.
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings()) > 0
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	return vr.filter(SeverityError)
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	return vr.filter(SeverityWarning)
}

func (vr *ValidationResult) filter(sev ValidationSeverity) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// Err folds the error-severity issues into a single error, or returns nil.
func (vr *ValidationResult) Err() error {
	errs := vr.Errors()
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}

// ErrInvalidConfig is returned by ValidationResult.Err.
var ErrInvalidConfig = errors.New("invalid configuration")

// tomlValidator reports field names by their TOML key so that issues line up
// with what users write in storytotest.toml.
var tomlValidator = newValidator("toml")

func newValidator(tag string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks cfg structurally (validator tags) and semantically, and
// reports unknown keys when meta is available.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}
	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateStruct(vr, cfg)
	validateSemantics(vr, cfg)
	validateUnknownKeys(vr, meta)

	return vr
}

func validateStruct(vr *ValidationResult, cfg *Config) {
	err := tomlValidator.Struct(cfg)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		addError(vr, "", err.Error())
		return
	}
	for _, fe := range verrs {
		addError(vr, fieldPath(fe.Namespace()), describeRule(fe))
	}
}

// fieldPath drops the leading struct name from a validator namespace:
// "Config.generation.max_attempts" becomes "generation.max_attempts".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return "must be a valid URL"
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func validateSemantics(vr *ValidationResult, cfg *Config) {
	if filepath.IsAbs(cfg.Project.TestDir) {
		addWarning(vr, "project.test_dir",
			"absolute test directory; generated imports are computed relative to it")
	}
	if cfg.Generation.Temperature > 1 {
		addWarning(vr, "generation.temperature",
			"values above 1 make generated tests noticeably less stable")
	}
	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		addWarning(vr, "github",
			"owner and repo are unset; publish and serve need GITHUB_OWNER and GITHUB_REPO")
	}
	if cfg.GitHub.FallbackBranch != "" && cfg.GitHub.FallbackBranch == cfg.GitHub.BaseBranch {
		addWarning(vr, "github.fallback_branch", "same as base_branch; fallback has no effect")
	}
}

// validateUnknownKeys flags TOML keys that did not map to any field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}
	for _, key := range meta.Undecoded() {
		addWarning(vr, strings.Join(key, "."), "unknown configuration key")
	}
}

func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{Severity: SeverityError, Field: field, Message: message})
}

func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{Severity: SeverityWarning, Field: field, Message: message})
}
