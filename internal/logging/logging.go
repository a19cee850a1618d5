// Package logging wires charmbracelet/log for storytotest.
//
// All log output goes to stderr so that stdout stays free for generated code,
// JSON index dumps and other machine-readable output.
//
//	logging.Setup(verbose, quiet, jsonFormat) // once, from the CLI
//	logger := logging.New(logging.ComponentSymbols)
//	logger.Info("indexed workspace", "files", n)
//
// Setup must run before New. charmbracelet/log copies the default logger's
// level and formatter into children when they are created.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Component prefixes used across the pipeline.
const (
	ComponentCLI      = "cli"
	ComponentConfig   = "config"
	ComponentSymbols  = "symbols"
	ComponentGenerate = "generate"
	ComponentLLM      = "llm"
	ComponentExecute  = "execute"
	ComponentValidate = "validate"
	ComponentPipeline = "pipeline"
	ComponentPublish  = "publish"
	ComponentWorkflow = "workflow"
	ComponentGitHub   = "github"
	ComponentGit      = "git"
	ComponentWebhook  = "webhook"
)

// Level aliases so callers do not need to import charmbracelet/log.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// Setup configures the default logger. Quiet wins over verbose.
func Setup(verbose, quiet, jsonFormat bool) {
	level := log.InfoLevel
	switch {
	case quiet:
		level = log.ErrorLevel
	case verbose:
		level = log.DebugLevel
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(jsonFormat)

	formatter := log.TextFormatter
	if jsonFormat {
		formatter = log.JSONFormatter
	}
	log.SetFormatter(formatter)
}

// New returns a child of the default logger carrying the component prefix.
// An empty component yields an unprefixed logger.
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// Discard returns a logger that drops everything. Useful as a fallback when a
// caller passes a nil logger.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// SetOutput redirects the default logger, mostly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
