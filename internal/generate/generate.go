// Package generate produces a TypeScript test file for a user story by
// prompting a completion service with the matched code symbols.
package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/framework"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/llm"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/symbols"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultModel       = "gpt-4-turbo"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
)

// Request carries everything one generation needs.
type Request struct {
	Story      string
	Interfaces []symbols.Descriptor
	Classes    []symbols.Descriptor
	TestDir    string
	Framework  framework.Framework
	// Imports are deterministic import statements, possibly repeated.
	Imports []string
	// ExtraInstructions is appended to the prompt as additional guidance.
	// The validation loop uses it to feed back the previous failure.
	ExtraInstructions string
	// Model overrides Options.Model when set.
	Model string
}

// Artifact is a generated test file.
type Artifact struct {
	Code     string
	FileName string
}

// Options configures a Generator. Temperature zero requests deterministic
// sampling and is kept on the wire by the llm client; use DefaultOptions
// for the usual values.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// DefaultOptions returns the stock model settings.
func DefaultOptions() Options {
	return Options{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// Generator renders prompts and calls a Completer.
type Generator struct {
	completer llm.Completer
	opts      Options
	logger    *log.Logger
}

// New returns a Generator that uses c for completions.
func New(c llm.Completer, opts Options) *Generator {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Generator{
		completer: c,
		opts:      opts,
		logger:    logging.New(logging.ComponentGenerate),
	}
}

// Generate renders the prompt for req, calls the completion service once and
// assembles the resulting test file. Completion errors are returned as-is
// wrapped; they are never retried here.
func (g *Generator) Generate(ctx context.Context, req Request) (Artifact, error) {
	importBlock := strings.Join(UniqueLines(req.Imports), "\n")

	prompt, err := BuildPrompt(req, importBlock)
	if err != nil {
		return Artifact{}, err
	}

	model := req.Model
	if model == "" {
		model = g.opts.Model
	}

	start := time.Now()
	text, err := g.completer.Complete(ctx, llm.Request{
		System:      prompt.System,
		User:        prompt.User,
		Model:       model,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("generate: completing: %w", err)
	}

	art := Artifact{
		Code:     AssembleCode(text, req.Framework, importBlock),
		FileName: FileName(req.Interfaces, req.Classes),
	}
	g.logger.Debug("test generated",
		"file", art.FileName,
		"model", model,
		"framework", req.Framework,
		"bytes", len(art.Code),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return art, nil
}
