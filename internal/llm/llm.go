// Package llm defines the completion-service contract used by test
// generation and its OpenAI-backed implementation.
package llm

import (
	"context"
	"errors"
)

// ErrNoChoices is returned when the service answers without any candidate.
var ErrNoChoices = errors.New("completion returned no choices")

// Request is one chat-style completion call.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Completer turns a prompt into text. Implementations return the first
// candidate's content.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
