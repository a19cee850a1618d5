package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/httpclient"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
)

// Compile-time check that OpenAI implements Completer.
var _ Completer = (*OpenAI)(nil)

// OpenAIOptions configures NewOpenAI.
type OpenAIOptions struct {
	APIKey string
	// BaseURL overrides the API endpoint for compatible services.
	BaseURL string
	// RequestsPerMinute throttles calls client-side. Zero disables throttling.
	RequestsPerMinute int
	// HTTPRetries is the number of transport-level retries for 429/5xx.
	HTTPRetries int
	// Timeout bounds a single Complete call including retries.
	Timeout time.Duration
	// HTTPClient replaces the retrying client. Used by tests.
	HTTPClient *http.Client
}

// OpenAI is a Completer backed by the chat completions API.
type OpenAI struct {
	client  *openai.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *log.Logger
}

// NewOpenAI returns a client for the given options.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	logger := logging.New(logging.ComponentLLM)

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	} else {
		cfg.HTTPClient = httpclient.New(httpclient.Options{
			Retries: opts.HTTPRetries,
			Logger:  logger,
		})
	}

	c := &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		timeout: opts.Timeout,
		logger:  logger,
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return c
}

// Complete sends req and returns the first choice's content.
func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: waiting for rate limit: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: wireTemperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: %w", ErrNoChoices)
	}

	c.logger.Debug("completion received",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return resp.Choices[0].Message.Content, nil
}

// wireTemperature keeps a requested zero on the wire. go-openai omits a zero
// temperature, which the API reads as its default of 1.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
