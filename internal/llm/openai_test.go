package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, got *chatRequest, choices []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}

		type message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		type choice struct {
			Index        int     `json:"index"`
			Message      message `json:"message"`
			FinishReason string  `json:"finish_reason"`
		}
		resp := struct {
			ID      string   `json:"id"`
			Model   string   `json:"model"`
			Choices []choice `json:"choices"`
		}{ID: "chatcmpl-1", Model: "gpt-4-turbo"}
		for i, c := range choices {
			resp.Choices = append(resp.Choices, choice{Index: i, Message: message{Role: "assistant", Content: c}, FinishReason: "stop"})
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestOpenAI_Complete(t *testing.T) {
	t.Parallel()
	var got chatRequest
	srv := chatServer(t, &got, []string{"first", "second"})
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	out, err := c.Complete(context.Background(), Request{
		System:      "sys",
		User:        "user prompt",
		Model:       "gpt-4-turbo",
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	assert.Equal(t, "gpt-4-turbo", got.Model)
	assert.InDelta(t, 0.3, got.Temperature, 1e-6)
	assert.Equal(t, 2000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "sys", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "user prompt", got.Messages[1].Content)
}

func TestOpenAI_ZeroTemperatureIsSent(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.Complete(context.Background(), Request{User: "u", Model: "m", Temperature: 0, MaxTokens: 10})
	require.NoError(t, err)

	temp, ok := body["temperature"]
	require.True(t, ok, "temperature missing from request: %v", body)
	assert.InDelta(t, 0, temp, 1e-6)
}

func TestWireTemperature(t *testing.T) {
	t.Parallel()
	assert.Greater(t, wireTemperature(0), float32(0))
	assert.InDelta(t, 0.7, wireTemperature(0.7), 1e-6)
}

func TestOpenAI_NoChoices(t *testing.T) {
	t.Parallel()
	srv := chatServer(t, nil, nil)
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.Complete(context.Background(), Request{Model: "m"})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestOpenAI_APIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, HTTPRetries: 0})
	_, err := c.Complete(context.Background(), Request{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestOpenAI_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ok := chatServer(t, nil, []string{"recovered"})
	defer ok.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		ok.Config.Handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, HTTPRetries: 2})
	out, err := c.Complete(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.EqualValues(t, 2, hits.Load())
}

func TestOpenAI_RateLimitHonoursContext(t *testing.T) {
	t.Parallel()
	srv := chatServer(t, nil, []string{"ok"})
	defer srv.Close()

	c := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client(), RequestsPerMinute: 1})
	_, err := c.Complete(context.Background(), Request{Model: "m"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, Request{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestMockCompleter(t *testing.T) {
	t.Parallel()
	m := NewMockCompleter("one", "two")
	ctx := context.Background()

	for _, want := range []string{"one", "two", "two"} {
		got, err := m.Complete(ctx, Request{User: want})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Len(t, m.Calls(), 3)

	boom := errors.New("boom")
	_, err := NewMockCompleter().WithError(boom).Complete(ctx, Request{})
	assert.ErrorIs(t, err, boom)
}
