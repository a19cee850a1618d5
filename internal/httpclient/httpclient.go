// Package httpclient builds the retrying HTTP client shared by the
// completion-service and GitHub clients.
package httpclient

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
)

// Options configures New.
type Options struct {
	// Retries is the number of retries after the first attempt. Only
	// connection errors, 429 and 5xx responses are retried.
	Retries int
	// Timeout bounds each individual attempt. Zero means no per-attempt
	// timeout; callers still bound the whole call with their context.
	Timeout time.Duration
	// WaitMin and WaitMax bound the backoff between attempts. Zero values
	// keep the library defaults.
	WaitMin time.Duration
	WaitMax time.Duration
	// Logger receives retry diagnostics. Nil disables them.
	Logger *log.Logger
}

// New returns a standard *http.Client whose transport retries transient
// failures. After the last attempt the final response is handed back to
// the caller unchanged so API clients can still decode error bodies.
func New(opts Options) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = max(opts.Retries, 0)
	if opts.WaitMin > 0 {
		rc.RetryWaitMin = opts.WaitMin
	}
	if opts.WaitMax > 0 {
		rc.RetryWaitMax = opts.WaitMax
	}
	rc.HTTPClient.Timeout = opts.Timeout
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Logger != nil {
		rc.Logger = leveled{opts.Logger}
	} else {
		rc.Logger = nil
	}
	return rc.StandardClient()
}

// leveled adapts a charmbracelet logger to retryablehttp.LeveledLogger.
// Request-level chatter is demoted to debug.
type leveled struct {
	l *log.Logger
}

func (a leveled) Error(msg string, kv ...interface{}) { a.l.Warn(msg, kv...) }
func (a leveled) Info(msg string, kv ...interface{})  { a.l.Debug(msg, kv...) }
func (a leveled) Debug(msg string, kv ...interface{}) { a.l.Debug(msg, kv...) }
func (a leveled) Warn(msg string, kv ...interface{})  { a.l.Warn(msg, kv...) }
