// Package webhook receives GitHub issue events and starts the publish
// workflow for issues that gain the trigger label.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	gh "github.com/google/go-github/v74/github"
	"github.com/google/uuid"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/config"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/github"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/metrics"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/publish"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultPath         = "/api/webhook/github"
	DefaultTriggerLabel = "ready-for-tests"
	DefaultRunTimeout   = 20 * time.Minute

	labeledAction   = "labeled"
	signatureHeader = "X-Hub-Signature-256"
	shutdownTimeout = 10 * time.Second
)

// Response messages.
const (
	MsgMethodNotAllowed   = "Method not allowed"
	MsgNoIssue            = "No issue in payload"
	MsgIgnored            = "Event ignored"
	MsgMissingCredentials = "Missing required environment variables"
	MsgInvalidSignature   = "Invalid signature"
	MsgAccepted           = "Accepted"
)

// Processor runs the publish workflow for one issue.
type Processor interface {
	ProcessIssue(ctx context.Context, issue publish.Issue) publish.Result
}

// Factory builds a Processor from the credentials loaded for a request.
type Factory func(creds *config.Credentials) (Processor, error)

// Options configures a Server.
type Options struct {
	Path         string
	TriggerLabel string
	RunTimeout   time.Duration
	// Env looks up credentials at request time. Nil means no variables.
	Env config.EnvFunc
	// Config supplies owner/repo fallbacks for the credential check.
	Config  *config.Config
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

// Server is the webhook HTTP surface.
type Server struct {
	factory Factory
	opts    Options
	engine  *gin.Engine
	logger  *log.Logger
	runs    sync.WaitGroup
}

// New returns a Server that hands accepted issues to processors built by
// factory.
func New(factory Factory, opts Options) *Server {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.TriggerLabel == "" {
		opts.TriggerLabel = DefaultTriggerLabel
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(logging.ComponentWebhook)
	}

	s := &Server{factory: factory, opts: opts, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Any(opts.Path, s.handleWebhook)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	s.engine = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and waits for in-flight workflow runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "path", s.opts.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook: serving: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook: shutdown: %w", err)
	}
	s.Wait()
	return nil
}

// Wait blocks until every accepted workflow run has finished.
func (s *Server) Wait() { s.runs.Wait() }

func (s *Server) handleWebhook(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		s.respond(c, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		s.logger.Debug("reading body failed", "error", err)
		body = nil
	}

	if secret := s.lookup("GITHUB_WEBHOOK_SECRET"); secret != "" {
		if err := gh.ValidateSignature(c.GetHeader(signatureHeader), body, []byte(secret)); err != nil {
			s.logger.Warn("rejected webhook", "error", err)
			s.respond(c, http.StatusUnauthorized, MsgInvalidSignature)
			return
		}
	}

	var event gh.IssuesEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Undecodable payloads are treated as empty ones.
		event = gh.IssuesEvent{}
	}
	if event.Issue == nil {
		s.respond(c, http.StatusBadRequest, MsgNoIssue)
		return
	}
	if event.GetAction() != labeledAction || event.GetLabel().GetName() != s.opts.TriggerLabel {
		s.respond(c, http.StatusOK, MsgIgnored)
		return
	}

	creds, err := config.LoadCredentials(s.opts.Env, s.opts.Config)
	if err != nil {
		var missing *config.MissingCredentialsError
		if errors.As(err, &missing) {
			s.logger.Error("missing environment variables", "names", missing.Names)
		} else {
			s.logger.Error("loading credentials", "error", err)
		}
		s.respond(c, http.StatusInternalServerError, MsgMissingCredentials)
		return
	}

	issue := github.FromAPI(event.Issue)
	s.dispatch(creds, issue)
	s.respond(c, http.StatusAccepted, MsgAccepted)
}

// dispatch runs the workflow for issue in the background on a context that
// outlives the request.
func (s *Server) dispatch(creds *config.Credentials, issue publish.Issue) {
	runID := uuid.NewString()
	logger := s.logger.With("run", runID, "issue", issue.Number)
	logger.Info("accepted issue", "title", issue.Title)

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RunTimeout)
		defer cancel()

		proc, err := s.factory(creds)
		if err != nil {
			logger.Error("building workflow", "error", err)
			return
		}
		res := proc.ProcessIssue(ctx, issue)
		if !res.Success {
			logger.Error("workflow failed", "error", res.Error)
			return
		}
		logger.Info("workflow completed", "pr", res.PRURL)
	}()
}

func (s *Server) respond(c *gin.Context, status int, msg string) {
	s.opts.Metrics.ObserveWebhook(status)
	c.JSON(status, gin.H{"message": msg})
}

func (s *Server) lookup(name string) string {
	if s.opts.Env == nil {
		return ""
	}
	v, _ := s.opts.Env(name)
	return v
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
