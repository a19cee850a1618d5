package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/config"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/metrics"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/webhook"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the GitHub webhook server",
	Long: `Listen for GitHub issue events. When an issue is labelled ready-for-tests the
server answers 202 and generates, commits and opens a pull request in the
background.

Credentials are checked on every delivery, so the server starts without them.
When GITHUB_WEBHOOK_SECRET is set, X-Hub-Signature-256 is verified.

Also serves GET /healthz and GET /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides webhook.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	overrides := &config.CLIOverrides{}
	if cmd.Flags().Changed("addr") {
		overrides.WebhookAddr = &serveAddr
	}
	cfg, err := loadValidConfig(overrides)
	if err != nil {
		return err
	}

	if !flagVerbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := newWebhookServer(cfg, metrics.New())
	return srv.ListenAndServe(cmd.Context(), cfg.Webhook.Addr)
}

// newWebhookServer wires the webhook routes to a publish workflow built per
// accepted delivery.
func newWebhookServer(cfg *config.Config, m *metrics.Metrics) *webhook.Server {
	logger := logging.New(logging.ComponentWebhook)
	factory := func(creds *config.Credentials) (webhook.Processor, error) {
		tracker, err := trackerFactory(cfg, creds)
		if err != nil {
			return nil, err
		}
		wf, err := newPublishWorkflow(cfg, creds, tracker, m, logging.New(logging.ComponentPublish))
		if err != nil {
			return nil, err
		}
		return wf, nil
	}
	return webhook.New(factory, webhook.Options{
		Path:         cfg.Webhook.Path,
		TriggerLabel: cfg.Webhook.TriggerLabel,
		RunTimeout:   cfg.Webhook.RunTimeout.Std(),
		Env:          lookupEnv,
		Config:       cfg,
		Metrics:      m,
		Logger:       logger,
	})
}
