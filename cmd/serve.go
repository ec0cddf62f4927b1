package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calagent/internal/actions"
	"github.com/teemow/calagent/internal/agent"
	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/config"
	"github.com/teemow/calagent/internal/google"
	"github.com/teemow/calagent/internal/instrumentation"
	"github.com/teemow/calagent/internal/intent"
	"github.com/teemow/calagent/internal/logging"
	"github.com/teemow/calagent/internal/mcptools"
	"github.com/teemow/calagent/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		debugMode      bool
		transport      string
		httpAddr       string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calendar agent server",
		Long: `Start the calendar agent.

Supports multiple transport types:
  - http: HTTP webhook server for voice platforms (default)
  - stdio: MCP server over standard input/output for AI assistants

Configuration comes from the environment (a .env file is loaded if present):
  OPENAI_API_KEY        required, authenticates intent resolution
  TIMEZONE              IANA timezone, default America/New_York
  CONFIRMATION_TIMEOUT  seconds a pending action stays confirmable, default 300
  CALENDAR_ID           target calendar, default "primary"
  WEBHOOK_SECRET        optional shared secret for the X-Webhook-Token header

Google Calendar access uses a service account when
GOOGLE_SERVICE_ACCOUNT_FILE is set, otherwise the cached OAuth token from
'calagent auth'.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(transport, httpAddr, debugMode, metricsEnabled, metricsAddr)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "http", "Transport type: http or stdio")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP server address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics server address (overrides METRICS_ADDR)")

	return cmd
}

func runServe(transport, httpAddr string, debugMode, metricsEnabled bool, metricsAddr string) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	cfg.MetricsEnabled = cfg.MetricsEnabled && metricsEnabled

	logger := logging.New(debugMode)
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	tokenSource, err := google.NewTokenSource(shutdownCtx, cfg.ServiceAccountFile)
	if err != nil {
		return fmt.Errorf("google calendar credentials unavailable (run 'calagent auth' first): %w", err)
	}

	gateway, err := calendar.NewClient(shutdownCtx, calendar.ClientConfig{
		CalendarID:  cfg.CalendarID,
		Timezone:    cfg.Timezone,
		Location:    cfg.Location,
		TokenSource: tokenSource,
	})
	if err != nil {
		return fmt.Errorf("failed to create calendar client: %w", err)
	}

	resolver := intent.NewLLMResolver(intent.LLMResolverConfig{
		BaseURL:  cfg.OpenAIBaseURL,
		APIKey:   cfg.OpenAIAPIKey,
		Model:    cfg.OpenAIModel,
		Location: cfg.Location,
		Logger:   logger,
	})

	a := agent.New(agent.Config{
		Resolver: resolver,
		Gateway:  gateway,
		Store:    actions.NewStore(cfg.ConfirmationTimeout, logger),
		History:  actions.NewHistory(actions.DefaultHistorySize),
		Location: cfg.Location,
		Logger:   logger,
		Metrics:  provider.Metrics(),
	})

	switch transport {
	case "stdio":
		mcpSrv := mcpserver.NewMCPServer("calagent", version,
			mcpserver.WithToolCapabilities(true),
		)
		mcptools.Register(mcpSrv, a)
		return runStdioServer(mcpSrv)
	case "http":
		return runHTTPServer(shutdownCtx, cfg, provider, a, logger)
	default:
		return fmt.Errorf("unknown transport %q: must be http or stdio", transport)
	}
}

func runHTTPServer(shutdownCtx context.Context, cfg *config.Config, provider *instrumentation.Provider, a *agent.Agent, logger *slog.Logger) error {
	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:     cfg.MetricsAddr,
			Provider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Confirm the metrics listener bound before accepting traffic.
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	srv := server.New(server.Config{
		Addr:          cfg.HTTPAddr,
		ServiceName:   "calagent",
		WebhookSecret: cfg.WebhookSecret,
		Logger:        logger,
	}, a)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelDrain()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(drainCtx); err != nil {
			logger.Error("metrics server shutdown failed", logging.Err(err))
		}
	}
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}

	return nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
