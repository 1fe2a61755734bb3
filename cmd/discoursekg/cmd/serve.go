package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	internalhttp "github.com/discoursekg/discoursekg/internal/http"
	"github.com/discoursekg/discoursekg/internal/http/handlers"
	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/scheduler"
	"github.com/discoursekg/discoursekg/internal/startup"
	"github.com/discoursekg/discoursekg/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discoursekg server",
	Long: `Start the discoursekg HTTP server.

The server provides:
- Pipeline status and item endpoints under /api/v1
- Health check endpoint
- OpenAPI documentation at /docs

With scheduler.enabled, the configured cron entries run pipeline stages
in the background between requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().String("host", "", "host to bind to")
	serveCmd.Flags().Int("port", 0, "port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	stack, err := newPipelineStack()
	if err != nil {
		return err
	}
	defer closeStack(stack)

	// Recovery before accepting work: records left IN_PROGRESS by a dead
	// process are failed so the next invocation retries them.
	recovered, err := startup.RecoverStaleItems(logger, stack.journal)
	if err != nil {
		return fmt.Errorf("recovering stale items: %w", err)
	}
	if recovered > 0 {
		logger.Info("recovered stale items on startup",
			slog.Int("recovered_count", recovered),
		)
	}

	removed, err := startup.CleanupTempFiles(logger, stack.sandbox)
	if err != nil {
		logger.Warn("failed to clean orphaned temp files",
			slog.String("error", err.Error()),
		)
	} else if removed > 0 {
		logger.Info("cleaned orphaned temp files on startup",
			slog.Int("removed_count", removed),
		)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled && len(cfg.Scheduler.Entries) > 0 {
		sched, err = buildScheduler(stack, logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()

		logger.Info("scheduler started",
			slog.Int("entries", len(cfg.Scheduler.Entries)),
		)
	}

	// Initialize HTTP server
	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout

	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	// Register handlers
	healthHandler := handlers.NewHealthHandler(version.Version).
		WithFetchClient(stack.fetcher).
		WithGraphStore(stack.graph)
	healthHandler.Register(server.API())

	statusHandler := handlers.NewStatusHandler(cfg.Environment, stack.journal)
	if sched != nil {
		statusHandler = statusHandler.WithScheduler(sched)
	}
	statusHandler.Register(server.API())

	itemsHandler := handlers.NewItemsHandler(stack.journal)
	itemsHandler.Register(server.API())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Start server
	logger.Info("starting discoursekg server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("environment", cfg.Environment),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// buildScheduler registers a handler per stage plus every configured
// schedule entry.
func buildScheduler(stack *pipelineStack, logger *slog.Logger) (*scheduler.Scheduler, error) {
	executor := scheduler.NewExecutor().WithLogger(logger)
	executor.RegisterHandler(models.StageDiscover,
		scheduler.NewDiscoverHandler(stack.runtime, stack.newDiscoverer()))
	for _, stage := range models.StageSequence[1:] {
		processor, err := stack.newProcessor(stage)
		if err != nil {
			return nil, err
		}
		executor.RegisterHandler(stage, scheduler.NewStageHandler(stack.runtime, processor))
	}

	sched := scheduler.NewScheduler(executor).WithLogger(logger)
	for _, entry := range cfg.Scheduler.Entries {
		stage, err := models.ParseStage(entry.Stage)
		if err != nil {
			return nil, fmt.Errorf("schedule entry: %w", err)
		}
		if err := sched.AddEntry(scheduler.Entry{
			Cron:     entry.Cron,
			Stage:    stage,
			Speaker:  entry.Speaker,
			Lookback: entry.Lookback.Duration(),
		}); err != nil {
			return nil, fmt.Errorf("adding schedule entry: %w", err)
		}
	}

	return sched, nil
}
