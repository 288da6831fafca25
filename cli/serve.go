package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/leokalinowski/purpose-driven-crm/engine/directory"
	"github.com/leokalinowski/purpose-driven-crm/engine/drain"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/httpx"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/postgres"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/server"
	"github.com/leokalinowski/purpose-driven-crm/engine/media"
	"github.com/leokalinowski/purpose-driven-crm/engine/pipeline"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/engine/social"
	"github.com/leokalinowski/purpose-driven-crm/engine/tracker"
	"github.com/leokalinowski/purpose-driven-crm/engine/webhook"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
)

// ServeCmd runs the orchestrator: HTTP surface, drain supervisor and
// lease reaper.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	log := logger.SetupLogger(logLevel, logJSON)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	store, err := postgres.NewStore(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Error("closing database pool", "error", err)
		}
	}()
	if err := postgres.ApplyMigrations(ctx, postgres.DSN(&cfg.Database)); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	repo := postgres.NewRunRepo(store.Pool())
	registry := run.NewRegistry(repo, cfg.Drain.Lease)
	steps := run.NewStepLogger(repo)

	trackerSvc := tracker.NewClient(cfg.Tracker, httpx.NewClient(cfg.HTTP))
	directorySvc := directory.NewClient(cfg.Directory, httpx.NewClient(cfg.HTTP))
	socialSvc := social.NewClient(cfg.Social, httpx.NewClient(cfg.HTTP))
	genaiSvc := media.NewGenAIClient(cfg.Media.GenAIBaseURL, cfg.Media.GenAIKey, httpx.NewClient(cfg.HTTP))
	compositorSvc := media.NewCompositorClient(cfg.Media.CompositorBaseURL, cfg.Media.CompositorKey, httpx.NewClient(cfg.HTTP))
	storageSvc := media.NewStorageClient(cfg.Media.StorageBaseURL, cfg.Media.StorageKey, cfg.Media.StorageBucket, httpx.NewClient(cfg.HTTP))
	cdnSvc := media.NewCDNClient(cfg.Media.CDNBaseURL, httpx.NewClient(cfg.HTTP))

	schedulePipe, err := pipeline.NewSchedule(
		cfg.Schedule, registry, steps, trackerSvc, directorySvc, storageSvc, cdnSvc, socialSvc,
	)
	if err != nil {
		return fmt.Errorf("building schedule pipeline: %w", err)
	}
	generatePipe := pipeline.NewGenerate(
		cfg.Generate, registry, steps, trackerSvc, directorySvc, genaiSvc, compositorSvc, storageSvc,
	)

	drainer := drain.NewDrainer(cfg.Drain, repo, generatePipe)
	supervisor := drain.NewSupervisor(drainer)
	supervisor.Start(ctx)
	reaper := drain.NewReaper(repo, drainer, cfg.Drain.SweepSpec)
	if err := reaper.Start(ctx); err != nil {
		return fmt.Errorf("starting lease reaper: %w", err)
	}
	defer reaper.Stop()

	// Pick up work queued while the process was down.
	drainer.Kick()

	metrics, err := webhook.NewMetrics(otel.Meter("crmflow/webhook"))
	if err != nil {
		return fmt.Errorf("initializing webhook metrics: %w", err)
	}
	hooks := webhook.NewService(cfg.Webhook, schedulePipe, registry, metrics)

	srv := server.New(cfg.Server, log, store, func(r *gin.RouterGroup) {
		webhook.Register(r, hooks, drainer)
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	supervisor.Wait()
	return nil
}
