package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"golang.org/x/sync/errgroup"

	"github.com/openfleet/maestro/internal/activity"
	"github.com/openfleet/maestro/internal/config"
	"github.com/openfleet/maestro/internal/core"
	"github.com/openfleet/maestro/internal/db"
	"github.com/openfleet/maestro/internal/dispatch"
	"github.com/openfleet/maestro/internal/logging"
	"github.com/openfleet/maestro/internal/metrics"
	"github.com/openfleet/maestro/internal/schedule"
	"github.com/openfleet/maestro/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	// The workflow semaphore bounds per-job concurrency; this is the backstop
	// for the worker process as a whole.
	w := worker.New(tc, workflow.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: 4 * cfg.DefaultMaxConcurrent,
	})

	// Register activities
	fleetDB := activity.NewFleetDB(pool)
	w.RegisterActivity(fleetDB)

	firmware := activity.NewFirmware(cfg.BMCUsername, cfg.BMCPassword)
	w.RegisterActivity(firmware)

	vsphere := activity.NewVSphere(pool, cfg)
	w.RegisterActivity(vsphere)

	webhook := activity.NewWebhook()
	w.RegisterActivity(webhook)

	// Register workflows
	w.RegisterWorkflow(workflow.UpdateJobWorkflow)
	w.RegisterWorkflow(workflow.HostUpdateWorkflow)
	w.RegisterWorkflow(workflow.FleetHealthWorkflow)
	w.RegisterWorkflow(workflow.DiscoverHostsWorkflow)

	// Register cron schedules. Errors for already-existing schedules are
	// ignored so that re-deploys do not fail.
	registerCronSchedules(ctx, tc, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("taskQueue", workflow.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
		return nil
	})

	// The trigger scheduler fires due schedules through the dispatcher.
	scheduler := schedule.New(core.NewScheduleService(pool), dispatch.New(pool, tc, cfg, logger), logger)
	g.Go(func() error {
		err := scheduler.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr)
		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("worker shut down with error")
	}
	logger.Info().Msg("worker stopped")
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "fleet-health-cron",
			cron:     "0 2 * * *",
			workflow: workflow.FleetHealthWorkflow,
		},
		{
			id:       "host-discovery-cron",
			cron:     "0 */6 * * *",
			workflow: workflow.DiscoverHostsWorkflow,
		},
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				TaskQueue: workflow.TaskQueue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}
