package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"hamyon/internal/backend"
	"hamyon/internal/cli"
	"hamyon/internal/log"
	"hamyon/internal/notify"
	"hamyon/internal/services"
	"hamyon/internal/worker"
)

const reconcileTimeout = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	logger.Info("Starting hamyon-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendCfg.RequireBroker = true

	factory := backend.NewFactory(logger)
	res, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	exporter, err := factory.CreateExporter(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger exporter", log.FieldError, err)
		os.Exit(1)
	}

	var mailer notify.Mailer
	if cfg.SMTPEnabled() {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, logger)
		logger.Info("SMTP mailer enabled", "host", cfg.SMTPHost)
	} else {
		logger.Info("SMTP disabled - welcome mails will not be sent")
	}

	events := worker.NewEventWorker(exporter, mailer, logger)
	scheduler := worker.NewScheduler(logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Reconciliation still running at shutdown", log.FieldError, err)
		}
	})

	reconciler := services.NewReconciler(res.Repo, cfg.ReconcileFix, logger)
	if err := scheduler.AddReconcile(ctx, cfg.ReconcileSchedule, reconcileTimeout, reconciler); err != nil {
		logger.Error("Failed to schedule reconciliation", log.FieldError, err)
		os.Exit(1)
	}
	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Catch drift left by events missed while the worker was down.
		report, err := reconciler.Run(gctx)
		if err != nil {
			logger.Error("Startup reconciliation failed", log.FieldError, err)
			return nil
		}
		logger.Info("Startup reconciliation done", "checked", report.Checked, "drifted", len(report.Drifts))
		return nil
	})
	g.Go(func() error {
		return res.Broker.ConsumeLedgerEvents(gctx, events.HandleLedgerEvent)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = scheduler.Stop(context.Background())
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
