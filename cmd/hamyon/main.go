package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"hamyon/internal/backend"
	"hamyon/internal/cache"
	"hamyon/internal/cli"
	apphttp "hamyon/internal/http"
	"hamyon/internal/log"
	"hamyon/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "driver", cfg.DBDriver)
		os.Exit(1)
	}

	var (
		publisher services.EventPublisher
		broker    apphttp.HealthChecker
	)
	if res.Broker != nil {
		publisher = res.Broker
		broker = res.Broker
	}

	ledger := services.NewLedgerService(res.Repo, publisher, logger)
	auth := services.NewAuthService(res.Repo, cfg.JWTSecret, cfg.JWTTTL, publisher, logger)
	reports := services.NewReportService(res.Repo, cfg.CacheSize, cfg.CacheTTL, logger)
	ledger.OnChange(reports.Invalidate)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	for _, c := range reports.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(cfg.CacheTTL)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:  ledger,
		Auth:    auth,
		Reports: reports,
	}, apphttp.Options{
		DB:                 res.Repo,
		Broker:             broker,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting hamyon server", "port", cfg.Port, "driver", cfg.DBDriver, "amqp_enabled", broker != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
