package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"techbiz/internal/auth"
	"techbiz/internal/backend"
	"techbiz/internal/cli"
	apphttp "techbiz/internal/http"
	"techbiz/internal/log"
	"techbiz/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	records := services.NewRecordService(res.Store, res.Publisher)
	users := auth.NewDirectory(cfg.AdminUsers, cfg.ReadOnlyUsers, cfg.AuthPassword, cfg.SessionMaxAge)

	srv := apphttp.NewServer(":"+cfg.Port, records, users, apphttp.Options{
		AnalyticsCacheTTL: cfg.AnalyticsCacheTTL,
		Logger:            logger.WithComponent(log.ComponentHTTP),
		Readiness: func(ctx context.Context) error {
			if res.SQLite == nil {
				return nil
			}
			if err := res.SQLite.Ping(ctx); err != nil {
				return fmt.Errorf("sqlite: %w", err)
			}
			return nil
		},
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting techbiz server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"sync", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
