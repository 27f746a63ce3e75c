package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"techbiz/internal/amqp"
	"techbiz/internal/cli"
	"techbiz/internal/log"
	"techbiz/internal/services"
	gsheet "techbiz/internal/sheets/google"
	"techbiz/internal/storage"
	"techbiz/internal/worker"
)

const consumeRetryDelay = 5 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting techbiz-worker")

	if !cfg.MirrorEnabled() {
		logger.Error("Sheet mirror disabled: set GOOGLE_SPREADSHEET_ID",
			"error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	useSQLite := cfg.DataBackend == "sqlite"
	if cfg.AMQPURL == "" && !useSQLite {
		logger.Error("Nothing to sync: set AMQP_URL or use the sqlite backend",
			"error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	ctx := cli.GracefulShutdown(logger, 30*time.Second, nil)

	mirror, err := gsheet.New(ctx, cli.MirrorConfig(cfg))
	if err != nil {
		logger.Error("Failed to initialize Google Sheets mirror", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized", log.FieldSheetsRef, cfg.GoogleSpreadsheetID)

	// Without the database the worker mirrors the snapshot carried by each message
	var (
		source worker.RecordSource
		repo   *storage.SQLiteRepository
	)
	if useSQLite {
		repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		source = repo
	}
	syncWorker := worker.NewSyncWorker(source, mirror)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			return consume(gctx, logger, client, syncWorker)
		})
	}

	if repo != nil {
		processor := services.NewSyncProcessor(repo, mirror, services.SyncProcessorConfig{
			PollInterval:     cfg.SyncInterval,
			BatchSize:        cfg.SyncBatchSize,
			FullSyncInterval: cfg.FullSyncInterval,
		})
		g.Go(func() error {
			// Startup pass catches deletes and edits made while the worker was down
			if err := processor.FullSync(gctx); err != nil {
				logger.Error("Startup mirror sync failed", log.FieldError, err)
			}
			if err := processor.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return processor.Stop(stopCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// consume keeps the AMQP consumer running across broker disconnects until
// ctx is cancelled.
func consume(ctx context.Context, logger *log.Logger, client *amqp.Client, w *worker.SyncWorker) error {
	for {
		err := client.ConsumeRecordChanges(ctx, w.HandleRecordChange)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		logger.Warn("Message consumption interrupted, retrying",
			log.FieldError, err,
			"retry_in", consumeRetryDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(consumeRetryDelay):
		}
	}
}
