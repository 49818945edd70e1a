package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"billpool/internal/apiclient"
	"billpool/internal/domain"
	"billpool/internal/eventlog"
	"billpool/internal/indexer"
	"billpool/internal/infra"
	"billpool/internal/notify"
	"billpool/internal/reconciler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(cfg.LedgerURL, cfg.AgentAddress)

	// Prefer reading events straight from the store; fall back to tailing
	// the ledger API when no database is configured.
	var source eventlog.Stream
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("keeper: db connection failed")
		}
		defer pool.Close()
		source = eventlog.NewPostgres(infra.NewSQLRunner(pool, logger))
	} else {
		source = eventlog.NewRemote(client)
	}

	notifier := notify.New(cfg.WebhookURL, logger)

	ix := indexer.New(source, logger)
	ix.Window = cfg.BackfillWindow
	ix.OnEvent = func(ev domain.Event) {
		notifier.PostEvent(ctx, ev)
	}

	if err := ix.Backfill(ctx, cfg.BackfillFrom); err != nil {
		logger.Error().Err(err).Msg("keeper: backfill failed, continuing with live events")
	}
	go ix.Run(ctx)

	rec := reconciler.New(client, ix, notifier, cfg.ReconcileInterval, logger)
	rec.Run(ctx)

	logger.Info().Msg("keeper: stopped")
}
