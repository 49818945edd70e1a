package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"billpool/internal/eventlog"
	"billpool/internal/http/handlers"
	httpapi "billpool/internal/http/httpapi"
	"billpool/internal/infra"
	"billpool/internal/ledger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// The event log is the only persistent state; without a database the
	// ledger still works but loses history on restart.
	var log eventlog.Log = eventlog.NewMemory()
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()

		pg := eventlog.NewPostgres(infra.NewSQLRunner(pool, logger))
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare event store")
		}
		log = pg
	} else {
		logger.Warn().Msg("DATABASE_URL not set, keeping events in memory only")
	}

	svc := ledger.New(ledger.Config{
		Owner:              cfg.OwnerAddress,
		IncentiveRecipient: cfg.IncentiveRecipient,
		UnitSize:           cfg.ReceiptUnitSize,
	}, ledger.NewMemoryTreasury(), log, logger)
	if err := svc.SetReceiptIssuer(cfg.OwnerAddress, ledger.NewMemoryReceipts()); err != nil {
		logger.Fatal().Err(err).Msg("failed to configure receipt issuer")
	}

	app := handlers.NewApp(svc, log, logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("ledger API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
