package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cryptotrack/pkg/coinmarketcap"
	"cryptotrack/pkg/config"
	"cryptotrack/pkg/database"
	"cryptotrack/pkg/ingest"
	"cryptotrack/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		panic("logger init: " + err.Error())
	}
	defer logger.Log.Sync()
	log := logger.Log

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config error", zap.Error(err))
	}

	db, err := database.New(database.NewConfig())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelMigrate()
	if err := db.RunMigrations(migrateCtx); err != nil {
		log.Fatal("failed to run database migrations", zap.Error(err))
	}

	quoteRepo := database.NewQuoteRepository(db)
	cmcClient := coinmarketcap.New(cfg.CMCAPIKey, cfg.FetchTimeout,
		coinmarketcap.WithBaseURL(cfg.CMCBaseURL))
	pipeline := ingest.New(cmcClient, quoteRepo)

	go startMetricsServer(cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		log.Info("shutdown signal received")
		cancel()
	}()

	log.Info("collector started",
		zap.Duration("interval", cfg.PollInterval),
		zap.Int("assets", len(cfg.AssetIDs)))

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	// First run immediately so a fresh deployment has data.
	runOnce(ctx, pipeline, cfg.AssetIDs)

	for {
		select {
		case <-ctx.Done():
			log.Info("collector exiting")
			return
		case <-ticker.C:
			runOnce(ctx, pipeline, cfg.AssetIDs)
		}
	}
}

// runOnce runs one ingestion pass with a bounded deadline. Upstream
// failures are logged and left for the next tick; there is no retry.
func runOnce(ctx context.Context, pipeline *ingest.Pipeline, assetIDs []string) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	report, err := pipeline.Run(runCtx, assetIDs)
	if err != nil {
		if errors.Is(err, coinmarketcap.ErrUpstreamUnavailable) {
			logger.Log.Warn("upstream unavailable, skipping run", zap.Error(err))
		} else {
			logger.Log.Error("ingestion run failed", zap.Error(err))
		}
		return
	}

	logger.Log.Info("ingestion report",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
}

func startMetricsServer(port int) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Log.Info("metrics server listening", zap.String("addr", addr))
	http.ListenAndServe(addr, r)
}
