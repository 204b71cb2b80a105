package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cryptotrack/pkg/config"
	"cryptotrack/pkg/database"
	"cryptotrack/pkg/logger"
	"cryptotrack/pkg/metrics"
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

	quoteRepo := database.NewQuoteRepository(db)

	go startMetricsServer(cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		cancel()
	}()

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	log.Info("archival service started", zap.Int("retention_days", cfg.RetentionDays))

	for {
		select {
		case <-ctx.Done():
			log.Info("archival service shutting down")
			return
		case <-ticker.C:
			if err := runArchival(ctx, quoteRepo, cfg.RetentionDays); err != nil {
				log.Error("archival failed", zap.Error(err))
				metrics.ArchivalErrorCounter.Inc()
			} else {
				metrics.ArchivalSuccessCounter.Inc()
			}
		}
	}
}

// runArchival prunes quote rows older than the retention window.
func runArchival(ctx context.Context, repo database.QuoteRepository, retentionDays int) error {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	pruned, err := repo.PruneBefore(sweepCtx, cutoff)
	if err != nil {
		return err
	}

	metrics.ArchivalPrunedRows.Add(float64(pruned))
	logger.Log.Info("archival sweep completed",
		zap.Int64("pruned", pruned),
		zap.Time("cutoff", cutoff))
	return nil
}

func startMetricsServer(port int) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Log.Info("metrics server listening", zap.String("addr", addr))
	http.ListenAndServe(addr, r)
}
