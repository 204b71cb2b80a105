package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"cryptotrack/pkg/auth"
	"cryptotrack/pkg/coinmarketcap"
	"cryptotrack/pkg/config"
	"cryptotrack/pkg/database"
	"cryptotrack/pkg/history"
	"cryptotrack/pkg/logger"
	"cryptotrack/pkg/metrics"
	"cryptotrack/pkg/redisclient"
	"cryptotrack/pkg/snapshot"
)

func main() {
	if err := logger.Init(); err != nil {
		panic("logger init: " + err.Error())
	}
	defer logger.Log.Sync()
	log := logger.Log

	log.Info("starting cryptotrack API server")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config error", zap.Error(err))
	}

	dbConfig := database.NewConfig()
	db, err := database.New(dbConfig)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal("failed to run database migrations", zap.Error(err))
	}
	log.Info("database migrations completed")

	quoteRepo := database.NewQuoteRepository(db)

	redisClient, err := redisclient.New(cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	authService, err := auth.New(auth.NewConfig())
	if err != nil {
		log.Fatal("failed to initialize authentication service", zap.Error(err))
	}

	cmcClient := coinmarketcap.New(cfg.CMCAPIKey, cfg.FetchTimeout,
		coinmarketcap.WithBaseURL(cfg.CMCBaseURL))
	snapshotService := snapshot.New(cmcClient, redisClient, cfg.AssetIDs, cfg.SnapshotTTL)
	historyService := history.New(quoteRepo)

	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)
	router.Use(metricsMiddleware)

	router.HandleFunc("/health", healthHandler(db, redisClient)).Methods("GET")
	router.HandleFunc("/ready", healthHandler(db, redisClient)).Methods("GET")
	router.Handle("/metrics", metrics.Handler())

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/cryptos", getCryptosHandler(snapshotService)).Methods("GET")
	apiRouter.HandleFunc("/historical", getHistoricalHandler(historyService)).Methods("GET")
	apiRouter.HandleFunc("/stream", streamHandler(snapshotService)).Methods("GET")

	protectedRouter := apiRouter.PathPrefix("").Subrouter()
	protectedRouter.Use(authService.Middleware)
	protectedRouter.HandleFunc("/observations", postObservationHandler(quoteRepo)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting HTTP server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

// healthHandler reports readiness of the store and the snapshot cache.
func healthHandler(db *database.DB, redisClient *redisclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			http.Error(w, "Database health check failed", http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Ping(ctx); err != nil {
			http.Error(w, "Redis health check failed", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}
}
