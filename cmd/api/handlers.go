package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"cryptotrack/pkg/database"
	"cryptotrack/pkg/history"
	"cryptotrack/pkg/logger"
	"cryptotrack/pkg/models"
	"cryptotrack/pkg/snapshot"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// snapshotter lets handler tests substitute the snapshot service.
type snapshotter interface {
	Snapshot(ctx context.Context) ([]models.SnapshotEntry, error)
}

// historian lets handler tests substitute the history service.
type historian interface {
	GetHistory(ctx context.Context, symbol string, days int) (*models.HistoryResponse, error)
}

// GET /api/cryptos — live snapshot for the configured watchlist.
func getCryptosHandler(svc snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		entries, err := svc.Snapshot(ctx)
		if err != nil {
			logger.Log.Error("snapshot fetch failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "error fetching data")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"data": entries})
	}
}

// GET /api/historical?symbol=btc&days=7 — stored range query.
func getHistoricalHandler(svc historian) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")

		// A missing or unparseable days falls back to the service default.
		days := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				days = parsed
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		resp, err := svc.GetHistory(ctx, symbol, days)
		if err != nil {
			var ve *history.ValidationError
			if errors.As(err, &ve) {
				writeError(w, http.StatusBadRequest, ve.Error())
				return
			}
			logger.Log.Error("history query failed", zap.Error(err), zap.String("symbol", symbol))
			writeError(w, http.StatusInternalServerError, "error querying history")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// POST /api/observations — record a manual quote observation.
func postObservationHandler(repo database.QuoteRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input models.ObservationInput
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := input.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		quote, err := input.ToQuote(time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		id, err := repo.Record(ctx, &quote)
		if err != nil {
			logger.Log.Error("failed to record observation", zap.Error(err),
				zap.String("symbol", quote.Symbol))
			writeError(w, http.StatusInternalServerError, "error saving data")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "observation recorded",
			"id":      id,
		})
	}
}

var _ snapshotter = (*snapshot.Service)(nil)
var _ historian = (*history.Service)(nil)
