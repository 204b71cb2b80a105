// Package snapshot serves the live quote snapshot, caching provider
// responses for a short TTL.
package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"cryptotrack/pkg/coinmarketcap"
	"cryptotrack/pkg/logger"
	"cryptotrack/pkg/metrics"
	"cryptotrack/pkg/models"
	"cryptotrack/pkg/validation"
)

const cacheKey = "snapshot:latest"

// Fetcher fetches raw quotes for a set of provider asset IDs.
type Fetcher interface {
	FetchQuotes(ctx context.Context, assetIDs []string) (coinmarketcap.FetchResult, error)
}

// Cache is the subset of the Redis client the snapshot service needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service answers live snapshot requests for a fixed watchlist.
type Service struct {
	fetcher  Fetcher
	cache    Cache
	assetIDs []string
	ttl      time.Duration

	// Collapses concurrent cache-miss fetches into one upstream call.
	group singleflight.Group
}

// New creates a snapshot Service.
func New(fetcher Fetcher, cache Cache, assetIDs []string, ttl time.Duration) *Service {
	return &Service{fetcher: fetcher, cache: cache, assetIDs: assetIDs, ttl: ttl}
}

// Snapshot returns the current quotes for the configured watchlist.
// Served from cache within the TTL; otherwise fetched upstream, with
// concurrent misses sharing a single provider call.
func (s *Service) Snapshot(ctx context.Context) ([]models.SnapshotEntry, error) {
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		var entries []models.SnapshotEntry
		if err := json.Unmarshal([]byte(cached), &entries); err == nil {
			metrics.SnapshotCacheHits.Inc()
			return entries, nil
		}
		logger.Log.Warn("discarding undecodable snapshot cache entry", zap.Error(err))
	}
	metrics.SnapshotCacheMisses.Inc()

	v, err, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		res, err := s.fetcher.FetchQuotes(ctx, s.assetIDs)
		if err != nil {
			return nil, err
		}

		entries := make([]models.SnapshotEntry, 0, len(res.Quotes))
		for _, raw := range res.Quotes {
			entries = append(entries, models.SnapshotEntry{
				ID:        raw.ID,
				Name:      raw.Name,
				Symbol:    validation.NormalizeSymbol(raw.Symbol),
				PriceUSD:  raw.PriceUSD,
				Change24h: raw.Change24h,
			})
		}

		if encoded, err := json.Marshal(entries); err == nil {
			// Cache write failures only cost us the next fetch.
			if err := s.cache.Set(ctx, cacheKey, string(encoded), s.ttl); err != nil {
				logger.Log.Warn("snapshot cache write failed", zap.Error(err))
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.SnapshotEntry), nil
}
