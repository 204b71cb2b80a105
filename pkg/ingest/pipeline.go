// Package ingest drives one ingestion run: fetch quotes upstream,
// normalize them, and store every valid quote it can.
package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cryptotrack/pkg/coinmarketcap"
	"cryptotrack/pkg/database"
	"cryptotrack/pkg/logger"
	"cryptotrack/pkg/metrics"
	"cryptotrack/pkg/models"
)

// Fetcher fetches raw quotes for a set of provider asset IDs.
type Fetcher interface {
	FetchQuotes(ctx context.Context, assetIDs []string) (coinmarketcap.FetchResult, error)
}

// Report accounts for every entry of one run: each raw entry lands in
// exactly one of the three buckets.
type Report struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Pipeline orchestrates Client -> Store for one run.
type Pipeline struct {
	fetcher Fetcher
	repo    database.QuoteRepository
	now     func() time.Time

	// Upserts are independent and idempotent, so they run concurrently
	// up to this bound.
	maxConcurrent int
}

// New creates a Pipeline.
func New(fetcher Fetcher, repo database.QuoteRepository) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		repo:          repo,
		now:           time.Now,
		maxConcurrent: 8,
	}
}

// Run executes one ingestion run. An upstream failure aborts the whole
// run before any write is attempted; validation rejects and individual
// storage failures only affect their own entry.
func (p *Pipeline) Run(ctx context.Context, assetIDs []string) (Report, error) {
	start := time.Now()

	res, err := p.fetcher.FetchQuotes(ctx, assetIDs)
	if err != nil {
		metrics.IngestRuns.WithLabelValues("upstream_error").Inc()
		return Report{}, err
	}

	report := Report{Skipped: res.Skipped}
	now := p.now()

	var valid []models.Quote
	for _, raw := range res.Quotes {
		quote, err := raw.Normalize(now)
		if err != nil {
			logger.Log.Warn("skipping invalid quote",
				zap.String("symbol", raw.Symbol), zap.Error(err))
			report.Skipped++
			continue
		}
		valid = append(valid, quote)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)
	for i := range valid {
		quote := valid[i]
		g.Go(func() error {
			err := p.repo.Upsert(gctx, &quote)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Log.Warn("quote upsert failed",
					zap.String("symbol", quote.Symbol), zap.Error(err))
				report.Failed++
				return nil
			}
			report.Succeeded++
			return nil
		})
	}
	g.Wait()

	metrics.IngestRuns.WithLabelValues("ok").Inc()
	metrics.IngestQuotes.WithLabelValues("succeeded").Add(float64(report.Succeeded))
	metrics.IngestQuotes.WithLabelValues("skipped").Add(float64(report.Skipped))
	metrics.IngestQuotes.WithLabelValues("failed").Add(float64(report.Failed))
	metrics.IngestLatency.Observe(time.Since(start).Seconds())

	logger.Log.Info("ingestion run complete",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}
