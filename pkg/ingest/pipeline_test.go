package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptotrack/pkg/coinmarketcap"
	"cryptotrack/pkg/database"
	"cryptotrack/pkg/models"
)

type fakeFetcher struct {
	result coinmarketcap.FetchResult
	err    error
}

func (f *fakeFetcher) FetchQuotes(ctx context.Context, assetIDs []string) (coinmarketcap.FetchResult, error) {
	if f.err != nil {
		return coinmarketcap.FetchResult{}, f.err
	}
	return f.result, nil
}

// memRepo mimics the store's idempotent append keyed (symbol, observed_at).
type memRepo struct {
	mu      sync.Mutex
	rows    map[string]models.Quote
	failFor map[string]bool
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]models.Quote{}, failFor: map[string]bool{}}
}

func key(symbol string, at time.Time) string {
	return fmt.Sprintf("%s|%d", symbol, at.UnixNano())
}

func (r *memRepo) Upsert(ctx context.Context, q *models.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[q.Symbol] {
		return &database.StorageError{Op: "upsert", Err: errors.New("disk on fire")}
	}
	k := key(q.Symbol, q.ObservedAt)
	if _, exists := r.rows[k]; exists {
		return nil
	}
	r.rows[k] = *q
	return nil
}

func (r *memRepo) Record(ctx context.Context, q *models.Quote) (int64, error) {
	if err := r.Upsert(ctx, q); err != nil {
		return 0, err
	}
	return 1, nil
}

func (r *memRepo) History(ctx context.Context, symbol string, from, to time.Time) ([]*models.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Quote
	for _, q := range r.rows {
		q := q
		if q.Symbol == symbol && !q.ObservedAt.Before(from) && !q.ObservedAt.After(to) {
			out = append(out, &q)
		}
	}
	return out, nil
}

func (r *memRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func floatPtr(f float64) *float64 { return &f }

func fixedNow() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func newTestPipeline(f Fetcher, repo database.QuoteRepository) *Pipeline {
	p := New(f, repo)
	p.now = fixedNow
	return p
}

func TestRun_MixedBatch(t *testing.T) {
	fetcher := &fakeFetcher{result: coinmarketcap.FetchResult{
		Quotes: []models.RawQuote{
			{ID: "1", Symbol: "BTC", Name: "Bitcoin", PriceUSD: 65000, Change24h: floatPtr(2.1)},
			{ID: "2", Symbol: "ETH", Name: "Ethereum", PriceUSD: -5, Change24h: floatPtr(-1.0)},
		},
	}}
	repo := newMemRepo()

	report, err := newTestPipeline(fetcher, repo).Run(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, Report{Succeeded: 1, Skipped: 1, Failed: 0}, report)

	stored, err := repo.History(context.Background(), "btc", fixedNow().Add(-time.Hour), fixedNow().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "btc", stored[0].Symbol)

	// The rejected quote never reaches the store.
	empty, err := repo.History(context.Background(), "eth", fixedNow().Add(-time.Hour), fixedNow().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRun_UpstreamFailureIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("timeout: %w", coinmarketcap.ErrUpstreamUnavailable)}
	repo := newMemRepo()

	report, err := newTestPipeline(fetcher, repo).Run(context.Background(), []string{"1"})
	assert.ErrorIs(t, err, coinmarketcap.ErrUpstreamUnavailable)
	assert.Equal(t, Report{}, report)
	assert.Empty(t, repo.rows)
}

func TestRun_StorageFailureIsIsolated(t *testing.T) {
	fetcher := &fakeFetcher{result: coinmarketcap.FetchResult{
		Quotes: []models.RawQuote{
			{Symbol: "BTC", PriceUSD: 65000},
			{Symbol: "ETH", PriceUSD: 3200},
			{Symbol: "SOL", PriceUSD: 150},
		},
	}}
	repo := newMemRepo()
	repo.failFor["eth"] = true

	report, err := newTestPipeline(fetcher, repo).Run(context.Background(), []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, Report{Succeeded: 2, Skipped: 0, Failed: 1}, report)
}

func TestRun_CarriesProviderSkips(t *testing.T) {
	fetcher := &fakeFetcher{result: coinmarketcap.FetchResult{
		Quotes:  []models.RawQuote{{Symbol: "BTC", PriceUSD: 65000}},
		Skipped: 3,
	}}
	repo := newMemRepo()

	report, err := newTestPipeline(fetcher, repo).Run(context.Background(), []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, Report{Succeeded: 1, Skipped: 3, Failed: 0}, report)
}

func TestRun_RetryIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{result: coinmarketcap.FetchResult{
		Quotes: []models.RawQuote{
			{Symbol: "BTC", PriceUSD: 65000, LastUpdated: "2026-08-01T11:59:30Z"},
		},
	}}
	repo := newMemRepo()
	pipeline := newTestPipeline(fetcher, repo)

	for i := 0; i < 3; i++ {
		report, err := pipeline.Run(context.Background(), []string{"1"})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Succeeded)
	}

	// Same (symbol, observed_at) three times over: exactly one row.
	assert.Len(t, repo.rows, 1)
}
