package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cryptotrack/pkg/metrics"
	"cryptotrack/pkg/models"
	"cryptotrack/pkg/validation"
)

// StorageError wraps any persistence failure crossing the store
// boundary. Callers map it to a 5xx.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// QuoteRepository is the time-series store for canonical quotes.
type QuoteRepository interface {
	// Upsert appends a quote row. A duplicate (symbol, observed_at)
	// pair is a no-op returning success, so retrying a batch is safe.
	Upsert(ctx context.Context, quote *models.Quote) error
	// Record is Upsert returning the row ID (existing one on duplicate).
	Record(ctx context.Context, quote *models.Quote) (int64, error)
	// History returns quotes for a symbol within [from, to], ascending
	// by observed_at. The symbol is matched against its normalized
	// form. No rows in range is an empty, non-error result.
	History(ctx context.Context, symbol string, from, to time.Time) ([]*models.Quote, error)
	// PruneBefore deletes quote rows observed before the cutoff and
	// reports how many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// quoteRepository implements QuoteRepository
type quoteRepository struct {
	db *DB
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *DB) QuoteRepository {
	return &quoteRepository{db: db}
}

const upsertSQL = `
	INSERT INTO quotes (symbol, name, price_usd, change_24h, observed_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (symbol, observed_at) DO NOTHING
`

// Upsert saves a quote; duplicate (symbol, observed_at) writes are no-ops.
func (r *quoteRepository) Upsert(ctx context.Context, quote *models.Quote) error {
	start := time.Now()

	if err := quote.Validate(); err != nil {
		metrics.StoreOperations.WithLabelValues("upsert", "validation_error").Inc()
		return &StorageError{Op: "upsert", Err: fmt.Errorf("quote validation failed: %w", err)}
	}

	_, err := r.db.ExecContext(ctx, upsertSQL,
		quote.Symbol, quote.Name, quote.PriceUSD, nullableFloat(quote.Change24h), quote.ObservedAt)
	metrics.StoreLatency.WithLabelValues("upsert").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreOperations.WithLabelValues("upsert", "error").Inc()
		return &StorageError{Op: "upsert", Err: err}
	}

	metrics.StoreOperations.WithLabelValues("upsert", "success").Inc()
	return nil
}

// Record saves a quote and returns its row ID. On a duplicate write the
// ID of the already-stored row is returned, keeping the operation
// idempotent from the caller's point of view.
func (r *quoteRepository) Record(ctx context.Context, quote *models.Quote) (int64, error) {
	start := time.Now()

	if err := quote.Validate(); err != nil {
		metrics.StoreOperations.WithLabelValues("record", "validation_error").Inc()
		return 0, &StorageError{Op: "record", Err: fmt.Errorf("quote validation failed: %w", err)}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, upsertSQL+" RETURNING id",
		quote.Symbol, quote.Name, quote.PriceUSD, nullableFloat(quote.Change24h), quote.ObservedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict path: DO NOTHING returns no row, so fetch the existing one.
		err = r.db.QueryRowContext(ctx,
			`SELECT id FROM quotes WHERE symbol = $1 AND observed_at = $2`,
			quote.Symbol, quote.ObservedAt).Scan(&id)
	}
	metrics.StoreLatency.WithLabelValues("record").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreOperations.WithLabelValues("record", "error").Inc()
		return 0, &StorageError{Op: "record", Err: err}
	}

	metrics.StoreOperations.WithLabelValues("record", "success").Inc()
	return id, nil
}

// History retrieves quotes for a symbol within a time range, ascending.
func (r *quoteRepository) History(ctx context.Context, symbol string, from, to time.Time) ([]*models.Quote, error) {
	start := time.Now()

	query := `
		SELECT symbol, name, price_usd, change_24h, observed_at
		FROM quotes
		WHERE symbol = $1 AND observed_at BETWEEN $2 AND $3
		ORDER BY observed_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, validation.NormalizeSymbol(symbol), from, to)
	metrics.StoreLatency.WithLabelValues("history").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreOperations.WithLabelValues("history", "error").Inc()
		return nil, &StorageError{Op: "history", Err: err}
	}
	defer rows.Close()

	var quotes []*models.Quote
	for rows.Next() {
		var quote models.Quote
		var change sql.NullFloat64
		if err := rows.Scan(&quote.Symbol, &quote.Name, &quote.PriceUSD, &change, &quote.ObservedAt); err != nil {
			metrics.StoreOperations.WithLabelValues("history", "error").Inc()
			return nil, &StorageError{Op: "history", Err: fmt.Errorf("failed to scan quote: %w", err)}
		}
		if change.Valid {
			quote.Change24h = &change.Float64
		}
		quotes = append(quotes, &quote)
	}
	if err := rows.Err(); err != nil {
		metrics.StoreOperations.WithLabelValues("history", "error").Inc()
		return nil, &StorageError{Op: "history", Err: fmt.Errorf("error iterating quotes: %w", err)}
	}

	metrics.StoreOperations.WithLabelValues("history", "success").Inc()
	return quotes, nil
}

// PruneBefore deletes quote rows older than the cutoff.
func (r *quoteRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()

	res, err := r.db.ExecContext(ctx, `DELETE FROM quotes WHERE observed_at < $1`, cutoff)
	metrics.StoreLatency.WithLabelValues("prune").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreOperations.WithLabelValues("prune", "error").Inc()
		return 0, &StorageError{Op: "prune", Err: err}
	}

	pruned, err := res.RowsAffected()
	if err != nil {
		pruned = 0
	}
	metrics.StoreOperations.WithLabelValues("prune", "success").Inc()
	return pruned, nil
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
