// Package history answers historical range queries over stored quotes.
package history

import (
	"context"
	"fmt"
	"time"

	"cryptotrack/pkg/database"
	"cryptotrack/pkg/models"
	"cryptotrack/pkg/validation"
)

const (
	// DefaultDays is the lookback window when the caller omits days.
	DefaultDays = 7
	// MaxDays caps the lookback window to keep range scans bounded.
	MaxDays = 365
)

// ValidationError rejects a request at the boundary, before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Service reads the quote store; it never writes.
type Service struct {
	repo database.QuoteRepository
	now  func() time.Time
}

// New creates a history Service.
func New(repo database.QuoteRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// GetHistory returns the quotes for a symbol over the last `days` days,
// ascending by observation time. The symbol is matched
// case-insensitively; days defaults to 7 when non-positive and is
// capped at MaxDays. No stored data yields an empty, successful result.
func (s *Service) GetHistory(ctx context.Context, symbol string, days int) (*models.HistoryResponse, error) {
	normalized := validation.NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, &ValidationError{Field: "symbol", Message: "symbol is required"}
	}

	if days <= 0 {
		days = DefaultDays
	}
	if days > MaxDays {
		days = MaxDays
	}

	to := s.now().UTC()
	from := to.AddDate(0, 0, -days)

	quotes, err := s.repo.History(ctx, normalized, from, to)
	if err != nil {
		return nil, err
	}

	resp := &models.HistoryResponse{
		Symbol: normalized,
		Days:   days,
		Quotes: make([]models.HistoryPoint, 0, len(quotes)),
	}
	for _, q := range quotes {
		resp.Quotes = append(resp.Quotes, models.HistoryPoint{
			Price:     q.PriceUSD,
			Change:    q.Change24h,
			Timestamp: q.ObservedAt,
		})
	}
	return resp, nil
}
