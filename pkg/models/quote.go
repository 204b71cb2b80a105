package models

import (
	"fmt"
	"math"
	"time"

	"cryptotrack/pkg/validation"
)

// RawQuote is a single provider entry before normalization. Field names
// follow the provider payload; nothing here is trusted yet.
type RawQuote struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Symbol    string   `json:"symbol"`
	PriceUSD  float64  `json:"priceUsd"`
	Change24h *float64 `json:"changePercent24h"`
	// LastUpdated is the provider's observation time, RFC3339. Optional.
	LastUpdated string `json:"lastUpdated"`
}

// Quote is the canonical, validated price observation. Immutable once
// persisted; identity within a time bucket is (Symbol, ObservedAt).
type Quote struct {
	Symbol     string    `json:"symbol" validate:"required,symbol"`
	Name       string    `json:"name"`
	PriceUSD   float64   `json:"priceUsd" validate:"price"`
	Change24h  *float64  `json:"changePercent24h,omitempty"`
	ObservedAt time.Time `json:"observedAt" validate:"observed_at"`
}

// Validate validates the Quote struct
func (q Quote) Validate() error {
	if errors := validation.ValidateStruct(q); len(errors) > 0 {
		return errors
	}
	return nil
}

// Normalize converts a raw provider entry into a canonical Quote.
// The symbol is lowercased, a non-finite 24h change becomes null, and
// ObservedAt falls back to now when the provider omits or mangles its
// own timestamp. A negative or non-finite price is a hard reject.
func (rq RawQuote) Normalize(now time.Time) (Quote, error) {
	q := Quote{
		Symbol:   validation.NormalizeSymbol(rq.Symbol),
		Name:     rq.Name,
		PriceUSD: rq.PriceUSD,
	}

	if rq.Change24h != nil && !math.IsNaN(*rq.Change24h) && !math.IsInf(*rq.Change24h, 0) {
		change := *rq.Change24h
		q.Change24h = &change
	}

	q.ObservedAt = now.UTC()
	if rq.LastUpdated != "" {
		if ts, err := time.Parse(time.RFC3339, rq.LastUpdated); err == nil {
			q.ObservedAt = ts.UTC()
		}
	}

	if err := q.Validate(); err != nil {
		return Quote{}, fmt.Errorf("normalize %q: %w", rq.Symbol, err)
	}
	return q, nil
}

// ObservationInput is the body of a manual record-observation request.
type ObservationInput struct {
	Name      string   `json:"name" validate:"required"`
	Symbol    string   `json:"symbol" validate:"required"`
	Price     *float64 `json:"price" validate:"required"`
	Change24h *float64 `json:"change24h" validate:"required"`
}

// Validate validates the ObservationInput struct
func (in ObservationInput) Validate() error {
	if errors := validation.ValidateStruct(in); len(errors) > 0 {
		return errors
	}
	return nil
}

// ToQuote builds a canonical Quote from a manual observation.
func (in ObservationInput) ToQuote(now time.Time) (Quote, error) {
	q := Quote{
		Symbol:     validation.NormalizeSymbol(in.Symbol),
		Name:       in.Name,
		ObservedAt: now.UTC(),
	}
	if in.Price != nil {
		q.PriceUSD = *in.Price
	}
	if in.Change24h != nil && !math.IsNaN(*in.Change24h) && !math.IsInf(*in.Change24h, 0) {
		change := *in.Change24h
		q.Change24h = &change
	}
	if err := q.Validate(); err != nil {
		return Quote{}, err
	}
	return q, nil
}

// HistoryPoint is one entry of the public history response.
type HistoryPoint struct {
	Price     float64   `json:"price"`
	Change    *float64  `json:"change"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse is the public shape of a range query.
type HistoryResponse struct {
	Symbol string         `json:"symbol"`
	Days   int            `json:"days"`
	Quotes []HistoryPoint `json:"quotes"`
}

// SnapshotEntry is one entry of the live snapshot response.
type SnapshotEntry struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Symbol    string   `json:"symbol"`
	PriceUSD  float64  `json:"priceUsd"`
	Change24h *float64 `json:"changePercent24h"`
}
