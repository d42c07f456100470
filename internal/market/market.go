// Package market fetches and holds the point-in-time list of coin prices
// used for valuations. The rest of the service treats the snapshot as
// read-only and must tolerate it being absent.
package market

import (
	"github.com/shopspring/decimal"
)

// Quote is one priced coin from the external market data source.
type Quote struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Image          string          `json:"image"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PriceChange24h decimal.Decimal `json:"price_change_percentage_24h"`
}

// Snapshot is an ordered list of quotes plus a by-ID index.
type Snapshot struct {
	Quotes    []Quote `json:"quotes"`
	FetchedAt int64   `json:"fetchedAt"`

	byID map[string]*Quote
}

func NewSnapshot(quotes []Quote, fetchedAt int64) *Snapshot {
	s := &Snapshot{Quotes: quotes, FetchedAt: fetchedAt}
	s.reindex()
	return s
}

func (s *Snapshot) reindex() {
	s.byID = make(map[string]*Quote, len(s.Quotes))
	for i := range s.Quotes {
		s.byID[s.Quotes[i].ID] = &s.Quotes[i]
	}
}

// Lookup returns the quote for a coin, or nil when the snapshot does not
// carry it.
func (s *Snapshot) Lookup(coinID string) *Quote {
	if s == nil {
		return nil
	}
	if s.byID == nil {
		s.reindex()
	}
	return s.byID[coinID]
}

// PriceOr returns the current price for a coin, falling back to the given
// price when the coin is absent from the snapshot. A nil snapshot always
// falls back, so callers can value holdings while market data is down.
func (s *Snapshot) PriceOr(coinID string, fallback decimal.Decimal) decimal.Decimal {
	q := s.Lookup(coinID)
	if q == nil {
		return fallback
	}
	return q.CurrentPrice
}
