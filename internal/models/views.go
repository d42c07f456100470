package models

import "github.com/shopspring/decimal"

type PriceUpdate struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
}

// PortfolioStats are the derived portfolio-level numbers: what was paid
// for everything currently held, what it is worth at the latest prices,
// and the unrealized return in absolute and percentage terms.
type PortfolioStats struct {
	Invested               decimal.Decimal `json:"invested"`
	CurrentValue           decimal.Decimal `json:"currentValue"`
	TotalReturns           decimal.Decimal `json:"totalReturns"`
	TotalReturnsPercentage decimal.Decimal `json:"totalReturnsPercentage"`
}

type HoldingView struct {
	CoinID       string          `json:"coinId"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"averageCost"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	CurrentValue decimal.Decimal `json:"currentValue"`
}

type PortfolioView struct {
	UserID     string          `json:"userID"`
	UserName   string          `json:"userName"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Holdings   []HoldingView   `json:"holdings"`
}
