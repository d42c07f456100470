package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/market"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/models"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/repository"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

// PortfolioService maintains the owned-coin ledger and derives valuations
// against the latest market snapshot. Buys and sells are gated by the
// free-tier transaction limit unless the user is subscribed, and every
// executed trade lands in the journal.
type PortfolioService interface {
	Buy(ctx context.Context, userID uuid.UUID, quote market.Quote, quantity decimal.Decimal) (*models.Holding, error)
	Sell(ctx context.Context, userID uuid.UUID, coinID string, quantity decimal.Decimal, snap *market.Snapshot) error
	TotalValue(ctx context.Context, userID uuid.UUID, snap *market.Snapshot) (decimal.Decimal, error)
	Stats(ctx context.Context, userID uuid.UUID, snap *market.Snapshot) (*models.PortfolioStats, error)
	View(ctx context.Context, userID uuid.UUID, snap *market.Snapshot) (*models.PortfolioView, error)
	Trades(ctx context.Context, userID uuid.UUID) ([]models.Trade, error)
}

type portfolioService struct {
	holdingsRepo  repository.HoldingsRepository
	tradesRepo    repository.TradesRepository
	usersRepo     repository.UsersRepository
	db            *gorm.DB
	freeTierLimit int
}

func NewPortfolioService(holdingsRepo repository.HoldingsRepository, tradesRepo repository.TradesRepository,
	usersRepo repository.UsersRepository, db *gorm.DB, freeTierLimit int) PortfolioService {
	return &portfolioService{
		holdingsRepo:  holdingsRepo,
		tradesRepo:    tradesRepo,
		usersRepo:     usersRepo,
		db:            db,
		freeTierLimit: freeTierLimit,
	}
}

// Buy adds quantity of the quoted coin. A first purchase opens the holding
// at the quoted price; repeat purchases fold the new cost into the
// quantity-weighted average:
//
//	avg = (heldQty*heldAvg + qty*price) / (heldQty + qty)
func (s *portfolioService) Buy(ctx context.Context, userID uuid.UUID, quote market.Quote, quantity decimal.Decimal) (*models.Holding, error) {
	if !quantity.IsPositive() {
		return nil, errs.ErrInvalidQuantity
	}
	if !quote.CurrentPrice.IsPositive() {
		return nil, fmt.Errorf("%w: no usable price for %s", errs.ErrMarketDataUnavailable, quote.ID)
	}

	var resultingHolding *models.Holding

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.gateTransaction(tx, userID); err != nil {
			return err
		}

		txHoldings := repository.NewHoldingsRepository(tx)

		holding, err := txHoldings.GetHolding(userID, quote.ID)
		if err != nil {
			if !errors.Is(err, errs.ErrNotFound) {
				return err
			}
			holding = &models.Holding{
				UserID:      userID,
				CoinID:      quote.ID,
				Symbol:      quote.Symbol,
				Name:        quote.Name,
				Image:       quote.Image,
				Quantity:    quantity,
				AverageCost: quote.CurrentPrice,
			}
			if err := txHoldings.AddHolding(holding); err != nil {
				return err
			}
		} else {
			newQuantity := holding.Quantity.Add(quantity)
			totalCost := holding.Quantity.Mul(holding.AverageCost).Add(quantity.Mul(quote.CurrentPrice))
			holding.AverageCost = totalCost.Div(newQuantity)
			holding.Quantity = newQuantity
			if err := txHoldings.UpdateHolding(holding); err != nil {
				return err
			}
		}

		if err := s.journal(tx, &models.Trade{
			UserID:   userID,
			CoinID:   quote.ID,
			Symbol:   quote.Symbol,
			Side:     models.TradeSideBuy,
			Quantity: quantity,
			Price:    quote.CurrentPrice,
		}); err != nil {
			return err
		}

		resultingHolding = holding
		return nil
	})

	if err != nil {
		return nil, err
	}

	return resultingHolding, nil
}

// Sell disposes of quantity of a held coin. Selling the full position
// deletes the holding; a partial sell reduces the quantity and leaves the
// average cost of the remainder untouched. Realized P&L on the sold
// portion is journaled against the snapshot price, falling back to cost.
func (s *portfolioService) Sell(ctx context.Context, userID uuid.UUID, coinID string, quantity decimal.Decimal, snap *market.Snapshot) error {
	if !quantity.IsPositive() {
		return errs.ErrInvalidQuantity
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.gateTransaction(tx, userID); err != nil {
			return err
		}

		txHoldings := repository.NewHoldingsRepository(tx)

		holding, err := txHoldings.GetHolding(userID, coinID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrInsufficientHolding
			}
			return err
		}

		if quantity.GreaterThan(holding.Quantity) {
			return errs.ErrInsufficientHolding
		}

		if quantity.Equal(holding.Quantity) {
			if err := txHoldings.DeleteHolding(userID, coinID); err != nil {
				return err
			}
		} else {
			holding.Quantity = holding.Quantity.Sub(quantity)
			if err := txHoldings.UpdateHolding(holding); err != nil {
				return err
			}
		}

		price := snap.PriceOr(coinID, holding.AverageCost)
		realized := price.Sub(holding.AverageCost).Mul(quantity)

		return s.journal(tx, &models.Trade{
			UserID:      userID,
			CoinID:      coinID,
			Symbol:      holding.Symbol,
			Side:        models.TradeSideSell,
			Quantity:    quantity,
			Price:       price,
			RealizedPnL: realized,
		})
	})
}

// TotalValue sums quantity*price over all holdings, pricing each against
// the snapshot and falling back to the holding's own average cost when
// the coin is missing (stale or absent market data values at no change).
func (s *portfolioService) TotalValue(ctx context.Context, userID uuid.UUID, snap *market.Snapshot) (decimal.Decimal, error) {
	holdings, err := s.holdingsRepo.ListHoldings(userID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, h := range holdings {
		price := snap.PriceOr(h.CoinID, h.AverageCost)
		total = total.Add(h.Quantity.Mul(price))
	}
	return total, nil
}

// Stats derives the portfolio-level numbers. An empty ledger yields nil
// rather than a zero-division; a degenerate zero invested amount reports
// a zero percentage.
func (s *portfolioService) Stats(ctx context.Context, userID uuid.UUID, snap *market.Snapshot) (*models.PortfolioStats, error) {
	holdings, err := s.holdingsRepo.ListHoldings(userID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, nil
	}

	invested := decimal.Zero
	currentValue := decimal.Zero
	for _, h := range holdings {
		price := snap.PriceOr(h.CoinID, h.AverageCost)
		invested = invested.Add(h.Quantity.Mul(h.AverageCost))
		currentValue = currentValue.Add(h.Quantity.Mul(price))
	}

	totalReturns := currentValue.Sub(invested)
	totalReturnsPercentage := decimal.Zero
	if invested.IsPositive() {
		totalReturnsPercentage = totalReturns.Div(invested).Mul(oneHundred)
	}

	return &models.PortfolioStats{
		Invested:               invested,
		CurrentValue:           currentValue,
		TotalReturns:           totalReturns,
		TotalReturnsPercentage: totalReturnsPercentage,
	}, nil
}

func (s *portfolioService) View(ctx context.Context, userID uuid.UUID, snap *market.Snapshot) (*models.PortfolioView, error) {
	user, err := s.usersRepo.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	view := &models.PortfolioView{
		UserID:     user.ID.String(),
		UserName:   user.Name,
		TotalValue: decimal.Zero,
		Holdings:   []models.HoldingView{},
	}

	for _, h := range user.Holdings {
		price := snap.PriceOr(h.CoinID, h.AverageCost)
		value := h.Quantity.Mul(price)
		view.Holdings = append(view.Holdings, models.HoldingView{
			CoinID:       h.CoinID,
			Symbol:       h.Symbol,
			Name:         h.Name,
			Image:        h.Image,
			Quantity:     h.Quantity,
			AverageCost:  h.AverageCost,
			CurrentPrice: price,
			CurrentValue: value,
		})
		view.TotalValue = view.TotalValue.Add(value)
	}

	return view, nil
}

func (s *portfolioService) Trades(ctx context.Context, userID uuid.UUID) ([]models.Trade, error) {
	return s.tradesRepo.ListTrades(userID)
}

// gateTransaction loads the user inside the transaction and enforces the
// free-tier limit: past it, only subscribers may trade.
func (s *portfolioService) gateTransaction(tx *gorm.DB, userID uuid.UUID) error {
	user, err := repository.NewUsersRepository(tx).GetUserByID(userID)
	if err != nil {
		return err
	}

	if !user.IsSubscribed && user.TransactionCount >= s.freeTierLimit {
		return errs.ErrSubscriptionRequired
	}

	return nil
}

// journal records the trade and bumps the user's transaction count in the
// same transaction as the ledger mutation.
func (s *portfolioService) journal(tx *gorm.DB, trade *models.Trade) error {
	if err := repository.NewTradesRepository(tx).RecordTrade(trade); err != nil {
		return err
	}

	return repository.NewUsersRepository(tx).IncrementTransactionCount(trade.UserID)
}
