package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/market"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/models"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/repository"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/service"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testFreeTierLimit = 3

type portfolioFixture struct {
	db        *gorm.DB
	portfolio service.PortfolioService
	holdings  repository.HoldingsRepository
	trades    repository.TradesRepository
	users     repository.UsersRepository
	userID    uuid.UUID
}

func setupPortfolio(t *testing.T) *portfolioFixture {
	testDB := setupTestDB(t)

	usersRepo := repository.NewUsersRepository(testDB)
	holdingsRepo := repository.NewHoldingsRepository(testDB)
	tradesRepo := repository.NewTradesRepository(testDB)

	user := &models.User{Name: "Admin User", Email: "admin@demo.com"}
	if err := usersRepo.CreateUser(user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return &portfolioFixture{
		db:        testDB,
		portfolio: service.NewPortfolioService(holdingsRepo, tradesRepo, usersRepo, testDB, testFreeTierLimit),
		holdings:  holdingsRepo,
		trades:    tradesRepo,
		users:     usersRepo,
		userID:    user.ID,
	}
}

func quote(id string, price int64) market.Quote {
	return market.Quote{
		ID:           id,
		Symbol:       id[:3],
		Name:         id,
		CurrentPrice: decimal.NewFromInt(price),
	}
}

func snapshotOf(quotes ...market.Quote) *market.Snapshot {
	return market.NewSnapshot(quotes, time.Now().Unix())
}

func TestBuyAveragesCost(t *testing.T) {
	f := setupPortfolio(t)
	ctx := context.Background()

	t.Run("first_buy_opens_at_quoted_price", func(t *testing.T) {
		holding, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 100), decimal.NewFromInt(2))
		if err != nil {
			t.Fatalf("Buy failed: %v", err)
		}
		if !holding.Quantity.Equal(decimal.NewFromInt(2)) {
			t.Errorf("Expected quantity 2, got %s", holding.Quantity)
		}
		if !holding.AverageCost.Equal(decimal.NewFromInt(100)) {
			t.Errorf("Expected average cost 100, got %s", holding.AverageCost)
		}
	})

	t.Run("repeat_buy_folds_into_weighted_average", func(t *testing.T) {
		// 2 @ 100 then 1 @ 130: (2*100 + 1*130) / 3 = 110.
		holding, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 130), decimal.NewFromInt(1))
		if err != nil {
			t.Fatalf("Buy failed: %v", err)
		}
		if !holding.Quantity.Equal(decimal.NewFromInt(3)) {
			t.Errorf("Expected quantity 3, got %s", holding.Quantity)
		}
		if !holding.AverageCost.Equal(decimal.NewFromInt(110)) {
			t.Errorf("Expected average cost 110, got %s", holding.AverageCost)
		}
	})

	t.Run("sell_leaves_average_cost_unchanged", func(t *testing.T) {
		if err := f.portfolio.Sell(ctx, f.userID, "bitcoin", decimal.NewFromInt(1), nil); err != nil {
			t.Fatalf("Sell failed: %v", err)
		}

		holding, err := f.holdings.GetHolding(f.userID, "bitcoin")
		if err != nil {
			t.Fatalf("GetHolding failed: %v", err)
		}
		if !holding.Quantity.Equal(decimal.NewFromInt(2)) {
			t.Errorf("Expected quantity 2, got %s", holding.Quantity)
		}
		if !holding.AverageCost.Equal(decimal.NewFromInt(110)) {
			t.Errorf("Expected average cost to stay 110, got %s", holding.AverageCost)
		}
	})
}

func TestBuyRejectsInvalidQuantity(t *testing.T) {
	f := setupPortfolio(t)
	ctx := context.Background()

	for _, qty := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		if _, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 100), qty); !errors.Is(err, errs.ErrInvalidQuantity) {
			t.Errorf("Expected ErrInvalidQuantity for %s, got %v", qty, err)
		}
	}

	holdings, err := f.holdings.ListHoldings(f.userID)
	if err != nil {
		t.Fatalf("ListHoldings failed: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("Expected no holdings after rejected buys, got %d", len(holdings))
	}

	user, err := f.users.GetUserByID(f.userID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.TransactionCount != 0 {
		t.Errorf("Expected no transactions counted, got %d", user.TransactionCount)
	}
}

func TestSellRejections(t *testing.T) {
	f := setupPortfolio(t)
	ctx := context.Background()

	if _, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 100), decimal.NewFromInt(2)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	t.Run("oversell", func(t *testing.T) {
		err := f.portfolio.Sell(ctx, f.userID, "bitcoin", decimal.NewFromInt(5), nil)
		if !errors.Is(err, errs.ErrInsufficientHolding) {
			t.Errorf("Expected ErrInsufficientHolding, got %v", err)
		}
	})

	t.Run("unknown_coin", func(t *testing.T) {
		err := f.portfolio.Sell(ctx, f.userID, "dogecoin", decimal.NewFromInt(1), nil)
		if !errors.Is(err, errs.ErrInsufficientHolding) {
			t.Errorf("Expected ErrInsufficientHolding, got %v", err)
		}
	})

	t.Run("non_positive_quantity", func(t *testing.T) {
		err := f.portfolio.Sell(ctx, f.userID, "bitcoin", decimal.Zero, nil)
		if !errors.Is(err, errs.ErrInvalidQuantity) {
			t.Errorf("Expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("ledger_unchanged_after_rejections", func(t *testing.T) {
		holding, err := f.holdings.GetHolding(f.userID, "bitcoin")
		if err != nil {
			t.Fatalf("GetHolding failed: %v", err)
		}
		if !holding.Quantity.Equal(decimal.NewFromInt(2)) || !holding.AverageCost.Equal(decimal.NewFromInt(100)) {
			t.Errorf("Expected 2 @ 100 unchanged, got %s @ %s", holding.Quantity, holding.AverageCost)
		}

		user, err := f.users.GetUserByID(f.userID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		if user.TransactionCount != 1 {
			t.Errorf("Expected only the buy to be counted, got %d", user.TransactionCount)
		}
	})
}

func TestFullSellRemovesHolding(t *testing.T) {
	f := setupPortfolio(t)
	ctx := context.Background()

	if _, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 100), decimal.RequireFromString("0.5")); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	if err := f.portfolio.Sell(ctx, f.userID, "bitcoin", decimal.RequireFromString("0.5"), nil); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if _, err := f.holdings.GetHolding(f.userID, "bitcoin"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected the holding to be removed, got %v", err)
	}

	t.Run("rebuy_opens_a_fresh_holding", func(t *testing.T) {
		holding, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 120), decimal.NewFromInt(1))
		if err != nil {
			t.Fatalf("Buy after a full sell failed: %v", err)
		}
		if !holding.Quantity.Equal(decimal.NewFromInt(1)) {
			t.Errorf("Expected quantity 1, got %s", holding.Quantity)
		}
		if !holding.AverageCost.Equal(decimal.NewFromInt(120)) {
			t.Errorf("Expected the fresh holding to open at 120, got %s", holding.AverageCost)
		}
	})
}

func TestSellJournalsRealizedPnL(t *testing.T) {
	f := setupPortfolio(t)
	ctx := context.Background()

	if _, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 100), decimal.NewFromInt(2)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	snap := snapshotOf(quote("bitcoin", 150))
	if err := f.portfolio.Sell(ctx, f.userID, "bitcoin", decimal.NewFromInt(1), snap); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	trades, err := f.portfolio.Trades(ctx, f.userID)
	if err != nil {
		t.Fatalf("Trades failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("Expected 2 journal entries, got %d", len(trades))
	}

	var sell *models.Trade
	for i := range trades {
		if trades[i].Side == models.TradeSideSell {
			sell = &trades[i]
		}
	}
	if sell == nil {
		t.Fatal("Expected a sell journal entry")
	}
	if !sell.RealizedPnL.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected realized P&L 50, got %s", sell.RealizedPnL)
	}
}

func TestFreeTierGate(t *testing.T) {
	f := setupPortfolio(t)
	ctx := context.Background()

	for i := 0; i < testFreeTierLimit; i++ {
		if _, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 100), decimal.NewFromInt(1)); err != nil {
			t.Fatalf("Buy %d failed: %v", i+1, err)
		}
	}

	t.Run("fourth_transaction_blocked", func(t *testing.T) {
		_, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 100), decimal.NewFromInt(1))
		if !errors.Is(err, errs.ErrSubscriptionRequired) {
			t.Errorf("Expected ErrSubscriptionRequired, got %v", err)
		}

		if err := f.portfolio.Sell(ctx, f.userID, "bitcoin", decimal.NewFromInt(1), nil); !errors.Is(err, errs.ErrSubscriptionRequired) {
			t.Errorf("Expected ErrSubscriptionRequired on sell, got %v", err)
		}
	})

	t.Run("subscriber_trades_past_the_limit", func(t *testing.T) {
		if err := f.users.SetSubscription(f.userID, time.Now().AddDate(0, 1, 0)); err != nil {
			t.Fatalf("SetSubscription failed: %v", err)
		}

		if _, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 100), decimal.NewFromInt(1)); err != nil {
			t.Errorf("Expected a subscriber to trade past the limit, got %v", err)
		}
	})
}

func TestPortfolioStats(t *testing.T) {
	f := setupPortfolio(t)
	ctx := context.Background()

	t.Run("empty_ledger_has_no_stats", func(t *testing.T) {
		stats, err := f.portfolio.Stats(ctx, f.userID, snapshotOf())
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats != nil {
			t.Errorf("Expected nil stats for an empty ledger, got %+v", stats)
		}
	})

	if _, err := f.portfolio.Buy(ctx, f.userID, quote("bitcoin", 100), decimal.NewFromInt(2)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if _, err := f.portfolio.Buy(ctx, f.userID, quote("ethereum", 10), decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	t.Run("returns_against_current_prices", func(t *testing.T) {
		snap := snapshotOf(quote("bitcoin", 150), quote("ethereum", 8))

		stats, err := f.portfolio.Stats(ctx, f.userID, snap)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats == nil {
			t.Fatal("Expected stats for a non-empty ledger")
		}

		// invested = 2*100 + 5*10 = 250; current = 2*150 + 5*8 = 340.
		if !stats.Invested.Equal(decimal.NewFromInt(250)) {
			t.Errorf("Expected invested 250, got %s", stats.Invested)
		}
		if !stats.CurrentValue.Equal(decimal.NewFromInt(340)) {
			t.Errorf("Expected current value 340, got %s", stats.CurrentValue)
		}
		if !stats.TotalReturns.Equal(decimal.NewFromInt(90)) {
			t.Errorf("Expected total returns 90, got %s", stats.TotalReturns)
		}
		if !stats.TotalReturnsPercentage.Equal(decimal.NewFromInt(36)) {
			t.Errorf("Expected total returns percentage 36, got %s", stats.TotalReturnsPercentage)
		}
	})

	t.Run("missing_coin_falls_back_to_cost", func(t *testing.T) {
		snap := snapshotOf(quote("bitcoin", 150))

		total, err := f.portfolio.TotalValue(ctx, f.userID, snap)
		if err != nil {
			t.Fatalf("TotalValue failed: %v", err)
		}
		// bitcoin at 150, ethereum falls back to its 10 average cost.
		if !total.Equal(decimal.NewFromInt(350)) {
			t.Errorf("Expected total value 350, got %s", total)
		}
	})

	t.Run("nil_snapshot_values_at_cost", func(t *testing.T) {
		total, err := f.portfolio.TotalValue(ctx, f.userID, nil)
		if err != nil {
			t.Fatalf("TotalValue failed: %v", err)
		}
		if !total.Equal(decimal.NewFromInt(250)) {
			t.Errorf("Expected total value 250, got %s", total)
		}
	})
}
