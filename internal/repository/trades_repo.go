package repository

import (
	"github.com/google/uuid"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/models"
	"gorm.io/gorm"
)

type TradesRepository interface {
	RecordTrade(trade *models.Trade) error
	ListTrades(userID uuid.UUID) ([]models.Trade, error)
}

type tradesRepository struct {
	db *gorm.DB
}

func NewTradesRepository(db *gorm.DB) TradesRepository {
	return &tradesRepository{
		db: db,
	}
}

func (r *tradesRepository) RecordTrade(trade *models.Trade) error {
	if err := r.db.Create(trade).Error; err != nil {
		return err
	}
	return nil
}

func (r *tradesRepository) ListTrades(userID uuid.UUID) ([]models.Trade, error) {
	var trades []models.Trade

	if err := r.db.Where("user_id = ?", userID).Order("created_at desc").Find(&trades).Error; err != nil {
		return nil, err
	}

	return trades, nil
}
