package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/models"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
	"gorm.io/gorm"
)

type HoldingsRepository interface {
	AddHolding(holding *models.Holding) error
	GetHolding(userID uuid.UUID, coinID string) (*models.Holding, error)
	ListHoldings(userID uuid.UUID) ([]models.Holding, error)
	UpdateHolding(holding *models.Holding) error
	DeleteHolding(userID uuid.UUID, coinID string) error
}

type holdingsRepository struct {
	db *gorm.DB
}

func NewHoldingsRepository(db *gorm.DB) HoldingsRepository {
	return &holdingsRepository{
		db: db,
	}
}

func (r *holdingsRepository) AddHolding(holding *models.Holding) error {
	if err := r.db.Create(holding).Error; err != nil {
		errorString := err.Error()
		if strings.Contains(errorString, "UNIQUE") || strings.Contains(errorString, "duplicate") {
			return errs.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *holdingsRepository) GetHolding(userID uuid.UUID, coinID string) (*models.Holding, error) {
	var holding models.Holding

	if err := r.db.Where("user_id = ? AND coin_id = ?", userID, coinID).First(&holding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return &holding, nil
}

func (r *holdingsRepository) ListHoldings(userID uuid.UUID) ([]models.Holding, error) {
	var holdings []models.Holding

	if err := r.db.Where("user_id = ?", userID).Order("id").Find(&holdings).Error; err != nil {
		return nil, err
	}

	return holdings, nil
}

func (r *holdingsRepository) UpdateHolding(holding *models.Holding) error {
	if err := r.db.Save(holding).Error; err != nil {
		return err
	}
	return nil
}

func (r *holdingsRepository) DeleteHolding(userID uuid.UUID, coinID string) error {
	result := r.db.Where("user_id = ? AND coin_id = ?", userID, coinID).Delete(&models.Holding{})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}
