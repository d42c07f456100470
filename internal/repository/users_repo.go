package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/models"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
	"gorm.io/gorm"
)

type UsersRepository interface {
	CreateUser(user *models.User) error
	GetUserByID(userID uuid.UUID) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	SetSubscription(userID uuid.UUID, endDate time.Time) error
	IncrementTransactionCount(userID uuid.UUID) error
	DeleteUserByID(userID uuid.UUID) error
	DeleteUserByEmail(email string) error
}

type usersRepository struct {
	db *gorm.DB
}

func NewUsersRepository(db *gorm.DB) UsersRepository {
	return &usersRepository{db: db}
}

func (r *usersRepository) CreateUser(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		errorString := err.Error()
		if strings.Contains(errorString, "UNIQUE constraint failed") || strings.Contains(errorString, "duplicate key value violates unique constraint") {
			return errs.ErrAlreadyExists
		}

		return errs.ErrInternal
	}

	return nil
}

func (r *usersRepository) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Holdings").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}
	return &user, nil
}

func (r *usersRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Holdings").First(&user, "lower(email) = lower(?)", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}
	return &user, nil
}

func (r *usersRepository) SetSubscription(userID uuid.UUID, endDate time.Time) error {
	result := r.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"is_subscribed":         true,
		"subscription_end_date": endDate,
	})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (r *usersRepository) IncrementTransactionCount(userID uuid.UUID) error {
	result := r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("transaction_count", gorm.Expr("transaction_count + ?", 1))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (r *usersRepository) DeleteUserByID(userID uuid.UUID) error {
	result := r.db.Select("Holdings").Delete(&models.User{ID: userID})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (r *usersRepository) DeleteUserByEmail(email string) error {
	user, err := r.GetUserByEmail(email)
	if err != nil {
		return err
	}
	return r.DeleteUserByID(user.ID)
}
