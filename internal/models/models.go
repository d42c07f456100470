package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey;" json:"id"`
	Name                string     `gorm:"not null" json:"name"`
	Email               string     `gorm:"unique;not null" json:"email"`
	IsSubscribed        bool       `gorm:"not null;default:false" json:"isSubscribed"`
	SubscriptionEndDate *time.Time `json:"subscriptionEndDate,omitempty"`
	TransactionCount    int        `gorm:"not null;default:0" json:"transactionCount"`
	Holdings            []Holding  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"holdings,omitempty"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}

// Holding is a user's position in one coin: quantity held plus the
// quantity-weighted average purchase price. There is at most one holding
// per (user, coin) and quantity is always positive, a fully sold holding
// is deleted rather than kept at zero. Rows are removed outright, not
// soft-deleted: a soft-deleted row would still hold the (user, coin)
// unique slot and block re-buying the coin. History lives in the trade
// journal.
type Holding struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_user_coin" json:"-"`
	CoinID      string          `gorm:"not null;uniqueIndex:idx_user_coin" json:"coinId"`
	Symbol      string          `gorm:"not null" json:"symbol"`
	Name        string          `gorm:"not null" json:"name"`
	Image       string          `json:"image"`
	Quantity    decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"quantity"`
	AverageCost decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"averageCost"`
}

const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// Trade is one journal entry per executed buy or sell. RealizedPnL is
// only meaningful on sells: (execution price - average cost) * quantity.
type Trade struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	CoinID      string          `gorm:"not null" json:"coinId"`
	Symbol      string          `gorm:"not null" json:"symbol"`
	Side        string          `gorm:"not null" json:"side"`
	Quantity    decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"price"`
	RealizedPnL decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"realizedPnl"`
	CreatedAt   time.Time       `json:"createdAt"`
}
