package loyalty

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the persisted loyalty state of one user. The tier is derived
// from CumulativeSpend on every read and has no column of its own.
type Account struct {
	UserID          int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	CumulativeSpend int64     `json:"cumulative_spend" gorm:"not null;default:0;check:cumulative_spend >= 0"`
	PointBalance    int64     `json:"point_balance" gorm:"not null;default:0;check:point_balance >= 0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "loyalty_accounts"
}

// Accrual records one accrue call.
type Accrual struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       int64     `json:"user_id" gorm:"not null;index"`
	NetAmount    int64     `json:"net_amount" gorm:"not null"`
	PointsEarned int64     `json:"points_earned" gorm:"not null"`
	Tier         string    `json:"tier" gorm:"type:varchar(32);not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Accrual) TableName() string {
	return "loyalty_accruals"
}

func (a *Accrual) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// State is the read model handed to consoles.
type State struct {
	UserID          int64   `json:"user_id"`
	CumulativeSpend int64   `json:"cumulative_spend"`
	Points          int64   `json:"points"`
	Tier            Tier    `json:"tier"`
	NextTier        *Tier   `json:"next_tier,omitempty"`
	PointValue      int64   `json:"point_value"`
	PointsWorth     int64   `json:"points_worth"`
	Progress        float64 `json:"progress"`
}

// AccrualResult is the state after an accrual plus what the accrual changed.
type AccrualResult struct {
	State
	PointsEarned int64  `json:"points_earned"`
	PreviousTier string `json:"previous_tier"`
	TierChanged  bool   `json:"tier_changed"`
}
