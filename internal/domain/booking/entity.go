package booking

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking is one request against a resource. Rows are never deleted; a
// booking ends in a terminal status.
type Booking struct {
	ID         string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID     int64     `json:"user_id" gorm:"not null;index"`
	ResourceID string    `json:"resource_id" gorm:"type:varchar(64);not null;index"`
	Service    string    `json:"service" gorm:"type:varchar(16);not null;index"`
	Units      int       `json:"units" gorm:"not null;check:units > 0"`
	Status     Status    `json:"status" gorm:"type:varchar(16);not null;index"`
	Amount     int64     `json:"amount" gorm:"not null;check:amount >= 0"`
	Discount   int64     `json:"discount" gorm:"not null;default:0;check:discount >= 0 AND discount <= amount"`
	Note       string    `json:"note,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"index"`
}

func (Booking) TableName() string {
	return "bookings"
}

// NetAmount is what the resident actually paid and what loyalty accrues on.
func (b Booking) NetAmount() int64 {
	return b.Amount - b.Discount
}

func (b Booking) Flow() Flow {
	return FlowFor(b.Service)
}

// StatusChange is the audit trail of a booking; From is empty on creation.
type StatusChange struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID string    `json:"booking_id" gorm:"type:varchar(36);not null;index"`
	From      Status    `json:"from" gorm:"column:from_status;type:varchar(16)"`
	To        Status    `json:"to" gorm:"column:to_status;type:varchar(16);not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (StatusChange) TableName() string {
	return "booking_status_changes"
}

func (c *StatusChange) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
