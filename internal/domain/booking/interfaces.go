package booking

import (
	"context"

	"communityhub/internal/domain/capacity"
	"communityhub/internal/domain/loyalty"

	"gorm.io/gorm"
)

// Repository persists bookings and their status trail. Methods taking a tx
// expect the caller to own the transaction.
type Repository interface {
	Insert(tx *gorm.DB, b *Booking) error
	GetForUpdate(tx *gorm.DB, id string) (*Booking, error)
	UpdateStatus(tx *gorm.DB, b *Booking) error
	AppendHistory(tx *gorm.DB, change *StatusChange) error
	UnitsHeld(tx *gorm.DB, resourceID string) (int, error)

	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, f Filter) ([]Booking, int64, error)
	History(ctx context.Context, id string) ([]StatusChange, error)
}

// CapacityPool is the part of capacity.Pool the engine drives.
type CapacityPool interface {
	LockResource(resourceID string) func()
	GetTx(tx *gorm.DB, resourceID string) (*capacity.Resource, error)
	ReserveTx(tx *gorm.DB, resourceID string, units int) (*capacity.Resource, error)
	ReleaseTx(tx *gorm.DB, resourceID string, units int) (*capacity.Resource, error)
	RestoreTx(tx *gorm.DB, resourceID string, reserved int) (*capacity.Resource, error)
	List(ctx context.Context) ([]capacity.Resource, error)
}

// LoyaltyLedger is the part of loyalty.Ledger the engine drives.
type LoyaltyLedger interface {
	LockUser(userID int64) func()
	AccrueTx(tx *gorm.DB, userID, netAmount int64) (*loyalty.AccrualResult, error)
	Observe(res *loyalty.AccrualResult)
}

// Publisher receives booking events after they commit. Implementations
// must not block; delivery failures are theirs to handle.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

const (
	EventCreated       = "booking.created"
	EventStatusChanged = "booking.status_changed"
)
