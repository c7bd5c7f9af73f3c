package booking

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Filter narrows List; zero values match everything.
type Filter struct {
	Status     Status
	Service    string
	UserID     int64
	ResourceID string
	Limit      int
	Offset     int
}

// Paged returns f with Limit and Offset brought into range: a missing limit
// becomes the default, large ones are capped and negative offsets start at 0.
func (f Filter) Paged() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(tx *gorm.DB, b *Booking) error {
	return tx.Create(b).Error
}

func (r *repository) GetForUpdate(tx *gorm.DB, id string) (*Booking, error) {
	var b Booking
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) UpdateStatus(tx *gorm.DB, b *Booking) error {
	return tx.Model(&Booking{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"status":     b.Status,
			"updated_at": b.UpdatedAt,
		}).Error
}

func (r *repository) AppendHistory(tx *gorm.DB, change *StatusChange) error {
	return tx.Create(change).Error
}

// UnitsHeld sums the units of every booking on the resource that still
// holds capacity, i.e. everything not cancelled or rejected.
func (r *repository) UnitsHeld(tx *gorm.DB, resourceID string) (int, error) {
	var total int64
	err := tx.Model(&Booking{}).
		Select("COALESCE(SUM(units), 0)").
		Where("resource_id = ? AND status NOT IN ?", resourceID, []Status{StatusCancelled, StatusRejected}).
		Scan(&total).Error
	return int(total), err
}

func (r *repository) GetByID(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) List(ctx context.Context, f Filter) ([]Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&Booking{})

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Service != "" {
		query = query.Where("service = ?", f.Service)
	}
	if f.UserID > 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.ResourceID != "" {
		query = query.Where("resource_id = ?", f.ResourceID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	f = f.Paged()
	var items []Booking
	if err := query.Order("created_at DESC, id").Limit(f.Limit).Offset(f.Offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repository) History(ctx context.Context, id string) ([]StatusChange, error) {
	var items []StatusChange
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", id).
		Order("created_at ASC, id").
		Find(&items).Error
	return items, err
}
