package capacity

import (
	"context"
	"errors"
	"fmt"

	"communityhub/internal/config"
	"communityhub/internal/metrics"
	"communityhub/internal/pkg/keylock"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Pool tracks reserved units per resource. Every mutation runs under the
// resource key and inside a transaction that locks the resource row.
type Pool struct {
	db    *gorm.DB
	locks *keylock.Map
	log   *zap.Logger
}

func NewPool(db *gorm.DB, locks *keylock.Map, log *zap.Logger) *Pool {
	if locks == nil {
		locks = keylock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{db: db, locks: locks, log: log}
}

// LockResource takes the resource's mutual-exclusion boundary.
func (p *Pool) LockResource(resourceID string) func() {
	return p.locks.Lock("resource:" + resourceID)
}

// Reserve takes units from the resource, all or nothing.
func (p *Pool) Reserve(ctx context.Context, resourceID string, units int) (*Resource, error) {
	if units <= 0 {
		return nil, ErrInvalidUnits
	}
	unlock := p.LockResource(resourceID)
	defer unlock()

	var out *Resource
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = p.ReserveTx(tx, resourceID, units)
		return err
	})
	return out, err
}

// ReserveTx is Reserve inside the caller's transaction. The caller must hold
// LockResource(resourceID).
func (p *Pool) ReserveTx(tx *gorm.DB, resourceID string, units int) (*Resource, error) {
	if units <= 0 {
		return nil, ErrInvalidUnits
	}

	res, err := lockResource(tx, resourceID)
	if err != nil {
		return nil, err
	}
	if res.ReservedCount+units > res.TotalCapacity {
		metrics.CapacityRejections.WithLabelValues(resourceID).Inc()
		return nil, ErrCapacityExceeded
	}

	res.ReservedCount += units
	if err := tx.Model(&Resource{}).Where("id = ?", resourceID).Update("reserved_count", res.ReservedCount).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// Release gives units back. Releasing more than is reserved clamps at zero.
func (p *Pool) Release(ctx context.Context, resourceID string, units int) (*Resource, error) {
	if units <= 0 {
		return nil, ErrInvalidUnits
	}
	unlock := p.LockResource(resourceID)
	defer unlock()

	var out *Resource
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = p.ReleaseTx(tx, resourceID, units)
		return err
	})
	return out, err
}

// ReleaseTx is Release inside the caller's transaction. The caller must hold
// LockResource(resourceID).
func (p *Pool) ReleaseTx(tx *gorm.DB, resourceID string, units int) (*Resource, error) {
	if units <= 0 {
		return nil, ErrInvalidUnits
	}

	res, err := lockResource(tx, resourceID)
	if err != nil {
		return nil, err
	}

	next := res.ReservedCount - units
	if next < 0 {
		p.log.Warn("release exceeds reserved units, clamping",
			zap.String("resource_id", resourceID),
			zap.Int("reserved", res.ReservedCount),
			zap.Int("units", units),
		)
		next = 0
	}
	res.ReservedCount = next
	if err := tx.Model(&Resource{}).Where("id = ?", resourceID).Update("reserved_count", next).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// RestoreTx overwrites the reserved count, clamped to [0, total]. Used when
// reconciling against the bookings that actually hold units.
func (p *Pool) RestoreTx(tx *gorm.DB, resourceID string, reserved int) (*Resource, error) {
	res, err := lockResource(tx, resourceID)
	if err != nil {
		return nil, err
	}

	if reserved < 0 {
		reserved = 0
	}
	if reserved > res.TotalCapacity {
		p.log.Warn("reserved units exceed capacity, clamping",
			zap.String("resource_id", resourceID),
			zap.Int("reserved", reserved),
			zap.Int("total", res.TotalCapacity),
		)
		reserved = res.TotalCapacity
	}
	res.ReservedCount = reserved
	if err := tx.Model(&Resource{}).Where("id = ?", resourceID).Update("reserved_count", reserved).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// Available is total minus reserved, never negative.
func (p *Pool) Available(ctx context.Context, resourceID string) (int, error) {
	res, err := p.Get(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	return res.Available(), nil
}

func (p *Pool) Get(ctx context.Context, resourceID string) (*Resource, error) {
	return p.GetTx(p.db.WithContext(ctx), resourceID)
}

func (p *Pool) GetTx(tx *gorm.DB, resourceID string) (*Resource, error) {
	var res Resource
	if err := tx.Where("id = ?", resourceID).First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (p *Pool) List(ctx context.Context) ([]Resource, error) {
	var out []Resource
	if err := p.db.WithContext(ctx).Order("kind, id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Sync upserts the configured resources. Reserved counts survive; a capacity
// below the units bookings still hold is refused with ErrCapacityBelowReserved
// and leaves that resource untouched.
func (p *Pool) Sync(ctx context.Context, resources []config.ResourceConfig) error {
	for _, rc := range resources {
		if rc.ID == "" || rc.Capacity <= 0 {
			return ErrInvalidResource
		}
		if err := p.syncOne(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) syncOne(ctx context.Context, rc config.ResourceConfig) error {
	unlock := p.LockResource(rc.ID)
	defer unlock()

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := lockResource(tx, rc.ID)
		if errors.Is(err, ErrResourceNotFound) {
			p.log.Info("registering resource", zap.String("resource_id", rc.ID), zap.Int("capacity", rc.Capacity))
			return tx.Create(&Resource{
				ID:            rc.ID,
				Name:          rc.Name,
				Kind:          rc.Kind,
				TotalCapacity: rc.Capacity,
			}).Error
		}
		if err != nil {
			return err
		}

		if res.ReservedCount > rc.Capacity {
			p.log.Warn("refusing capacity below reserved units",
				zap.String("resource_id", rc.ID),
				zap.Int("reserved", res.ReservedCount),
				zap.Int("capacity", rc.Capacity),
			)
			return fmt.Errorf("%w: %s holds %d, configured %d", ErrCapacityBelowReserved, rc.ID, res.ReservedCount, rc.Capacity)
		}
		return tx.Model(&Resource{}).Where("id = ?", rc.ID).Updates(map[string]any{
			"name":           rc.Name,
			"kind":           rc.Kind,
			"total_capacity": rc.Capacity,
		}).Error
	})
}

func lockResource(tx *gorm.DB, resourceID string) (*Resource, error) {
	var res Resource
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", resourceID).First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return &res, nil
}
