package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"communityhub/internal/domain/loyalty"
	"communityhub/internal/metrics"
	"communityhub/internal/pkg/apperr"
	"communityhub/internal/pkg/keylock"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the booking engine. It drives every booking from creation to
// a terminal status and keeps capacity and loyalty in step with it.
type Service struct {
	db     *gorm.DB
	repo   Repository
	pool   CapacityPool
	ledger LoyaltyLedger
	pub    Publisher
	locks  *keylock.Map
	log    *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, repo Repository, pool CapacityPool, ledger LoyaltyLedger, pub Publisher, locks *keylock.Map, log *zap.Logger) *Service {
	if locks == nil {
		locks = keylock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:     db,
		repo:   repo,
		pool:   pool,
		ledger: ledger,
		pub:    pub,
		locks:  locks,
		log:    log,
		now:    time.Now,
	}
}

// StatusChangedEvent is the payload published after a transition commits.
type StatusChangedEvent struct {
	Booking Booking                `json:"booking"`
	From    Status                 `json:"from"`
	Loyalty *loyalty.AccrualResult `json:"loyalty,omitempty"`
}

// Create validates the request, reserves capacity and stores a pending
// booking. Nothing is written when the reservation fails.
func (s *Service) Create(ctx context.Context, req CreateBookingRequest) (*Booking, error) {
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	unlock := s.pool.LockResource(req.ResourceID)
	defer unlock()

	var created *Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.pool.GetTx(tx, req.ResourceID)
		if err != nil {
			return err
		}
		if _, err := s.pool.ReserveTx(tx, req.ResourceID, req.Units); err != nil {
			return err
		}

		now := s.now()
		b := &Booking{
			ID:         uuid.NewString(),
			UserID:     req.UserID,
			ResourceID: res.ID,
			Service:    res.Kind,
			Units:      req.Units,
			Status:     StatusPending,
			Amount:     req.Amount,
			Discount:   req.Discount,
			Note:       strings.TrimSpace(req.Note),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.Insert(tx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if err := s.repo.AppendHistory(tx, &StatusChange{BookingID: b.ID, To: StatusPending, CreatedAt: now}); err != nil {
			return fmt.Errorf("insert status change: %w", err)
		}
		created = b
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrCapacityExceeded) {
			s.log.Info("booking refused: capacity exceeded",
				zap.Int64("user_id", req.UserID),
				zap.String("resource_id", req.ResourceID),
				zap.Int("units", req.Units),
			)
		}
		return nil, err
	}

	metrics.BookingsCreated.WithLabelValues(created.Service).Inc()
	s.log.Info("booking created",
		zap.String("booking_id", created.ID),
		zap.Int64("user_id", created.UserID),
		zap.String("resource_id", created.ResourceID),
		zap.Int("units", created.Units),
	)
	s.publish(ctx, EventCreated, *created)
	return created, nil
}

// Transition moves a booking to status `to` along its flow's edge table.
// Entering cancelled/rejected releases the units; entering
// completed/delivered accrues amount minus discount. Both happen in the
// transaction that writes the status, so each happens at most once.
func (s *Service) Transition(ctx context.Context, id string, to Status) (*Booking, error) {
	to, err := ParseStatus(string(to))
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock("booking:" + id)
	defer unlock()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case to.ReleasesCapacity():
		defer s.pool.LockResource(current.ResourceID)()
	case to.Completes():
		defer s.ledger.LockUser(current.UserID)()
	}

	var (
		updated *Booking
		from    Status
		accrual *loyalty.AccrualResult
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.repo.GetForUpdate(tx, id)
		if err != nil {
			return err
		}
		from = b.Status
		if !b.Flow().CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}

		b.Status = to
		b.UpdatedAt = s.now()
		if err := s.repo.UpdateStatus(tx, b); err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
		if err := s.repo.AppendHistory(tx, &StatusChange{BookingID: b.ID, From: from, To: to, CreatedAt: b.UpdatedAt}); err != nil {
			return fmt.Errorf("insert status change: %w", err)
		}

		switch {
		case to.ReleasesCapacity():
			if _, err := s.pool.ReleaseTx(tx, b.ResourceID, b.Units); err != nil {
				return err
			}
		case to.Completes():
			res, err := s.ledger.AccrueTx(tx, b.UserID, b.NetAmount())
			if err != nil {
				return err
			}
			accrual = res
		}

		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Observe(accrual)
	metrics.BookingTransitions.WithLabelValues(updated.Service, string(to)).Inc()

	fields := []zap.Field{
		zap.String("booking_id", updated.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	}
	if accrual != nil {
		fields = append(fields, zap.Int64("points_earned", accrual.PointsEarned))
	}
	s.log.Info("booking status changed", fields...)

	s.publish(ctx, EventStatusChanged, StatusChangedEvent{Booking: *updated, From: from, Loyalty: accrual})
	return updated, nil
}

// Cancel is Transition(id, cancelled).
func (s *Service) Cancel(ctx context.Context, id string) (*Booking, error) {
	return s.Transition(ctx, id, StatusCancelled)
}

func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Booking, int64, error) {
	return s.repo.List(ctx, f)
}

// History returns the status trail of a booking, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]StatusChange, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// ReconcileCapacity recomputes each resource's reserved count from the
// bookings that still hold units and returns the corrected counts.
func (s *Service) ReconcileCapacity(ctx context.Context) (map[string]int, error) {
	resources, err := s.pool.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(resources))
	for _, r := range resources {
		reserved, err := s.reconcileOne(ctx, r.ID)
		if err != nil {
			return out, fmt.Errorf("reconcile %s: %w", r.ID, err)
		}
		if reserved != r.ReservedCount {
			s.log.Warn("resource reserved count corrected",
				zap.String("resource_id", r.ID),
				zap.Int("was", r.ReservedCount),
				zap.Int("now", reserved),
			)
		}
		out[r.ID] = reserved
	}
	return out, nil
}

func (s *Service) reconcileOne(ctx context.Context, resourceID string) (int, error) {
	unlock := s.pool.LockResource(resourceID)
	defer unlock()

	var reserved int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		held, err := s.repo.UnitsHeld(tx, resourceID)
		if err != nil {
			return err
		}
		res, err := s.pool.RestoreTx(tx, resourceID, held)
		if err != nil {
			return err
		}
		reserved = res.ReservedCount
		return nil
	})
	return reserved, err
}

func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(ctx, eventType, payload)
}

func validateCreate(req CreateBookingRequest) error {
	switch {
	case req.UserID <= 0:
		return ErrInvalidUser
	case req.ResourceID == "":
		return ErrInvalidResource
	case req.Units <= 0:
		return ErrInvalidUnits
	case req.Amount < 0:
		return ErrInvalidAmount
	case req.Discount < 0 || req.Discount > req.Amount:
		return ErrInvalidDiscount
	}
	return nil
}
