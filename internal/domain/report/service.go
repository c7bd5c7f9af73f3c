package report

import (
	"context"
	"time"

	"communityhub/internal/domain/booking"
	"communityhub/internal/pkg/apperr"

	"gorm.io/gorm"
)

var ErrInvalidWindow = apperr.New(apperr.ErrInvalidInput, "report window must end after it starts")

// completedStatuses are the statuses that count as revenue.
var completedStatuses = []booking.Status{booking.StatusCompleted, booking.StatusDelivered}

// Window bounds a report by booking updated_at, [From, To). A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) validate() error {
	if !w.From.IsZero() && !w.To.IsZero() && !w.To.After(w.From) {
		return ErrInvalidWindow
	}
	return nil
}

func (w Window) apply(q *gorm.DB) *gorm.DB {
	if !w.From.IsZero() {
		q = q.Where("updated_at >= ?", w.From)
	}
	if !w.To.IsZero() {
		q = q.Where("updated_at < ?", w.To)
	}
	return q
}

type ServiceRevenue struct {
	Service  string `json:"service"`
	Bookings int64  `json:"bookings"`
	Revenue  int64  `json:"revenue"`
	Discount int64  `json:"discount"`
}

type Revenue struct {
	Services []ServiceRevenue `json:"services"`
	Bookings int64            `json:"bookings"`
	Revenue  int64            `json:"revenue"`
}

// Service is read-only; it never touches bookings through the engine.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// RevenueByService sums amount minus discount of completed and delivered
// bookings per service.
func (s *Service) RevenueByService(ctx context.Context, w Window) (*Revenue, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}

	var rows []ServiceRevenue
	q := s.db.WithContext(ctx).Model(&booking.Booking{}).
		Select("service, COUNT(*) AS bookings, COALESCE(SUM(amount - discount), 0) AS revenue, COALESCE(SUM(discount), 0) AS discount").
		Where("status IN ?", completedStatuses)
	if err := w.apply(q).Group("service").Order("service").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := &Revenue{Services: rows}
	if out.Services == nil {
		out.Services = []ServiceRevenue{}
	}
	for _, r := range rows {
		out.Bookings += r.Bookings
		out.Revenue += r.Revenue
	}
	return out, nil
}

// Transactions lists the completed bookings in the window, newest first.
func (s *Service) Transactions(ctx context.Context, w Window, limit, offset int) ([]booking.Booking, int64, error) {
	if err := w.validate(); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := w.apply(s.db.WithContext(ctx).Model(&booking.Booking{}).Where("status IN ?", completedStatuses))

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []booking.Booking
	if err := q.Order("updated_at DESC, id").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// StatusCounts returns the number of bookings in every status, zeros included.
func (s *Service) StatusCounts(ctx context.Context) (map[booking.Status]int64, error) {
	var rows []struct {
		Status booking.Status
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&booking.Booking{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := map[booking.Status]int64{
		booking.StatusPending:   0,
		booking.StatusApproved:  0,
		booking.StatusPreparing: 0,
		booking.StatusReady:     0,
		booking.StatusCompleted: 0,
		booking.StatusDelivered: 0,
		booking.StatusCancelled: 0,
		booking.StatusRejected:  0,
	}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
