package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"communityhub/internal/config"
	"communityhub/internal/database"
	"communityhub/internal/domain/capacity"
	"communityhub/internal/domain/loyalty"
	"communityhub/internal/pkg/apperr"
	"communityhub/internal/pkg/keylock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload any) {
	m.Called(ctx, eventType, payload)
}

type testEnv struct {
	db      *gorm.DB
	pool    *capacity.Pool
	ledger  *loyalty.Ledger
	service *Service
}

var testCatalog = []config.ResourceConfig{
	{ID: "canteen", Name: "Canteen lunch", Kind: config.KindFood, Capacity: 30},
	{ID: "room-a", Name: "Meeting room A", Kind: config.KindRoom, Capacity: 1},
	{ID: "bus-1", Name: "Shuttle 07:30", Kind: config.KindBus, Capacity: 10},
}

func setupTestEnv(t *testing.T, pub Publisher) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("file:booking_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&capacity.Resource{},
		&loyalty.Account{},
		&loyalty.Accrual{},
		&Booking{},
		&StatusChange{},
	))

	locks := keylock.New()
	pool := capacity.NewPool(db, locks, nil)
	require.NoError(t, pool.Sync(context.Background(), testCatalog))
	ledger := loyalty.NewLedger(db, loyalty.DefaultTable(), loyalty.DefaultSpendPerPoint, locks, nil)

	return &testEnv{
		db:      db,
		pool:    pool,
		ledger:  ledger,
		service: NewService(db, NewRepository(db), pool, ledger, pub, locks, nil),
	}
}

func (e *testEnv) create(t *testing.T, userID int64, resourceID string, units int, amount, discount int64) *Booking {
	t.Helper()
	b, err := e.service.Create(context.Background(), CreateBookingRequest{
		UserID:     userID,
		ResourceID: resourceID,
		Units:      units,
		Amount:     amount,
		Discount:   discount,
	})
	require.NoError(t, err)
	return b
}

func (e *testEnv) walk(t *testing.T, id string, statuses ...Status) *Booking {
	t.Helper()
	var b *Booking
	for _, st := range statuses {
		var err error
		b, err = e.service.Transition(context.Background(), id, st)
		require.NoError(t, err, "transition to %s", st)
	}
	return b
}

func TestCreateStoresPendingBooking(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	b := env.create(t, 5, "bus-1", 3, 90_000, 0)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, config.KindBus, b.Service)
	assert.NotEmpty(t, b.ID)

	avail, err := env.pool.Available(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, 7, avail)

	history, err := env.service.History(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, Status(""), history[0].From)
	assert.Equal(t, StatusPending, history[0].To)
}

func TestCreateValidation(t *testing.T) {
	env := setupTestEnv(t, nil)

	cases := []struct {
		name string
		req  CreateBookingRequest
		want error
	}{
		{"no user", CreateBookingRequest{ResourceID: "bus-1", Units: 1}, ErrInvalidUser},
		{"no resource", CreateBookingRequest{UserID: 1, ResourceID: "  ", Units: 1}, ErrInvalidResource},
		{"zero units", CreateBookingRequest{UserID: 1, ResourceID: "bus-1"}, ErrInvalidUnits},
		{"negative amount", CreateBookingRequest{UserID: 1, ResourceID: "bus-1", Units: 1, Amount: -1}, ErrInvalidAmount},
		{"discount above amount", CreateBookingRequest{UserID: 1, ResourceID: "bus-1", Units: 1, Amount: 10, Discount: 11}, ErrInvalidDiscount},
		{"negative discount", CreateBookingRequest{UserID: 1, ResourceID: "bus-1", Units: 1, Amount: 10, Discount: -1}, ErrInvalidDiscount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.service.Create(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}

	_, err := env.service.Create(context.Background(), CreateBookingRequest{UserID: 1, ResourceID: "nowhere", Units: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// Capacity 1: the second booking is refused and leaves nothing behind.
func TestCreateRefusedWhenFull(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	env.create(t, 1, "room-a", 1, 0, 0)

	_, err := env.service.Create(ctx, CreateBookingRequest{UserID: 2, ResourceID: "room-a", Units: 1})
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)

	_, total, err := env.service.List(ctx, Filter{ResourceID: "room-a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	var changes int64
	require.NoError(t, env.db.Model(&StatusChange{}).Count(&changes).Error)
	assert.Equal(t, int64(1), changes)

	res, err := env.pool.Get(ctx, "room-a")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReservedCount)
}

// A delivered order accrues amount minus discount once.
func TestDeliveredOrderAccruesOnce(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	b := env.create(t, 9, "canteen", 1, 500_000, 50_000)
	b = env.walk(t, b.ID, StatusPreparing, StatusReady, StatusDelivered)
	assert.Equal(t, StatusDelivered, b.Status)

	st, err := env.ledger.State(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(450_000), st.CumulativeSpend)
	assert.Equal(t, int64(22), st.Points)

	_, err = env.service.Transition(ctx, b.ID, StatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	st, err = env.ledger.State(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(450_000), st.CumulativeSpend)
	assert.Equal(t, int64(22), st.Points)

	history, err := env.service.History(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

// Cancelling from pending hands the units back.
func TestCancelRestoresAvailability(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	b := env.create(t, 3, "bus-1", 4, 0, 0)
	avail, _ := env.pool.Available(ctx, "bus-1")
	assert.Equal(t, 6, avail)

	b, err := env.service.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)

	avail, _ = env.pool.Available(ctx, "bus-1")
	assert.Equal(t, 10, avail)

	_, err = env.service.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	avail, _ = env.pool.Available(ctx, "bus-1")
	assert.Equal(t, 10, avail)
}

func TestRejectReleasesAndCompleteKeepsUnits(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	rejected := env.create(t, 1, "bus-1", 2, 0, 0)
	completed := env.create(t, 2, "bus-1", 3, 60_000, 0)

	env.walk(t, rejected.ID, StatusRejected)
	env.walk(t, completed.ID, StatusApproved, StatusReady, StatusCompleted)

	res, err := env.pool.Get(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ReservedCount)

	st, err := env.ledger.State(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Points)

	_, err = env.ledger.State(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTransitionFollowsFlow(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	order := env.create(t, 1, "canteen", 1, 0, 0)
	_, err := env.service.Transition(ctx, order.ID, StatusApproved)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	reservation := env.create(t, 1, "bus-1", 1, 0, 0)
	_, err = env.service.Transition(ctx, reservation.ID, StatusPreparing)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	env.walk(t, reservation.ID, StatusApproved)
	_, err = env.service.Cancel(ctx, reservation.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.service.Transition(ctx, reservation.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	b, err := env.service.Get(ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, b.Status)
}

func TestTransitionInputErrors(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	b := env.create(t, 1, "canteen", 1, 0, 0)

	_, err := env.service.Transition(ctx, b.ID, Status("shipped"))
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = env.service.Transition(ctx, "missing", StatusPreparing)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.service.History(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmedIsApproved(t *testing.T) {
	env := setupTestEnv(t, nil)
	b := env.create(t, 1, "room-a", 1, 0, 0)

	b, err := env.service.Transition(context.Background(), b.ID, Status("Confirmed"))
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, b.Status)
}

type failingLedger struct {
	*loyalty.Ledger
}

func (f failingLedger) AccrueTx(*gorm.DB, int64, int64) (*loyalty.AccrualResult, error) {
	return nil, errors.New("ledger unavailable")
}

// A failed accrual rolls the status change back with it.
func TestTransitionIsAtomic(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	b := env.create(t, 4, "canteen", 1, 100_000, 0)
	env.walk(t, b.ID, StatusPreparing, StatusReady)

	broken := NewService(env.db, NewRepository(env.db), env.pool, failingLedger{env.ledger}, nil, nil, nil)
	_, err := broken.Transition(ctx, b.ID, StatusDelivered)
	require.Error(t, err)

	got, err := env.service.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, got.Status)

	history, err := env.service.History(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	got, err = env.service.Transition(ctx, b.ID, StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)
}

func TestConcurrentCreatesNeverOverbook(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	var ok, refused int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, err := env.service.Create(ctx, CreateBookingRequest{UserID: user, ResourceID: "bus-1", Units: 1})
			if err == nil {
				atomic.AddInt32(&ok, 1)
				return
			}
			if errors.Is(err, apperr.ErrCapacityExceeded) {
				atomic.AddInt32(&refused, 1)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok)
	assert.Equal(t, int32(15), refused)

	res, err := env.pool.Get(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, 10, res.ReservedCount)
}

func TestConcurrentCompletionAccruesOnce(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	b := env.create(t, 8, "canteen", 1, 200_000, 0)
	env.walk(t, b.ID, StatusPreparing, StatusReady)

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.service.Transition(ctx, b.ID, StatusDelivered); err == nil {
				atomic.AddInt32(&ok, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	st, err := env.ledger.State(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(200_000), st.CumulativeSpend)
	assert.Equal(t, int64(10), st.Points)
}

func TestListFilters(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	env.create(t, 1, "canteen", 1, 0, 0)
	env.create(t, 1, "bus-1", 1, 0, 0)
	b := env.create(t, 2, "bus-1", 2, 0, 0)
	env.walk(t, b.ID, StatusApproved)

	items, total, err := env.service.List(ctx, Filter{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	items, total, err = env.service.List(ctx, Filter{Service: config.KindBus, Status: StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ID)

	items, total, err = env.service.List(ctx, Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 1)
}

func TestReconcileCapacity(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	env.create(t, 1, "bus-1", 2, 0, 0)
	cancelled := env.create(t, 2, "bus-1", 3, 0, 0)
	env.walk(t, cancelled.ID, StatusCancelled)
	done := env.create(t, 3, "bus-1", 1, 0, 0)
	env.walk(t, done.ID, StatusApproved, StatusReady, StatusCompleted)

	require.NoError(t, env.db.Model(&capacity.Resource{}).
		Where("id = ?", "bus-1").Update("reserved_count", 9).Error)
	require.NoError(t, env.db.Model(&capacity.Resource{}).
		Where("id = ?", "room-a").Update("reserved_count", 1).Error)

	got, err := env.service.ReconcileCapacity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got["bus-1"])
	assert.Equal(t, 0, got["room-a"])
	assert.Equal(t, 0, got["canteen"])

	res, err := env.pool.Get(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ReservedCount)
}

func TestCapacityShrinkNeverStrandsHeldUnits(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	shrunk := config.ResourceConfig{ID: "bus-1", Name: "Shuttle 07:30", Kind: config.KindBus, Capacity: 5}

	var held []*Booking
	for i := 0; i < 8; i++ {
		held = append(held, env.create(t, int64(i+1), "bus-1", 1, 0, 0))
	}

	err := env.pool.Sync(ctx, []config.ResourceConfig{shrunk})
	require.ErrorIs(t, err, capacity.ErrCapacityBelowReserved)

	for _, b := range held[:3] {
		_, err := env.service.Cancel(ctx, b.ID)
		require.NoError(t, err)
	}
	require.NoError(t, env.pool.Sync(ctx, []config.ResourceConfig{shrunk}))

	_, err = env.service.Create(ctx, CreateBookingRequest{UserID: 99, ResourceID: "bus-1", Units: 1})
	assert.ErrorIs(t, err, capacity.ErrCapacityExceeded)

	var live int64
	require.NoError(t, env.db.Model(&Booking{}).
		Where("resource_id = ? AND status NOT IN ?", "bus-1", []Status{StatusCancelled, StatusRejected}).
		Select("COALESCE(SUM(units), 0)").Scan(&live).Error)
	res, err := env.pool.Get(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), live)
	assert.Equal(t, 5, res.ReservedCount)
	assert.Equal(t, 5, res.TotalCapacity)
}

func TestPublishesCommittedEvents(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, EventCreated, mock.AnythingOfType("booking.Booking")).Once()
	pub.On("Publish", mock.Anything, EventStatusChanged, mock.MatchedBy(func(ev StatusChangedEvent) bool {
		return ev.From == StatusPending && ev.Booking.Status == StatusCancelled && ev.Loyalty == nil
	})).Once()

	env := setupTestEnv(t, pub)
	ctx := context.Background()

	b := env.create(t, 1, "room-a", 1, 0, 0)
	_, err := env.service.Cancel(ctx, b.ID)
	require.NoError(t, err)

	_, err = env.service.Cancel(ctx, b.ID)
	require.Error(t, err)
	_, err = env.service.Create(ctx, CreateBookingRequest{UserID: 1, ResourceID: "room-a", Units: 2})
	require.Error(t, err)

	pub.AssertExpectations(t)
	pub.AssertNumberOfCalls(t, "Publish", 2)
}
