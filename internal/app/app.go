package app

import (
	"context"
	"fmt"

	"communityhub/internal/config"
	"communityhub/internal/domain/booking"
	"communityhub/internal/domain/capacity"
	"communityhub/internal/domain/loyalty"
	"communityhub/internal/domain/report"
	"communityhub/internal/pkg/keylock"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services are the wired domain services shared by the binaries.
type Services struct {
	Pool     *capacity.Pool
	Ledger   *loyalty.Ledger
	Bookings *booking.Service
	Reports  *report.Service
}

// Models lists every table the service owns.
func Models() []any {
	return []any{
		&capacity.Resource{},
		&loyalty.Account{},
		&loyalty.Accrual{},
		&booking.Booking{},
		&booking.StatusChange{},
	}
}

// Bootstrap migrates the schema, syncs the resource catalog and wires the
// services. pub may be nil.
func Bootstrap(ctx context.Context, db *gorm.DB, catalog config.Catalog, pub booking.Publisher, log *zap.Logger) (*Services, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	table, err := loyalty.TableFromConfig(catalog.Loyalty.Tiers)
	if err != nil {
		return nil, fmt.Errorf("tier table: %w", err)
	}

	// one lock map so the engine, pool and ledger agree on key ownership
	locks := keylock.New()

	pool := capacity.NewPool(db, locks, log.Named("capacity"))
	if err := pool.Sync(ctx, catalog.Resources); err != nil {
		return nil, fmt.Errorf("sync resources: %w", err)
	}

	ledger := loyalty.NewLedger(db, table, catalog.Loyalty.SpendPerPoint, locks, log.Named("loyalty"))
	bookings := booking.NewService(db, booking.NewRepository(db), pool, ledger, pub, locks, log.Named("booking"))

	log.Info("services ready",
		zap.Int("resources", len(catalog.Resources)),
		zap.Int("tiers", len(table.Tiers())),
		zap.Int64("spend_per_point", catalog.Loyalty.SpendPerPoint),
	)

	return &Services{
		Pool:     pool,
		Ledger:   ledger,
		Bookings: bookings,
		Reports:  report.NewService(db),
	}, nil
}
