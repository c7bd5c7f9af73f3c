package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"communityhub/internal/app"
	"communityhub/internal/config"
	"communityhub/internal/database"
	"communityhub/internal/domain/booking"
	"communityhub/internal/pkg/apperr"
	jwtsvc "communityhub/internal/pkg/jwt"
	"communityhub/internal/pkg/logger"

	"go.uber.org/zap"
)

const managerID int64 = 100

// residents are user ids 1..5; the identity provider owns everything else
// about them.
var residents = []int64{1, 2, 3, 4, 5}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		zl.Fatal("load catalog", zap.Error(err))
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("database connect", zap.Error(err))
	}

	ctx := context.Background()
	if err := db.AutoMigrate(app.Models()...); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}

	// Cleanup old data; resources go too so reserved counts restart at zero
	zl.Info("cleaning old data")
	for _, table := range []string{"booking_status_changes", "bookings", "loyalty_accruals", "loyalty_accounts", "resources"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			zl.Fatal("cleanup", zap.String("table", table), zap.Error(err))
		}
	}

	svc, err := app.Bootstrap(ctx, db, catalog, nil, zl)
	if err != nil {
		zl.Fatal("bootstrap", zap.Error(err))
	}

	// ================== BOOKINGS ==================
	zl.Info("creating bookings")
	created, refused := 0, 0
	for i := 0; i < 40; i++ {
		res := catalog.Resources[rand.Intn(len(catalog.Resources))]
		user := residents[rand.Intn(len(residents))]
		amount := int64(10_000 * (1 + rand.Intn(50)))
		discount := int64(0)
		if rand.Intn(4) == 0 {
			discount = amount / 10
		}

		b, err := svc.Bookings.Create(ctx, booking.CreateBookingRequest{
			UserID:     user,
			ResourceID: res.ID,
			Units:      1 + rand.Intn(2),
			Amount:     amount,
			Discount:   discount,
			Note:       fmt.Sprintf("Seed booking %d", i+1),
		})
		if errors.Is(err, apperr.ErrCapacityExceeded) {
			refused++
			continue
		}
		if err != nil {
			zl.Fatal("create booking", zap.Error(err))
		}
		created++

		for _, st := range pickPath(b.Flow()) {
			if _, err := svc.Bookings.Transition(ctx, b.ID, st); err != nil {
				zl.Fatal("transition booking", zap.String("booking_id", b.ID), zap.String("to", string(st)), zap.Error(err))
			}
		}
	}

	// ================== DEMO RESIDENT ==================
	// user 1 gets enough completed spend to land in silver
	demo, err := svc.Bookings.Create(ctx, booking.CreateBookingRequest{
		UserID:     1,
		ResourceID: catalog.Resources[0].ID,
		Units:      1,
		Amount:     2_500_000,
		Discount:   250_000,
		Note:       "Demo catering order",
	})
	if err != nil {
		zl.Warn("demo booking skipped", zap.Error(err))
	} else {
		for _, st := range completePath(demo.Flow()) {
			if _, err := svc.Bookings.Transition(ctx, demo.ID, st); err != nil {
				zl.Fatal("transition demo booking", zap.Error(err))
			}
		}
	}

	zl.Info("bookings seeded", zap.Int("created", created), zap.Int("refused", refused))

	// ================== DEV TOKENS ==================
	tokens := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)
	managerToken, err := tokens.GenerateToken(managerID, jwtsvc.RoleManager)
	if err != nil {
		zl.Fatal("manager token", zap.Error(err))
	}
	residentToken, err := tokens.GenerateToken(1, jwtsvc.RoleResident)
	if err != nil {
		zl.Fatal("resident token", zap.Error(err))
	}
	fmt.Printf("manager  (user %d): %s\n", managerID, managerToken)
	fmt.Printf("resident (user 1):   %s\n", residentToken)
}

// pickPath walks a booking a random distance along its flow: left pending,
// cancelled, part way, or finished.
func pickPath(flow booking.Flow) []booking.Status {
	switch rand.Intn(5) {
	case 0:
		return nil
	case 1:
		return []booking.Status{booking.StatusCancelled}
	case 2:
		full := completePath(flow)
		return full[:1]
	default:
		return completePath(flow)
	}
}

func completePath(flow booking.Flow) []booking.Status {
	if flow == booking.FlowOrder {
		return []booking.Status{booking.StatusPreparing, booking.StatusReady, booking.StatusDelivered}
	}
	return []booking.Status{booking.StatusApproved, booking.StatusReady, booking.StatusCompleted}
}
