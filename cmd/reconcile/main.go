package main

import (
	"context"
	"log"
	"sort"

	"communityhub/internal/app"
	"communityhub/internal/config"
	"communityhub/internal/database"
	"communityhub/internal/pkg/logger"

	"go.uber.org/zap"
)

// reconcile recomputes every resource's reserved count from the bookings
// that still hold units. Run it after editing bookings by hand.
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
	svc, err := app.Bootstrap(ctx, db, catalog, nil, zl)
	if err != nil {
		zl.Fatal("bootstrap", zap.Error(err))
	}

	counts, err := svc.Bookings.ReconcileCapacity(ctx)
	if err != nil {
		zl.Fatal("reconcile capacity", zap.Error(err))
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		zl.Info("resource reconciled", zap.String("resource_id", id), zap.Int("reserved", counts[id]))
	}
	zl.Info("reconcile completed", zap.Int("resources", len(counts)))
}
