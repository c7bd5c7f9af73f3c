package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"communityhub/internal/app"
	"communityhub/internal/config"
	"communityhub/internal/database"
	"communityhub/internal/events"
	"communityhub/internal/middleware"
	jwtsvc "communityhub/internal/pkg/jwt"
	"communityhub/internal/pkg/logger"
	"communityhub/internal/realtime"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		zl.Fatal("load catalog", zap.Error(err))
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("database connect", zap.Error(err))
	}

	hub := realtime.NewHub(middleware.AllowedOrigins(cfg.CORSAllowedOrigins), zl.Named("realtime"))
	defer hub.Close()

	host, _ := os.Hostname()
	ps, err := events.NewPubSub(cfg.RedisAddr, "console-"+host, events.NewLogger(zl.Named("events")))
	if err != nil {
		zl.Fatal("event bus", zap.Error(err))
	}
	defer func() { _ = ps.Close() }()

	if _, err := events.NewForwarder(ps.Subscriber, hub, zl.Named("events")).Start(ctx); err != nil {
		zl.Fatal("event forwarder", zap.Error(err))
	}

	svc, err := app.Bootstrap(ctx, db, catalog, events.NewBus(ps.Publisher, zl.Named("events")), zl)
	if err != nil {
		zl.Fatal("bootstrap", zap.Error(err))
	}

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := app.NewRouter(app.RouterDeps{
		DB:          db,
		Services:    svc,
		Hub:         hub,
		Tokens:      jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL),
		Log:         zl,
		CORSOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http server shutdown", zap.Error(err))
	}
}
