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

	"go.uber.org/zap"

	"github.com/david/volunteermd/internal/api"
	"github.com/david/volunteermd/internal/auth"
	"github.com/david/volunteermd/internal/config"
	"github.com/david/volunteermd/internal/db"
	"github.com/david/volunteermd/internal/ingest"
	"github.com/david/volunteermd/internal/logger"
)

const (
	shutdownTimeout = 15 * time.Second
	warmupTimeout   = 2 * time.Minute
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	store, err := db.Open(ctx, cfg.DatabaseURL, zl)
	if err != nil {
		zl.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	jwtSecret, err := auth.ResolveSecret(cfg.JWTSecret, "JWT_SECRET", zl)
	if err != nil {
		zl.Fatal("JWT secret", zap.Error(err))
	}
	adminSecret, err := auth.ResolveSecret(cfg.AdminSecret, "ADMIN_SECRET", zl)
	if err != nil {
		zl.Fatal("Admin secret", zap.Error(err))
	}

	authService := auth.NewService(store, auth.NewTokens(jwtSecret, cfg.JWTExpiresIn))
	strategy := ingest.NewStrategy(cfg, zl)
	cache := ingest.NewCache(strategy, cfg.CacheTTL(), zl, ingest.WithRecorder(store))

	srv := api.NewServer(api.Options{
		Config:      cfg,
		Cache:       cache,
		Store:       store,
		AuthService: authService,
		Logger:      zl,
		AdminSecret: adminSecret,
	})

	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
		defer cancel()
		items, err := cache.Opportunities(warmCtx, false)
		if err != nil {
			zl.Warn("Initial opportunity load failed", zap.Error(err))
			return
		}
		zl.Info("Opportunity cache warmed", zap.String("strategy", strategy.Name()), zap.Int("items", len(items)))
	}()

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)

	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server error", zap.Error(err))
		}
	}()

	<-shutdownSignal
	zl.Info("Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Graceful shutdown failed", zap.Error(err))
	}
}
