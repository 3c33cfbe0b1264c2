package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/credits-backend/internal/api"
	"github.com/baharkarakas/credits-backend/internal/auth"
	"github.com/baharkarakas/credits-backend/internal/config"
	"github.com/baharkarakas/credits-backend/internal/db"
	"github.com/baharkarakas/credits-backend/internal/logger"
	"github.com/baharkarakas/credits-backend/internal/metrics"
	"github.com/baharkarakas/credits-backend/internal/repository/postgres"
	"github.com/baharkarakas/credits-backend/internal/services"
	"github.com/baharkarakas/credits-backend/internal/verifier"
	"github.com/baharkarakas/credits-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if cfg.Migrate {
		if err := db.RunMigrations(ctx, dbPool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	// trust roots load once; missing or empty cert dir is fatal
	apple, err := verifier.NewApple(cfg.Apple, log)
	if err != nil {
		log.Error("apple verifier", "err", err)
		os.Exit(1)
	}
	google, err := verifier.NewGooglePlay(cfg.Google, log)
	if err != nil {
		log.Error("google verifier", "err", err)
		os.Exit(1)
	}

	repos := postgres.NewRepositories(dbPool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	userSvc := services.NewUserService(repos.Users)
	creditsSvc := services.NewCreditsService(repos.Users, repos.Purchases, repos.AuditLogs, apple, google, wp, log)

	metrics.Init()
	r := api.NewRouter(cfg, tm, userSvc, creditsSvc)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
