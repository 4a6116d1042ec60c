// Package main is the entry point for the taasclub back-office admin server.
// It runs on its own port and exposes admin-only endpoints protected by RBAC
// and an optional IP allowlist.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/taasclub/cardbet/internal/backoffice"
	"github.com/taasclub/cardbet/internal/config"
	"github.com/taasclub/cardbet/internal/repository"
	"github.com/taasclub/cardbet/internal/service"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting cardbet backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── Repositories ──────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	roundRepo := repository.NewRoundRepository(db)
	slipRepo := repository.NewSlipRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// ── Services ──────────────────────────────────────────────────────────────
	settingsSvc := service.NewSettingsService(settingRepo, cfg.Settings.CacheTTL, logger)
	gameSvc := service.NewGameService(roundRepo, slipRepo, settingsSvc, logger)
	betSvc := service.NewBetService(db, roundRepo, slipRepo, walletRepo, auditRepo, settingsSvc, logger)
	walletSvc := service.NewWalletService(db, walletRepo, auditRepo, logger)
	authSvc := service.NewAuthService(db, userRepo, walletRepo, cfg)

	// Manual settlement from the admin console; the game server's scheduler
	// gate makes concurrent settles safe across both processes.
	settlementSvc := service.NewSettlementService(db, roundRepo, slipRepo, walletRepo, auditRepo, settingsSvc, logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:       authSvc,
		GameSvc:       gameSvc,
		SettlementSvc: settlementSvc,
		BetSvc:        betSvc,
		WalletSvc:     walletSvc,
		SettingsSvc:   settingsSvc,
		UserRepo:      userRepo,
		Cfg:           cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	db.Close()
	logger.Info("backoffice server stopped cleanly")
}
