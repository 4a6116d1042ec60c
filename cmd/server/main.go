// Package main is the entry point for the taasclub card-wagering API
// server.  It wires together all services and starts the HTTP server
// alongside the WebSocket hub and the background round scheduler.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/taasclub/cardbet/internal/api"
	"github.com/taasclub/cardbet/internal/config"
	"github.com/taasclub/cardbet/internal/repository"
	"github.com/taasclub/cardbet/internal/scheduler"
	"github.com/taasclub/cardbet/internal/service"
	"github.com/taasclub/cardbet/internal/ws"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting cardbet server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database ───────────────────────────────────────────────────────────
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

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Repositories ───────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	roundRepo := repository.NewRoundRepository(db)
	slipRepo := repository.NewSlipRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// ── 5. Services ───────────────────────────────────────────────────────────
	settingsSvc := service.NewSettingsService(settingRepo, cfg.Settings.CacheTTL, logger)

	gameSvc := service.NewGameService(roundRepo, slipRepo, settingsSvc, logger)
	betSvc := service.NewBetService(db, roundRepo, slipRepo, walletRepo, auditRepo, settingsSvc, logger)
	claimSvc := service.NewClaimService(db, roundRepo, slipRepo, walletRepo, auditRepo, settingsSvc, logger)
	walletSvc := service.NewWalletService(db, walletRepo, auditRepo, logger)
	authSvc := service.NewAuthService(db, userRepo, walletRepo, cfg)
	settlementSvc := service.NewSettlementService(db, roundRepo, slipRepo, walletRepo, auditRepo, settingsSvc, logger)

	// ── 6. WebSocket Hub ──────────────────────────────────────────────────────
	jwtSecret := []byte(cfg.JWT.AccessSecret)
	var allowedOrigins []string
	if ori := os.Getenv("WS_ALLOWED_ORIGINS"); ori != "" {
		for _, o := range strings.Split(ori, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(o))
		}
	}
	hub := ws.NewHub(jwtSecret, allowedOrigins)

	// Clients connecting mid-round get the active round immediately instead
	// of waiting for the next countdown tick.
	hub.SetSnapshot(func() ([]byte, bool) {
		snapCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		round, err := gameSvc.GetCurrentRound(snapCtx)
		if err != nil {
			return nil, false
		}
		data, err := json.Marshal(ws.NewRoundMessage{
			Type:       ws.MsgTypeNewRound,
			RoundID:    round.ID,
			StartTime:  round.StartTime,
			EndTime:    round.EndTime,
			Multiplier: round.Multiplier,
			CardCount:  settingsSvc.CardCount(snapCtx),
			Timestamp:  time.Now().UTC(),
		})
		return data, err == nil
	})

	// Wire the cycle via the notifier interface
	settlementSvc.SetNotifier(hub)

	// ── 7. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 8. Start WS Hub ───────────────────────────────────────────────────────
	go hub.Run()
	logger.Info("websocket hub started")

	// ── 9. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(gameSvc, settlementSvc, settingsSvc, hub, cfg, logger)
	sched.Start(ctx)

	// ── 10. HTTP Router ───────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:   authSvc,
		GameSvc:   gameSvc,
		BetSvc:    betSvc,
		ClaimSvc:  claimSvc,
		WalletSvc: walletSvc,
		UserRepo:  userRepo,
		Hub:       hub,
		Cfg:       cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 11. Start server ──────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 12. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	db.Close()
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
