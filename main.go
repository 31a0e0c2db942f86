package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "net/http/pprof"

	"github.com/haniwon/clinic-server/auth"
	"github.com/haniwon/clinic-server/config"
	"github.com/haniwon/clinic-server/data"
	"github.com/haniwon/clinic-server/handlers"
	"github.com/haniwon/clinic-server/health"
	"github.com/haniwon/clinic-server/logging"
	"github.com/haniwon/clinic-server/scheduler"
	"github.com/haniwon/clinic-server/server"
	"github.com/haniwon/clinic-server/store"
	"github.com/haniwon/clinic-server/validation"
)

func main() {
	// .env is optional; the environment itself always wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogDir, cfg.LogLevel)
	defer logging.Shutdown()

	secret := cfg.SessionSecret
	if secret == "" {
		// Dev convenience only; every restart invalidates all sessions.
		secret = randomSecret()
		logging.Warn("SESSION_SECRET not set, generated a throwaway secret")
	}

	sessions, err := auth.NewService(secret)
	if err != nil {
		logging.Error("Failed to create session service", "error", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logging.Error("Failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error("Failed to close database", "error", err)
		}
	}()

	if err := seedAdminAccount(context.Background(), db, cfg); err != nil {
		logging.Error("Failed to seed admin account", "error", err)
		os.Exit(1)
	}

	catalog := data.NewCatalogContainer()
	catalog.SetServerStartTime(time.Now())
	validator := validation.NewValidator()

	sched := scheduler.NewScheduler(catalog, db, validator)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	handler := handlers.NewHandler(catalog, db, validator, sessions,
		health.NewHealthChecker(catalog, db), sched)

	srv := server.NewServer(cfg, handler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
	}
}

// seedAdminAccount creates the initial admin login on an empty database so
// the very first start is usable. Existing installs are left alone.
func seedAdminAccount(ctx context.Context, db *store.Store, cfg *config.Config) error {
	count, err := db.CountStaffAccounts(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := cfg.AdminPassword
	if password == "" {
		password = randomSecret()
		logging.Warn("ADMIN_PASSWORD not set, generated one for the seed account",
			"username", cfg.AdminUsername, "password", password)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	account := &store.StaffAccount{
		Username:     cfg.AdminUsername,
		DisplayName:  cfg.AdminUsername,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	}
	if err := db.CreateStaffAccount(ctx, account); err != nil {
		return err
	}

	logging.Info("Seeded initial admin account", "username", cfg.AdminUsername)
	return nil
}

func randomSecret() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		logging.Error("Failed to generate random secret", "error", err)
		os.Exit(1)
	}
	return hex.EncodeToString(buf)
}
