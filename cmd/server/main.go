package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storeledger/backend/internal/config"
	"storeledger/backend/internal/httpapi"
	"storeledger/backend/internal/photos"
	"storeledger/backend/internal/service"
	"storeledger/backend/internal/session"
	"storeledger/backend/internal/store"
	"storeledger/backend/internal/store/memory"
	"storeledger/backend/internal/store/sqlstore"
)

var (
	rootCmd = &cobra.Command{
		Use:          "storeledger",
		Short:        "Inventory and point-of-sale backend for a single store",
		SilenceUsage: true,
		RunE:         runServe,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and seed an empty database",
		RunE:  runMigrate,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("storeledger: %v", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}
	if cfg.UsingDefaultSeedPasswords() {
		log.Printf("WARN: seed accounts use the default password; set SEED_ADMIN_PASSWORD and SEED_USER_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, repo.Close)

	var sessions session.Registry = session.NewMemoryRegistry()
	if cfg.RedisAddr != "" {
		redisSessions := session.NewRedisRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisSessions.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), keeping sessions in memory", err)
			_ = redisSessions.Close()
		} else {
			sessions = redisSessions
			closers = append(closers, redisSessions.Close)
			log.Println("sessions: redis")
		}
	} else {
		log.Println("sessions: in-memory")
	}

	photoStore, err := photos.New(cfg.PhotoDir)
	if err != nil {
		closeAll(closers)
		return err
	}

	svc := service.New(repo)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, svc.Users, sessions)
	api := httpapi.New(svc, auth, photoStore, httpapi.Options{
		AllowedOrigin:     cfg.AllowedOrigin,
		LowStockThreshold: cfg.LowStockThreshold,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("storeledger listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var runErr error
	select {
	case <-sig:
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	closeAll(closers)

	log.Println("server stopped")
	return runErr
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.StoreDriver == config.DriverMemory {
		return errors.New("nothing to migrate for STORE_DRIVER=memory")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	log.Printf("migrate: %s schema is up to date", cfg.StoreDriver)
	return repo.Close()
}

// openRepository opens the configured store. SQL stores are migrated and, when
// empty, seeded before they are returned.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, error) {
	seed := sqlstore.Seed{AdminPassword: cfg.SeedAdminPassword, UserPassword: cfg.SeedUserPassword}

	var (
		db  *sqlstore.Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		repo, err := memory.NewSeeded(cfg.SeedAdminPassword, cfg.SeedUserPassword)
		if err != nil {
			return nil, err
		}
		log.Println("repository: in-memory")
		return repo, nil
	case config.DriverPostgres:
		db, err = sqlstore.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
	default:
		db, err = sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
	}

	if err := db.Init(ctx, seed); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialise %s store: %w", db.Driver(), err)
	}
	log.Printf("repository: %s", db.Driver())
	return db, nil
}

func closeAll(closers []func() error) {
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all one digit, run in sequence, or
// appear on a list of common choices.
func validatePINStrength(pin string) error {
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("PIN must contain digits only")
		}
	}

	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "121212": true,
		"112233": true, "123123": true, "159753": true, "147258": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
