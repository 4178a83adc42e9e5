package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	plaidadapter "github.com/dkendall/ledgerlink/internal/adapter/driven/plaid"
	sqliteadapter "github.com/dkendall/ledgerlink/internal/adapter/driven/sqlite"
	httphandler "github.com/dkendall/ledgerlink/internal/adapter/driving/http"
	"github.com/dkendall/ledgerlink/internal/application"
	"github.com/dkendall/ledgerlink/internal/config"
	"github.com/dkendall/ledgerlink/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sync_interval", cfg.SyncInterval,
		"sync_months", cfg.SyncMonths,
		"plaid_env", cfg.PlaidEnvironment,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	userStore := sqliteadapter.NewUserRepo(db)
	entityStore := sqliteadapter.NewEntityRepo(db)

	// 6. Create the vault (the encryption key may be empty; credential
	// operations will report it until one is configured).
	vault := application.NewVault(credentialStore, userStore, cfg.EncryptionKey)
	if cfg.EncryptionKey == "" {
		slog.Warn("no encryption key configured, credential storage disabled until LEDGERLINK_ENCRYPTION_KEY is set")
	}

	// 7. Create provider client and sync service.
	provider := plaidadapter.NewClient(
		cfg.PlaidClientID,
		cfg.PlaidSecret,
		plaidadapter.Environment(cfg.PlaidEnvironment),
		cfg.CountryCodes,
	)
	syncSvc := application.NewSyncService(
		vault,
		provider,
		entityStore,
		model.InstitutionPlaid,
		cfg.UserID,
		cfg.SyncInterval,
		cfg.SyncMonths,
	)
	if cfg.HasProviderCredentials() {
		go syncSvc.Start(ctx)
	} else {
		slog.Info("no provider credentials configured, periodic sync disabled")
	}

	// 8. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(entityStore, vault, syncSvc, provider, cfg.UserID, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("ledgerlink started",
		"listen_addr", cfg.ListenAddr,
		"sync_interval", cfg.SyncInterval,
		"user_id", cfg.UserID,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
