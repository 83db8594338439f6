package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/copilot/internal/config"
	"github.com/ehr/copilot/internal/domain/account"
	"github.com/ehr/copilot/internal/domain/patient"
	"github.com/ehr/copilot/internal/functions"
	"github.com/ehr/copilot/internal/platform/auth"
	"github.com/ehr/copilot/internal/platform/db"
)

const shutdownTimeout = 10 * time.Second

func loadConfig(mode string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(mode); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

func runServer() error {
	cfg, logger, err := loadConfig(config.ModeAPI)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, probe, closeStore, err := openStore(ctx, cfg, pool)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open patient store")
	}
	defer closeStore()

	authenticator, err := buildAuthenticator(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure authentication")
	}
	logger.Info().Str("mode", cfg.ResolvedAuthMode()).Msg("bearer authentication configured")

	recorder, closeRecorder, err := buildAuditRecorder(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("sink", cfg.AuditSink).Msg("failed to configure audit sink")
	}
	defer closeRecorder()

	gdb, err := db.OpenGorm(pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open account store")
	}
	revoked := auth.NewTokenRevocationStore()
	defer revoked.Close()
	sessions := account.NewSessions(cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction(), revoked)
	accounts := account.NewHandler(account.NewService(account.NewUserStore(gdb)), sessions, logger)

	e := newAPIServer(cfg, apiDeps{
		Patients:      patient.NewService(store, logger),
		Accounts:      accounts,
		Copilot:       newCopilotService(cfg, logger),
		Authenticator: authenticator,
		Audit:         recorder,
		Probe:         probe,
		Logger:        logger,
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", store.Backend()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	waitForSignal()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runFunctions() error {
	cfg, logger, err := loadConfig(config.ModeFunctions)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	var pool *pgxpool.Pool
	if cfg.StoreBackend == config.BackendPostgres {
		pool, err = db.NewPool(ctx, poolConfig(cfg))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
	}

	store, probe, closeStore, err := openStore(ctx, cfg, pool)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open patient store")
	}
	defer closeStore()

	authenticator, err := buildAuthenticator(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure authentication")
	}

	recorder, closeRecorder, err := buildAuditRecorder(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("sink", cfg.AuditSink).Msg("failed to configure audit sink")
	}
	defer closeRecorder()

	srv := &http.Server{
		Addr: ":" + cfg.FunctionsPort,
		Handler: functions.NewRouter(functions.Deps{
			Patients:      patient.NewService(store, logger),
			Copilot:       newCopilotService(cfg, logger),
			Authenticator: authenticator,
			Audit:         recorder,
			Probe:         &probe,
			Logger:        logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("backend", store.Backend()).Msg("starting function endpoints")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	waitForSignal()

	logger.Info().Msg("shutting down function endpoints")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("function endpoints stopped")
	return nil
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
