package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/copilot/internal/config"
	"github.com/ehr/copilot/internal/domain/account"
	"github.com/ehr/copilot/internal/domain/copilot"
	"github.com/ehr/copilot/internal/domain/patient"
	"github.com/ehr/copilot/internal/platform/auth"
	"github.com/ehr/copilot/internal/platform/db"
	"github.com/ehr/copilot/internal/platform/docstore"
	"github.com/ehr/copilot/internal/platform/events"
	"github.com/ehr/copilot/internal/platform/metrics"
	"github.com/ehr/copilot/internal/platform/middleware"
)

const appName = "ehr-copilot"

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: appName,
	}
}

// buildAuthenticator selects the bearer verifier for the configured mode.
func buildAuthenticator(ctx context.Context, cfg *config.Config) (auth.Authenticator, error) {
	client := &http.Client{Timeout: 10 * time.Second}

	switch mode := cfg.ResolvedAuthMode(); mode {
	case config.AuthModeFirebase:
		return auth.NewJWTVerifier(ctx, auth.VerifierConfig{
			Issuer:     cfg.FirebaseIssuer(),
			Audience:   cfg.FirebaseProject,
			JWKSURL:    auth.FirebaseJWKSURL,
			HTTPClient: client,
		})
	case config.AuthModeJWKS:
		return auth.NewJWTVerifier(ctx, auth.VerifierConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			HTTPClient: client,
		})
	case config.AuthModeHMAC:
		return auth.NewJWTVerifier(ctx, auth.VerifierConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	case config.AuthModeAPIKey:
		return auth.NewAPIKeyVerifier(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", mode)
	}
}

// openStore connects the configured patient backend. The returned cleanup
// releases the backend's own resources; the warehouse pool is owned by the
// caller.
func openStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (patient.Store, db.Probe, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, database, err := docstore.Connect(ctx, docstore.Config{
			URI:         cfg.MongoURI,
			Database:    cfg.MongoDatabase,
			MaxPoolSize: uint64(max(cfg.DBMaxConns, 1)),
			AppName:     appName,
		})
		if err != nil {
			return nil, db.Probe{}, nil, err
		}
		cleanup := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}
		return patient.NewDocStore(database), docstore.Probe(client), cleanup, nil
	default:
		return patient.NewWarehouseStore(pool), db.PostgresProbe(pool), func() {}, nil
	}
}

// buildAuditRecorder returns the configured audit sink. A nil recorder means
// entries are only logged.
func buildAuditRecorder(ctx context.Context, cfg *config.Config) (middleware.AuditRecorder, func() error, error) {
	noop := func() error { return nil }

	switch cfg.AuditSink {
	case config.AuditSinkKafka:
		publisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaAuditTopic), cfg.KafkaAuditTopic)
		return publisher, publisher.Close, nil
	case config.AuditSinkSQS:
		client, err := events.NewSQSClient(ctx)
		if err != nil {
			return nil, noop, err
		}
		publisher, err := events.NewSQSPublisher(ctx, client, cfg.SQSAuditQueue)
		if err != nil {
			return nil, noop, err
		}
		return publisher, noop, nil
	default:
		return nil, noop, nil
	}
}

func newCopilotService(cfg *config.Config, logger zerolog.Logger) *copilot.Service {
	if cfg.CopilotURL == "" {
		logger.Warn().Msg("COPILOT_URL not set, copilot chat will answer 503")
		return copilot.NewService(nil, logger)
	}
	return copilot.NewService(copilot.NewClient(copilot.ClientConfig{
		BaseURL: cfg.CopilotURL,
		APIKey:  cfg.CopilotAPIKey,
		Model:   cfg.CopilotModel,
		Timeout: cfg.CopilotTimeout,
	}), logger)
}

// httpErrorHandler renders every error as {"error": message}.
func httpErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}
		if code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

type apiDeps struct {
	Patients      *patient.Service
	Accounts      *account.Handler
	Copilot       *copilot.Service
	Authenticator auth.Authenticator
	Audit         middleware.AuditRecorder
	Probe         db.Probe
	Logger        zerolog.Logger
}

// newAPIServer assembles the framework-hosted API.
func newAPIServer(cfg *config.Config, d apiDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler(d.Logger)

	e.Use(middleware.Recovery(d.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.Logger))
	e.Use(metrics.EchoMiddleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		AllowCredentials: true,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.Probe))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	limits := middleware.DefaultRateLimitConfig()
	limits.RequestsPerSecond = cfg.RateLimitRPS
	limits.BurstSize = cfg.RateLimitBurst

	api := e.Group("/api",
		middleware.Audit(d.Logger, d.Audit),
		middleware.RateLimit(limits),
		auth.Middleware(d.Authenticator, auth.AuthSkipper),
	)

	patient.NewHandler(d.Patients).RegisterRoutes(api)
	copilot.NewHandler(d.Copilot).RegisterRoutes(api)
	if d.Accounts != nil {
		d.Accounts.RegisterRoutes(api.Group("/auth"))
	}

	return e
}
