package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	FunctionsPort   string        `mapstructure:"FUNCTIONS_PORT"`
	Env             string        `mapstructure:"ENV"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	StoreBackend    string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	MongoURI        string        `mapstructure:"MONGO_URI"`
	MongoDatabase   string        `mapstructure:"MONGO_DATABASE"`
	AuthMode        string        `mapstructure:"AUTH_MODE"`
	FirebaseProject string        `mapstructure:"FIREBASE_PROJECT_ID"`
	AuthIssuer      string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey  string        `mapstructure:"AUTH_SIGNING_KEY"`
	APIKey          string        `mapstructure:"API_KEY"`
	SessionSecret   string        `mapstructure:"SESSION_SECRET"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	CopilotURL      string        `mapstructure:"COPILOT_URL"`
	CopilotAPIKey   string        `mapstructure:"COPILOT_API_KEY"`
	CopilotModel    string        `mapstructure:"COPILOT_MODEL"`
	CopilotTimeout  time.Duration `mapstructure:"COPILOT_TIMEOUT"`
	AuditSink       string        `mapstructure:"AUDIT_SINK"`
	KafkaBrokers    []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaAuditTopic string        `mapstructure:"KAFKA_AUDIT_TOPIC"`
	SQSAuditQueue   string        `mapstructure:"SQS_AUDIT_QUEUE"`
}

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Auth modes.
const (
	AuthModeFirebase = "firebase"
	AuthModeJWKS     = "jwks"
	AuthModeHMAC     = "hmac"
	AuthModeAPIKey   = "apikey"
)

// Process modes passed to Validate.
const (
	ModeAPI       = "api"       // serve
	ModeFunctions = "functions" // serve-functions
	ModeDatabase  = "database"  // migrate, user
)

// Audit sinks.
const (
	AuditSinkLog   = "log"
	AuditSinkKafka = "kafka"
	AuditSinkSQS   = "sqs"
)

var envKeys = []string{
	"PORT", "FUNCTIONS_PORT", "ENV", "LOG_LEVEL", "STORE_BACKEND",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MONGO_URI", "MONGO_DATABASE",
	"AUTH_MODE", "FIREBASE_PROJECT_ID", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"AUTH_SIGNING_KEY", "API_KEY", "SESSION_SECRET", "SESSION_TTL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"COPILOT_URL", "COPILOT_API_KEY", "COPILOT_MODEL", "COPILOT_TIMEOUT",
	"AUDIT_SINK", "KAFKA_BROKERS", "KAFKA_AUDIT_TOPIC", "SQS_AUDIT_QUEUE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("FUNCTIONS_PORT", "8081")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MONGO_DATABASE", "ehr")
	v.SetDefault("AUTH_MODE", "") // inferred, see ResolvedAuthMode
	v.SetDefault("SESSION_TTL", "8h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("COPILOT_MODEL", "gpt-4o-mini")
	v.SetDefault("COPILOT_TIMEOUT", "60s")
	v.SetDefault("AUDIT_SINK", AuditSinkLog)
	v.SetDefault("KAFKA_AUDIT_TOPIC", "phi-access")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.IsDev() && cfg.ResolvedAuthMode() == AuthModeHMAC {
		log.Println("WARNING: bearer tokens are verified with the shared AUTH_SIGNING_KEY (AUTH_MODE=hmac).")
		log.Println("WARNING: Set FIREBASE_PROJECT_ID or AUTH_ISSUER for production.")
	}

	return cfg, nil
}

// splitList normalises comma separated env values. viper leaves a single
// "a,b" element when the value came from the environment.
func splitList(parsed []string, raw string) []string {
	if len(parsed) == 1 && strings.Contains(parsed[0], ",") {
		raw = parsed[0]
		parsed = nil
	}
	if parsed == nil && raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				parsed = append(parsed, s)
			}
		}
	}
	return parsed
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective bearer auth mode. If AUTH_MODE is
// explicitly set, it is returned. Otherwise:
//   - FIREBASE_PROJECT_ID set → "firebase"
//   - AUTH_ISSUER set         → "jwks"
//   - otherwise               → "hmac" (shared AUTH_SIGNING_KEY)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.FirebaseProject != "" {
		return AuthModeFirebase
	}
	if c.AuthIssuer != "" {
		return AuthModeJWKS
	}
	return AuthModeHMAC
}

// Validate checks that the configuration is safe to run in mode. The
// database-only commands need nothing beyond DATABASE_URL.
func (c *Config) Validate(mode string) error {
	if c.needsDatabase(mode) && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if mode == ModeDatabase {
		return nil
	}

	switch c.StoreBackend {
	case BackendPostgres:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_BACKEND is %q", BackendMongo)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMongo, c.StoreBackend)
	}

	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeFirebase:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required when AUTH_MODE is %q", mode)
		}
	case AuthModeJWKS:
		if c.AuthIssuer == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_ISSUER or AUTH_JWKS_URL is required when AUTH_MODE is %q", mode)
		}
	case AuthModeHMAC:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE %q is not allowed in production", mode)
		}
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes when AUTH_MODE is %q", mode)
		}
	case AuthModeAPIKey:
		if c.APIKey == "" {
			return fmt.Errorf("API_KEY is required when AUTH_MODE is %q", mode)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of firebase, jwks, hmac, apikey, got %q", mode)
	}

	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	switch c.AuditSink {
	case AuditSinkLog, "":
	case AuditSinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when AUDIT_SINK is %q", AuditSinkKafka)
		}
	case AuditSinkSQS:
		if c.SQSAuditQueue == "" {
			return fmt.Errorf("SQS_AUDIT_QUEUE is required when AUDIT_SINK is %q", AuditSinkSQS)
		}
	default:
		return fmt.Errorf("AUDIT_SINK must be one of log, kafka, sqs, got %q", c.AuditSink)
	}

	return nil
}

// needsDatabase reports whether mode opens a Postgres pool. The functions
// server only does so for the warehouse backend; the API server always
// needs it for accounts.
func (c *Config) needsDatabase(mode string) bool {
	if mode == ModeFunctions {
		return c.StoreBackend == BackendPostgres
	}
	return true
}

// FirebaseIssuer is the token issuer Firebase Authentication stamps on ID tokens.
func (c *Config) FirebaseIssuer() string {
	return "https://securetoken.google.com/" + c.FirebaseProject
}
