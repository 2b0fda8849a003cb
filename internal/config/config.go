package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration derived from environment variables.
type Config struct {
	HTTPPort           string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	PolicyFile         string
	SweepInterval      time.Duration
	PublicRateLimitRPS int
	AuthRateLimitRPS   int
	LogLevel           string
	IdempotencyTTL     time.Duration
	OTLPEndpoint       string
	ServiceName        string
}

// Load reads environment variables using viper and returns a typed config.
// An empty DATABASE_URL selects the in-memory store; an empty REDIS_URL or NATS_URL
// disables the cache or the broker.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	bindEnv(v, "port", "PORT", "GOVERNANCE_PORT")
	bindEnv(v, "database_url", "DATABASE_URL", "GOVERNANCE_DATABASE_URL")
	bindEnv(v, "redis_url", "REDIS_URL", "GOVERNANCE_REDIS_URL")
	bindEnv(v, "nats_url", "NATS_URL", "GOVERNANCE_NATS_URL")
	bindEnv(v, "jwt_secret", "JWT_SECRET", "GOVERNANCE_JWT_SECRET")
	bindEnv(v, "jwt_issuer", "JWT_ISSUER", "GOVERNANCE_JWT_ISSUER")
	bindEnv(v, "jwt_audience", "JWT_AUDIENCE", "GOVERNANCE_JWT_AUDIENCE")
	bindEnv(v, "policy_file", "POLICY_FILE", "GOVERNANCE_POLICY_FILE")
	bindEnv(v, "sweep_interval", "SWEEP_INTERVAL", "GOVERNANCE_SWEEP_INTERVAL")
	bindEnv(v, "public_rate_limit_rps", "PUBLIC_RATE_LIMIT_RPS", "GOVERNANCE_PUBLIC_RATE_LIMIT_RPS")
	bindEnv(v, "auth_rate_limit_rps", "AUTH_RATE_LIMIT_RPS", "GOVERNANCE_AUTH_RATE_LIMIT_RPS")
	bindEnv(v, "log_level", "LOG_LEVEL", "GOVERNANCE_LOG_LEVEL")
	bindEnv(v, "idempotency_ttl", "IDEMPOTENCY_TTL", "GOVERNANCE_IDEMPOTENCY_TTL")
	bindEnv(v, "otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	bindEnv(v, "service_name", "OTEL_SERVICE_NAME")

	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("nats_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "treasury-auth")
	v.SetDefault("jwt_audience", "treasury-governance")
	v.SetDefault("policy_file", "policy.yaml")
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("public_rate_limit_rps", 10)
	v.SetDefault("auth_rate_limit_rps", 100)
	v.SetDefault("log_level", "info")
	v.SetDefault("idempotency_ttl", "24h")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "treasury-governance")

	sweepInterval, err := time.ParseDuration(v.GetString("sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	if sweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	ttl, err := time.ParseDuration(v.GetString("idempotency_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
	}

	cfg := &Config{
		HTTPPort:           v.GetString("port"),
		DatabaseURL:        v.GetString("database_url"),
		RedisURL:           v.GetString("redis_url"),
		NATSURL:            v.GetString("nats_url"),
		JWTSecret:          v.GetString("jwt_secret"),
		JWTIssuer:          v.GetString("jwt_issuer"),
		JWTAudience:        v.GetString("jwt_audience"),
		PolicyFile:         v.GetString("policy_file"),
		SweepInterval:      sweepInterval,
		PublicRateLimitRPS: max(v.GetInt("public_rate_limit_rps"), 1),
		AuthRateLimitRPS:   max(v.GetInt("auth_rate_limit_rps"), 1),
		LogLevel:           v.GetString("log_level"),
		IdempotencyTTL:     ttl,
		OTLPEndpoint:       v.GetString("otlp_endpoint"),
		ServiceName:        v.GetString("service_name"),
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if strings.TrimSpace(cfg.JWTIssuer) == "" {
		return nil, fmt.Errorf("JWT_ISSUER is required")
	}
	if strings.TrimSpace(cfg.JWTAudience) == "" {
		return nil, fmt.Errorf("JWT_AUDIENCE is required")
	}
	if strings.TrimSpace(cfg.PolicyFile) == "" {
		return nil, fmt.Errorf("POLICY_FILE is required")
	}

	return cfg, nil
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}
