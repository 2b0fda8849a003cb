package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "policy.yaml", cfg.PolicyFile)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "treasury-governance", cfg.ServiceName)
}

func TestLoadAliasesAndValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("GOVERNANCE_SWEEP_INTERVAL", "15s")
	t.Setenv("PUBLIC_RATE_LIMIT_RPS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, 1, cfg.PublicRateLimitRPS)

	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"short secret", "JWT_SECRET", "short"},
		{"bad interval", "SWEEP_INTERVAL", "soon"},
		{"negative interval", "SWEEP_INTERVAL", "-1s"},
		{"bad ttl", "IDEMPOTENCY_TTL", "forever"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
