package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("INVOICING_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "simulated", cfg.Processor.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Processor.WebhookTolerance)
	assert.Equal(t, uint(3), cfg.Notification.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Reconcile.TransactionTimeout)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INVOICING_AUTH_JWT_SECRET", "s")
	t.Setenv("INVOICING_SERVER_PORT", "9090")
	t.Setenv("INVOICING_DATABASE_HOST", "db.internal")
	t.Setenv("INVOICING_OBSERVABILITY_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoad_LiveModeRequiresCredentials(t *testing.T) {
	t.Setenv("INVOICING_AUTH_JWT_SECRET", "s")
	t.Setenv("INVOICING_PROCESSOR_MODE", "live")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoad_LiveModeCredentialsFromEnv(t *testing.T) {
	t.Setenv("INVOICING_AUTH_JWT_SECRET", "s")
	t.Setenv("INVOICING_PROCESSOR_MODE", "live")
	t.Setenv("INVOICING_PROCESSOR_API_KEY", "sk_live_x")
	t.Setenv("INVOICING_PROCESSOR_WEBHOOK_SECRET", "whsec_x")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sk_live_x", cfg.Processor.APIKey)
	assert.Equal(t, "whsec_x", cfg.Processor.WebhookSecret)
}

func TestValidate_RejectsBadMode(t *testing.T) {
	t.Setenv("INVOICING_AUTH_JWT_SECRET", "s")
	t.Setenv("INVOICING_PROCESSOR_MODE", "sandbox")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processor.mode")
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "app", Password: "pw",
		Name: "invoicing", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://app:pw@localhost:5432/invoicing?sslmode=disable", db.DSN())
}
