package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "2028-06-30", cfg.Pipeline.CredentialValidUntil)
	assert.Equal(t, 3, cfg.Pipeline.RoleWriteAttempts)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.True(t, cfg.Features.Enabled(FeatureVerifyDigitalID))
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required in production")
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET must be set in production")
}

func TestLoad_RejectsBadCredentialDate(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("PIPELINE_CREDENTIAL_VALID_UNTIL", "30/06/2028")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPELINE_CREDENTIAL_VALID_UNTIL")
}

func TestLoad_BuildsDatabaseURLFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "portal")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://portal:pw@db.internal:5432/portal?sslmode=require", cfg.Database.URL)
}

func TestFeatureFlags_EnvOverrideAndRollout(t *testing.T) {
	t.Setenv("FEATURE_CALLABLE_VERIFY_DIGITAL_ID", "false")
	t.Setenv("FEATURE_PIPELINE_COMPANY_CACHE", "50")

	ff := LoadFeatureFlags()

	assert.False(t, ff.Enabled(FeatureVerifyDigitalID))
	assert.False(t, ff.EnabledFor(FeatureVerifyDigitalID, "u1"))
	assert.True(t, ff.Enabled(FeatureCompanyCache))
	assert.False(t, ff.EnabledFor(FeatureCompanyCache, ""))

	// bucketing is stable for the same caller
	assert.Equal(t, ff.EnabledFor(FeatureCompanyCache, "u42"), ff.EnabledFor(FeatureCompanyCache, "u42"))

	require.NoError(t, ff.SetRolloutPercent(FeatureVerifyDigitalID, 100))
	assert.True(t, ff.EnabledFor(FeatureVerifyDigitalID, "u1"))
	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureCompanyCache, 101), ErrInvalidRolloutPercent)
}
