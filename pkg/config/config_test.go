package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Enrollment.RequestTTL)
	assert.Zero(t, cfg.Enrollment.SweepInterval)
	assert.Equal(t, EmailProviderConsole, cfg.Email.Provider)
	assert.Equal(t, "matrischol/1.0 (admin@matrischol.local)", cfg.Geocoding.UserAgent)
	assert.Equal(t, 4*time.Second, cfg.Geocoding.Timeout)
	assert.InDelta(t, 0.2, cfg.Geocoding.MinImportance, 0.0001)
	assert.Equal(t, []string{"application/pdf", "image/jpeg", "image/png"}, cfg.Documents.AllowedMIMEs)
	assert.Equal(t, int64(5*1024*1024), cfg.Documents.MaxFileSizeBytes)
	assert.Empty(t, cfg.Admin.Email)
	assert.Equal(t, "Admin", cfg.Admin.FirstName)
	assert.Equal(t, "User", cfg.Admin.LastName)
}

func TestAdminFromEnvironment(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ADMIN_EMAIL", "  root@matrischol.local ")
	v.Set("ADMIN_PASSWORD", "changeme123")
	cfg := fromViper(v)

	assert.Equal(t, "root@matrischol.local", cfg.Admin.Email)
	assert.Equal(t, "changeme123", cfg.Admin.Password)
}

func TestOverridesFallBackOnInvalidDuration(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ENROLLMENT_REQUEST_TTL", "not-a-duration")
	v.Set("ENROLLMENT_SWEEP_INTERVAL", "15m")
	v.Set("EMAIL_PROVIDER", "SendGrid")
	cfg := fromViper(v)

	assert.Equal(t, 24*time.Hour, cfg.Enrollment.RequestTTL)
	assert.Equal(t, 15*time.Minute, cfg.Enrollment.SweepInterval)
	assert.Equal(t, EmailProviderSendGrid, cfg.Email.Provider)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}
