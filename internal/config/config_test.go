package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_URL", "http://localhost:5000")
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("S3_ENDPOINT", "")

	cfg := Load()

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 168*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 2, cfg.NotifyWorkers)
	assert.Zero(t, cfg.AutoContributeInterval)
	assert.False(t, cfg.PushEnabled())
	assert.False(t, cfg.LLMEnabled())
	assert.False(t, cfg.ReportArchiveEnabled())
	assert.False(t, cfg.S3PathStyle)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_URL", "http://localhost:5000")
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("AUTO_CONTRIBUTE_INTERVAL", "1h")
	t.Setenv("NOTIFY_WORKERS", "4")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")
	t.Setenv("LLM_API_URL", "https://llm.example.com/v1")
	t.Setenv("LLM_API_KEY", "key")
	t.Setenv("REPORT_BUCKET", "reports")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")

	cfg := Load()

	assert.Equal(t, time.Hour, cfg.AutoContributeInterval)
	assert.Equal(t, 4, cfg.NotifyWorkers)
	assert.True(t, cfg.PushEnabled())
	assert.True(t, cfg.LLMEnabled())
	assert.True(t, cfg.ReportArchiveEnabled())
	assert.True(t, cfg.S3PathStyle)
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("TEST_BOOL", "maybe")
	t.Setenv("TEST_INT", "-3")
	t.Setenv("TEST_DURATION", "soon")
	t.Setenv("TEST_STRING", "")

	assert.True(t, envBool("TEST_BOOL", true))
	assert.Equal(t, 7, envInt("TEST_INT", 7))
	assert.Equal(t, time.Minute, envDuration("TEST_DURATION", time.Minute))
	assert.Equal(t, "fallback", envString("TEST_STRING", "fallback"))
}
