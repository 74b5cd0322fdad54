package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "DATABASE_PATH", "POSTGRES_URL", "REDIS_ADDR",
		"POLICY_FILE", "OTLP_ENDPOINT", "AUDIT_LOG_PATH", "EVIDENCE_BUCKET",
		"EVIDENCE_STORE", "AWS_REGION",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "dreamer.db", cfg.DatabasePath)
	assert.Equal(t, "s3", cfg.EvidenceStore)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Empty(t, cfg.PostgresURL)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("EVIDENCE_STORE", "gcs")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "gcs", cfg.EvidenceStore)
}
