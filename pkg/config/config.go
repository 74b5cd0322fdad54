// Package config loads server configuration from the environment.
package config

import "os"

// Config holds server configuration.
type Config struct {
	Port           string
	LogLevel       string
	DatabasePath   string // SQLite file for proposals and queues
	PostgresURL    string // optional, enables the Postgres usage meter
	RedisAddr      string // optional, enables the strict review quota
	PolicyFile     string // optional, operator CEL policies
	OTLPEndpoint   string // optional, enables OpenTelemetry export
	AuditLogPath   string // optional, JSON-lines audit sink
	EvidenceBucket string // optional, object-storage bucket for exports
	EvidenceStore  string // "s3" or "gcs", default s3
	AWSRegion      string
}

// Load reads configuration from environment variables, applying defaults
// suitable for local development.
func Load() *Config {
	return &Config{
		Port:           envOr("PORT", "8080"),
		LogLevel:       envOr("LOG_LEVEL", "INFO"),
		DatabasePath:   envOr("DATABASE_PATH", "dreamer.db"),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		PolicyFile:     os.Getenv("POLICY_FILE"),
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
		AuditLogPath:   os.Getenv("AUDIT_LOG_PATH"),
		EvidenceBucket: os.Getenv("EVIDENCE_BUCKET"),
		EvidenceStore:  envOr("EVIDENCE_STORE", "s3"),
		AWSRegion:      envOr("AWS_REGION", "us-east-1"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
