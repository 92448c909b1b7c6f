// Package config loads process configuration from the environment,
// 12-factor style. Every knob has a default that works for local
// development.
package config

import (
	"os"
	"strconv"
)

// Backend selects where sealed runpacks are persisted.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendS3       Backend = "s3"
)

// Config holds service configuration.
type Config struct {
	LogLevel string
	LogJSON  bool

	StoreBackend Backend
	SQLitePath   string
	DatabaseURL  string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint     string
	TelemetryEnabled bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("VERDICT_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	backend := Backend(os.Getenv("VERDICT_STORE"))
	switch backend {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendS3:
	default:
		backend = BackendMemory
	}

	sqlitePath := os.Getenv("VERDICT_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "verdict.db"
	}

	dbURL := os.Getenv("VERDICT_DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://verdict@localhost:5432/verdict?sslmode=disable"
	}

	redisDB := 0
	if raw := os.Getenv("VERDICT_REDIS_DB"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			redisDB = n
		}
	}

	otlp := os.Getenv("VERDICT_OTLP_ENDPOINT")
	if otlp == "" {
		otlp = "localhost:4317"
	}

	return &Config{
		LogLevel:         logLevel,
		LogJSON:          os.Getenv("VERDICT_LOG_JSON") == "true",
		StoreBackend:     backend,
		SQLitePath:       sqlitePath,
		DatabaseURL:      dbURL,
		S3Bucket:         os.Getenv("VERDICT_S3_BUCKET"),
		S3Region:         os.Getenv("VERDICT_S3_REGION"),
		S3Endpoint:       os.Getenv("VERDICT_S3_ENDPOINT"),
		RedisAddr:        os.Getenv("VERDICT_REDIS_ADDR"),
		RedisPassword:    os.Getenv("VERDICT_REDIS_PASSWORD"),
		RedisDB:          redisDB,
		OTLPEndpoint:     otlp,
		TelemetryEnabled: os.Getenv("VERDICT_TELEMETRY") == "true",
	}
}
