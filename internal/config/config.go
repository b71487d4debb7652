package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port    int
	DevMode bool

	// Analysis oracle connection
	OracleURL     string
	OracleAPIKey  string
	OracleModel   string
	OracleTimeout time.Duration

	// Uploads
	MaxUploadMB int
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is honored when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:    envInt("DRUMORB_PORT", 8080),
		DevMode: envBool("DRUMORB_DEV", false),

		OracleURL:     envStr("DRUMORB_ORACLE_URL", "http://localhost:9090"),
		OracleAPIKey:  envStr("DRUMORB_ORACLE_API_KEY", ""),
		OracleModel:   envStr("DRUMORB_ORACLE_MODEL", "drum-transients-v1"),
		OracleTimeout: time.Duration(envInt("DRUMORB_ORACLE_TIMEOUT", 120)) * time.Second,

		MaxUploadMB: envInt("DRUMORB_MAX_UPLOAD_MB", 25),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
