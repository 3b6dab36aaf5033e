package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the environment-driven settings for the server.
type Config struct {
	Port          string
	StoreBackend  string // "dynamo" or "memory"
	TablePrefix   string
	AWSRegion     string
	SweepInterval time.Duration
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		StoreBackend:  getEnv("STORE_BACKEND", "dynamo"),
		TablePrefix:   getEnv("TABLE_PREFIX", "Mube"),
		AWSRegion:     getEnv("AWS_REGION", ""),
		SweepInterval: getDurationEnv("SWEEP_INTERVAL", 24*time.Hour),
	}

	if cfg.StoreBackend != "dynamo" && cfg.StoreBackend != "memory" {
		log.Fatalf("Fatal: STORE_BACKEND must be 'dynamo' or 'memory', got %q", cfg.StoreBackend)
	}
	if cfg.StoreBackend == "dynamo" && cfg.AWSRegion == "" {
		log.Println("Warning: AWS_REGION not set, relying on default AWS config resolution")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}
