// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store holds the record-store connection settings. Passed explicitly to the
// store client constructor; nothing reads these from ambient globals.
type Store struct {
	BaseURL string
	BaseID  string
	APIKey  string
	Timeout time.Duration
}

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	PublicBaseURL string
	ImageDir      string
	RedisURL      string
	Store         Store
}

const defaultStoreBaseURL = "https://api.airtable.com/v0"

// Load builds a Config from environment variables, reading a .env file first
// if one is present. The record-store credentials are required; everything
// else has a development default.
func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	baseID := os.Getenv("STORE_BASE_ID")
	if baseID == "" {
		return Config{}, fmt.Errorf("missing env STORE_BASE_ID")
	}
	apiKey := os.Getenv("STORE_API_KEY")
	if apiKey == "" {
		return Config{}, fmt.Errorf("missing env STORE_API_KEY")
	}

	timeoutSec, err := strconv.Atoi(get("STORE_TIMEOUT_SECONDS", "10"))
	if err != nil || timeoutSec <= 0 {
		return Config{}, fmt.Errorf("invalid STORE_TIMEOUT_SECONDS")
	}

	return Config{
		Addr:          get("VOUCHSAFE_ADDR", ":8080"),
		PublicBaseURL: get("PUBLIC_BASE_URL", "http://127.0.0.1:8080"),
		ImageDir:      get("IMAGE_DIR", "static/qr_codes"),
		RedisURL:      os.Getenv("REDIS_URL"),
		Store: Store{
			BaseURL: get("STORE_BASE_URL", defaultStoreBaseURL),
			BaseID:  baseID,
			APIKey:  apiKey,
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}, nil
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
