package config

import (
	"os"
	"strconv"
	"time"
)

// AppConfig holds process-wide settings loaded from the environment.
type AppConfig struct {
	DatabaseURL        string
	Host               string
	Port               string
	AllowedOrigins     string
	NormalizedCurrency string        // reference currency for cross-retailer comparison
	FetchTimeout       time.Duration // shared wall-clock budget for one orchestration run
	MaxSearchResults   int           // per-retailer cap on multi-result extraction
	RefreshCronSpec    string        // schedule for the listing refresh sweep
	RefreshMaxAge      time.Duration // listings older than this get re-fetched
	RenderEnabled      bool          // allow the headless-browser fetch path
}

// Load reads configuration from environment variables with sane defaults.
func Load() *AppConfig {
	return &AppConfig{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		AllowedOrigins:     getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000"),
		NormalizedCurrency: getEnvOrDefault("NORMALIZED_CURRENCY", "USD"),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		MaxSearchResults:   getEnvInt("MAX_SEARCH_RESULTS", 20),
		RefreshCronSpec:    getEnvOrDefault("REFRESH_CRON", "0 0 */6 * * *"),
		RefreshMaxAge:      getEnvDuration("REFRESH_MAX_AGE", 6*time.Hour),
		RenderEnabled:      getEnvOrDefault("RENDER_ENABLED", "false") == "true",
	}
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
