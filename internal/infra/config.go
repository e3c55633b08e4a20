package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	GeminiAPIKey       string
	GeminiBaseURL      string
	VeoModel           string
	MinDurationSeconds int
	MaxDurationSeconds int
	PollInterval       time.Duration
	OperationTTL       time.Duration
	GeoIPDBPath        string
	CORSOrigins        []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	RelayBaseURL       string
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A .env file is honored when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VeoModel:           getEnv("VEO_MODEL", "veo-3.0-generate-preview"),
		MinDurationSeconds: getEnvInt("VEO_MIN_DURATION_SECONDS", 4),
		MaxDurationSeconds: getEnvInt("VEO_MAX_DURATION_SECONDS", 8),
		PollInterval:       time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 10000)),
		OperationTTL:       time.Minute * time.Duration(getEnvInt("OPERATION_TTL_MINUTES", 60)),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSOrigins:        splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		RelayBaseURL:       getEnv("RELAY_BASE_URL", "http://localhost:8080"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.MinDurationSeconds <= 0 || cfg.MaxDurationSeconds < cfg.MinDurationSeconds {
		return nil, fmt.Errorf("invalid duration bounds %d..%d", cfg.MinDurationSeconds, cfg.MaxDurationSeconds)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
