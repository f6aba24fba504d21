package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	StoragePath       string
	StorageBaseURL    string
	GatewayBaseURL    string
	GatewayAPIKey     string
	RenderModel       string
	OCRModel          string
	ParserModel       string
	GatewayTimeout    time.Duration
	BatchSize         int
	WorkerPollSeconds int
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. The gateway API key is deliberately optional: the
// pipeline fails projects gracefully when it is absent.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StoragePath:       getEnv("STORAGE_PATH", "./data/storage"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", "http://localhost:8080/files"),
		GatewayBaseURL:    getEnv("AI_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"),
		GatewayAPIKey:     os.Getenv("AI_GATEWAY_API_KEY"),
		RenderModel:       getEnv("RENDER_MODEL", "google/gemini-2.5-flash-image-preview"),
		OCRModel:          getEnv("OCR_MODEL", "google/gemini-2.5-flash"),
		ParserModel:       getEnv("PARSER_MODEL", "google/gemini-2.5-flash"),
		GatewayTimeout:    time.Second * time.Duration(getEnvInt("AI_GATEWAY_TIMEOUT_SECONDS", 120)),
		BatchSize:         getEnvInt("BATCH_SIZE", 10),
		WorkerPollSeconds: getEnvInt("WORKER_POLL_SECONDS", 2),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
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
