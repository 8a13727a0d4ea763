package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when no model credential is configured. The
// server refuses to start without one.
var ErrMissingAPIKey = errors.New("ARK_API_KEY is required")

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Path    string
		Timeout time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// AI model configuration
	AI struct {
		APIKey      string
		Model       string
		BaseURL     string
		Region      string
		Temperature float64
		MaxTokens   int
		Timeout     time.Duration
	}

	// Export configuration
	Export struct {
		ProductName string
		ProductTag  string
		FontPath    string
		FontFamily  string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Uses singleton pattern to ensure only one instance exists.
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		// Database config
		instance.Database.Path = getEnvString("DB_PATH", "kmle_tutor.db")
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// AI model config. Exactly one model identifier, no fallback list.
		instance.AI.APIKey = getEnvString("ARK_API_KEY", "")
		instance.AI.Model = getEnvString("ARK_MODEL", "doubao-1-5-pro-32k-250115")
		instance.AI.BaseURL = getEnvString("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		instance.AI.Region = getEnvString("ARK_REGION", "cn-beijing")
		instance.AI.Temperature = getEnvFloat("ARK_TEMPERATURE", 0.7)
		instance.AI.MaxTokens = getEnvInt("ARK_MAX_TOKENS", 2048)
		instance.AI.Timeout = getEnvDuration("ARK_TIMEOUT", 60*time.Second)

		// Export config
		instance.Export.ProductName = getEnvString("EXPORT_PRODUCT_NAME", "KMLE AI Tutor")
		instance.Export.ProductTag = getEnvString("EXPORT_PRODUCT_TAG", "KMLE")
		instance.Export.FontPath = getEnvString("EXPORT_FONT_PATH", "assets/fonts/NanumGothic.ttf")
		instance.Export.FontFamily = getEnvString("EXPORT_FONT_FAMILY", "NanumGothic")

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 10<<20) // 10MB

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Validate checks startup-time requirements. A missing model credential is
// fatal before any route is served.
func (c *Config) Validate() error {
	if c.AI.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
