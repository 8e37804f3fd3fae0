package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	BaseURL   string
	JWTSecret string
	// FrontendDir holds the designer UI build, served when present
	FrontendDir string
	Database    DatabaseConfig
	Detection   DetectionConfig
	Odoo        OdooConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver     string // "postgres" (default) or "sqlite"
	Host       string
	Port       string
	Username   string
	Password   string
	Database   string
	SQLitePath string
	Quiet      bool

	// Embedded PostgreSQL, used when Host is localhost and no password is set
	EmbeddedDataDir string
	EmbeddedPort    int
}

// DetectionConfig selects and configures the shelf detection providers
type DetectionConfig struct {
	DefaultProvider string

	GeminiAPIKey string
	GeminiModel  string

	RoboflowURL    string
	RoboflowAPIKey string

	Timeout time.Duration
	// Predictions below this confidence are hidden from overlays. Scoring ignores it.
	DisplayConfidence float64
	// Uploaded photos are downscaled so the longest side fits this many pixels
	MaxImageSide int
}

// OdooConfig holds Odoo connection settings for the product catalog
type OdooConfig struct {
	URL          string
	Database     string
	Username     string
	Password     string
	SyncInterval int // minutes
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		NodeEnv:     getEnv("NODE_ENV", "development"),
		Port:        getEnv("PORT", "3210"),
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", "http://localhost:3210"), "/"),
		JWTSecret:   jwtSecret,
		FrontendDir: getEnv("FRONTEND_DIR", "web/dist"),
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:       getEnv("PG_HOST", "localhost"),
			Port:       getEnv("PG_PORT", "5432"),
			Username:   getEnv("PG_USERNAME", "postgres"),
			Password:   os.Getenv("PG_PASSWORD"),
			Database:   getEnv("PG_DATABASE", "planogram"),
			SQLitePath: getEnv("SQLITE_PATH", "planogram.db"),
			Quiet:      getEnv("DB_QUIET", "false") == "true",

			EmbeddedDataDir: getEnv("PG_EMBEDDED_DIR", "./db_data"),
			EmbeddedPort:    getEnvInt("PG_EMBEDDED_PORT", 5433),
		},
		Detection: DetectionConfig{
			DefaultProvider:   getEnv("DETECTION_PROVIDER", "roboflow"),
			GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
			GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			RoboflowURL:       os.Getenv("ROBOFLOW_URL"),
			RoboflowAPIKey:    os.Getenv("ROBOFLOW_API_KEY"),
			Timeout:           time.Duration(getEnvInt("DETECTION_TIMEOUT_SECONDS", 60)) * time.Second,
			DisplayConfidence: getEnvFloat("DETECTION_DISPLAY_CONFIDENCE", 0.95),
			MaxImageSide:      getEnvInt("DETECTION_MAX_IMAGE_SIDE", 2048),
		},
		Odoo: OdooConfig{
			URL:          os.Getenv("ODOO_URL"),
			Database:     os.Getenv("ODOO_DB"),
			Username:     os.Getenv("ODOO_USER"),
			Password:     os.Getenv("ODOO_PASSWORD"),
			SyncInterval: getEnvInt("ODOO_SYNC_INTERVAL", 15),
		},
	}

	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	return cfg, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}
