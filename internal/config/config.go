package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreSheets = "sheets"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string

	StoreBackend string
	SQLitePath   string
	StoreTimeout time.Duration

	SpreadsheetID     string
	SheetName         string
	GoogleCredentials []byte

	CatalogPath string
	Timezone    string

	ReminderLead     time.Duration
	ReminderInterval time.Duration
}

// Load reads configuration from the environment (and a .env file if one is
// present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		StoreBackend:     getEnv("STORE_BACKEND", StoreSQLite),
		SQLitePath:       getEnv("SQLITE_PATH", "data/bookings.db"),
		StoreTimeout:     getDuration("STORE_TIMEOUT", 10*time.Second),
		SpreadsheetID:    os.Getenv("SPREADSHEET_ID"),
		SheetName:        os.Getenv("SHEET_NAME"),
		CatalogPath:      os.Getenv("CATALOG_PATH"),
		Timezone:         getEnv("BUSINESS_TIMEZONE", "Europe/Minsk"),
		ReminderLead:     getDuration("REMINDER_LEAD", time.Hour),
		ReminderInterval: getDuration("REMINDER_INTERVAL", time.Minute),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}

	switch cfg.StoreBackend {
	case StoreSQLite:
	case StoreSheets:
		if cfg.SpreadsheetID == "" {
			return nil, fmt.Errorf("SPREADSHEET_ID is not set")
		}
		creds, err := decodeCredentials(os.Getenv("GOOGLE_CREDENTIALS"))
		if err != nil {
			return nil, err
		}
		cfg.GoogleCredentials = creds
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// decodeCredentials unpacks the base64-encoded service-account JSON,
// repairing missing padding: deployment dashboards routinely strip it.
func decodeCredentials(b64 string) ([]byte, error) {
	b64 = strings.TrimSpace(b64)
	if b64 == "" {
		return nil, fmt.Errorf("GOOGLE_CREDENTIALS is not set")
	}
	if pad := len(b64) % 4; pad != 0 {
		b64 += strings.Repeat("=", 4-pad)
	}
	creds, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode GOOGLE_CREDENTIALS: %w", err)
	}
	return creds, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
