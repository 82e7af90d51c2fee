package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	ChangeFeedNative = "native"
	ChangeFeedRedis  = "redis"
)

// Config holds the application configuration
type Config struct {
	Backend     string
	DatabaseURL string
	SQLitePath  string

	ChangeFeed    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string

	EventName      string
	ExportDir      string
	ExportColumns  []string
	RequiredFields []string
	NameField      string
	PhoneField     string

	WhatsAppEnabled    bool
	WhatsAppDataDir    string
	DefaultCountryCode string

	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables or defaults.
// A .env file in the working directory is read first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Backend:     strings.ToLower(getEnv("GUESTS_BACKEND", BackendSQLite)),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "data/guests.db"),

		ChangeFeed:    strings.ToLower(getEnv("CHANGEFEED", ChangeFeedNative)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", ""),

		EventName:      getEnv("EVENT_NAME", "moto-event"),
		ExportDir:      getEnv("EXPORT_DIR", "exports"),
		ExportColumns:  getEnvList("EXPORT_COLUMNS", nil),
		RequiredFields: getEnvList("REQUIRED_FIELDS", []string{"DNI", "Apellido y Nombre", "Teléfono"}),
		NameField:      getEnv("NAME_FIELD", "Apellido y Nombre"),
		PhoneField:     getEnv("PHONE_FIELD", "Teléfono"),

		WhatsAppEnabled:    getEnvBool("WHATSAPP_ENABLED", false),
		WhatsAppDataDir:    getEnv("WHATSAPP_DATA_DIR", "data"),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "54"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}
}

// Validate reports settings that cannot work together
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s backend", BackendSQLite)
		}
	default:
		return fmt.Errorf("unknown GUESTS_BACKEND %q", c.Backend)
	}

	switch c.ChangeFeed {
	case ChangeFeedNative:
	case ChangeFeedRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the %s change feed", ChangeFeedRedis)
		}
	default:
		return fmt.Errorf("unknown CHANGEFEED %q", c.ChangeFeed)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blank entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
