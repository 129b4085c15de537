// Package config reads the portal settings from the environment.
package config

import (
	"errors"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	DBDebug     bool

	// RunMigrations selects golang-migrate SQL migrations over AutoMigrate.
	RunMigrations bool
	MigrationsDir string

	JWTSecret   string
	CORSOrigins []string

	Storage StorageConfig

	RequestTimeout   time.Duration
	ReminderSchedule string
	SagrAutoFinalize bool
}

// StorageConfig selects the file store.
type StorageConfig struct {
	Driver   string // local or oss
	LocalDir string

	OSSEndpoint  string
	OSSAccessKey string
	OSSSecretKey string
	OSSBucket    string
	OSSPrefix    string
}

// Load loads configuration from environment with sensible defaults.
// Precedence: explicit env var > .env file (if loaded by main) > default.
func Load() Config {
	cfg := Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildDatabaseURL(
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "postgres"),
			getEnv("DB_NAME", "postgres"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}
	cfg.DBDebug = ParseBool("DB_DEBUG", false)
	cfg.RunMigrations = ParseBool("MIGRATIONS", false)
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", "migrations")

	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173"))

	cfg.Storage = StorageConfig{
		Driver:       strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		LocalDir:     getEnv("STORAGE_LOCAL_DIR", "uploads"),
		OSSEndpoint:  getEnv("ALI_OSS_ENDPOINT", ""),
		OSSAccessKey: getEnv("ALI_OSS_ACCESS_KEY", ""),
		OSSSecretKey: getEnv("ALI_OSS_SECRET_KEY", ""),
		OSSBucket:    getEnv("ALI_OSS_BUCKET", ""),
		OSSPrefix:    getEnv("ALI_OSS_PREFIX", "bast"),
	}

	cfg.RequestTimeout = ParseDuration("REQUEST_TIMEOUT", 10*time.Second)
	if v, ok := os.LookupEnv("REMINDER_SCHEDULE"); ok {
		cfg.ReminderSchedule = strings.TrimSpace(v)
	} else {
		cfg.ReminderSchedule = "0 7 * * *"
	}
	cfg.SagrAutoFinalize = ParseBool("SAGR_AUTO_FINALIZE", false)
	return cfg
}

// Validate reports settings the server cannot start without.
func (c Config) Validate(release bool) error {
	if release && c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set in release mode")
	}
	switch c.Storage.Driver {
	case "local":
	case "oss":
		if c.Storage.OSSEndpoint == "" || c.Storage.OSSBucket == "" {
			return errors.New("ALI_OSS_ENDPOINT and ALI_OSS_BUCKET are required for the oss storage driver")
		}
	default:
		return errors.New("unknown STORAGE_DRIVER " + strconv.Quote(c.Storage.Driver))
	}
	return nil
}

func buildDatabaseURL(host, port, user, password, name, sslmode string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseBool reads an env var as bool with default.
func ParseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %s", key, v)
			return def
		}
		return b
	}
	return def
}

// ParseDuration reads an env var as a time.Duration with default.
func ParseDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Printf("invalid duration for %s: %s", key, v)
			return def
		}
		return d
	}
	return def
}
