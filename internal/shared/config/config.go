package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	KurrentDB  KurrentDBConfig
	Auth       AuthConfig
	Redis      RedisConfig
	Allocation AllocationConfig
	Helpdesk   HelpdeskConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	// Host is the KurrentDB server hostname
	Host string
	// Port is the gRPC/HTTP port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	KeycloakURL  string
	Realm        string
	ClientID     string
	ClientSecret string
	JWTSecret    string
}

// RedisConfig holds the image-summary cache settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// SummaryTTL is how long a per-patient image summary stays cached
	SummaryTTL time.Duration
}

// AllocationConfig holds the connection to the legacy hospital SQL Server
// that originates patient assignments and image uploads
type AllocationConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// PollInterval is how often the adapter polls the upstream tables
	PollInterval time.Duration
}

func (a AllocationConfig) DSN() string {
	return fmt.Sprintf(
		"server=%s;port=%d;user id=%s;password=%s;database=%s",
		a.Host, a.Port, a.User, a.Password, a.Database,
	)
}

// HelpdeskConfig holds the external help-desk service settings
type HelpdeskConfig struct {
	URL     string
	APIKey  string
	Enabled bool
	Timeout time.Duration
}

// LoggingConfig controls structured log output
type LoggingConfig struct {
	// Level: trace, debug, info, warn, error
	Level string
	// Pretty enables human-readable console output for development
	Pretty bool
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "teleatencion"),
			Password: getEnv("DB_PASSWORD", "teleatencion"),
			Database: getEnv("DB_NAME", "teleatencion"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			KeycloakURL:  getEnv("KEYCLOAK_URL", "http://localhost:8180"),
			Realm:        getEnv("KEYCLOAK_REALM", "teleatencion"),
			ClientID:     getEnv("KEYCLOAK_CLIENT_ID", "console"),
			ClientSecret: getEnv("KEYCLOAK_CLIENT_SECRET", ""),
			JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			SummaryTTL: getEnvDuration("REDIS_SUMMARY_TTL", 5*time.Minute),
		},
		Allocation: AllocationConfig{
			Enabled:      getEnvBool("ALLOCATION_ENABLED", false),
			Host:         getEnv("ALLOCATION_DB_HOST", "localhost"),
			Port:         getEnvInt("ALLOCATION_DB_PORT", 1433),
			User:         getEnv("ALLOCATION_DB_USER", "sa"),
			Password:     getEnv("ALLOCATION_DB_PASSWORD", ""),
			Database:     getEnv("ALLOCATION_DB_NAME", "his"),
			PollInterval: getEnvDuration("ALLOCATION_POLL_INTERVAL", 30*time.Second),
		},
		Helpdesk: HelpdeskConfig{
			URL:     getEnv("HELPDESK_URL", "http://localhost:5100"),
			APIKey:  getEnv("HELPDESK_API_KEY", ""),
			Enabled: getEnvBool("HELPDESK_ENABLED", true),
			Timeout: getEnvDuration("HELPDESK_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
