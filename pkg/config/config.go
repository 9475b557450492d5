package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/secrets"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	RabbitMQ  RabbitMQConfig
	Auth      AuthConfig
	Reconcile ReconcileConfig
	Email     EmailConfig
	OTEL      OTELConfig
}

// AppConfig holds environment-wide settings
type AppConfig struct {
	Environment string
	SiteURL     string
	AutoMigrate bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// RabbitMQConfig holds the email queue broker configuration. An empty URL
// means emails are delivered inline by the API process.
type RabbitMQConfig struct {
	URL        string
	EmailQueue string
}

// AuthConfig holds identity provider and session settings
type AuthConfig struct {
	ProviderURL       string
	AnonKey           string
	ServiceRoleKey    string
	JWTSecret         string
	AccessCookieName  string
	RefreshCookieName string
	SecureCookies     bool
}

// ReconcileConfig tunes the post-login profile synchronisation
type ReconcileConfig struct {
	SyncDelay    time.Duration
	PollAttempts int
	PollInterval time.Duration
}

// EmailConfig holds outbound email configuration
type EmailConfig struct {
	ResendAPIKey string
	FromAddress  string
	BaseURL      string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first; variables already set take precedence.
// With VAULT_ENABLED=true the secret at VAULT_PATH is exported next.
func Load() (*Config, error) {
	_ = godotenv.Load()

	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv()); err != nil {
		return nil, fmt.Errorf("failed to load vault secrets: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getEnv("APP_ENV", EnvDevelopment),
			SiteURL:     strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),
			AutoMigrate: getEnvAsBool("AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "facility_maintenance"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        getEnv("RABBITMQ_URL", ""),
			EmailQueue: getEnv("RABBITMQ_EMAIL_QUEUE", "maintenance.emails"),
		},
		Auth: AuthConfig{
			ProviderURL:       strings.TrimRight(getEnv("AUTH_PROVIDER_URL", "http://localhost:9999"), "/"),
			AnonKey:           getEnv("AUTH_ANON_KEY", ""),
			ServiceRoleKey:    getEnv("AUTH_SERVICE_ROLE_KEY", ""),
			JWTSecret:         getEnv("AUTH_JWT_SECRET", ""),
			AccessCookieName:  getEnv("AUTH_ACCESS_COOKIE", "fm-access-token"),
			RefreshCookieName: getEnv("AUTH_REFRESH_COOKIE", "fm-refresh-token"),
			SecureCookies:     getEnvAsBool("AUTH_SECURE_COOKIES", false),
		},
		Reconcile: ReconcileConfig{
			SyncDelay:    getEnvAsDuration("PROFILE_SYNC_DELAY", 500*time.Millisecond),
			PollAttempts: getEnvAsInt("PROFILE_SYNC_ATTEMPTS", 5),
			PollInterval: getEnvAsDuration("PROFILE_SYNC_INTERVAL", 300*time.Millisecond),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("RESEND_FROM_EMAIL", "noreply@maintenance-facility.com"),
			BaseURL:      getEnv("RESEND_BASE_URL", "https://api.resend.com"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "facility-maintenance-tracker"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe default outside development
func (c *Config) Validate() error {
	if c.Reconcile.PollAttempts < 1 {
		return errors.New("PROFILE_SYNC_ATTEMPTS must be at least 1")
	}
	if c.IsLocal() {
		return nil
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required outside development")
	}
	if c.Auth.ProviderURL == "" {
		return errors.New("AUTH_PROVIDER_URL is required outside development")
	}
	return nil
}

// IsLocal reports whether the service runs in the local development environment
func (c *Config) IsLocal() bool {
	return c.App.Environment == EnvDevelopment
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("750ms") or a bare number of milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
