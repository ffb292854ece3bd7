// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

// DefaultStateSecret is the development fallback for OAUTH_STATE_SECRET.
// Load refuses it in production.
const DefaultStateSecret = "change-me-oauth-state-secret"

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	OTPConsole = "console"
	OTPTwilio  = "twilio"
)

// Config is the full runtime configuration of the API process.
type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	// AdminAPIKey guards back-office routes. Empty disables them.
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	Storage  string `env:"STORAGE_DRIVER" envDefault:"memory"`
	Database Database

	Redis Redis

	OTPProvider string `env:"OTP_PROVIDER" envDefault:"console"`
	Twilio      Twilio

	OAuth OAuth

	Minio    Minio
	Mailtrap Mailtrap
	Sentry   Sentry

	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
}

type Database struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	Name     string `env:"DB_DATABASE" envDefault:"advisory"`
	Username string `env:"DB_USERNAME" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Schema   string `env:"DB_SCHEMA" envDefault:"public"`
}

// DSN builds the pgx connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Name, d.Schema)
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
}

type Twilio struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	ServiceSID string `env:"TWILIO_VERIFY_SERVICE_SID"`
	// CountryCode is prepended to ten digit local numbers.
	CountryCode string `env:"TWILIO_COUNTRY_CODE" envDefault:"+91"`
}

type OAuth struct {
	StateSecret string        `env:"OAUTH_STATE_SECRET" envDefault:"change-me-oauth-state-secret"`
	StateTTL    time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	LinkedInClientID     string `env:"LINKEDIN_CLIENT_ID"`
	LinkedInClientSecret string `env:"LINKEDIN_CLIENT_SECRET"`
	LinkedInRedirectURL  string `env:"LINKEDIN_REDIRECT_URL"`

	MicrosoftClientID     string `env:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `env:"MICROSOFT_CLIENT_SECRET"`
	MicrosoftRedirectURL  string `env:"MICROSOFT_REDIRECT_URL"`
	MicrosoftTenant       string `env:"MICROSOFT_TENANT" envDefault:"common"`
}

type Minio struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"loan-documents"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type Mailtrap struct {
	APIKey    string `env:"MAILTRAP_API_KEY"`
	URL       string `env:"MAILTRAP_API_URL" envDefault:"https://send.api.mailtrap.io/api/send"`
	FromEmail string `env:"MAILTRAP_FROM_EMAIL" envDefault:"noreply@advisory.local"`
	FromName  string `env:"MAILTRAP_FROM_NAME" envDefault:"Loan Advisory"`
}

type Sentry struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env: %w", err)
	}

	switch cfg.Storage {
	case StorageMemory, StoragePostgres:
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Storage)
	}

	switch cfg.OTPProvider {
	case OTPConsole, OTPTwilio:
	default:
		return Config{}, fmt.Errorf("unknown OTP_PROVIDER %q", cfg.OTPProvider)
	}

	if cfg.SessionSweepInterval <= 0 {
		return Config{}, fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive, got %s", cfg.SessionSweepInterval)
	}
	if cfg.OAuth.StateTTL <= 0 {
		return Config{}, fmt.Errorf("OAUTH_STATE_TTL must be positive, got %s", cfg.OAuth.StateTTL)
	}

	if cfg.IsProduction() {
		if cfg.OAuth.StateSecret == "" || cfg.OAuth.StateSecret == DefaultStateSecret {
			return Config{}, errors.New("OAUTH_STATE_SECRET must be set in production")
		}
	}

	return cfg, nil
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
