// Package config manages environment variables.
//
// It reads variables from the process environment (and a `.env` file if
// present), loads them into structured Go types and validates that required
// values are present so they can be reused across the application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide sane defaults for optional config blocks (observability, SLA, jobs).
package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists it is loaded into the
	// process env before any variable is read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

/*
	Env vars are read using the prefix SCHOOLHUB_.
	Keys are lowercased with the prefix removed and nested struct fields are
	addressed with the "." delimiter:

	  SCHOOLHUB_SERVER.PORT          -> server.port          -> Config.Server.Port
	  SCHOOLHUB_SUPPORT.SLA.URGENT.RESOLUTION_HOURS -> Config.Support.SLA.Urgent.ResolutionHours
*/

// EnvPrefix is the prefix shared by every configuration variable.
const EnvPrefix = "SCHOOLHUB_"

// ServiceName tags logs, traces and APM dashboards.
const ServiceName = "schoolhub"

// Config is the root configuration object for the application.
//
// Observability, Support and Jobs are pointers because they are optional;
// defaults are injected at load time when they are missing.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Integration   IntegrationConfig    `koanf:"integration" validate:"required"`
	Support       *SupportConfig       `koanf:"support"`
	Jobs          *JobsConfig          `koanf:"jobs"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server runtime.
// Timeouts are expressed in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`

	// RateLimitPerMinute caps requests per client IP. Zero disables the limiter.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute" validate:"min=0"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
}

// RedisConfig contains Redis connection details. Address is "host:port".
type RedisConfig struct {
	Address string `koanf:"address" validate:"required"`
}

// AuthConfig stores the Clerk secret key used to verify session tokens.
type AuthConfig struct {
	SecretKey string `koanf:"secret_key" validate:"required"`
}

// IntegrationConfig holds credentials for the SaaS providers the school talks to.
type IntegrationConfig struct {
	// EmailProvider selects the transactional email backend: resend, sendgrid or console.
	EmailProvider  string `koanf:"email_provider" validate:"required,oneof=resend sendgrid console"`
	ResendAPIKey   string `koanf:"resend_api_key" validate:"required_if=EmailProvider resend"`
	SendgridAPIKey string `koanf:"sendgrid_api_key" validate:"required_if=EmailProvider sendgrid"`
	EmailFromName  string `koanf:"email_from_name" validate:"required"`
	EmailFromAddr  string `koanf:"email_from_address" validate:"required,email"`

	// EmailWebhookSecret is the shared secret the email provider sends with delivery events.
	EmailWebhookSecret string `koanf:"email_webhook_secret" validate:"required"`

	// PaymentsWebhookSecret signs payment gateway webhook payloads (HMAC-SHA256).
	PaymentsWebhookSecret string `koanf:"payments_webhook_secret" validate:"required"`

	// FrontendBaseURL is used to build links inside emails and notifications.
	FrontendBaseURL string `koanf:"frontend_base_url" validate:"required,url"`
}

// LoadConfig loads configuration from environment variables, unmarshals it into
// Config, validates it, applies defaults and returns the resulting config.
//
// It logs fatally (and exits) on any error: a misconfigured process must not start.
func LoadConfig() (*Config, error) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	k := koanf.New(".")

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not load initial env variables")
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not unmarshal main config")
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("config validation failed")
	}

	mainConfig.applyDefaults()

	if err := mainConfig.Observability.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid observability config")
	}

	if err := mainConfig.Support.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid support config")
	}

	if err := mainConfig.Jobs.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid jobs config")
	}

	return mainConfig, nil
}

// applyDefaults fills optional blocks and forces the observability identity
// fields so logs and traces are always tagged consistently.
func (c *Config) applyDefaults() {
	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	}
	c.Observability.ServiceName = ServiceName
	c.Observability.Environment = c.Primary.Env

	if c.Support == nil {
		c.Support = DefaultSupportConfig()
	}

	if c.Jobs == nil {
		c.Jobs = DefaultJobsConfig()
	}
}
