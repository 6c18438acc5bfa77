// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// GrantPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; signs tracking grants.
	GrantPrivateKey string `mapstructure:"GRANT_PRIVATE_KEY"`
	// GrantPublicKey is the PEM-encoded public key or path to file; verifies tracking grants.
	GrantPublicKey string `mapstructure:"GRANT_PUBLIC_KEY"`
	// GrantIssuer is the iss claim on tracking grants.
	GrantIssuer string `mapstructure:"GRANT_ISSUER"`
	// GrantAudience is the aud claim on tracking grants.
	GrantAudience string `mapstructure:"GRANT_AUDIENCE"`
	// GrantTTLRaw is the tracking grant lifetime (e.g. "12h").
	GrantTTLRaw string `mapstructure:"GRANT_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// VerificationTTLRaw is the email verification code lifetime (e.g. "10m").
	VerificationTTLRaw string `mapstructure:"VERIFICATION_TTL"`
	// ResendCooldownRaw is the minimum wait between verification sends (e.g. "60s").
	ResendCooldownRaw string `mapstructure:"RESEND_COOLDOWN"`
	// MailAPIKey is the bearer key for the transactional mail API. Empty means
	// deliveries are logged to the console instead.
	MailAPIKey string `mapstructure:"MAIL_API_KEY"`
	// MailAPIURL is the mail API endpoint.
	MailAPIURL string `mapstructure:"MAIL_API_URL"`
	// MailSender is the From address on outgoing mail.
	MailSender string `mapstructure:"MAIL_SENDER"`
	// CodeReturnToClient when true enables dev code mode: issued codes and keys
	// are retrievable via GET /api/dev/code. Must not be true when Env is production.
	CodeReturnToClient bool `mapstructure:"CODE_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS on the OTLP exporter connection.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("GRANT_ISSUER", "zetsuserv")
	v.SetDefault("GRANT_AUDIENCE", "zetsuserv-track")
	v.SetDefault("GRANT_TTL", "12h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("VERIFICATION_TTL", "10m")
	v.SetDefault("RESEND_COOLDOWN", "60s")
	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("MAIL_API_URL", "")
	v.SetDefault("MAIL_SENDER", "no-reply@zetsuserv.example")
	v.SetDefault("CODE_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.CodeReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: CODE_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// GrantTTL parses GrantTTLRaw as a time.Duration. Returns 12h if unset or invalid.
func (c *Config) GrantTTL() time.Duration {
	d, err := time.ParseDuration(c.GrantTTLRaw)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// VerificationTTL parses VerificationTTLRaw as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) VerificationTTL() time.Duration {
	d, err := time.ParseDuration(c.VerificationTTLRaw)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// ResendCooldown parses ResendCooldownRaw as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) ResendCooldown() time.Duration {
	d, err := time.ParseDuration(c.ResendCooldownRaw)
	if err != nil || d < 0 {
		return 60 * time.Second
	}
	return d
}
