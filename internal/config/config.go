package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	StorageDir      string   `mapstructure:"STORAGE_DIR"`
	SignedURLSecret string   `mapstructure:"SIGNED_URL_SECRET"`
	SignedURLTTL    int      `mapstructure:"SIGNED_URL_TTL"`
	NotifyFrom      string   `mapstructure:"NOTIFY_FROM"`
	SMTPAddr        string   `mapstructure:"SMTP_ADDR"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SIGNED_URL_TTL", 60)
	v.SetDefault("NOTIFY_FROM", "no-reply@doctoria.local")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("STORAGE_DIR")
	v.BindEnv("SIGNED_URL_SECRET")
	v.BindEnv("SIGNED_URL_TTL")
	v.BindEnv("NOTIFY_FROM")
	v.BindEnv("SMTP_ADDR")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SignedURLLifetime returns the configured viewing-link TTL as a duration.
func (c *Config) SignedURLLifetime() time.Duration {
	ttl := c.SignedURLTTL
	if ttl <= 0 {
		ttl = 60
	}
	return time.Duration(ttl) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// a SIGNED_URL_SECRET must be set so that document viewing links cannot be
// forged, and production requires an SMTP endpoint for outbound mail.
func (c *Config) Validate() error {
	if !c.IsDev() && c.SignedURLSecret == "" {
		return fmt.Errorf("SIGNED_URL_SECRET is required when ENV=%q", c.Env)
	}
	if c.SignedURLSecret != "" && len(c.SignedURLSecret) < 32 {
		return fmt.Errorf("SIGNED_URL_SECRET must be at least 32 characters, got %d", len(c.SignedURLSecret))
	}
	if c.IsProduction() && c.SMTPAddr == "" {
		return fmt.Errorf("SMTP_ADDR is required in production")
	}
	return nil
}
