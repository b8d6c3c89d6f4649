package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	AMQPURL        string   `mapstructure:"AMQP_URL"`
	NotifyExchange string   `mapstructure:"NOTIFY_EXCHANGE"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthDevSecret  string   `mapstructure:"AUTH_DEV_SECRET"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	// ExceptionLookaheadDays bounds recurring exception projection.
	ExceptionLookaheadDays int `mapstructure:"EXCEPTION_LOOKAHEAD_DAYS"`
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
	v.SetDefault("NOTIFY_EXCHANGE", "medsched.notifications")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("EXCEPTION_LOOKAHEAD_DAYS", 90)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AMQP_URL")
	v.BindEnv("NOTIFY_EXCHANGE")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_DEV_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("EXCEPTION_LOOKAHEAD_DAYS")

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

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: unauthenticated requests get admin access. Do not use in production.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside of
// development, real JWT authentication must be configured: either an
// issuer with a JWKS endpoint, or an HMAC secret.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.AuthDevSecret == "" {
			return fmt.Errorf(
				"one of AUTH_ISSUER, AUTH_JWKS_URL or AUTH_DEV_SECRET must be set when ENV=%q; "+
					"refusing to start without authentication configuration", c.Env)
		}
	}
	if c.ExceptionLookaheadDays <= 0 {
		return fmt.Errorf("EXCEPTION_LOOKAHEAD_DAYS must be positive, got %d", c.ExceptionLookaheadDays)
	}
	return nil
}
