package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the runtime configuration. Every field maps to one
// environment variable.
type Config struct {
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	AppEnv        string `mapstructure:"APP_ENV"`
	AllowedOrigin string `mapstructure:"ALLOWED_ORIGIN"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	AuthSecret            string `mapstructure:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`

	TotalsCacheTTLSeconds int `mapstructure:"TOTALS_CACHE_TTL_SECONDS"`
	LockTTLSeconds        int `mapstructure:"LOCK_TTL_SECONDS"`
	LockWaitMillis        int `mapstructure:"LOCK_WAIT_MS"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                ":8080",
	"APP_ENV":                  "development",
	"ALLOWED_ORIGIN":           "http://127.0.0.1:3000",
	"LOG_LEVEL":                "info",
	"DATABASE_URL":             "",
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"AUTH_SECRET":              "",
	"ACCESS_TOKEN_TTL_MINUTES": 480,
	"TOTALS_CACHE_TTL_SECONDS": 300,
	"LOCK_TTL_SECONDS":         10,
	"LOCK_WAIT_MS":             2000,
}

// Load reads the environment, after merging an optional local .env file.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))

	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.TotalsCacheTTLSeconds < 1 {
		cfg.TotalsCacheTTLSeconds = 300
	}
	if cfg.LockTTLSeconds < 1 {
		cfg.LockTTLSeconds = 10
	}
	if cfg.LockWaitMillis < 0 {
		cfg.LockWaitMillis = 0
	}
	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development" || c.AppEnv == "dev"
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) TotalsCacheTTL() time.Duration {
	return time.Duration(c.TotalsCacheTTLSeconds) * time.Second
}

func (c Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c Config) LockWait() time.Duration {
	return time.Duration(c.LockWaitMillis) * time.Millisecond
}
