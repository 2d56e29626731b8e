// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	custom_errors "bitbucket-commit-mirror/internal/errors"
)

// Checkpoint backend names accepted in CHECKPOINT_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`

	BitbucketBaseURL  string `mapstructure:"BITBUCKET_BASE_URL"`
	BitbucketOrg      string `mapstructure:"BITBUCKET_ORG"`
	BitbucketUsername string `mapstructure:"BITBUCKET_USERNAME"`
	BitbucketPassword string `mapstructure:"BITBUCKET_PASSWORD"`
	BitbucketToken    string `mapstructure:"BITBUCKET_TOKEN"`
	PageSize          int    `mapstructure:"PAGE_SIZE"`

	EmailDomain string `mapstructure:"EMAIL_DOMAIN"`
	NotifyURL   string `mapstructure:"NOTIFY_URL"`

	CheckpointBackend string `mapstructure:"CHECKPOINT_BACKEND"`
	DBURL             string `mapstructure:"DB_URL"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisDB           int    `mapstructure:"REDIS_DB"`

	SyncInterval time.Duration `mapstructure:"SYNC_INTERVAL"`
	APIAddr      string        `mapstructure:"API_ADDR"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("BITBUCKET_BASE_URL", "https://bitbucket.org/api/1.0")
	viper.SetDefault("PAGE_SIZE", 30)
	viper.SetDefault("CHECKPOINT_BACKEND", BackendPostgres)
	viper.SetDefault("SYNC_INTERVAL", "1h")
	viper.SetDefault("API_ADDR", ":8080")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.BitbucketOrg == "" {
		return nil, errors.New("BITBUCKET_ORG is a required configuration field")
	}
	if cfg.BitbucketToken == "" && (cfg.BitbucketUsername == "" || cfg.BitbucketPassword == "") {
		return nil, errors.New("either BITBUCKET_TOKEN or BITBUCKET_USERNAME and BITBUCKET_PASSWORD must be set")
	}
	if cfg.EmailDomain == "" {
		return nil, errors.New("EMAIL_DOMAIN is a required configuration field")
	}
	if cfg.NotifyURL == "" {
		return nil, errors.New("NOTIFY_URL is a required configuration field")
	}

	switch cfg.CheckpointBackend {
	case BackendPostgres:
		if cfg.DBURL == "" {
			return nil, errors.New("DB_URL is required when CHECKPOINT_BACKEND is postgres")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("REDIS_ADDR is required when CHECKPOINT_BACKEND is redis")
		}
	default:
		return nil, &custom_errors.ErrUnknownBackend{Backend: cfg.CheckpointBackend}
	}

	return &cfg, nil
}
