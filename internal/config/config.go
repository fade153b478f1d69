// Package config loads server settings from .env, an optional config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"port"`
	BaseURL       string `mapstructure:"base_url"`
	StoreBackend  string `mapstructure:"store_backend"` // redis or sqlite
	RedisURL      string `mapstructure:"redis_url"`
	DatabasePath  string `mapstructure:"database_path"`
	AdminPassword string `mapstructure:"admin_password"`
	UploadDir     string `mapstructure:"upload_dir"`
	BlobBucket    string `mapstructure:"blob_bucket"` // logos go to GCS when set
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"` // text or json
	DevMode       bool   `mapstructure:"dev_mode"`
}

var defaults = map[string]interface{}{
	"port":           "8080",
	"base_url":       "",
	"store_backend":  "sqlite",
	"redis_url":      "",
	"database_path":  "./data/wotc.db",
	"admin_password": "",
	"upload_dir":     "./data/uploads",
	"blob_bucket":    "",
	"log_level":      "info",
	"log_format":     "text",
	"dev_mode":       false,
}

// Load reads configuration. Values from a .env file in the working directory
// are exported first, then config.yaml in configDir (if any) is read, and
// environment variables override both.
func Load(configDir string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configDir != "" {
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "sqlite":
		if c.DatabasePath == "" {
			return errors.New("config: DATABASE_PATH required for sqlite backend")
		}
	case "redis":
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL required for redis backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// StoreURL returns the connection string for the configured backend.
func (c *Config) StoreURL() string {
	if c.StoreBackend == "redis" {
		return c.RedisURL
	}
	return c.DatabasePath
}

// SecureCookies reports whether the server is reached over HTTPS.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if c.DevMode && c.LogLevel == "info" {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
