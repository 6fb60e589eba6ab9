// Package config загружает настройки сервера: значения по умолчанию, YAML файл,
// .env и переменные окружения INFIRMARY_SERVER_*, флаги командной строки.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "INFIRMARY_SERVER"

	// minSecretLen минимальная длина секрета подписи JWT (256 бит для HS256)
	minSecretLen = 32
)

// Config настройки сервера
type Config struct {
	Address         string        `mapstructure:"address"`
	DBPath          string        `mapstructure:"db_path"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFile         string        `mapstructure:"log_file"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	AuthRateLimit   int           `mapstructure:"auth_rate_limit"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("address", ":8080")
	v.SetDefault("db_path", "infirmary-server.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("access_token_ttl", 12*time.Hour)
	v.SetDefault("rate_limit", 600)
	v.SetDefault("auth_rate_limit", 10)
	v.SetDefault("rate_window", time.Minute)
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// Load читает конфигурацию. configFile может быть пустым: тогда ищется
// infirmary-server.yaml в текущей директории и в /etc/infirmary.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("infirmary-server")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/infirmary")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required values
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	if len(c.JWTSecret) < minSecretLen {
		return fmt.Errorf("jwt_secret must be at least %d characters (set %s_JWT_SECRET)", minSecretLen, EnvPrefix)
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("access_token_ttl must be positive")
	}
	if c.RateLimit < 1 || c.AuthRateLimit < 1 {
		return fmt.Errorf("rate limits must be at least 1")
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("rate_window must be positive")
	}
	return nil
}
