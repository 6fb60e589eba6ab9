// Package config загружает настройки клиента: значения по умолчанию, YAML файл,
// .env и переменные окружения INFIRMARY_*, флаги командной строки.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/iudanet/infirmary/internal/models"
)

const (
	EnvPrefix = "INFIRMARY"

	defaultServerURL      = "http://localhost:8080"
	defaultLogLevel       = "info"
	defaultRequestTimeout = 15 * time.Second
	defaultProbeInterval  = 30 * time.Second
	defaultDirName        = ".infirmary"
	defaultDBName         = "infirmary.db"

	// InMemoryDB значение db_path для хранилища без файла (данные живут до выхода)
	InMemoryDB = ":memory:"
)

// Config настройки клиента
type Config struct {
	ServerURL      string        `mapstructure:"server_url"`
	DBPath         string        `mapstructure:"db_path"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFile        string        `mapstructure:"log_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
	MaxRetries     int           `mapstructure:"max_retries"`
	PageSize       int           `mapstructure:"page_size"`
	AutoSync       bool          `mapstructure:"auto_sync"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_url", defaultServerURL)
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_file", "")
	v.SetDefault("request_timeout", defaultRequestTimeout)
	v.SetDefault("probe_interval", defaultProbeInterval)
	v.SetDefault("max_retries", models.DefaultMaxRetries)
	v.SetDefault("page_size", 100)
	v.SetDefault("auto_sync", true)
}

// Load читает конфигурацию. configFile может быть пустым: тогда ищется
// infirmary.yaml в текущей директории и в ~/.infirmary.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// .env необязателен
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
		v.SetConfigName("infirmary")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, defaultDirName))
		}
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
	if c.ServerURL == "" {
		return fmt.Errorf("server_url cannot be empty")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url must start with http:// or https://, got %q", c.ServerURL)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}

// InMemory reports whether the local store is kept in process memory
func (c *Config) InMemory() bool {
	return c.DBPath == InMemoryDB
}

// EnsureDBDir creates the directory holding the database file
func (c *Config) EnsureDBDir() error {
	if c.InMemory() {
		return nil
	}
	dir := filepath.Dir(c.DBPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDBName
	}
	return filepath.Join(home, defaultDirName, defaultDBName)
}
