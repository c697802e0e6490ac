package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the converter and its API server.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Parser   ParserConfig   `mapstructure:"parser"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimitMB  int           `mapstructure:"body_limit_mb"`
	StaticDir    string        `mapstructure:"static_dir"`
	RateLimit    RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit caps uploads per client IP (Max per Expiration window) and
// across all clients (PerSecond with Burst).
type RateLimit struct {
	Max        int           `mapstructure:"max"`
	Expiration time.Duration `mapstructure:"expiration"`
	PerSecond  float64       `mapstructure:"per_second"`
	Burst      int           `mapstructure:"burst"`
}

// DatabaseConfig selects the bill store. Driver is "sqlite" or "pgx".
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// KafkaConfig defines the bill event producer. Disabled by default.
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	RequiredAcks string   `mapstructure:"required_acks"`
	RetryMax     int      `mapstructure:"retry_max"`
}

// ParserConfig bounds batch parsing.
type ParserConfig struct {
	Workers int `mapstructure:"workers"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from config.yaml in configPath, then
// BILLS_* environment variables, then defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("BILLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.body_limit_mb", 32)
	v.SetDefault("server.rate_limit.max", 30)
	v.SetDefault("server.rate_limit.expiration", time.Minute)
	v.SetDefault("server.rate_limit.per_second", 10)
	v.SetDefault("server.rate_limit.burst", 20)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:bills.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "electricity-bills")
	v.SetDefault("kafka.required_acks", "all")
	v.SetDefault("kafka.retry_max", 3)
	v.SetDefault("parser.workers", 4)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks the settings the components cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q (use sqlite or pgx)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must be specified")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers must be specified")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic must be specified")
		}
	}
	if c.Parser.Workers <= 0 {
		return fmt.Errorf("parser workers must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
