/*
Package config loads the service configuration.

SOURCES (lowest to highest precedence):
  1. Defaults set in setDefaults
  2. config.yaml in the given directory or ./config
  3. Environment variables, prefixed WAREHOUSE_ with dots as underscores
     (WAREHOUSE_SERVER_ADDRESS, WAREHOUSE_REDIS_ENABLED, ...)

A missing config file is not an error; defaults and the environment are
enough to run locally.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Sweep       SweepConfig      `mapstructure:"sweep"`
	Booking     BookingConfig    `mapstructure:"booking"`
	Shipping    ShippingConfig   `mapstructure:"shipping"`
	Classifier  ClassifierConfig `mapstructure:"classifier"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CorsOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	// Path of the SQLite file; ":memory:" for a throwaway database.
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// KeepNotifications caps each user's notification list.
	KeepNotifications int64 `mapstructure:"keep_notifications"`
}

type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// RunOnStart triggers one sweep as soon as the scheduler starts.
	RunOnStart bool `mapstructure:"run_on_start"`
}

type BookingConfig struct {
	ExpiryWindowDays int `mapstructure:"expiry_window_days"`
	IDAttempts       int `mapstructure:"id_attempts"`
}

type ShippingConfig struct {
	LateFee string `mapstructure:"late_fee"`
}

type ClassifierConfig struct {
	// Empty URL disables consignment verification.
	URL           string        `mapstructure:"url"`
	Authorization string        `mapstructure:"authorization"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from path (or ./config) and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("WAREHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.path", "./warehouse.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keep_notifications", 200)

	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval", "1h")
	v.SetDefault("sweep.run_on_start", true)

	v.SetDefault("booking.expiry_window_days", 7)
	v.SetDefault("booking.id_attempts", 20)

	v.SetDefault("shipping.late_fee", "1000")

	v.SetDefault("classifier.url", "")
	v.SetDefault("classifier.authorization", "")
	v.SetDefault("classifier.timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", true)
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	if c.Booking.ExpiryWindowDays < 0 {
		return fmt.Errorf("booking.expiry_window_days must not be negative")
	}
	if c.Booking.IDAttempts <= 0 {
		return fmt.Errorf("booking.id_attempts must be positive")
	}
	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive when the sweep is enabled")
	}
	if _, err := c.LateFee(); err != nil {
		return err
	}
	return nil
}

// LateFee parses shipping.late_fee.
func (c Config) LateFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.Shipping.LateFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("shipping.late_fee %q: %w", c.Shipping.LateFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("shipping.late_fee must not be negative")
	}
	return fee, nil
}

// Addr is host:port of the Redis server.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
