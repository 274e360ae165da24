package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Data       DataConfig       `mapstructure:"data"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	TTL     string `mapstructure:"ttl"`
}

type DataConfig struct {
	// Dir holds one OHLCV CSV file per ticker, named <TICKER>.csv.
	Dir     string   `mapstructure:"dir"`
	Tickers []string `mapstructure:"tickers"`
}

type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	CommissionRate float64 `mapstructure:"commission_rate"`
}

type StrategiesConfig struct {
	// File optionally points at a YAML file with additional strategy
	// definitions loaded on top of the built-in presets.
	File   string `mapstructure:"file"`
	Active string `mapstructure:"active"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Cache.TTL != "" {
		if _, err := time.ParseDuration(config.Cache.TTL); err != nil {
			return nil, fmt.Errorf("invalid cache ttl: %w", err)
		}
	}
	if config.Backtest.InitialCapital <= 0 {
		return nil, fmt.Errorf("backtest initial capital must be positive, got %v", config.Backtest.InitialCapital)
	}
	if config.Backtest.CommissionRate < 0 || config.Backtest.CommissionRate >= 1 {
		return nil, fmt.Errorf("backtest commission rate must be in [0,1), got %v", config.Backtest.CommissionRate)
	}

	return &config, nil
}

// CacheTTL returns the parsed cache TTL. Call after Load has validated it.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// RedisAddr returns the host:port address of the Redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Cache
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.ttl", "1h")

	// Data
	viper.SetDefault("data.dir", "./data")
	viper.SetDefault("data.tickers", []string{})

	// Backtest
	viper.SetDefault("backtest.initial_capital", 100000.0)
	viper.SetDefault("backtest.commission_rate", 0.001)

	// Strategies
	viper.SetDefault("strategies.file", "")
	viper.SetDefault("strategies.active", "balanced")
}
