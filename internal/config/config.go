package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig selects the store. Driver is "mysql" or "sqlite"; for sqlite only Path is read.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"standing_ttl"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Points string `mapstructure:"points"`
	Claims string `mapstructure:"claims"`
}

type BusinessConfig struct {
	// ApplyTierMultiplier credits points_awarded × tier multiplier instead of the base value.
	ApplyTierMultiplier bool          `mapstructure:"apply_tier_multiplier"`
	DayBoundaryTimezone string        `mapstructure:"day_boundary_timezone"`
	MaxRetryCount       int           `mapstructure:"max_retry_count"`
	TierCacheSize       int           `mapstructure:"tier_cache_size"`
	TierCacheTTL        time.Duration `mapstructure:"tier_cache_ttl"`
}

type JobsConfig struct {
	OutboxInterval       time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize      int           `mapstructure:"outbox_batch_size"`
	ReconcileInterval    time.Duration `mapstructure:"reconcile_interval"`
	ReconcileBatchSize   int           `mapstructure:"reconcile_batch_size"`
	ReconcileConcurrency int           `mapstructure:"reconcile_concurrency"`
	WorkerID             int64         `mapstructure:"worker_id"`
}

// Location resolves the reference timezone for once_per_day buckets.
func (b BusinessConfig) Location() (*time.Location, error) {
	if b.DayBoundaryTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(b.DayBoundaryTimezone)
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "fanloyalty")
	v.SetDefault("database.path", "fanloyalty.db")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.standing_ttl", 30*time.Second)
	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.points", "loyalty.points")
	v.SetDefault("kafka.topic.claims", "loyalty.claims")
	v.SetDefault("business.apply_tier_multiplier", true)
	v.SetDefault("business.day_boundary_timezone", "UTC")
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.tier_cache_size", 256)
	v.SetDefault("business.tier_cache_ttl", 5*time.Minute)
	v.SetDefault("jobs.outbox_interval", 500*time.Millisecond)
	v.SetDefault("jobs.outbox_batch_size", 100)
	v.SetDefault("jobs.reconcile_interval", 10*time.Minute)
	v.SetDefault("jobs.reconcile_batch_size", 500)
	v.SetDefault("jobs.reconcile_concurrency", 4)
	v.SetDefault("jobs.worker_id", 1)
}

// Load reads the yaml file at configPath; FANLOYALTY_* environment variables override it.
// A missing file is not an error, defaults and env still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FANLOYALTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if _, err := cfg.Business.Location(); err != nil {
		return nil, fmt.Errorf("business.day_boundary_timezone: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads configPath and exits the process on failure.
func LoadConfig(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		slog.Error("load config failed", slog.Any("err", err))
		os.Exit(1)
	}
	GlobalConfig = cfg
	return cfg
}
