// Package config loads limitidx settings from, in increasing precedence,
// built-in defaults, an optional YAML file, a .env file, LIMITIDX_*
// environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/roach88/limitidx/internal/logging"
)

// EnvPrefix prefixes every environment variable: store.driver is read from
// LIMITIDX_STORE_DRIVER.
const EnvPrefix = "LIMITIDX"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Source kinds.
const (
	SourceFile  = "file"
	SourceKafka = "kafka"
	SourceEth   = "eth"
)

// Config is the full runtime configuration.
type Config struct {
	Store   StoreConfig    `mapstructure:"store"`
	Source  SourceConfig   `mapstructure:"source"`
	Engine  EngineConfig   `mapstructure:"engine"`
	Log     logging.Config `mapstructure:"log"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
}

// StoreConfig selects and addresses the record store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`

	// Path is the SQLite file or Badger directory.
	Path string `mapstructure:"path"`

	// DSN is the PostgreSQL connection string.
	DSN string `mapstructure:"dsn"`

	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig addresses a Redis server.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SourceConfig selects the event source.
type SourceConfig struct {
	Kind  string      `mapstructure:"kind"`
	File  string      `mapstructure:"file"` // "-" reads stdin
	Kafka KafkaConfig `mapstructure:"kafka"`
	Eth   EthConfig   `mapstructure:"eth"`
}

// KafkaConfig addresses a topic and consumer group.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Group   string   `mapstructure:"group"`
}

// EthConfig addresses a node and the contract emitting update logs.
type EthConfig struct {
	URL       string `mapstructure:"url"` // ws:// or ipc path; subscriptions need a streaming transport
	Contract  string `mapstructure:"contract"`
	FromBlock uint64 `mapstructure:"from_block"` // 0 follows from the head
}

// EngineConfig tunes the run loop.
type EngineConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

// SetDefaults registers every key with its default so environment variables
// are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	logDefaults := logging.DefaultConfig()

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", "limitidx.db")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "limitidx:")

	v.SetDefault("source.kind", SourceFile)
	v.SetDefault("source.file", "-")
	v.SetDefault("source.kafka.brokers", []string{})
	v.SetDefault("source.kafka.topic", "")
	v.SetDefault("source.kafka.group", "limitidx")
	v.SetDefault("source.eth.url", "")
	v.SetDefault("source.eth.contract", "")
	v.SetDefault("source.eth.from_block", 0)

	v.SetDefault("engine.workers", 1)
	v.SetDefault("engine.queue_depth", 256)

	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logDefaults.MaxSizeMB)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age_days", logDefaults.MaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("metrics.addr", "")
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads .env from the working directory into the process
// environment. A missing file is not an error; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the optional config file into v and returns the validated
// configuration. Flags must already be bound to v.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres driver")
		}
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver %q: want sqlite, badger, redis, postgres or memory", c.Store.Driver)
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.File == "" {
			return errors.New("source.file is required for the file source")
		}
	case SourceKafka:
		k := c.Source.Kafka
		if len(k.Brokers) == 0 || k.Topic == "" || k.Group == "" {
			return errors.New("source.kafka needs brokers, topic and group")
		}
	case SourceEth:
		if c.Source.Eth.URL == "" {
			return errors.New("source.eth.url is required for the eth source")
		}
		if !common.IsHexAddress(c.Source.Eth.Contract) {
			return fmt.Errorf("source.eth.contract %q is not an address", c.Source.Eth.Contract)
		}
	default:
		return fmt.Errorf("source.kind %q: want file, kafka or eth", c.Source.Kind)
	}

	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1, got %d", c.Engine.Workers)
	}
	if c.Engine.QueueDepth < 1 {
		return fmt.Errorf("engine.queue_depth must be at least 1, got %d", c.Engine.QueueDepth)
	}

	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
