// Package config loads the server configuration from a YAML file with
// REVERSI_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/reversi-cards/reversi-server-go/internal/game"
)

// EnvPrefix prefixes every environment override, e.g. REVERSI_SERVER_GRPC_ADDRESS.
const EnvPrefix = "REVERSI"

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Replay   ReplayConfig   `mapstructure:"replay"`
	Rules    game.Rules     `mapstructure:"rules"`
	// CatalogPath points at a card catalog YAML file. Empty selects the
	// embedded catalog.
	CatalogPath string `mapstructure:"catalog_path"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	GRPC       GRPCConfig `mapstructure:"grpc"`
	HTTP       HTTPConfig `mapstructure:"http"`
	MaxMatches int        `mapstructure:"max_matches"`
}

// GRPCConfig configures the match service listener.
type GRPCConfig struct {
	Address              string        `mapstructure:"address"`
	MaxConcurrentStreams int           `mapstructure:"max_concurrent_streams"`
	KeepaliveTime        time.Duration `mapstructure:"keepalive_time"`
	KeepaliveTimeout     time.Duration `mapstructure:"keepalive_timeout"`
}

// HTTPConfig configures the HTTP listener that also upgrades WebSocket
// streams.
type HTTPConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig selects where the action ledger is stored.
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"`
	URL            string        `mapstructure:"url"`
	Path           string        `mapstructure:"path"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ReplayConfig controls replay recording.
type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

func setDefaults(v *viper.Viper) {
	rules := game.DefaultRules()

	v.SetDefault("server.grpc.address", ":50051")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.grpc.keepalive_time", 30*time.Second)
	v.SetDefault("server.grpc.keepalive_timeout", 10*time.Second)
	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.http.read_timeout", 10*time.Second)
	v.SetDefault("server.http.write_timeout", 10*time.Second)
	v.SetDefault("server.http.ping_interval", 30*time.Second)
	v.SetDefault("server.max_matches", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.url", "")
	v.SetDefault("database.path", "data/reversi.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("replay.enabled", true)
	v.SetDefault("replay.directory", "data/replays")

	v.SetDefault("rules.hand_limit", rules.HandLimit)
	v.SetDefault("rules.opening_hand", rules.OpeningHand)
	v.SetDefault("rules.starting_charge", rules.StartingCharge)

	v.SetDefault("catalog_path", "")
}

// Load reads path and applies environment overrides. A missing file leaves
// the defaults in place; an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
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

// Validate checks the settings that have no usable fallback.
func (c *Config) Validate() error {
	if c.Server.GRPC.Address == "" {
		return fmt.Errorf("server.grpc.address is required")
	}
	if c.Server.HTTP.Address == "" {
		return fmt.Errorf("server.http.address is required")
	}
	if c.Server.MaxMatches < 1 {
		return fmt.Errorf("server.max_matches must be positive, got %d", c.Server.MaxMatches)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Replay.Enabled && c.Replay.Directory == "" {
		return fmt.Errorf("replay.directory is required when replays are enabled")
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	return nil
}
