// Package config loads process configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/arjunamarcelino/velobid/go/internal/dbconfig"
	"github.com/arjunamarcelino/velobid/go/internal/engine"
	"github.com/arjunamarcelino/velobid/go/internal/notify"
)

const (
	LedgerModeStub = "stub"
	LedgerModeRPC  = "rpc"
)

type Config struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Ledger struct {
		Mode         string        `yaml:"mode"`
		RPCURL       string        `yaml:"rpc_url"`
		ChainID      uint64        `yaml:"chain_id"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxRetries   int           `yaml:"max_retries"`
		PollInterval time.Duration `yaml:"poll_interval"`
		// SeedFile lists auctions created in the in-memory ledger at startup. Empty skips seeding.
		SeedFile string `yaml:"seed_file"`
	} `yaml:"ledger"`

	Sync struct {
		Interval       time.Duration `yaml:"interval"`
		PageOffset     uint64        `yaml:"page_offset"`
		PageSize       uint64        `yaml:"page_size"`
		MaxConcurrency int           `yaml:"max_concurrency"`
	} `yaml:"sync"`

	Leaderboard struct {
		HeadSize   int `yaml:"head_size"`
		MaxEntries int `yaml:"max_entries"`
	} `yaml:"leaderboard"`

	TokenSymbol string `yaml:"token_symbol"`

	NATS struct {
		URL                 string `yaml:"url"`
		NotificationSubject string `yaml:"notification_subject"`
		InvalidationSubject string `yaml:"invalidation_subject"`
	} `yaml:"nats"`

	Database struct {
		Enabled         bool `yaml:"enabled"`
		dbconfig.Config `yaml:",inline"`
	} `yaml:"database"`
}

// Default returns the configuration used when no file or env var says otherwise.
func Default() Config {
	var c Config
	c.Log.Level = "info"
	c.Server.Port = "8080"

	c.Ledger.Mode = LedgerModeStub
	c.Ledger.RPCURL = "http://localhost:8545"
	c.Ledger.ChainID = 656476
	c.Ledger.Timeout = 30 * time.Second
	c.Ledger.MaxRetries = 3
	c.Ledger.PollInterval = 2 * time.Second
	c.Ledger.SeedFile = "go/internal/assets/auctions.json"

	eng := engine.DefaultConfig()
	c.Sync.Interval = eng.Registry.Interval
	c.Sync.PageOffset = eng.Registry.PageOffset
	c.Sync.PageSize = eng.Registry.PageSize
	c.Sync.MaxConcurrency = eng.Registry.MaxConcurrency
	c.Leaderboard.HeadSize = eng.Leaderboard.HeadSize
	c.Leaderboard.MaxEntries = eng.Leaderboard.MaxEntries
	c.TokenSymbol = eng.Bidding.TokenSymbol

	n := notify.DefaultNATSConfig()
	c.NATS.NotificationSubject = n.NotificationSubject
	c.NATS.InvalidationSubject = n.InvalidationSubject

	c.Database.Config = dbconfig.Default()
	return c
}

// Load reads path over Default, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Ledger.Mode = getEnv("LEDGER_MODE", c.Ledger.Mode)
	c.Ledger.RPCURL = getEnv("LEDGER_RPC_URL", c.Ledger.RPCURL)
	c.Ledger.ChainID = getEnvAsUint("CHAIN_ID", c.Ledger.ChainID)
	c.Sync.Interval = getEnvAsDuration("SYNC_INTERVAL", c.Sync.Interval)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	if os.Getenv("DB_HOST") != "" {
		c.Database.Enabled = true
	}
	c.Database.Config = c.Database.Config.WithEnv()
}

func (c *Config) Validate() error {
	switch c.Ledger.Mode {
	case LedgerModeStub, LedgerModeRPC:
	default:
		return fmt.Errorf("unknown ledger mode %q", c.Ledger.Mode)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.PageSize == 0 {
		return errors.New("sync page size must be positive")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// LogLevel returns the parsed log level. Validate has already accepted it.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// Engine maps the file settings onto the engine configuration.
func (c *Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Registry.Interval = c.Sync.Interval
	cfg.Registry.PageOffset = c.Sync.PageOffset
	cfg.Registry.PageSize = c.Sync.PageSize
	cfg.Registry.MaxConcurrency = c.Sync.MaxConcurrency
	cfg.Leaderboard.HeadSize = c.Leaderboard.HeadSize
	cfg.Leaderboard.MaxEntries = c.Leaderboard.MaxEntries
	cfg.Bidding.TokenSymbol = c.TokenSymbol
	cfg.Listing.TokenSymbol = c.TokenSymbol
	cfg.Listing.ChainID = c.Ledger.ChainID
	return cfg
}

// NATSEnabled reports whether a NATS URL was configured.
func (c *Config) NATSEnabled() bool {
	return c.NATS.URL != ""
}

func (c *Config) NATSConfig() notify.NATSConfig {
	cfg := notify.DefaultNATSConfig()
	cfg.URL = c.NATS.URL
	cfg.NotificationSubject = c.NATS.NotificationSubject
	cfg.InvalidationSubject = c.NATS.InvalidationSubject
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
