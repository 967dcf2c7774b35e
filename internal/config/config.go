// Package config handles loading and validating factory configuration.
// Supports YAML config files and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/onde/factory/internal/db"
	"github.com/onde/factory/internal/logging"
	"github.com/onde/factory/internal/store/filestore"
)

// Backend names the persistence adapter behind the task store.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds all factory configuration.
type Config struct {
	Store  StoreConfig  `mapstructure:"store"`
	Log    LogConfig    `mapstructure:"log"`
	Sweep  SweepConfig  `mapstructure:"sweep"`
	Worker WorkerConfig `mapstructure:"worker"`
	Board  BoardConfig  `mapstructure:"board"`
}

// StoreConfig selects and locates the persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	File    string `mapstructure:"file"`
	DB      string `mapstructure:"db"`
}

// LogConfig controls the structured log output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// SweepConfig controls the stale-claim sweeper run by the daemon.
type SweepConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Schedule    string        `mapstructure:"schedule"`
	MaxClaimAge time.Duration `mapstructure:"max_claim_age"`
}

// WorkerConfig controls the polling worker loop.
type WorkerConfig struct {
	ID           string        `mapstructure:"id"`
	Types        []string      `mapstructure:"types"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Command      string        `mapstructure:"command"`
}

// BoardConfig controls the terminal kanban board.
type BoardConfig struct {
	Refresh time.Duration `mapstructure:"refresh"`
}

// GlobalConfigPath returns the path of the user-level config file.
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "factory", "config.yaml")
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("FACTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.file", filestore.DefaultPath())
	v.SetDefault("store.db", db.DefaultPath())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", logging.DefaultConfig().Path)
	v.SetDefault("log.format", "text")
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.schedule", "*/5 * * * *")
	v.SetDefault("sweep.max_claim_age", time.Hour)
	v.SetDefault("worker.id", defaultWorkerID())
	v.SetDefault("worker.types", []string{})
	v.SetDefault("worker.poll_interval", 5*time.Second)
	v.SetDefault("worker.command", "")
	v.SetDefault("board.refresh", 2*time.Second)

	return v
}

// Load reads configuration from the global config file and environment.
// A missing config file is not an error: defaults apply.
func Load() (*Config, error) {
	return LoadFile(GlobalConfigPath())
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (*Config, error) {
	v := newViper(configPath)

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.Store.Backend, BackendFile, BackendSQLite)
	}
	if c.Sweep.MaxClaimAge <= 0 {
		return fmt.Errorf("sweep.max_claim_age must be positive, got %s", c.Sweep.MaxClaimAge)
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be positive, got %s", c.Worker.PollInterval)
	}
	if c.Board.Refresh <= 0 {
		return fmt.Errorf("board.refresh must be positive, got %s", c.Board.Refresh)
	}
	return nil
}

// Write persists the configuration to path, creating parent directories.
func (c *Config) Write(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := newViper(configPath)
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	v.Set("store.backend", c.Store.Backend)
	v.Set("store.file", c.Store.File)
	v.Set("store.db", c.Store.DB)
	v.Set("log.level", c.Log.Level)
	v.Set("log.dir", c.Log.Dir)
	v.Set("log.format", c.Log.Format)
	v.Set("sweep.enabled", c.Sweep.Enabled)
	v.Set("sweep.schedule", c.Sweep.Schedule)
	v.Set("sweep.max_claim_age", c.Sweep.MaxClaimAge.String())
	v.Set("worker.id", c.Worker.ID)
	v.Set("worker.types", c.Worker.Types)
	v.Set("worker.poll_interval", c.Worker.PollInterval.String())
	v.Set("worker.command", c.Worker.Command)
	v.Set("board.refresh", c.Board.Refresh.String())

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			return v.SafeWriteConfig()
		}
		return err
	}
	return nil
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return fmt.Sprintf("worker-%d", os.Getpid())
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
