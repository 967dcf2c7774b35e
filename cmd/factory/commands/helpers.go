package commands

import (
	"fmt"
	"time"

	"github.com/onde/factory/internal/config"
	"github.com/onde/factory/internal/logging"
	"github.com/onde/factory/internal/queue"
	"github.com/onde/factory/internal/store/filestore"
	"github.com/onde/factory/internal/store/sqlstore"
)

// loadConfig loads the config file, honoring the global --config flag.
func loadConfig() (*config.Config, error) {
	if configFlag != "" {
		return config.LoadFile(configFlag)
	}
	return config.Load()
}

// openStore opens the persistence backend named in the config.
func openStore(cfg *config.Config) (queue.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return sqlstore.Open(cfg.Store.DB)
	default:
		return filestore.Open(cfg.Store.File)
	}
}

// openQueue loads config and builds a queue over the configured store.
// The caller must Close the returned store.
func openQueue() (*queue.Queue, queue.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return queue.New(st), st, cfg, nil
}

func initLogging(cfg *config.Config) error {
	return logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Path:   cfg.Log.Dir,
		Format: cfg.Log.Format,
	})
}

// parsePriority validates a --priority flag value, allowing empty.
func parsePriority(s string) (queue.Priority, error) {
	if s == "" {
		return "", nil
	}
	return queue.ParsePriority(s)
}

// parseType validates a --type flag value, allowing empty.
func parseType(s string) (queue.TaskType, error) {
	if s == "" {
		return "", nil
	}
	return queue.ParseType(s)
}

// formatAge renders durations the way humans read them in a table.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
