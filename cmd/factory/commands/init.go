package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onde/factory/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file and create the task store",
	Long: `Initialize factory: write the config file with current defaults and
create an empty task store so other commands have something to open.

Use --backend to choose persistence: "file" keeps tasks in a single JSON
document (one machine, simple); "sqlite" uses a database and is safe for
several worker processes on the same host.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("backend", "", "Store backend: file or sqlite (default file)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	backend, _ := cmd.Flags().GetString("backend")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Store.Backend = backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	configPath := configFlag
	if configPath == "" {
		configPath = config.GlobalConfigPath()
	}
	if err := cfg.Write(configPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer func() { _ = st.Close() }()

	fmt.Printf("config written to %s\n", configPath)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		fmt.Printf("sqlite store ready at %s\n", cfg.Store.DB)
	default:
		fmt.Printf("file store ready at %s\n", cfg.Store.File)
	}
	return nil
}
