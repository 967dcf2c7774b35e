package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/onde/factory/internal/worker"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run a worker loop in this terminal",
	Long: `Poll the queue and run tasks until interrupted.

Each claimed task is handed to the command from --cmd (or worker.command
in the config). The command sees the task as FACTORY_TASK_* environment
variables; if it prints a JSON object on stdout, that becomes the task
result. A nonzero exit marks the task failed with stderr as the reason.

Use --type to only take tasks of one type, so a machine with the right
tooling handles illustration while another handles translation.`,
	RunE: runWork,
}

func init() {
	workCmd.Flags().StringP("type", "t", "", "Only take tasks of this type")
	workCmd.Flags().StringP("worker", "w", "", "Worker ID (default from config)")
	workCmd.Flags().String("cmd", "", "Command to run per task (default worker.command from config)")
	rootCmd.AddCommand(workCmd)
}

func runWork(cmd *cobra.Command, args []string) error {
	typeFlag, _ := cmd.Flags().GetString("type")
	workerFlag, _ := cmd.Flags().GetString("worker")
	cmdFlag, _ := cmd.Flags().GetString("cmd")

	taskType, err := parseType(typeFlag)
	if err != nil {
		return err
	}

	q, st, cfg, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	id := workerFlag
	if id == "" {
		id = cfg.Worker.ID
	}
	command := cmdFlag
	if command == "" {
		command = cfg.Worker.Command
	}
	if command == "" {
		return fmt.Errorf("no command to run tasks with (set --cmd or worker.command)")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Printf("worker %s polling every %s (ctrl-c to stop)\n", id, cfg.Worker.PollInterval)
	w := worker.New(id, taskType, cfg.Worker.PollInterval, q, &worker.ExecRunner{Command: command})
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
