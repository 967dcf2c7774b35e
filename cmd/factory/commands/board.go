package commands

import (
	"github.com/spf13/cobra"

	"github.com/onde/factory/internal/board"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the kanban board",
	Long: `Open a terminal kanban board with lanes for pending, in-progress,
blocked and finished tasks. The board polls the store, so it tracks
workers running in other processes. Quit with q.`,
	RunE: runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	q, st, cfg, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	return board.New(q, cfg.Board.Refresh).Run()
}
