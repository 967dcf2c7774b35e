package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onde/factory/internal/queue"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue summary",
	Long: `Show totals by status and type, how many tasks are ready for workers,
how many are waiting on dependencies, and what finished today.`,
	RunE: runStatus,
}

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Show active claims, oldest first",
	Long: `Show which workers currently hold tasks and for how long. A claim that
has been held suspiciously long usually means a dead worker; the daemon's
sweeper will recover it, or release it by hand.`,
	RunE: runWorkers,
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output as JSON")
	workersCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(workersCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	s := q.Summarize(cmd.Context())

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Printf("Tasks:      %d total, %d ready, %d waiting on dependencies\n",
		s.Total, s.Ready, s.Waiting)
	fmt.Printf("Done today: %d\n", s.DoneToday)

	if len(s.ByStatus) > 0 {
		fmt.Println("\nBy status:")
		for _, status := range []queue.Status{
			queue.StatusPending, queue.StatusClaimed, queue.StatusInProgress,
			queue.StatusBlocked, queue.StatusDone, queue.StatusFailed,
		} {
			if n := s.ByStatus[status]; n > 0 {
				fmt.Printf("  %-12s %d\n", status, n)
			}
		}
	}
	if len(s.ByType) > 0 {
		fmt.Println("\nBy type:")
		for _, t := range queue.KnownTypes() {
			if n := s.ByType[t]; n > 0 {
				fmt.Printf("  %-16s %d\n", t, n)
			}
		}
	}
	return nil
}

func runWorkers(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	claims := q.ActiveClaims(cmd.Context())

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(claims)
	}

	if len(claims) == 0 {
		fmt.Println("No active claims.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WORKER\tTASK\tSTATUS\tHELD\tTITLE")
	for _, c := range claims {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.WorkerID, c.Task.ID, c.Task.Status, formatAge(c.Age), c.Task.Title)
	}
	return w.Flush()
}
