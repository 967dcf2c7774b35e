package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next task a worker would receive",
	Long: `Show the highest-priority pending task whose dependencies are all done.

With --claim, atomically claim it for --worker in the same invocation; if
another worker grabs it first, the command reports that and exits nonzero
so scripts can retry.`,
	RunE: runNext,
}

func init() {
	nextCmd.Flags().StringP("type", "t", "", "Only consider tasks of this type")
	nextCmd.Flags().Bool("claim", false, "Claim the task immediately")
	nextCmd.Flags().StringP("worker", "w", "", "Worker ID for --claim")
	nextCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(nextCmd)
}

func runNext(cmd *cobra.Command, args []string) error {
	typeFlag, _ := cmd.Flags().GetString("type")
	claim, _ := cmd.Flags().GetBool("claim")
	worker, _ := cmd.Flags().GetString("worker")
	asJSON, _ := cmd.Flags().GetBool("json")

	if claim && worker == "" {
		return fmt.Errorf("--claim requires --worker")
	}
	taskType, err := parseType(typeFlag)
	if err != nil {
		return err
	}

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	task := q.NextAvailable(ctx, taskType)
	if task == nil {
		fmt.Println("No tasks available.")
		return nil
	}

	if claim {
		if !q.Claim(ctx, task.ID, worker) {
			return fmt.Errorf("task %s was claimed by another worker", task.ID)
		}
		task = q.Get(ctx, task.ID)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(task)
	}
	if claim {
		fmt.Printf("claimed %s for %s\n", task.ID, worker)
	}
	printTask(task)
	return nil
}
