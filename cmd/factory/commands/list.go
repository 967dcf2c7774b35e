package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/onde/factory/internal/queue"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks in priority order (urgent first, oldest first within a priority).

Filter with --status, --type and --priority; combine them freely.
--ready shows only pending tasks whose dependencies are all done.
--waiting shows pending tasks still gated on unfinished dependencies.
Use --json for machine-readable output.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringSliceP("status", "s", nil, "Filter by status (pending, claimed, in_progress, done, failed, blocked)")
	listCmd.Flags().StringP("type", "t", "", "Filter by task type")
	listCmd.Flags().StringP("priority", "p", "", "Filter by priority")
	listCmd.Flags().IntP("limit", "n", 0, "Limit output to N tasks")
	listCmd.Flags().Bool("ready", false, "Only pending tasks with all dependencies done")
	listCmd.Flags().Bool("waiting", false, "Only pending tasks gated on dependencies")
	listCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	statusFlags, _ := cmd.Flags().GetStringSlice("status")
	typeFlag, _ := cmd.Flags().GetString("type")
	priorityFlag, _ := cmd.Flags().GetString("priority")
	limit, _ := cmd.Flags().GetInt("limit")
	readyOnly, _ := cmd.Flags().GetBool("ready")
	waitingOnly, _ := cmd.Flags().GetBool("waiting")
	asJSON, _ := cmd.Flags().GetBool("json")

	if readyOnly && waitingOnly {
		return fmt.Errorf("--ready and --waiting are mutually exclusive")
	}

	taskType, err := parseType(typeFlag)
	if err != nil {
		return err
	}
	priority, err := parsePriority(priorityFlag)
	if err != nil {
		return err
	}
	var statuses []queue.Status
	for _, s := range statusFlags {
		st := queue.Status(strings.ToLower(s))
		if !st.Valid() {
			return fmt.Errorf("unknown status %q", s)
		}
		statuses = append(statuses, st)
	}

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	var tasks []queue.Task
	switch {
	case readyOnly:
		tasks = q.Ready(ctx, taskType)
	case waitingOnly:
		tasks = q.Waiting(ctx)
	default:
		tasks = q.List(ctx, queue.Filter{
			Statuses: statuses,
			Type:     taskType,
			Priority: priority,
			Limit:    limit,
		})
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks match.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tPRIORITY\tSTATUS\tAGE\tASSIGNED\tTITLE")
	now := time.Now()
	for _, t := range tasks {
		assigned := t.AssignedTo
		if assigned == "" {
			assigned = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Type, t.Priority, t.Status, formatAge(now.Sub(t.CreatedAt)), assigned, t.Title)
	}
	return w.Flush()
}
