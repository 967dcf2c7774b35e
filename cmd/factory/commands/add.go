package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onde/factory/internal/queue"
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task to the queue",
	Long: `Add a task. The title is the positional argument; everything else is flags.

Task types: ` + typeList() + `
Priorities: urgent, high, normal (default), low

Dependencies name task IDs that must be done before this task is offered
to workers. Use --json to print the created task for scripting.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringP("type", "t", "", "Task type (required)")
	addCmd.Flags().StringP("priority", "p", "", "Priority (default normal)")
	addCmd.Flags().StringP("desc", "d", "", "Longer description")
	addCmd.Flags().StringSlice("deps", nil, "Task IDs this task depends on")
	addCmd.Flags().Bool("json", false, "Output the created task as JSON")
	_ = addCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(addCmd)
}

func typeList() string {
	known := queue.KnownTypes()
	names := make([]string, len(known))
	for i, k := range known {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func runAdd(cmd *cobra.Command, args []string) error {
	typeFlag, _ := cmd.Flags().GetString("type")
	priorityFlag, _ := cmd.Flags().GetString("priority")
	desc, _ := cmd.Flags().GetString("desc")
	deps, _ := cmd.Flags().GetStringSlice("deps")
	asJSON, _ := cmd.Flags().GetBool("json")

	taskType, err := queue.ParseType(typeFlag)
	if err != nil {
		return err
	}
	priority, err := parsePriority(priorityFlag)
	if err != nil {
		return err
	}

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	task, err := q.Add(cmd.Context(), queue.AddRequest{
		Type:         taskType,
		Title:        strings.Join(args, " "),
		Description:  desc,
		Priority:     priority,
		Dependencies: deps,
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(task)
	}
	fmt.Printf("added %s (%s, %s)\n", task.ID, task.Type, task.Priority)
	return nil
}
