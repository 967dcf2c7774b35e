package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/onde/factory/internal/queue"
	"github.com/onde/factory/internal/store/sqlstore"
)

var showCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task in full",
	Long: `Show every field of a task, including its result payload and, on the
sqlite backend, its recent activity history.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	task := q.Get(ctx, args[0])
	if task == nil {
		return fmt.Errorf("task %s not found", args[0])
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(task)
	}

	printTask(task)

	if ss, ok := st.(*sqlstore.Store); ok {
		entries, err := ss.Activity(ctx, task.ID, 20)
		if err == nil && len(entries) > 0 {
			fmt.Println("\nActivity (newest first):")
			for _, e := range entries {
				line := fmt.Sprintf("  %s  %s", e.At.Local().Format("2006-01-02 15:04:05"), e.Action)
				if e.Actor != "" {
					line += "  by " + e.Actor
				}
				if e.Detail != "" {
					line += "  (" + e.Detail + ")"
				}
				fmt.Println(line)
			}
		}
	}
	return nil
}

func printTask(t *queue.Task) {
	fmt.Printf("ID:          %s\n", t.ID)
	fmt.Printf("Title:       %s\n", t.Title)
	fmt.Printf("Type:        %s\n", t.Type)
	fmt.Printf("Priority:    %s\n", t.Priority)
	fmt.Printf("Status:      %s\n", t.Status)
	if t.Description != "" {
		fmt.Printf("Description: %s\n", t.Description)
	}
	if t.AssignedTo != "" {
		fmt.Printf("Assigned:    %s\n", t.AssignedTo)
	}
	if len(t.Dependencies) > 0 {
		fmt.Printf("Depends on:  %s\n", strings.Join(t.Dependencies, ", "))
	}
	if t.BlockedReason != "" {
		fmt.Printf("Blocked:     %s\n", t.BlockedReason)
	}
	if t.Error != "" {
		fmt.Printf("Error:       %s\n", t.Error)
	}
	if t.Retries > 0 {
		fmt.Printf("Retries:     %d\n", t.Retries)
	}
	fmt.Printf("Created:     %s\n", t.CreatedAt.Local().Format(time.RFC3339))
	printTimePtr("Claimed", t.ClaimedAt)
	printTimePtr("Started", t.StartedAt)
	printTimePtr("Completed", t.CompletedAt)
	if len(t.Result) > 0 {
		out, err := json.MarshalIndent(t.Result, "  ", "  ")
		if err == nil {
			fmt.Printf("Result:      %s\n", out)
		}
	}
}

func printTimePtr(label string, t *time.Time) {
	if t == nil {
		return
	}
	fmt.Printf("%-12s %s\n", label+":", t.Local().Format(time.RFC3339))
}
