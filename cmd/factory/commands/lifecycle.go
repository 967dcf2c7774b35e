// lifecycle.go implements the per-task transition commands. They share a
// shape: load the queue, attempt one transition, report the outcome. A
// refused transition (wrong current status, unknown id) exits nonzero with
// a message naming the task's actual state.
package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onde/factory/internal/queue"
)

var claimCmd = &cobra.Command{
	Use:   "claim <task-id>",
	Short: "Claim a pending task for a worker",
	Long: `Claim a pending task. Exactly one claimant wins; everyone else is told
the task is taken. The claim does not expire on its own — release it, finish
it, or let the daemon's sweeper recover it.`,
	Args: cobra.ExactArgs(1),
	RunE: runClaim,
}

var startCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Mark a claimed task as started",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var completeCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Mark a task done, optionally attaching a result",
	Long: `Mark a claimed or started task done. --result attaches a JSON object
to the task; done is terminal, so get the payload right the first time.`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

var failCmd = &cobra.Command{
	Use:   "fail <task-id>",
	Short: "Mark a task failed",
	Long: `Mark a task failed with a reason. Failed is terminal for workers, but
"factory retry" can put the task back in the queue.`,
	Args: cobra.ExactArgs(1),
	RunE: runFail,
}

var blockCmd = &cobra.Command{
	Use:   "block <task-id>",
	Short: "Block a task pending outside intervention",
	Long: `Block a task that cannot proceed (missing asset, waiting on a decision).
Blocked tasks are skipped by workers until someone runs "factory unblock".`,
	Args: cobra.ExactArgs(1),
	RunE: runBlock,
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <task-id>",
	Short: "Return a blocked task to the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnblock,
}

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Put a failed or blocked task back in the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

var releaseCmd = &cobra.Command{
	Use:   "release <task-id>",
	Short: "Give a claimed task back without counting a retry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelease,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Remove a task entirely",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	claimCmd.Flags().StringP("worker", "w", "", "Worker ID taking the task")
	_ = claimCmd.MarkFlagRequired("worker")
	completeCmd.Flags().String("result", "", "Result payload as a JSON object")
	failCmd.Flags().String("reason", "", "Why the task failed")
	_ = failCmd.MarkFlagRequired("reason")
	blockCmd.Flags().String("reason", "", "Why the task is blocked")
	_ = blockCmd.MarkFlagRequired("reason")

	rootCmd.AddCommand(claimCmd, startCmd, completeCmd, failCmd,
		blockCmd, unblockCmd, retryCmd, releaseCmd, deleteCmd)
}

func runClaim(cmd *cobra.Command, args []string) error {
	worker, _ := cmd.Flags().GetString("worker")

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if !q.Claim(ctx, args[0], worker) {
		return explainRefusal(q, ctx, args[0], "claim", "pending")
	}
	fmt.Printf("claimed %s for %s\n", args[0], worker)
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if !q.Start(ctx, args[0]) {
		return explainRefusal(q, ctx, args[0], "start", "claimed")
	}
	fmt.Printf("started %s\n", args[0])
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	resultFlag, _ := cmd.Flags().GetString("result")

	var result map[string]any
	if resultFlag != "" {
		if err := json.Unmarshal([]byte(resultFlag), &result); err != nil {
			return fmt.Errorf("--result must be a JSON object: %w", err)
		}
	}

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if !q.Complete(ctx, args[0], result) {
		return explainRefusal(q, ctx, args[0], "complete", "claimed or in_progress")
	}
	fmt.Printf("completed %s\n", args[0])
	return nil
}

func runFail(cmd *cobra.Command, args []string) error {
	reason, _ := cmd.Flags().GetString("reason")

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if !q.Fail(ctx, args[0], reason) {
		return explainRefusal(q, ctx, args[0], "fail", "pending, claimed or in_progress")
	}
	fmt.Printf("failed %s: %s\n", args[0], reason)
	return nil
}

func runBlock(cmd *cobra.Command, args []string) error {
	reason, _ := cmd.Flags().GetString("reason")

	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if q.Block(ctx, args[0], reason) == nil {
		return explainRefusal(q, ctx, args[0], "block", "any non-terminal status")
	}
	fmt.Printf("blocked %s: %s\n", args[0], reason)
	return nil
}

func runUnblock(cmd *cobra.Command, args []string) error {
	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if q.Unblock(ctx, args[0]) == nil {
		return explainRefusal(q, ctx, args[0], "unblock", "blocked")
	}
	fmt.Printf("unblocked %s\n", args[0])
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	t := q.Retry(ctx, args[0])
	if t == nil {
		return explainRefusal(q, ctx, args[0], "retry", "failed or blocked")
	}
	fmt.Printf("requeued %s (retry %d)\n", args[0], t.Retries)
	return nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if q.Release(ctx, args[0]) == nil {
		return explainRefusal(q, ctx, args[0], "release", "claimed or in_progress")
	}
	fmt.Printf("released %s\n", args[0])
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	q, st, _, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if !q.Delete(cmd.Context(), args[0]) {
		return fmt.Errorf("task %s not found", args[0])
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

// explainRefusal turns a refused transition into an actionable error: say
// what state the task is actually in, or that it does not exist.
func explainRefusal(q *queue.Queue, ctx context.Context, id, op, wanted string) error {
	t := q.Get(ctx, id)
	if t == nil {
		return fmt.Errorf("task %s not found", id)
	}
	return fmt.Errorf("cannot %s task %s: status is %s (wanted %s)", op, id, t.Status, wanted)
}
