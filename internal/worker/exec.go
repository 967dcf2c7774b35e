// exec.go runs tasks by spawning an external command with the task
// described in its environment, so any script or agent binary can serve
// as a task handler without linking against this module.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/onde/factory/internal/queue"
)

// ExecRunner runs a shell command per task. The command receives the task
// as FACTORY_TASK_* environment variables plus the full record as JSON in
// FACTORY_TASK_JSON. If stdout parses as a JSON object it becomes the
// task result; otherwise stdout is wrapped under an "output" key.
type ExecRunner struct {
	Command string
}

// Run executes the configured command for one task.
func (r *ExecRunner) Run(ctx context.Context, t queue.Task) (map[string]any, error) {
	if r.Command == "" {
		return nil, fmt.Errorf("no worker command configured")
	}

	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", r.Command)
	cmd.Env = append(os.Environ(),
		"FACTORY_TASK_ID="+t.ID,
		"FACTORY_TASK_TYPE="+string(t.Type),
		"FACTORY_TASK_TITLE="+t.Title,
		"FACTORY_TASK_DESCRIPTION="+t.Description,
		"FACTORY_TASK_PRIORITY="+string(t.Priority),
		"FACTORY_TASK_JSON="+string(raw),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("command failed: %s", msg)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return nil, nil
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err == nil {
		return result, nil
	}
	return map[string]any{"output": out}, nil
}
