package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/onde/factory/internal/queue"
	"github.com/onde/factory/internal/store/filestore"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream queue changes to the terminal",
	Long: `Watch the queue and print a line for every task that changes.

On the file backend this reacts to filesystem events, so changes made by
other processes show up immediately. The sqlite backend has no change
notification; watch polls it at the board refresh interval instead.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	q, st, cfg, err := openQueue()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx := cmd.Context()
	seen := snapshot(q.List(ctx, queue.Filter{}))
	fmt.Printf("watching %d task(s); ctrl-c to stop\n", len(seen))

	diff := func() {
		if fs, ok := st.(*filestore.Store); ok {
			fs.Reload()
		}
		current := q.List(ctx, queue.Filter{})
		printChanges(seen, current)
		seen = snapshot(current)
	}

	if fs, ok := st.(*filestore.Store); ok {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		// Watch the directory, not the file: the store saves by writing a
		// temp file and renaming over the target, which replaces the inode
		// a file-level watch is bound to.
		if err := watcher.Add(filepath.Dir(fs.Path())); err != nil {
			return fmt.Errorf("watch %s: %w", fs.Path(), err)
		}
		target := filepath.Base(fs.Path())

		for {
			select {
			case <-sigCh:
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					diff()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			}
		}
	}

	// sqlite backend: poll.
	ticker := time.NewTicker(cfg.Board.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			return nil
		case <-ticker.C:
			diff()
		}
	}
}

type taskState struct {
	status   queue.Status
	assigned string
	updated  time.Time
}

func snapshot(tasks []queue.Task) map[string]taskState {
	m := make(map[string]taskState, len(tasks))
	for _, t := range tasks {
		m[t.ID] = taskState{status: t.Status, assigned: t.AssignedTo, updated: t.UpdatedAt}
	}
	return m
}

func printChanges(before map[string]taskState, current []queue.Task) {
	now := time.Now().Format("15:04:05")
	currentIDs := make(map[string]bool, len(current))
	for _, t := range current {
		currentIDs[t.ID] = true
		prev, existed := before[t.ID]
		switch {
		case !existed:
			fmt.Printf("%s  + %s %s (%s, %s)\n", now, t.ID, t.Title, t.Type, t.Priority)
		case prev.status != t.Status:
			detail := ""
			if t.AssignedTo != "" {
				detail = " @" + t.AssignedTo
			}
			fmt.Printf("%s    %s %s -> %s%s\n", now, t.ID, prev.status, t.Status, detail)
		case !prev.updated.Equal(t.UpdatedAt):
			fmt.Printf("%s    %s updated\n", now, t.ID)
		}
	}
	for id := range before {
		if !currentIDs[id] {
			fmt.Printf("%s  - %s deleted\n", now, id)
		}
	}
}
