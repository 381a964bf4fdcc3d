package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd(e *env) *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-plan whenever the metadata file changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			w := cmd.OutOrStdout()
			replan := func() {
				p, _, closer, err := e.plan(ctx)
				if err != nil {
					color.New(color.FgRed).Fprintln(w, "Error:", err)
					return
				}
				defer closer.Close()
				printPlan(w, p)
			}
			replan()
			return watch(ctx, e.cfg.Metadata, delay, func() {
				fmt.Fprintf(w, "\n%s changed\n", e.cfg.Metadata)
				replan()
			})
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 200*time.Millisecond, "quiet period before re-planning")
	return cmd
}

// watch calls onChange after writes to the file at path, once per burst of
// events separated by less than delay. It returns when ctx is done.
func watch(ctx context.Context, path string, delay time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// Editors replace files on save; the directory is watched instead.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	timer := time.NewTimer(delay)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == abs && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				timer.Reset(delay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		case <-timer.C:
			onChange()
		}
	}
}
