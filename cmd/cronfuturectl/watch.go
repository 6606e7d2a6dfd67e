package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <name>",
	Short: "print a job's snapshot every time run writes a new one",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg, err := LoadConfig(rootFlags.configPath)
	if err != nil {
		return err
	}
	dir := snapshotDir(cfg)
	target := filepath.Join(dir, name+".snapshot")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if _, err := os.Stat(target); err == nil {
		printSnapshot(cmd, dir, name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			printSnapshot(cmd, dir, name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		}
	}
}

func printSnapshot(cmd *cobra.Command, dir, name string) {
	snap, err := readSnapshot(dir, name)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "read snapshot for %s: %v\n", name, err)
		return
	}
	out, err := snap.YAML()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "render snapshot for %s: %v\n", name, err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "---")
	fmt.Fprint(cmd.OutOrStdout(), string(out))
}
