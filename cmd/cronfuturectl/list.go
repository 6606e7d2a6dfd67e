package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cronfuture/cronfuture/future"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list every job with a persisted snapshot",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(rootFlags.configPath)
	if err != nil {
		return err
	}
	dir := snapshotDir(cfg)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read snapshot dir %s: %w", dir, err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tDONE\tCANCELLED\tEXECUTIONS\tLAST ERROR")
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snapshot") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".snapshot")
		snap, err := readSnapshot(dir, name)
		if err != nil {
			fmt.Fprintf(w, "%s\t?\t?\t?\t%v\n", name, err)
			continue
		}
		lastErr := ""
		if _, err := snap.Last(); err != nil {
			lastErr = err.Error()
		}
		fmt.Fprintf(w, "%s\t%v\t%v\t%d\t%s\n",
			name, snap.IsDone(), snap.IsCancelled(), snap.Stats().ExecutionCount(), lastErr)
	}
	return w.Flush()
}

func readSnapshot(dir, name string) (future.Snapshot[string], error) {
	data, err := os.ReadFile(filepath.Join(dir, name+".snapshot"))
	if err != nil {
		return future.Snapshot[string]{}, err
	}
	return future.DeserializeSnapshot[string](data)
}
