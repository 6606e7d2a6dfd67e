package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootFlags struct {
	configPath  string
	snapshotDir string
}

var rootCmd = &cobra.Command{
	Use:          "cronfuturectl",
	Short:        "cronfuturectl runs and inspects future-backed cron jobs",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "cronfuturectl.yaml", "path to the job config file")
	rootCmd.PersistentFlags().StringVar(&rootFlags.snapshotDir, "snapshot-dir", "", "override the config file's snapshot_dir")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cronfuturectl: %v\n", err)
		os.Exit(1)
	}
}

// snapshotDir resolves the directory snapshots are read from/written to,
// preferring the --snapshot-dir override over the loaded config's value.
func snapshotDir(cfg *Config) string {
	if rootFlags.snapshotDir != "" {
		return rootFlags.snapshotDir
	}
	return cfg.SnapshotDir
}
