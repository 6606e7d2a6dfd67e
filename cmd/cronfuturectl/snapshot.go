package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <name>",
	Short: "print a job's persisted snapshot as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(rootFlags.configPath)
	if err != nil {
		return err
	}
	dir := snapshotDir(cfg)

	snap, err := readSnapshot(dir, args[0])
	if err != nil {
		return fmt.Errorf("read snapshot for %s: %w", args[0], err)
	}
	out, err := snap.YAML()
	if err != nil {
		return fmt.Errorf("render snapshot for %s: %w", args[0], err)
	}
	_, err = fmt.Fprint(os.Stdout, string(out))
	return err
}
