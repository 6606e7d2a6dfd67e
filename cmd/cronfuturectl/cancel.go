package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <name>",
	Short: "mark a job disabled in the config file",
	Long: "cancel edits the config file on disk to mark the named job disabled. " +
		"It does not stop a running job itself; a live run process picks the " +
		"change up through its own config file watch and cancels the handle.",
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	name := args[0]
	path := rootFlags.configPath

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	found := false
	for i := range cfg.Jobs {
		if cfg.Jobs[i].Name == name {
			cfg.Jobs[i].Disabled = true
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no job named %q in %s", name, path)
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("render config %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "job %q marked disabled in %s\n", name, path)
	return nil
}
