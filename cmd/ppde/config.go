package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"ppde/internal/config"
	"ppde/internal/errors"
	"ppde/internal/paths"
)

var (
	configFormat string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ppde configuration",
	Long:  "View and manage ppde configuration stored in .ppde/config.json",
}

var configShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults and PPDE_* environment
overrides are applied.

Examples:
  ppde config show                  # JSON
  ppde config show --format toml    # TOML
  PPDE_GATE_OUTPUTCAP=5 ppde config show`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to .ppde/config.json",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "json", "Output format (json, toml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root, err := repoArg(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "toml":
		if err := toml.NewEncoder(out).Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format: %s", configFormat)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := repoArg(args)
	if err != nil {
		return err
	}
	path := paths.GetConfigPath(root)
	if _, err := os.Stat(path); err == nil && !configForce {
		return errors.NewPpdeError(errors.ConfigInvalid, "config already exists: "+path+" (use --force to overwrite)", nil, []errors.FixAction{})
	}
	if err := config.DefaultConfig().Save(root); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
