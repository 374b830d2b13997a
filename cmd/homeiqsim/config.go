package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/myorg/homeiqsim/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration lifecycle commands",
	Long:  "Generate, validate, and inspect homeiqsim configuration files.",
}

var configCfg struct {
	File string
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an example configuration file",
	Long: `Write a configuration file populated with default values to disk.

Examples:
  homeiqsim config init
  homeiqsim config init --config homes.yaml
`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file and validate it, reporting any error.

Examples:
  homeiqsim config validate --config homes.yaml
`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Load a configuration file (or the built-in defaults) and print the
effective configuration, after environment overrides, as YAML.

Examples:
  homeiqsim config show
  homeiqsim config show --config homes.yaml
`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configCmd.PersistentFlags().StringVar(&configCfg.File, "config", "", "configuration file path (required by validate; defaults to homeiqsim.yaml for init and to built-in defaults for show)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configCfg.File
	if path == "" {
		path = "homeiqsim.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}

	cfg := config.LoadConfigWithDefaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configCfg.File == "" {
		return fmt.Errorf("--config is required")
	}
	cfg, err := config.LoadConfig(configCfg.File)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s is invalid: %w", configCfg.File, err)
	}
	fmt.Printf("%s is valid (%d home(s) configured)\n", configCfg.File, len(cfg.Homes))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig(configCfg.File)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
