/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/dataversion/pkg/config"
)

// newConfigCommand represents the config command
func newConfigCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the dataversion configuration file",
		// Config commands never open the account store.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}

	cmd.AddCommand(newConfigInitCommand(opts))
	cmd.AddCommand(newConfigShowCommand(opts))
	return cmd
}

func newConfigInitCommand(opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a configuration file populated with defaults.

Examples:
  dataversion config init
  dataversion config init --config ./dataversion.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ConfigExists(opts.ConfigPath) && !force {
				return fmt.Errorf("configuration already exists at %s, use --force to overwrite", opts.ConfigPath)
			}

			cfg := config.DefaultConfig()
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = opts.DataDir
			}
			if cmd.Flags().Changed("program-id") {
				cfg.ProgramID = opts.ProgramID
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, opts.ConfigPath); err != nil {
				return err
			}
			cmd.Printf("Configuration written to %s\n", opts.ConfigPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func newConfigShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			cmd.Print(string(out))
			return nil
		},
	}
}
