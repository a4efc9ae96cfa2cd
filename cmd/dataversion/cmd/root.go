/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/ssargent/dataversion/pkg/config"
	"github.com/ssargent/dataversion/pkg/di"
	"github.com/ssargent/dataversion/pkg/host"
)

type (
	configKey    struct{}
	containerKey struct{}
)

// hostRunE is a command body that needs an open host.
type hostRunE func(cmd *cobra.Command, args []string, h *host.Host) error

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	ProgramID  string
	Verbosity  int
}

// NewRootCommand creates the root command wired to container.
func NewRootCommand(container *di.Container) *cobra.Command {
	opts := &RootOptions{}

	rootCmd := &cobra.Command{
		Use:   "dataversion",
		Short: "dataversion - versioned account records",
		Long: `dataversion stores versioned, fixed-size account records and upgrades
legacy layouts to the current schema the first time they are written.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.Logging.Verbosity); err != nil {
				return err
			}
			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			cmd.SetContext(context.WithValue(ctx, containerKey{}, container))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.GetDefaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&opts.DataDir, "data-dir", "d", "", "Data directory for the account store")
	rootCmd.PersistentFlags().StringVar(&opts.ProgramID, "program-id", "", "Program identity accounts are owned by (base58)")
	rootCmd.PersistentFlags().IntVarP(&opts.Verbosity, "verbose", "v", -1, "Log verbosity level")

	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newInitializeCommand())
	rootCmd.AddCommand(newSetValueCommand())
	rootCmd.AddCommand(newSetTextCommand())
	rootCmd.AddCommand(newRawCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newConfigCommand(opts))

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute(container *di.Container) {
	if err := NewRootCommand(container).Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers the config file, environment and flags, in that order.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if config.ConfigExists(opts.ConfigPath) {
		loaded, err := config.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = opts.DataDir
	}
	if cmd.Flags().Changed("program-id") {
		cfg.ProgramID = opts.ProgramID
	}
	if opts.Verbosity >= 0 {
		cfg.Logging.Verbosity = opts.Verbosity
	}
	return cfg, nil
}

func setupLogging(verbosity int) error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if err := fs.Set("v", strconv.Itoa(verbosity)); err != nil {
		return fmt.Errorf("failed to set log verbosity: %w", err)
	}
	return nil
}

// withHost opens the host for the configured data directory, runs fn and
// closes the store again, whether fn fails or not.
func withHost(fn hostRunE) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
		if !ok {
			return fmt.Errorf("configuration not found in context")
		}
		container, ok := cmd.Context().Value(containerKey{}).(*di.Container)
		if !ok {
			return fmt.Errorf("dependency container not initialized")
		}

		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		h, closeHost, err := container.NewHost(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := closeHost(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close store: %w", cerr)
			}
		}()

		return fn(cmd, args, h)
	}
}

func slotSizeFrom(cmd *cobra.Command) int {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg.SlotSize
	}
	return config.DefaultSlotSize
}
