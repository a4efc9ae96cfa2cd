/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/dataversion/pkg/account"
	"github.com/ssargent/dataversion/pkg/codec"
)

// DefaultProgramID is the identity the program was first deployed under.
const DefaultProgramID = "PWDnx8LkjJUn9bAVzG6Fp6BuvB41x7DkBZdo9YLMGcc"

// DefaultSlotSize is the size of newly allocated account slots.
const DefaultSlotSize = 1024

// Config represents the dataversion configuration
type Config struct {
	DataDir   string  `yaml:"data_dir" env:"DATA_DIR"`
	ProgramID string  `yaml:"program_id" env:"PROGRAM_ID"`
	SlotSize  int     `yaml:"slot_size" env:"SLOT_SIZE"`
	Sync      bool    `yaml:"sync" env:"SYNC"`
	Logging   Logging `yaml:"logging" envPrefix:"LOG_"`
}

// Logging contains logging configuration
type Logging struct {
	// Verbosity is the klog -v level.
	Verbosity int `yaml:"verbosity" env:"V"`
}

// envPrefix namespaces environment overrides, e.g. DATAVERSION_SLOT_SIZE.
const envPrefix = "DATAVERSION_"

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:   "./data",
		ProgramID: DefaultProgramID,
		SlotSize:  DefaultSlotSize,
		Logging: Logging{
			Verbosity: 0,
		},
	}
}

// LoadConfig loads configuration from the specified path. Values missing
// from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields from DATAVERSION_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks that the configuration can drive the program.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	if c.SlotSize < codec.RecordSize {
		return fmt.Errorf("slot_size %d is smaller than a record (%d bytes)", c.SlotSize, codec.RecordSize)
	}
	return nil
}

// Program parses the configured program identity.
func (c *Config) Program() (account.Address, error) {
	id, err := account.ParseAddress(c.ProgramID)
	if err != nil {
		return account.Address{}, fmt.Errorf("invalid program_id %q: %w", c.ProgramID, err)
	}
	return id, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./dataversion.yaml"
	}

	// For Linux/macOS, use ~/.config/dataversion/config.yaml
	return filepath.Join(homeDir, ".config", "dataversion", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
