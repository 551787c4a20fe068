package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configName = ".dpsctl.yaml"

// fileConfig is the optional per-user configuration, for those tired of
// specifying the comms interface every time.
type fileConfig struct {
	// Device is the default tty or IP address
	Device string `yaml:"device"`
}

func loadConfig() (*fileConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(home, configName))
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configName, err)
	}
	return &cfg, nil
}
