package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// fileConfig is the optional on-disk configuration. Every field has a flag
// counterpart; flags win.
type fileConfig struct {
	Mode       string `yaml:"mode"`
	Model      string `yaml:"model"`
	ChatModel  string `yaml:"chat_model"`
	Voice      string `yaml:"voice"`
	ArchiveDSN string `yaml:"archive_dsn"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".voxform", "config.yaml")
}

// loadConfig reads the YAML config file. A missing file is not an error.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}
