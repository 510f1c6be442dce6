package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// EnvRoot overrides the transcript root when set.
const EnvRoot = "CODEXLOG_ROOT"

// Root resolution sources, reported by RootInfo.
const (
	SourceEnv     = "env"
	SourceConfig  = "config"
	SourceDefault = "default"
)

type Config struct {
	Root   string `toml:"root"`
	DBPath string `toml:"db_path"`

	rootSource string
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Root:       filepath.Join(home, ".codex", "sessions"),
		DBPath:     filepath.Join(home, ".config", "codexlog", "index.db"),
		rootSource: SourceDefault,
	}

	cfgPath := filepath.Join(home, ".config", "codexlog", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		var file Config
		if _, err := toml.DecodeFile(cfgPath, &file); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
		if file.Root != "" {
			cfg.Root = file.Root
			cfg.rootSource = SourceConfig
		}
		if file.DBPath != "" {
			cfg.DBPath = file.DBPath
		}
	}

	if env := os.Getenv(EnvRoot); env != "" {
		cfg.Root = env
		cfg.rootSource = SourceEnv
	}

	// expand ~ in paths
	cfg.Root = expandHome(cfg.Root, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)

	return cfg, nil
}

// RootInfo reports where the transcript root currently resolves from.
func (c *Config) RootInfo() (path, source string) {
	return c.Root, c.rootSource
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
