package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvRoot, "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := setHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".codex", "sessions"), cfg.Root)
	assert.Equal(t, filepath.Join(home, ".config", "codexlog", "index.db"), cfg.DBPath)

	root, source := cfg.RootInfo()
	assert.Equal(t, cfg.Root, root)
	assert.Equal(t, SourceDefault, source)
}

func TestLoadConfigFile(t *testing.T) {
	home := setHome(t)
	dir := filepath.Join(home, ".config", "codexlog")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(
		"root = \"~/transcripts\"\ndb_path = \"/var/lib/codexlog/index.db\"\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "transcripts"), cfg.Root)
	assert.Equal(t, "/var/lib/codexlog/index.db", cfg.DBPath)

	_, source := cfg.RootInfo()
	assert.Equal(t, SourceConfig, source)
}

func TestEnvOverridesConfigFile(t *testing.T) {
	home := setHome(t)
	dir := filepath.Join(home, ".config", "codexlog")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("root = \"/from/file\"\n"), 0o644))
	t.Setenv(EnvRoot, "/from/env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Root)

	_, source := cfg.RootInfo()
	assert.Equal(t, SourceEnv, source)
}

func TestLoadRejectsBadToml(t *testing.T) {
	home := setHome(t)
	dir := filepath.Join(home, ".config", "codexlog")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("root = [not toml"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}
