package fuzz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "solfuzz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
iterations: 42
workers: 3
seed: 9
disallow_reentrancy: true
allow_duplicate_txs: true
artifacts_dir: /tmp/crashes
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Iterations)
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.AllowDuplicateTxs)
	assert.Equal(t, "/tmp/crashes", cfg.ArtifactsDir)
	// unset keys keep their defaults
	assert.Equal(t, DefaultConfig().InputLen, cfg.InputLen)

	client := cfg.ClientConfig()
	assert.True(t, client.DeterministicKeys)
	assert.True(t, client.DisallowReentrancy)
	assert.Equal(t, uint64(9), client.Seed)
	assert.Equal(t, DefaultConfig().MaxStackDepth, client.MaxStackDepth)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "workers: 0\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "iterations: [1, 2]\n"))
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
