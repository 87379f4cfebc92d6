package fuzz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifact_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crashes")
	input := []byte("some fuzzer input that crashed")

	path, err := WriteArtifact(dir, input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ArtifactName(input)), path)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, input, onDisk)

	got, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, input, got)
}

func TestArtifact_RawInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	got, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	bad := filepath.Join(t.TempDir(), "bad"+artifactExt)
	require.NoError(t, os.WriteFile(bad, []byte{1, 2, 3}, 0o644))
	_, err = ReadArtifact(bad)
	assert.Error(t, err)
}
