package fuzz

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

const artifactExt = ".zst"

// ArtifactName names a crash input by its content hash.
func ArtifactName(input []byte) string {
	return fmt.Sprintf("crash-%016x%s", xxhash.Sum64(input), artifactExt)
}

// WriteArtifact stores input zstd-compressed under dir and returns its path.
func WriteArtifact(dir string, input []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", err
	}
	defer enc.Close()

	path := filepath.Join(dir, ArtifactName(input))
	if err = os.WriteFile(path, enc.EncodeAll(input, nil), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadArtifact loads a crash input. Files without the zstd extension are
// taken as raw input.
func ReadArtifact(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, artifactExt) {
		return raw, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	input, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return input, nil
}
