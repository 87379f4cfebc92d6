package fuzz

import (
	"fmt"
	"os"
	"runtime"

	"github.com/Overclock-Validator/solfuzz/pkg/lightclient"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"gopkg.in/yaml.v3"
)

// Config is the fuzz run configuration, usually loaded from solfuzz.yaml.
type Config struct {
	Iterations uint64 `yaml:"iterations"`
	Workers    int    `yaml:"workers"`
	Seed       uint64 `yaml:"seed"`
	InputLen   int    `yaml:"input_len"`

	MaxStackDepth       uint64 `yaml:"max_stack_depth"`
	ComputeBudget       uint64 `yaml:"compute_budget"`
	DisallowReentrancy  bool   `yaml:"disallow_reentrancy"`
	EnforceAccountRules bool   `yaml:"enforce_account_rules"`
	CheckRentState      bool   `yaml:"check_rent_state"`
	AllowDuplicateTxs   bool   `yaml:"allow_duplicate_txs"`

	ArtifactsDir string `yaml:"artifacts_dir"`
}

func DefaultConfig() Config {
	return Config{
		Iterations:    10000,
		Workers:       runtime.NumCPU(),
		Seed:          1,
		InputLen:      512,
		MaxStackDepth: sealevel.DefaultMaxStackDepth,
		ArtifactsDir:  "artifacts",
	}
}

// LoadConfig reads path over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.InputLen <= 0 {
		return fmt.Errorf("input_len must be positive, got %d", c.InputLen)
	}
	if c.MaxStackDepth == 0 {
		return fmt.Errorf("max_stack_depth must be positive")
	}
	return nil
}

// ClientConfig derives the harness configuration. Keys are deterministic so
// that a saved input replays to the same addresses.
func (c Config) ClientConfig() lightclient.Config {
	return lightclient.Config{
		Seed:                c.Seed,
		DeterministicKeys:   true,
		ComputeBudget:       c.ComputeBudget,
		MaxStackDepth:       c.MaxStackDepth,
		DisallowReentrancy:  c.DisallowReentrancy,
		EnforceAccountRules: c.EnforceAccountRules,
		CheckRentState:      c.CheckRentState,
	}
}
