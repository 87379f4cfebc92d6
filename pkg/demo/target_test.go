package demo

import (
	"context"
	"errors"
	"testing"

	"github.com/Overclock-Validator/solfuzz/pkg/fuzz"
	"github.com/Overclock-Validator/solfuzz/pkg/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) fuzz.Config {
	cfg := fuzz.DefaultConfig()
	cfg.Iterations = 5000
	cfg.Workers = 2
	cfg.Seed = 7
	cfg.InputLen = 128
	cfg.ArtifactsDir = t.TempDir()
	return cfg
}

func TestTarget_RunnerFindsDepositUnderflow(t *testing.T) {
	reg := prometheus.NewRegistry()
	runner := fuzz.NewRunner(testConfig(t), Target(), reg)

	finding, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, finding)

	var fuzzErr *fuzz.FuzzingError
	require.True(t, errors.As(finding.Err, &fuzzErr))
	assert.Equal(t, "Withdraw", fuzzErr.Origin.Instruction)

	var checkErr *snapshot.CheckError
	require.True(t, errors.As(finding.Err, &checkErr))
	assert.Equal(t, InvariantDeposits, checkErr.Invariant)

	assert.NotEmpty(t, finding.Sequence)
	assert.FileExists(t, finding.Artifact)
	count, err := testutil.GatherAndCount(reg, "solfuzz_findings_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	input, err := fuzz.ReadArtifact(finding.Artifact)
	require.NoError(t, err)
	assert.Equal(t, finding.Input, input)

	replayed, err := runner.Replay(input)
	require.NoError(t, err)
	require.NotNil(t, replayed)
	assert.Equal(t, finding.Sequence, replayed.Sequence)
}

func TestTarget_HonestSequence(t *testing.T) {
	cfg := testConfig(t)
	runner := fuzz.NewRunner(cfg, Target(), nil)

	// three instructions are asked for but the input only covers a Deposit
	// of 1 and a Withdraw of 1, both by the first authority
	input := []byte{
		2,
		1, 0, 0, 1, 0, 0,
		2, 0, 1, 0, 0,
	}
	finding, err := runner.Replay(input)
	require.NoError(t, err)
	assert.Nil(t, finding)
}

func FuzzVault(f *testing.F) {
	cfg := fuzz.DefaultConfig()
	cfg.ArtifactsDir = ""
	runner := fuzz.NewRunner(cfg, Target(), nil)

	f.Add([]byte{0})
	f.Add([]byte{3, 1, 0, 0, 0x10, 0x27, 0, 2, 0, 0x20, 0x4e, 0})
	f.Fuzz(func(t *testing.T, input []byte) {
		finding, err := runner.Replay(input)
		if err != nil || finding == nil {
			return
		}
		// the deposit underflow is the only acceptable finding
		var checkErr *snapshot.CheckError
		require.True(t, errors.As(finding.Err, &checkErr), "unexpected finding: %s", finding.Err)
		assert.Equal(t, InvariantDeposits, checkErr.Invariant)
	})
}
