package pda

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProgramAddress_MatchesSdk(t *testing.T) {
	programId := solana.TokenProgramID
	seeds := [][]byte{[]byte("vault"), solana.SystemProgramID[:]}

	addr, bump, err := FindProgramAddress(seeds, programId)
	require.NoError(t, err)

	sdkAddr, sdkBump, err := solana.FindProgramAddress(seeds, programId)
	require.NoError(t, err)

	assert.Equal(t, sdkAddr, addr)
	assert.Equal(t, sdkBump, bump)
	assert.False(t, IsOnCurve(addr[:]))

	derived, err := CreateProgramAddress(append(seeds, []byte{bump}), programId)
	require.NoError(t, err)
	assert.Equal(t, addr, derived)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	tooLong := make([]byte, MaxSeedLen+1)
	_, err := CreateProgramAddress([][]byte{tooLong}, solana.SystemProgramID)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(tooMany, solana.SystemProgramID)
	assert.ErrorIs(t, err, ErrMaxSeedsExceeded)

	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), solana.SystemProgramID)
	assert.ErrorIs(t, err, ErrMaxSeedsExceeded)
}

func TestIsOnCurve(t *testing.T) {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	pubkey := privKey.PublicKey()
	assert.True(t, IsOnCurve(pubkey[:]))
}

func TestCreateWithSeed_MatchesSdk(t *testing.T) {
	base := solana.TokenProgramID
	owner := solana.SystemProgramID

	addr, err := CreateWithSeed(base, "escrow", owner)
	require.NoError(t, err)

	sdkAddr, err := solana.CreateWithSeed(base, "escrow", owner)
	require.NoError(t, err)
	assert.Equal(t, sdkAddr, addr)

	var illegal solana.PublicKey
	copy(illegal[32-len(PdaMarker):], PdaMarker)
	_, err = CreateWithSeed(base, "escrow", illegal)
	assert.ErrorIs(t, err, ErrIllegalOwner)
}
