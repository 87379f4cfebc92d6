package lightclient

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/rent"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/Overclock-Validator/solfuzz/pkg/token"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLightClient_Transfer(t *testing.T) {
	client := New(DefaultConfig())

	from := client.SetAccount(10).PublicKey()
	to := client.SetAccount(0).PublicKey()

	require.NoError(t, client.Process(sealevel.NewTransferInstruction(from, to, 4)))

	fromAcct, err := client.GetAccount(from)
	require.NoError(t, err)
	toAcct, err := client.GetAccount(to)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), fromAcct.Lamports)
	assert.Equal(t, uint64(4), toAcct.Lamports)
}

func TestLightClient_OverflowGuard(t *testing.T) {
	client := New(DefaultConfig())

	from := client.SetAccount(10).PublicKey()
	to := client.SetAccount(math.MaxUint64).PublicKey()
	before := client.StateHash()

	err := client.Process(sealevel.NewTransferInstruction(from, to, 1))
	require.Error(t, err)

	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, sealevel.SystemProgramAddr, clientErr.Program)
	assert.ErrorIs(t, err, sealevel.InstrErrArithmeticOverflow)
	assert.Equal(t, before, client.StateHash())
}

func TestLightClient_UnknownProgram(t *testing.T) {
	client := New(DefaultConfig())

	err := client.Process(sealevel.Instruction{ProgramId: solana.NewWallet().PublicKey()})
	assert.ErrorIs(t, err, sealevel.InstrErrUnsupportedProgramId)
}

func TestLightClient_BuiltinAccounts(t *testing.T) {
	client := New(DefaultConfig())

	for _, programId := range []solana.PublicKey{sealevel.SystemProgramAddr, token.ProgramID} {
		acct, err := client.GetAccount(programId)
		require.NoError(t, err)
		assert.True(t, acct.Executable)
	}

	clockAcct, err := client.GetAccount(sealevel.SysvarClockAddr)
	require.NoError(t, err)
	assert.Equal(t, sealevel.SysvarOwnerAddr, clockAcct.Owner)

	user := client.SetAccount(1).PublicKey()
	client.CleanCtx()

	_, err = client.GetAccount(user)
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
	_, err = client.GetAccount(token.ProgramID)
	assert.NoError(t, err)
}

func TestLightClient_DeterministicKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeterministicKeys = true
	cfg.Seed = 1234

	run := func() [32]byte {
		client := New(cfg)
		from := client.SetAccount(1000).PublicKey()
		to := client.SetAccount(0).PublicKey()
		require.NoError(t, client.Process(sealevel.NewTransferInstruction(from, to, 300)))
		mint := client.SetMintAccount(6, from, nil)
		client.SetTokenAccount(mint, to, 5, nil, nil, 0, nil)
		return client.StateHash()
	}

	assert.Equal(t, run(), run())

	first := New(cfg).NewKeypair().PublicKey()
	cfg.Seed = 4321
	assert.NotEqual(t, first, New(cfg).NewKeypair().PublicKey())
}

func TestLightClient_SeededTokenShapes(t *testing.T) {
	client := New(DefaultConfig())
	authority := client.NewKeypair().PublicKey()
	owner := client.NewKeypair().PublicKey()

	mint := client.SetMintAccount(9, authority, nil)
	holder := client.SetTokenAccount(mint, owner, 42, nil, nil, 0, nil)

	mintAcct, err := client.GetAccount(mint)
	require.NoError(t, err)
	assert.Equal(t, token.ProgramID, mintAcct.Owner)
	assert.Equal(t, uint64(math.MaxUint64), mintAcct.RentEpoch)

	state, err := token.UnpackMint(mintAcct.Data)
	require.NoError(t, err)
	assert.Equal(t, authority, *state.MintAuthority)
	assert.Equal(t, uint8(9), state.Decimals)

	dest := client.SetTokenAccount(mint, owner, 0, nil, nil, 0, nil)
	require.NoError(t, client.Process(token.NewTransferInstruction(holder, dest, owner, 40)))

	destAcct, err := client.GetAccount(dest)
	require.NoError(t, err)
	destState, err := token.UnpackAccount(destAcct.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), destState.Amount)
	assert.Contains(t, client.Logs(), "Instruction: Transfer")
}

func TestLightClient_GetAccountsAbsent(t *testing.T) {
	client := New(DefaultConfig())
	present := client.SetAccount(5).PublicKey()
	absent := client.NewKeypair().PublicKey()

	accts, err := client.GetAccounts([]sealevel.AccountMeta{
		sealevel.NewAccountMeta(present, false, false),
		sealevel.NewAccountMeta(absent, false, false),
	})
	require.NoError(t, err)
	require.Len(t, accts, 2)
	assert.Equal(t, uint64(5), accts[0].Lamports)
	assert.Nil(t, accts[1])
}

func TestLightClient_PdaAccounts(t *testing.T) {
	client := New(DefaultConfig())
	programId := client.NewKeypair().PublicKey()

	store, err := client.SetPdaDataAccount([][]byte{[]byte("vault")}, programId, 16)
	require.NoError(t, err)

	expected, _, err := solana.FindProgramAddress([][]byte{[]byte("vault")}, programId)
	require.NoError(t, err)
	assert.Equal(t, expected, store.Pubkey)
	assert.Equal(t, [][]byte{[]byte("vault")}, store.Seeds)

	acct, err := client.GetAccount(store.Pubkey)
	require.NoError(t, err)
	assert.Len(t, acct.Data, 16)

	tooMany := make([][]byte, 17)
	_, err = client.SetPdaAccount(tooMany, programId)
	assert.Error(t, err)
}

func TestLightClient_ClockAndLogs(t *testing.T) {
	var sink bytes.Buffer
	cfg := DefaultConfig()
	cfg.LogWriter = &sink
	client := New(cfg)

	programId := client.NewKeypair().PublicKey()
	var seenSlot uint64
	client.AddProgram(programId, sealevel.ProgramFn(func(execCtx *sealevel.ExecutionCtx, _ solana.PublicKey, _ []*sealevel.AccountInfo, _ []byte) error {
		seenSlot = execCtx.Clock().Slot
		execCtx.Logf("slot %d height %d", seenSlot, execCtx.StackHeight())
		return nil
	}))

	client.WarpToSlot(864001)
	assert.Equal(t, uint64(2), client.GetClock().Epoch)

	require.NoError(t, client.Process(sealevel.Instruction{ProgramId: programId}))
	assert.Equal(t, uint64(1), client.TraceLength())
	assert.Equal(t, uint64(864001), seenSlot)
	assert.Equal(t, []string{"slot 864001 height 1"}, client.Logs())
	assert.Equal(t, "slot 864001 height 1\n", sink.String())

	clockAcct, err := client.GetAccount(sealevel.SysvarClockAddr)
	require.NoError(t, err)
	clock := client.GetClock()
	assert.Equal(t, clock.MustMarshal(), clockAcct.Data)
}

func TestLightClient_RentStateCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckRentState = true
	client := New(cfg)
	r := client.GetRent()

	from := client.SetAccount(r.MinimumBalance(0) * 2).PublicKey()
	to := client.SetAccount(0).PublicKey()

	// leaves the receiver rent paying
	err := client.Process(sealevel.NewTransferInstruction(from, to, 1))
	assert.ErrorIs(t, err, rent.ErrInvalidRentPayingAccount)

	toAcct, err := client.GetAccount(to)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), toAcct.Lamports)

	require.NoError(t, client.Process(sealevel.NewTransferInstruction(from, to, r.MinimumBalance(0))))
}
