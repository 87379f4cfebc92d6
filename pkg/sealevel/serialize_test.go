package sealevel

import (
	"testing"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeParameters_RoundTrip(t *testing.T) {
	programId := newTestKey(t)
	records := []SerializedAccount{
		{Pubkey: newTestKey(t), IsSigner: true, IsWritable: true, Account: &accounts.Account{Lamports: 1, Owner: solana.SystemProgramID, RentEpoch: 3}},
		{Pubkey: newTestKey(t), IsWritable: true, Account: &accounts.Account{Lamports: 2, Data: []byte{1, 2, 3}, Owner: programId, RentEpoch: 4}},
		{Pubkey: newTestKey(t), Account: &accounts.Account{Lamports: 3, Data: make([]byte, 8), Owner: programId, Executable: true}},
		{Pubkey: newTestKey(t), IsSigner: true, Account: &accounts.Account{Lamports: 4, Data: []byte("thirteen byte"), Owner: solana.TokenProgramID, RentEpoch: 99}},
	}
	instrData := []byte{9, 8, 7, 6, 5}

	params := SerializeParameters(records, instrData, programId)

	expectedLen := uint64(8)
	for _, rec := range records {
		expectedLen += fullRecordSize(uint64(len(rec.Account.Data)))
	}
	expectedLen += 8 + uint64(len(instrData)) + solana.PublicKeyLength
	assert.Equal(t, expectedLen, uint64(len(params.Bytes())))

	infos := params.Deserialize()
	require.Len(t, infos, len(records))

	for i, rec := range records {
		info := infos[i]
		assert.Equal(t, rec.Pubkey, info.Key())
		assert.Equal(t, rec.Account.Owner, info.Owner())
		assert.Equal(t, rec.IsSigner, info.IsSigner())
		assert.Equal(t, rec.IsWritable, info.IsWritable())
		assert.Equal(t, rec.Account.Executable, info.Executable())
		assert.Equal(t, rec.Account.Lamports, info.Lamports())
		assert.Equal(t, rec.Account.RentEpoch, info.RentEpoch())
		assert.Equal(t, uint64(len(rec.Account.Data)), info.OriginalDataLen())
		assert.Equal(t, len(rec.Account.Data), len(info.Data()))
		assert.Equal(t, string(rec.Account.Data), string(info.Data()))
	}

	assert.Equal(t, instrData, params.InstructionData())
	assert.Equal(t, programId, params.ProgramId())

	// views are built once per packing pass
	assert.Same(t, infos[1], params.Deserialize()[1])
}

func TestDeserialize_DuplicatesAlias(t *testing.T) {
	a, b := newTestKey(t), newTestKey(t)
	records := []SerializedAccount{
		{Pubkey: a, IsWritable: true, Account: &accounts.Account{Lamports: 10, Data: []byte{1, 2}, Owner: solana.SystemProgramID}},
		{Pubkey: b, Account: &accounts.Account{Lamports: 20, Owner: solana.SystemProgramID}},
		{IsDuplicate: true, IndexOfAcct: 0},
	}

	infos := SerializeParameters(records, nil, newTestKey(t)).Deserialize()
	require.Len(t, infos, 3)
	assert.Same(t, infos[0], infos[2])

	infos[2].SetLamports(77)
	infos[2].Data()[0] = 0xaa
	assert.Equal(t, uint64(77), infos[0].Lamports())
	assert.Equal(t, byte(0xaa), infos[0].Data()[0])
	assert.Equal(t, uint64(20), infos[1].Lamports())
}

func TestSerializeParameters_ForwardDuplicatePanics(t *testing.T) {
	records := []SerializedAccount{
		{IsDuplicate: true, IndexOfAcct: 1},
		{Pubkey: newTestKey(t), Account: accounts.NewAccount(1, 0, solana.SystemProgramID)},
	}
	assert.Panics(t, func() {
		SerializeParameters(records, nil, newTestKey(t))
	})
}

func TestDedupeMetas_FlagMerge(t *testing.T) {
	a, b := newTestKey(t), newTestKey(t)
	metas := []AccountMeta{
		{Pubkey: a, IsSigner: false, IsWritable: true},
		{Pubkey: b},
		{Pubkey: a, IsSigner: true, IsWritable: false},
	}

	dedup, positions := dedupeMetas(metas)
	require.Len(t, dedup, 2)
	assert.Equal(t, []int{0, 1, 0}, positions)
	assert.True(t, dedup[0].IsSigner)
	assert.True(t, dedup[0].IsWritable)
	assert.Equal(t, uint64(0), dedup[0].IndexInCallee)

	env := newTestEnv()
	inv, err := env.execCtx.PrepareInstruction(Instruction{ProgramId: SystemProgramAddr, Accounts: metas}, env.store)
	require.NoError(t, err)
	require.Len(t, inv.Accounts, 3)
	assert.Same(t, inv.Accounts[0], inv.Accounts[2])
	assert.True(t, inv.Accounts[2].IsSigner())
	assert.True(t, inv.Accounts[2].IsWritable())
	assert.False(t, inv.Accounts[1].IsSigner())
}

func TestAccountInfo_Realloc(t *testing.T) {
	records := []SerializedAccount{
		{Pubkey: newTestKey(t), IsWritable: true, Account: &accounts.Account{Lamports: 5, Data: []byte{1, 2, 3}, RentEpoch: 42}},
	}
	info := SerializeParameters(records, nil, newTestKey(t)).Deserialize()[0]

	require.NoError(t, info.Realloc(1, false))
	assert.Equal(t, []byte{1}, info.Data())

	require.NoError(t, info.Realloc(3+MaxPermittedDataIncrease, true))
	assert.Equal(t, uint64(3+MaxPermittedDataIncrease), info.DataLen())
	assert.Equal(t, []byte{1, 0, 0}, info.Data()[:3])
	assert.Equal(t, uint64(42), info.RentEpoch())

	err := info.Realloc(4+MaxPermittedDataIncrease, true)
	assert.ErrorIs(t, err, InstrErrInvalidRealloc)
	assert.Equal(t, uint64(3+MaxPermittedDataIncrease), info.DataLen())

	data := info.Data()
	assert.Equal(t, len(data), cap(data))
}

func TestAccountInfo_CheckedLamports(t *testing.T) {
	records := []SerializedAccount{
		{Pubkey: newTestKey(t), IsWritable: true, Account: &accounts.Account{Lamports: ^uint64(0)}},
	}
	info := SerializeParameters(records, nil, newTestKey(t)).Deserialize()[0]

	assert.ErrorIs(t, info.CheckedAddLamports(1), InstrErrArithmeticOverflow)
	assert.Equal(t, ^uint64(0), info.Lamports())

	info.SetLamports(1)
	assert.ErrorIs(t, info.CheckedSubLamports(2), InstrErrArithmeticOverflow)
	assert.NoError(t, info.CheckedSubLamports(1))
	assert.Equal(t, uint64(0), info.Lamports())
}

func TestAccountInfo_IsClosed(t *testing.T) {
	records := []SerializedAccount{
		{Pubkey: newTestKey(t), IsWritable: true, Account: &accounts.Account{Lamports: 5, Data: []byte{1}, Owner: solana.TokenProgramID}},
	}
	info := SerializeParameters(records, nil, newTestKey(t)).Deserialize()[0]
	assert.False(t, info.IsClosed())

	info.SetLamports(0)
	require.NoError(t, info.Realloc(0, false))
	assert.False(t, info.IsClosed())

	info.Assign(solana.SystemProgramID)
	assert.True(t, info.IsClosed())
	assert.True(t, info.Account().IsClosed())
}
