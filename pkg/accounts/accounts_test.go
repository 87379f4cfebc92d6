package accounts

import (
	"bytes"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) solana.PublicKey {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return privKey.PublicKey()
}

func TestMemAccounts_GetUnknownAccount(t *testing.T) {
	accts := NewMemAccounts()

	acct, err := accts.GetAccount(newKey(t))
	assert.Nil(t, acct)
	assert.True(t, errors.Is(err, ErrAccountNotFound))
	assert.False(t, errors.Is(err, ErrMalformedAccount))
}

func TestMemAccounts_SetGetRemove(t *testing.T) {
	accts := NewMemAccounts()
	key := newKey(t)

	orig := &Account{Lamports: 42, Data: []byte{1, 2, 3}, Owner: solana.SystemProgramID, RentEpoch: 7}
	require.NoError(t, accts.SetAccount(key, orig))

	// stored copy must not alias the caller's record
	orig.Data[0] = 0xff
	orig.Lamports = 0

	got, err := accts.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.Lamports)
	assert.Equal(t, []byte{1, 2, 3}, got.Data)

	got.Data[1] = 0xee
	again, err := accts.GetAccount(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, again.Data)

	require.NoError(t, accts.RemoveAccount(key))
	_, err = accts.GetAccount(key)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.ErrorIs(t, accts.RemoveAccount(key), ErrAccountNotFound)
}

func TestMemAccounts_MalformedRecord(t *testing.T) {
	accts := NewMemAccounts()
	key := newKey(t)

	require.NoError(t, accts.SetAccount(key, NewAccount(1, MaxDataLen+1, solana.SystemProgramID)))
	assert.Equal(t, 1, accts.Len())

	acct, err := accts.GetAccount(key)
	assert.Nil(t, acct)
	assert.ErrorIs(t, err, ErrMalformedAccount)
	assert.False(t, errors.Is(err, ErrAccountNotFound))

	require.NoError(t, accts.SetAccount(key, NewAccount(1, MaxDataLen, solana.SystemProgramID)))
	_, err = accts.GetAccount(key)
	assert.NoError(t, err)
}

func TestMemAccounts_KeysAreOrdered(t *testing.T) {
	accts := NewMemAccounts()
	for i := 0; i < 16; i++ {
		require.NoError(t, accts.SetAccount(newKey(t), NewAccount(uint64(i), 0, solana.SystemProgramID)))
	}

	keys := accts.Keys()
	require.Len(t, keys, 16)
	assert.Equal(t, 16, accts.Len())
	for i := 1; i < len(keys); i++ {
		assert.True(t, bytes.Compare(keys[i-1][:], keys[i][:]) < 0)
	}
}

func TestAccount_IsClosed(t *testing.T) {
	acct := NewAccount(0, 0, solana.SystemProgramID)
	assert.True(t, acct.IsClosed())

	acct.Lamports = 1
	assert.False(t, acct.IsClosed())

	acct.Lamports = 0
	acct.Data = []byte{0}
	assert.False(t, acct.IsClosed())

	acct.Data = nil
	acct.Owner = solana.TokenProgramID
	assert.False(t, acct.IsClosed())
}

func TestAccount_Codec(t *testing.T) {
	acct := Account{Lamports: 1234, Data: []byte("hello"), Owner: solana.TokenProgramID, Executable: true, RentEpoch: 99}

	buf := new(bytes.Buffer)
	require.NoError(t, acct.MarshalWithEncoder(bin.NewBinEncoder(buf)))

	var decoded Account
	require.NoError(t, decoded.UnmarshalWithDecoder(bin.NewBinDecoder(buf.Bytes())))
	assert.Equal(t, acct, decoded)

	// truncated data length must not be trusted
	raw := buf.Bytes()[:20]
	assert.Error(t, decoded.UnmarshalWithDecoder(bin.NewBinDecoder(raw)))
}

func TestStateHash_Deterministic(t *testing.T) {
	a := NewMemAccounts()
	b := NewMemAccounts()

	k1, k2 := newKey(t), newKey(t)
	acct1 := &Account{Lamports: 10, Owner: solana.SystemProgramID}
	acct2 := &Account{Lamports: 20, Data: []byte{9}, Owner: solana.TokenProgramID}

	require.NoError(t, a.SetAccount(k1, acct1))
	require.NoError(t, a.SetAccount(k2, acct2))
	require.NoError(t, b.SetAccount(k2, acct2))
	require.NoError(t, b.SetAccount(k1, acct1))
	assert.Equal(t, StateHash(a), StateHash(b))

	acct2.Lamports++
	require.NoError(t, b.SetAccount(k2, acct2))
	assert.NotEqual(t, StateHash(a), StateHash(b))
}

func TestAccount_Resize(t *testing.T) {
	acct := &Account{Data: []byte{1, 2, 3}}
	acct.Resize(5)
	assert.Equal(t, []byte{1, 2, 3, 0, 0}, acct.Data)
	acct.Resize(1)
	assert.Equal(t, []byte{1}, acct.Data)
}
