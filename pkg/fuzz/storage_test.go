package fuzz

import (
	"testing"

	"github.com/Overclock-Validator/solfuzz/pkg/lightclient"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountsStorage_Keypairs(t *testing.T) {
	client := lightclient.New(lightclient.DefaultConfig())
	storage := NewAccountsStorage[solana.PrivateKey](2)

	first := GetOrCreateKeypair(storage, 0, client, 500)
	assert.Equal(t, first, GetOrCreateKeypair(storage, 0, client, 900))
	// ids fold into the configured space
	assert.Equal(t, first, GetOrCreateKeypair(storage, 4, client, 900))

	second := GetOrCreateDataKeypair(storage, 3, client, 700, 16)
	assert.NotEqual(t, first.PublicKey(), second.PublicKey())
	assert.Equal(t, []AccountId{0, 1}, storage.Ids())
	assert.Equal(t, 2, storage.Len())

	acct, err := client.GetAccount(first.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(500), acct.Lamports)

	acct, err = client.GetAccount(second.PublicKey())
	require.NoError(t, err)
	assert.Len(t, acct.Data, 16)
}

func TestAccountsStorage_PdaAndToken(t *testing.T) {
	client := lightclient.New(lightclient.DefaultConfig())
	programId := solana.TokenProgramID

	pdas := NewAccountsStorage[lightclient.PdaStore](0)
	p1, err := GetOrCreatePda(pdas, 9, client, [][]byte{[]byte("seed")}, programId)
	require.NoError(t, err)
	p2, err := GetOrCreatePdaData(pdas, 9, client, [][]byte{[]byte("other")}, programId, 8)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	_, ok := pdas.Get(9)
	assert.True(t, ok)
	_, ok = pdas.Get(1)
	assert.False(t, ok)

	authority := client.NewKeypair().PublicKey()
	mints := NewAccountsStorage[MintStore](4)
	tokens := NewAccountsStorage[TokenStore](4)

	mint := GetOrCreateMint(mints, 1, client, 6, authority, nil)
	tok := GetOrCreateToken(tokens, 1, client, mint, authority, 10, nil, nil, 0, nil)
	assert.Equal(t, tok, GetOrCreateToken(tokens, 5, client, mint, authority, 99, nil, nil, 0, nil))

	acct, err := client.GetAccount(tok)
	require.NoError(t, err)
	assert.Equal(t, solana.TokenProgramID, acct.Owner)
}
