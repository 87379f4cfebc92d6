package sealevel

import (
	"testing"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	execCtx *ExecutionCtx
	store   *accounts.MemAccounts
}

func newTestEnv() *testEnv {
	return &testEnv{execCtx: NewExecutionCtx(NewPrograms(), 0), store: accounts.NewMemAccounts()}
}

func (env *testEnv) process(ix Instruction) error {
	inv, err := env.execCtx.PrepareInstruction(ix, env.store)
	if err != nil {
		return err
	}
	if err = env.execCtx.ProcessInstruction(inv); err != nil {
		return err
	}
	return Commit(env.store, inv.Accounts)
}

func (env *testEnv) setAccount(t *testing.T, lamports uint64, data []byte, owner solana.PublicKey) solana.PublicKey {
	key := newTestKey(t)
	env.put(t, key, &accounts.Account{Lamports: lamports, Data: data, Owner: owner})
	return key
}

func (env *testEnv) put(t *testing.T, key solana.PublicKey, acct *accounts.Account) {
	require.NoError(t, env.store.SetAccount(key, acct))
}

func (env *testEnv) get(t *testing.T, key solana.PublicKey) *accounts.Account {
	acct, err := env.store.GetAccount(key)
	require.NoError(t, err)
	return acct
}

func newTestKey(t *testing.T) solana.PublicKey {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return privKey.PublicKey()
}

func accountWithLamports(lamports uint64) *accounts.Account {
	return accounts.NewAccount(lamports, 0, SystemProgramAddr)
}
