package token

import (
	"testing"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenEnv struct {
	execCtx *sealevel.ExecutionCtx
	store   *accounts.MemAccounts
}

func newTokenEnv() *tokenEnv {
	programs := sealevel.NewPrograms()
	programs.RegisterBuiltin(ProgramID, sealevel.ProgramFn(Process))
	return &tokenEnv{execCtx: sealevel.NewExecutionCtx(programs, 0), store: accounts.NewMemAccounts()}
}

func (env *tokenEnv) process(ix sealevel.Instruction) error {
	inv, err := env.execCtx.PrepareInstruction(ix, env.store)
	if err != nil {
		return err
	}
	if err = env.execCtx.ProcessInstruction(inv); err != nil {
		return err
	}
	return sealevel.Commit(env.store, inv.Accounts)
}

func (env *tokenEnv) newAccount(t *testing.T, lamports uint64, space uint64, owner solana.PublicKey) solana.PublicKey {
	key := newKey(t)
	require.NoError(t, env.store.SetAccount(key, accounts.NewAccount(lamports, space, owner)))
	return key
}

func (env *tokenEnv) tokenAccount(t *testing.T, key solana.PublicKey) *Account {
	acct, err := env.store.GetAccount(key)
	require.NoError(t, err)
	tokenAcct, err := UnpackAccount(acct.Data)
	require.NoError(t, err)
	return tokenAcct
}

func (env *tokenEnv) mint(t *testing.T, key solana.PublicKey) *Mint {
	acct, err := env.store.GetAccount(key)
	require.NoError(t, err)
	mint, err := UnpackMint(acct.Data)
	require.NoError(t, err)
	return mint
}

func newKey(t *testing.T) solana.PublicKey {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return privKey.PublicKey()
}

func TestState_PackUnpack(t *testing.T) {
	authority := newKey(t)
	mint := Mint{MintAuthority: &authority, Supply: 77, Decimals: 6, IsInitialized: true}
	packed := mint.Pack()
	require.Len(t, packed, MintLen)

	decoded, err := UnpackMint(packed)
	require.NoError(t, err)
	assert.Equal(t, mint, *decoded)

	reserve := uint64(2039280)
	acct := Account{Mint: NativeMint, Owner: authority, Amount: 5, State: AccountStateInitialized, IsNative: &reserve}
	packed = acct.Pack()
	require.Len(t, packed, AccountLen)
	assert.Equal(t, byte(5), packed[64])

	decodedAcct, err := UnpackAccount(packed)
	require.NoError(t, err)
	assert.Equal(t, acct, *decodedAcct)

	_, err = UnpackAccount(packed[:100])
	assert.Error(t, err)
}

// mirrors the usual token lifecycle: create a mint and two holders, mint to
// one of them, then move tokens across.
func TestTokenProgram_MintAndTransfer(t *testing.T) {
	env := newTokenEnv()
	rent := env.execCtx.Rent()

	mintAuthority := newKey(t)
	freezeAuthority := newKey(t)
	owner := newKey(t)
	recipientOwner := newKey(t)

	mintKey := env.newAccount(t, rent.MinimumBalance(MintLen), MintLen, ProgramID)
	require.NoError(t, env.process(NewInitializeMintInstruction(mintKey, 6, mintAuthority, &freezeAuthority)))

	mint := env.mint(t, mintKey)
	assert.True(t, mint.IsInitialized)
	assert.Equal(t, mintAuthority, *mint.MintAuthority)
	assert.Equal(t, freezeAuthority, *mint.FreezeAuthority)

	src := env.newAccount(t, rent.MinimumBalance(AccountLen), AccountLen, ProgramID)
	dst := env.newAccount(t, rent.MinimumBalance(AccountLen), AccountLen, ProgramID)
	require.NoError(t, env.process(NewInitializeAccountInstruction(src, mintKey, owner)))
	require.NoError(t, env.process(NewInitializeAccountInstruction(dst, mintKey, recipientOwner)))

	require.NoError(t, env.process(NewMintToInstruction(mintKey, src, mintAuthority, 61616161)))
	assert.Equal(t, uint64(61616161), env.tokenAccount(t, src).Amount)
	assert.Equal(t, uint64(61616161), env.mint(t, mintKey).Supply)

	require.NoError(t, env.process(NewTransferInstruction(src, dst, owner, 1337)))
	assert.Equal(t, uint64(61616161-1337), env.tokenAccount(t, src).Amount)
	assert.Equal(t, uint64(1337), env.tokenAccount(t, dst).Amount)

	acct, err := env.store.GetAccount(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x39, 0x05, 0, 0, 0, 0, 0, 0}, acct.Data[64:72])
}

func TestTokenProgram_Failures(t *testing.T) {
	env := newTokenEnv()
	rent := env.execCtx.Rent()

	mintAuthority := newKey(t)
	owner := newKey(t)

	mintKey := env.newAccount(t, rent.MinimumBalance(MintLen), MintLen, ProgramID)
	require.NoError(t, env.process(NewInitializeMintInstruction(mintKey, 0, mintAuthority, nil)))
	err := env.process(NewInitializeMintInstruction(mintKey, 0, mintAuthority, nil))
	assert.ErrorIs(t, err, ErrAlreadyInUse)

	poorMint := env.newAccount(t, 1, MintLen, ProgramID)
	err = env.process(NewInitializeMintInstruction(poorMint, 0, mintAuthority, nil))
	assert.ErrorIs(t, err, ErrNotRentExempt)

	holder := env.newAccount(t, rent.MinimumBalance(AccountLen), AccountLen, ProgramID)
	require.NoError(t, env.process(NewInitializeAccountInstruction(holder, mintKey, owner)))

	other := env.newAccount(t, rent.MinimumBalance(AccountLen), AccountLen, ProgramID)
	require.NoError(t, env.process(NewInitializeAccountInstruction(other, mintKey, owner)))

	// wrong mint authority
	err = env.process(NewMintToInstruction(mintKey, holder, owner, 10))
	assert.ErrorIs(t, err, ErrOwnerMismatch)

	require.NoError(t, env.process(NewMintToInstruction(mintKey, holder, mintAuthority, 10)))

	err = env.process(NewTransferInstruction(holder, other, owner, 11))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(10), env.tokenAccount(t, holder).Amount)

	err = env.process(NewMintToInstruction(mintKey, holder, mintAuthority, ^uint64(0)))
	assert.ErrorIs(t, err, ErrOverflow)

	err = env.process(NewCloseAccountInstruction(holder, owner, owner))
	assert.ErrorIs(t, err, ErrNonNativeHasBalance)

	var instrErr *sealevel.InstrError
	assert.ErrorAs(t, err, &instrErr)
	assert.Equal(t, ProgramID.String(), instrErr.ProgramId)
}

func TestTokenProgram_BurnAndClose(t *testing.T) {
	env := newTokenEnv()
	rent := env.execCtx.Rent()

	mintAuthority := newKey(t)
	owner := newKey(t)
	dest := newKey(t)

	mintKey := env.newAccount(t, rent.MinimumBalance(MintLen), MintLen, ProgramID)
	require.NoError(t, env.process(NewInitializeMintInstruction(mintKey, 9, mintAuthority, nil)))

	holderLamports := rent.MinimumBalance(AccountLen)
	holder := env.newAccount(t, holderLamports, AccountLen, ProgramID)
	require.NoError(t, env.process(NewInitializeAccountInstruction(holder, mintKey, owner)))
	require.NoError(t, env.process(NewMintToInstruction(mintKey, holder, mintAuthority, 500)))

	require.NoError(t, env.process(NewBurnInstruction(holder, mintKey, owner, 500)))
	assert.Equal(t, uint64(0), env.mint(t, mintKey).Supply)
	assert.Equal(t, uint64(0), env.tokenAccount(t, holder).Amount)

	require.NoError(t, env.process(NewCloseAccountInstruction(holder, dest, owner)))

	_, err := env.store.GetAccount(holder)
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)

	destAcct, err := env.store.GetAccount(dest)
	require.NoError(t, err)
	assert.Equal(t, holderLamports, destAcct.Lamports)
}

func TestTokenProgram_NativeAccount(t *testing.T) {
	env := newTokenEnv()
	rent := env.execCtx.Rent()
	reserve := rent.MinimumBalance(AccountLen)

	owner := newKey(t)
	wrapped := env.newAccount(t, reserve+1000, AccountLen, ProgramID)
	require.NoError(t, env.process(NewInitializeAccountInstruction(wrapped, NativeMint, owner)))

	acct := env.tokenAccount(t, wrapped)
	require.NotNil(t, acct.IsNative)
	assert.Equal(t, reserve, *acct.IsNative)
	assert.Equal(t, uint64(1000), acct.Amount)

	other := env.newAccount(t, reserve, AccountLen, ProgramID)
	require.NoError(t, env.process(NewInitializeAccountInstruction(other, NativeMint, owner)))
	require.NoError(t, env.process(NewTransferInstruction(wrapped, other, owner, 400)))

	otherAcct, err := env.store.GetAccount(other)
	require.NoError(t, err)
	assert.Equal(t, reserve+400, otherAcct.Lamports)
	assert.Equal(t, uint64(400), env.tokenAccount(t, other).Amount)
}
