package demo

import (
	"github.com/Overclock-Validator/solfuzz/pkg/fuzz"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/Overclock-Validator/solfuzz/pkg/snapshot"
	"github.com/gagliardetto/solana-go"
)

const (
	maxAuthorities     = 3
	authorityLamports  = 100 * solana.LAMPORTS_PER_SOL
	maxFuzzedLamports  = 10_000_000
	InvariantDeposits  = "vault-deposits"
	InvariantLamports  = "vault-lamports"
	InvariantLifecycle = "vault-lifecycle"
)

// FuzzAccounts is the per-iteration account storage of the vault target.
type FuzzAccounts struct {
	Authorities *fuzz.AccountsStorage[solana.PrivateKey]
}

func NewFuzzAccounts() *FuzzAccounts {
	return &FuzzAccounts{Authorities: fuzz.NewAccountsStorage[solana.PrivateKey](maxAuthorities)}
}

func (a *FuzzAccounts) authority(client fuzz.Client, id fuzz.AccountId) solana.PublicKey {
	return fuzz.GetOrCreateKeypair(a.Authorities, id, client, authorityLamports).PublicKey()
}

// Target is the vault fuzz target. Every sequence starts by initializing the
// vault of the first authority.
func Target() *fuzz.Target[FuzzAccounts] {
	return &fuzz.Target[FuzzAccounts]{
		Name:        "vault",
		ProgramId:   ProgramID,
		Program:     sealevel.ProgramFn(Process),
		NewAccounts: NewFuzzAccounts,
		Instructions: []fuzz.Factory[FuzzAccounts]{
			newInitializeIx,
			newDepositIx,
			newWithdrawIx,
			newCloseIx,
		},
		PreIxs: func(*fuzz.Unstructured) ([]fuzz.Instruction[FuzzAccounts], error) {
			return []fuzz.Instruction[FuzzAccounts]{&InitializeIx{}}, nil
		},
	}
}

func lamportDelta(before, after snapshot.Entry) int64 {
	var pre, post uint64
	if before.Account != nil {
		pre = before.Account.Lamports
	}
	if after.Account != nil {
		post = after.Account.Lamports
	}
	return int64(post - pre)
}

type InitializeIx struct {
	Authority fuzz.AccountId
}

func newInitializeIx(u *fuzz.Unstructured) (fuzz.Instruction[FuzzAccounts], error) {
	ix := new(InitializeIx)
	if err := u.Fill(ix); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *InitializeIx) Name() string { return "Initialize" }

func (ix *InitializeIx) Accounts(client fuzz.Client, accts *FuzzAccounts) ([]sealevel.AccountMeta, error) {
	return NewInitializeInstruction(accts.authority(client, ix.Authority)).Accounts, nil
}

func (ix *InitializeIx) Data(fuzz.Client, *FuzzAccounts) ([]byte, error) {
	return []byte{InstrTypeInitialize}, nil
}

func (ix *InitializeIx) Decoders() []snapshot.Decoder {
	return []snapshot.Decoder{nil, VaultDecoder(), nil}
}

func (ix *InitializeIx) Check(pair snapshot.Pair, _ []byte) error {
	before, after := pair.Before[1], pair.After[1]
	if before.State != snapshot.StateAbsent {
		return snapshot.Violation(InvariantLifecycle, "vault %s initialized twice", before.Key)
	}
	vault, ok := snapshot.Typed[*Vault](after)
	if !ok {
		return snapshot.Violation(InvariantLifecycle, "vault %s is not a vault after initialize: %v", after.Key, after.Err)
	}
	if vault.Authority != pair.Metas[0].Pubkey || vault.Deposits != 0 {
		return snapshot.Violation(InvariantLifecycle, "fresh vault %s has authority %s and %d deposits", after.Key, vault.Authority, vault.Deposits)
	}
	return nil
}

type DepositIx struct {
	Depositor fuzz.AccountId
	Authority fuzz.AccountId
	Amount    uint64
}

func newDepositIx(u *fuzz.Unstructured) (fuzz.Instruction[FuzzAccounts], error) {
	ix := &DepositIx{Depositor: u.Uint8(), Authority: u.Uint8()}
	amount, err := u.IntInRange(0, maxFuzzedLamports)
	if err != nil {
		return nil, err
	}
	ix.Amount = amount
	return ix, nil
}

func (ix *DepositIx) Name() string { return "Deposit" }

func (ix *DepositIx) Accounts(client fuzz.Client, accts *FuzzAccounts) ([]sealevel.AccountMeta, error) {
	depositor := accts.authority(client, ix.Depositor)
	vault, _ := VaultAddress(accts.authority(client, ix.Authority))
	return NewDepositInstruction(depositor, vault, ix.Amount).Accounts, nil
}

func (ix *DepositIx) Data(fuzz.Client, *FuzzAccounts) ([]byte, error) {
	return newVaultInstruction(InstrTypeDeposit, &ix.Amount, nil).Data, nil
}

func (ix *DepositIx) Decoders() []snapshot.Decoder {
	return []snapshot.Decoder{nil, VaultDecoder(), nil}
}

func (ix *DepositIx) Check(pair snapshot.Pair, _ []byte) error {
	before, after := pair.Before[1], pair.After[1]
	pre, ok := snapshot.Typed[*Vault](before)
	if !ok {
		return snapshot.Violation(InvariantLifecycle, "deposit into uninitialized vault %s succeeded", before.Key)
	}
	post, ok := snapshot.Typed[*Vault](after)
	if !ok {
		return snapshot.Violation(InvariantLifecycle, "vault %s lost its state on deposit", after.Key)
	}
	if post.Deposits != pre.Deposits+ix.Amount {
		return snapshot.Violation(InvariantDeposits, "deposit of %d moved deposits %d -> %d", ix.Amount, pre.Deposits, post.Deposits)
	}
	if delta := lamportDelta(before, after); delta != int64(ix.Amount) {
		return snapshot.Violation(InvariantLamports, "deposit of %d changed vault lamports by %d", ix.Amount, delta)
	}
	return nil
}

type WithdrawIx struct {
	Authority fuzz.AccountId
	Amount    uint64
}

func newWithdrawIx(u *fuzz.Unstructured) (fuzz.Instruction[FuzzAccounts], error) {
	ix := &WithdrawIx{Authority: u.Uint8()}
	amount, err := u.IntInRange(0, maxFuzzedLamports)
	if err != nil {
		return nil, err
	}
	ix.Amount = amount
	return ix, nil
}

func (ix *WithdrawIx) Name() string { return "Withdraw" }

func (ix *WithdrawIx) Accounts(client fuzz.Client, accts *FuzzAccounts) ([]sealevel.AccountMeta, error) {
	return NewWithdrawInstruction(accts.authority(client, ix.Authority), ix.Amount).Accounts, nil
}

func (ix *WithdrawIx) Data(fuzz.Client, *FuzzAccounts) ([]byte, error) {
	return newVaultInstruction(InstrTypeWithdraw, &ix.Amount, nil).Data, nil
}

func (ix *WithdrawIx) Decoders() []snapshot.Decoder {
	return []snapshot.Decoder{nil, VaultDecoder()}
}

func (ix *WithdrawIx) Check(pair snapshot.Pair, _ []byte) error {
	before, after := pair.Before[1], pair.After[1]
	pre, ok := snapshot.Typed[*Vault](before)
	if !ok {
		return snapshot.Violation(InvariantLifecycle, "withdraw from uninitialized vault %s succeeded", before.Key)
	}
	if ix.Amount > pre.Deposits {
		return snapshot.Violation(InvariantDeposits, "withdrew %d from vault %s holding %d in deposits", ix.Amount, before.Key, pre.Deposits)
	}
	post, ok := snapshot.Typed[*Vault](after)
	if !ok {
		return snapshot.Violation(InvariantLifecycle, "vault %s lost its state on withdraw", after.Key)
	}
	if post.Deposits != pre.Deposits-ix.Amount {
		return snapshot.Violation(InvariantDeposits, "withdraw of %d moved deposits %d -> %d", ix.Amount, pre.Deposits, post.Deposits)
	}
	if delta := lamportDelta(pair.Before[0], pair.After[0]); delta != int64(ix.Amount) {
		return snapshot.Violation(InvariantLamports, "withdraw of %d credited the authority %d", ix.Amount, delta)
	}
	return nil
}

// HandleTxError flags withdrawals the vault should have honored.
func (ix *WithdrawIx) HandleTxError(err error, pair snapshot.Pair, _ []byte) error {
	pre := pair.Before
	vault, ok := snapshot.Typed[*Vault](pre[1])
	if !ok || vault.Authority != pre[0].Key {
		return nil
	}
	if ix.Amount <= vault.Deposits && pre[1].Account.Lamports >= ix.Amount {
		return snapshot.Violation(InvariantDeposits, "withdraw of %d within %d deposits was rejected: %s", ix.Amount, vault.Deposits, err)
	}
	return nil
}

type CloseIx struct {
	Authority fuzz.AccountId
}

func newCloseIx(u *fuzz.Unstructured) (fuzz.Instruction[FuzzAccounts], error) {
	ix := new(CloseIx)
	if err := u.Fill(ix); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *CloseIx) Name() string { return "Close" }

func (ix *CloseIx) Accounts(client fuzz.Client, accts *FuzzAccounts) ([]sealevel.AccountMeta, error) {
	return NewCloseInstruction(accts.authority(client, ix.Authority)).Accounts, nil
}

func (ix *CloseIx) Data(fuzz.Client, *FuzzAccounts) ([]byte, error) {
	return []byte{InstrTypeClose}, nil
}

func (ix *CloseIx) Decoders() []snapshot.Decoder {
	return []snapshot.Decoder{nil, VaultDecoder()}
}

func (ix *CloseIx) Check(pair snapshot.Pair, _ []byte) error {
	before, after := pair.Before[1], pair.After[1]
	if after.State != snapshot.StateAbsent {
		return snapshot.Violation(InvariantLifecycle, "vault %s still exists after close", after.Key)
	}
	if delta := lamportDelta(pair.Before[0], pair.After[0]); delta != int64(before.Account.Lamports) {
		return snapshot.Violation(InvariantLamports, "close of vault holding %d credited the authority %d", before.Account.Lamports, delta)
	}
	return nil
}

var (
	_ fuzz.Instruction[FuzzAccounts] = (*InitializeIx)(nil)
	_ fuzz.Instruction[FuzzAccounts] = (*DepositIx)(nil)
	_ fuzz.Instruction[FuzzAccounts] = (*WithdrawIx)(nil)
	_ fuzz.TxErrorHandler            = (*WithdrawIx)(nil)
	_ fuzz.Instruction[FuzzAccounts] = (*CloseIx)(nil)
)
