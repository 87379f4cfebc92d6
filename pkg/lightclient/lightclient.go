// Package lightclient is the single-process harness a fuzzer talks to. It owns
// the account store, the program registry and the mocked sysvars, and runs
// one instruction at a time through the dispatcher.
package lightclient

import (
	"errors"
	"fmt"
	"io"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/pda"
	"github.com/Overclock-Validator/solfuzz/pkg/rent"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/Overclock-Validator/solfuzz/pkg/token"
	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"k8s.io/klog/v2"
)

const SlotsPerEpoch = 432000

type Config struct {
	// Seed makes generated keypairs reproducible when DeterministicKeys is set.
	Seed              uint64
	DeterministicKeys bool

	ComputeBudget       uint64
	MaxStackDepth       uint64
	DisallowReentrancy  bool
	EnforceAccountRules bool
	CheckRentState      bool

	// LogWriter, if set, receives every program log line.
	LogWriter io.Writer
}

func DefaultConfig() Config {
	return Config{MaxStackDepth: sealevel.DefaultMaxStackDepth}
}

// PdaStore is a seeded program-derived address.
type PdaStore struct {
	Pubkey solana.PublicKey
	Seeds  [][]byte
}

type LightClient struct {
	cfg      Config
	store    *accounts.MemAccounts
	programs *sealevel.Programs
	execCtx  *sealevel.ExecutionCtx
	logs     *programLog
	keys     keyGen

	traceLength uint64
}

type programLog struct {
	sealevel.LogRecorder
	w io.Writer
}

func (l *programLog) Log(s string) {
	l.LogRecorder.Log(s)
	if l.w != nil {
		_, _ = fmt.Fprintln(l.w, s)
	}
}

func New(cfg Config) *LightClient {
	programs := sealevel.NewPrograms()
	programs.RegisterBuiltin(token.ProgramID, sealevel.ProgramFn(token.Process))

	execCtx := sealevel.NewExecutionCtx(programs, cfg.ComputeBudget)
	if cfg.MaxStackDepth != 0 {
		execCtx.MaxStackDepth = cfg.MaxStackDepth
	}
	execCtx.DisallowReentrancy = cfg.DisallowReentrancy
	execCtx.EnforceAccountRules = cfg.EnforceAccountRules

	logs := &programLog{w: cfg.LogWriter}
	execCtx.Log = logs

	client := &LightClient{
		cfg:      cfg,
		programs: programs,
		execCtx:  execCtx,
		logs:     logs,
		keys:     keyGen{deterministic: cfg.DeterministicKeys, seed: cfg.Seed},
	}
	client.resetStore()
	return client
}

func (c *LightClient) resetStore() {
	c.store = accounts.NewMemAccounts()
	for _, programId := range c.programs.Ids() {
		c.storeProgramAccount(programId)
	}
	c.writeSysvars()
}

func (c *LightClient) storeProgramAccount(programId solana.PublicKey) {
	acct := &accounts.Account{Lamports: 1, Owner: sealevel.NativeLoaderAddr, Executable: true}
	if err := c.store.SetAccount(programId, acct); err != nil {
		panic(fmt.Sprintf("storing program account %s: %s", programId, err))
	}
}

func (c *LightClient) writeSysvars() {
	clock := c.execCtx.Sysvars.Clock
	r := c.execCtx.Sysvars.Rent
	_ = c.store.SetAccount(sealevel.SysvarClockAddr, &accounts.Account{Lamports: 1, Data: clock.MustMarshal(), Owner: sealevel.SysvarOwnerAddr})
	_ = c.store.SetAccount(sealevel.SysvarRentAddr, &accounts.Account{Lamports: 1, Data: r.MustMarshal(), Owner: sealevel.SysvarOwnerAddr})
}

// AddProgram registers program under programId and stores an executable
// account for it.
func (c *LightClient) AddProgram(programId solana.PublicKey, program sealevel.Program) {
	c.programs.Register(programId, program)
	c.storeProgramAccount(programId)
	klog.V(2).Infof("registered program %s", programId)
}

// CleanCtx drops every account except built-in program and sysvar accounts.
func (c *LightClient) CleanCtx() {
	c.resetStore()
	c.keys.reset()
	c.logs.Reset()
}

// Process is the single submission entry point: resolve, pack, execute and,
// on success, commit. State is untouched on failure.
func (c *LightClient) Process(ix sealevel.Instruction) error {
	c.logs.Reset()
	c.traceLength = 0
	klog.V(2).Infof("processing instruction for %s with %d accounts", ix.ProgramId, len(ix.Accounts))

	inv, err := c.execCtx.PrepareInstruction(ix, c.store)
	if err != nil {
		return &ClientError{Program: ix.ProgramId, Err: err}
	}

	var preRent []*rent.RentStateInfo
	r := c.execCtx.Rent()
	if c.cfg.CheckRentState {
		preRent = rent.NewRentStateInfos(&r, inv.Accounts)
	}

	err = c.execCtx.ProcessInstruction(inv)
	c.traceLength = c.execCtx.TransactionContext.InstructionTraceLength()
	if err != nil {
		klog.V(2).Infof("instruction for %s failed: %s", ix.ProgramId, err)
		return &ClientError{Program: ix.ProgramId, Err: err}
	}

	if c.cfg.CheckRentState {
		err = rent.VerifyRentStateChanges(preRent, rent.NewRentStateInfos(&r, inv.Accounts), inv.Accounts)
		if err != nil {
			return &ClientError{Program: ix.ProgramId, Err: err}
		}
	}

	err = sealevel.Commit(c.store, inv.Accounts)
	if err != nil {
		return &ClientError{Program: ix.ProgramId, Err: err}
	}
	return nil
}

// TraceLength is the number of program invocations, nested ones included,
// made by the last submitted instruction.
func (c *LightClient) TraceLength() uint64 {
	return c.traceLength
}

func (c *LightClient) GetAccount(key solana.PublicKey) (*accounts.Account, error) {
	return c.store.GetAccount(key)
}

// GetAccounts loads the accounts named by metas. Absent accounts come back
// as nil entries.
func (c *LightClient) GetAccounts(metas []sealevel.AccountMeta) ([]*accounts.Account, error) {
	out := make([]*accounts.Account, len(metas))
	for idx, meta := range metas {
		acct, err := c.store.GetAccount(meta.Pubkey)
		if errors.Is(err, accounts.ErrAccountNotFound) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("loading account %s: %w", meta.Pubkey, err)
		}
		out[idx] = acct
	}
	return out, nil
}

func (c *LightClient) SetAccountCustom(key solana.PublicKey, acct *accounts.Account) {
	if err := c.store.SetAccount(key, acct); err != nil {
		panic(fmt.Sprintf("seeding account %s: %s", key, err))
	}
}

// SetAccount creates a funded system account and returns its keypair.
func (c *LightClient) SetAccount(lamports uint64) solana.PrivateKey {
	return c.SetDataAccount(lamports, 0)
}

func (c *LightClient) SetDataAccount(lamports uint64, space uint64) solana.PrivateKey {
	keypair := c.keys.next()
	c.SetAccountCustom(keypair.PublicKey(), accounts.NewAccount(lamports, space, sealevel.SystemProgramAddr))
	return keypair
}

func (c *LightClient) NewKeypair() solana.PrivateKey {
	return c.keys.next()
}

func (c *LightClient) SetPdaAccount(seeds [][]byte, programId solana.PublicKey) (PdaStore, error) {
	return c.SetPdaDataAccount(seeds, programId, 0)
}

func (c *LightClient) SetPdaDataAccount(seeds [][]byte, programId solana.PublicKey, space uint64) (PdaStore, error) {
	key, _, err := pda.FindProgramAddress(seeds, programId)
	if err != nil {
		return PdaStore{}, err
	}
	c.SetAccountCustom(key, accounts.NewAccount(0, space, sealevel.SystemProgramAddr))

	stored := lo.Map(seeds, func(seed []byte, _ int) []byte {
		return append([]byte(nil), seed...)
	})
	return PdaStore{Pubkey: key, Seeds: stored}, nil
}

// SetTokenAccount stores an initialized, rent-exempt token account.
func (c *LightClient) SetTokenAccount(mint solana.PublicKey, owner solana.PublicKey, amount uint64, delegate *solana.PublicKey, isNative *uint64, delegatedAmount uint64, closeAuthority *solana.PublicKey) solana.PublicKey {
	key := c.keys.next().PublicKey()
	r := c.execCtx.Rent()

	state := token.Account{
		Mint:            mint,
		Owner:           owner,
		Amount:          amount,
		Delegate:        delegate,
		State:           token.AccountStateInitialized,
		IsNative:        isNative,
		DelegatedAmount: delegatedAmount,
		CloseAuthority:  closeAuthority,
	}
	acct := &accounts.Account{Lamports: r.MinimumBalance(token.AccountLen), Data: state.Pack(), Owner: token.ProgramID}
	rent.MaybeSetRentExemptRentEpochMax(&r, acct)
	c.SetAccountCustom(key, acct)
	return key
}

// SetMintAccount stores an initialized, rent-exempt mint.
func (c *LightClient) SetMintAccount(decimals uint8, authority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.PublicKey {
	key := c.keys.next().PublicKey()
	r := c.execCtx.Rent()

	state := token.Mint{MintAuthority: &authority, Decimals: decimals, IsInitialized: true, FreezeAuthority: freezeAuthority}
	acct := &accounts.Account{Lamports: r.MinimumBalance(token.MintLen), Data: state.Pack(), Owner: token.ProgramID}
	rent.MaybeSetRentExemptRentEpochMax(&r, acct)
	c.SetAccountCustom(key, acct)
	return key
}

func (c *LightClient) GetRent() sealevel.SysvarRent {
	return c.execCtx.Rent()
}

func (c *LightClient) GetClock() sealevel.SysvarClock {
	return c.execCtx.Clock()
}

func (c *LightClient) SetClock(clock sealevel.SysvarClock) {
	c.execCtx.Sysvars.Clock = clock
	c.writeSysvars()
}

func (c *LightClient) WarpToSlot(slot uint64) {
	clock := c.execCtx.Clock()
	clock.Slot = slot
	clock.Epoch = slot / SlotsPerEpoch
	clock.LeaderScheduleEpoch = clock.Epoch + 1
	c.SetClock(clock)
}

// StateHash digests the whole account store.
func (c *LightClient) StateHash() [32]byte {
	return accounts.StateHash(c.store)
}

// Logs returns the program log of the last processed instruction.
func (c *LightClient) Logs() []string {
	return append([]string(nil), c.logs.Logs...)
}

func (c *LightClient) Programs() *sealevel.Programs {
	return c.programs
}
