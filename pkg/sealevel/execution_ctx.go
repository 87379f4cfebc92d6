package sealevel

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/cu"
	"github.com/Overclock-Validator/solfuzz/pkg/pda"
	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"k8s.io/klog/v2"
)

const DefaultMaxStackDepth = 5

type ExecutionCtx struct {
	Log                Logger
	Programs           *Programs
	TransactionContext *TransactionCtx
	ComputeMeter       cu.ComputeMeter
	Sysvars            SysvarCache

	MaxStackDepth       uint64
	DisallowReentrancy  bool
	EnforceAccountRules bool
}

func NewExecutionCtx(programs *Programs, computeBudget uint64) *ExecutionCtx {
	return &ExecutionCtx{
		Log:                new(LogRecorder),
		Programs:           programs,
		TransactionContext: NewTransactionCtx(),
		ComputeMeter:       cu.NewComputeMeter(computeBudget),
		Sysvars:            DefaultSysvarCache(),
		MaxStackDepth:      DefaultMaxStackDepth,
	}
}

// Invocation is a top-level instruction packed and ready to run.
type Invocation struct {
	Instruction Instruction
	Params      *Parameters
	Accounts    []*AccountInfo
}

func (execCtx *ExecutionCtx) Clock() SysvarClock {
	return execCtx.Sysvars.Clock
}

func (execCtx *ExecutionCtx) Rent() SysvarRent {
	return execCtx.Sysvars.Rent
}

func (execCtx *ExecutionCtx) StackHeight() uint64 {
	return execCtx.TransactionContext.InstructionCtxStackHeight()
}

func (execCtx *ExecutionCtx) Logf(format string, args ...any) {
	execCtx.Log.Log(fmt.Sprintf(format, args...))
}

func (execCtx *ExecutionCtx) Consume(units uint64) error {
	if err := execCtx.ComputeMeter.Consume(units); err != nil {
		return fmt.Errorf("%w: %d units consumed", InstrErrComputationalBudgetExceeded, execCtx.ComputeMeter.Used())
	}
	return nil
}

// PrepareInstruction loads the instruction's accounts from accts and packs
// them. Accounts missing from the store are packed as empty system-owned
// accounts.
func (execCtx *ExecutionCtx) PrepareInstruction(ix Instruction, accts accounts.Accounts) (*Invocation, error) {
	if len(ix.Accounts) > MaxInstructionAccounts {
		return nil, fmt.Errorf("%w: %d accounts", InstrErrMaxAccountsExceeded, len(ix.Accounts))
	}

	dedup, positions := dedupeMetas(ix.Accounts)

	serialized := make([]SerializedAccount, len(ix.Accounts))
	for idx := range ix.Accounts {
		instrAcct := dedup[positions[idx]]
		if instrAcct.IndexInCallee != uint64(idx) {
			serialized[idx] = SerializedAccount{IsDuplicate: true, IndexOfAcct: uint8(instrAcct.IndexInCallee)}
			continue
		}

		acct, err := accts.GetAccount(instrAcct.Pubkey)
		if errors.Is(err, accounts.ErrAccountNotFound) {
			acct = accounts.NewAccount(0, 0, SystemProgramAddr)
		} else if err != nil {
			return nil, err
		}

		serialized[idx] = SerializedAccount{
			Pubkey:     instrAcct.Pubkey,
			IsSigner:   instrAcct.IsSigner,
			IsWritable: instrAcct.IsWritable,
			Account:    acct,
		}
	}

	params := SerializeParameters(serialized, ix.Data, ix.ProgramId)
	return &Invocation{Instruction: ix, Params: params, Accounts: params.Deserialize()}, nil
}

// ProcessInstruction runs a prepared top-level instruction. The views in inv
// hold the resulting state; nothing is written to the account store.
func (execCtx *ExecutionCtx) ProcessInstruction(inv *Invocation) error {
	txCtx := execCtx.TransactionContext
	txCtx.reset()
	txCtx.traceLength = 0
	execCtx.ComputeMeter.Reset()
	defer txCtx.reset()

	return execCtx.execute(inv.Instruction.ProgramId, inv.Params, inv.Accounts, nil)
}

func (execCtx *ExecutionCtx) execute(programId solana.PublicKey, params *Parameters, accts []*AccountInfo, signers []solana.PublicKey) error {
	txCtx := execCtx.TransactionContext
	txCtx.state = StateDispatching

	program, err := execCtx.Programs.Resolve(programId)
	if err != nil {
		klog.Errorf("unknown program %s", programId)
		execCtx.returned()
		return err
	}

	frame := &InstructionCtx{ProgramId: programId, Accounts: accts, Data: params.InstructionData(), Signers: signers}
	err = execCtx.Push(frame)
	if err != nil {
		execCtx.returned()
		return err
	}
	defer execCtx.Pop()

	if execCtx.EnforceAccountRules {
		frame.snapshotAccounts()
	}

	if execCtx.Programs.IsBuiltin(programId) {
		klog.V(2).Infof("invoking builtin %s at stack height %d", programId, frame.StackHeight)
	} else {
		klog.V(2).Infof("invoking program %s at stack height %d", programId, frame.StackHeight)
	}
	err = program.Process(execCtx, programId, accts, frame.Data)
	if err == nil && execCtx.EnforceAccountRules {
		err = verifyAccountChanges(frame)
	}

	if err != nil {
		var instrErr *InstrError
		if !errors.As(err, &instrErr) {
			err = &InstrError{ProgramId: programId.String(), StackHeight: frame.StackHeight, Err: err}
		}
		return err
	}
	return nil
}

func (execCtx *ExecutionCtx) returned() {
	if execCtx.StackHeight() == 0 {
		execCtx.TransactionContext.state = StateReturned
	} else {
		execCtx.TransactionContext.state = StateExecuting
	}
}

func (execCtx *ExecutionCtx) Push(frame *InstructionCtx) error {
	txCtx := execCtx.TransactionContext
	height := txCtx.InstructionCtxStackHeight()

	if height+1 > execCtx.MaxStackDepth {
		klog.Errorf("program %s would run at stack height %d, max is %d", frame.ProgramId, height+1, execCtx.MaxStackDepth)
		return fmt.Errorf("%w: program %s at stack height %d", InstrErrCallDepth, frame.ProgramId, height+1)
	}

	if execCtx.DisallowReentrancy && height != 0 {
		current, err := txCtx.CurrentInstructionCtx()
		if err != nil {
			return err
		}
		if txCtx.containsProgram(frame.ProgramId) && current.ProgramId != frame.ProgramId {
			return fmt.Errorf("%w: %s", InstrErrReentrancyNotAllowed, frame.ProgramId)
		}
	}

	txCtx.push(frame)
	return nil
}

func (execCtx *ExecutionCtx) Pop() {
	execCtx.TransactionContext.pop()
}

func (execCtx *ExecutionCtx) Invoke(ix Instruction) error {
	return execCtx.InvokeSigned(ix, nil)
}

// InvokeSigned performs a cross-program invocation from the current frame.
// Every seed set is turned into a PDA of the calling program, which may then
// be marked as a signer in ix. The callee runs on a fresh buffer built from
// the caller's views; on success its writable accounts are copied back.
func (execCtx *ExecutionCtx) InvokeSigned(ix Instruction, signerSeeds [][][]byte) error {
	caller, err := execCtx.TransactionContext.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	if err = execCtx.Consume(CUInvokeUnits); err != nil {
		return err
	}

	signers := make([]solana.PublicKey, 0, len(signerSeeds))
	for _, seeds := range signerSeeds {
		if err = execCtx.Consume(CUCreateProgramAddressUnits); err != nil {
			return err
		}
		addr, err := pda.CreateProgramAddress(seeds, caller.ProgramId)
		if err != nil {
			klog.Errorf("invalid signer seeds for program %s: %s", caller.ProgramId, err)
			return fmt.Errorf("%w: %w", InstrErrInvalidSeeds, err)
		}
		signers = append(signers, addr)
	}

	callerViews, serialized, err := execCtx.prepareInvoke(caller, ix, signers)
	if err != nil {
		return err
	}

	if execCtx.EnforceAccountRules {
		if err = verifyAccountChanges(caller); err != nil {
			return err
		}
	}

	params := SerializeParameters(serialized, ix.Data, ix.ProgramId)
	calleeViews := params.Deserialize()

	err = execCtx.execute(ix.ProgramId, params, calleeViews, signers)
	if err != nil {
		return err
	}

	for idx, calleeView := range calleeViews {
		callerView := callerViews[idx]
		if callerView == nil || !calleeView.IsWritable() {
			continue
		}
		if err = writeBack(callerView, calleeView); err != nil {
			return err
		}
	}

	if execCtx.EnforceAccountRules {
		caller.snapshotAccounts()
	}
	return nil
}

// prepareInvoke checks the callee's account metas against the caller's views
// and returns, per callee meta, the caller view it maps to (nil for
// duplicates) and the records to pack.
func (execCtx *ExecutionCtx) prepareInvoke(caller *InstructionCtx, ix Instruction, signers []solana.PublicKey) ([]*AccountInfo, []SerializedAccount, error) {
	if len(ix.Accounts) > MaxInstructionAccounts {
		return nil, nil, fmt.Errorf("%w: %d accounts", InstrErrMaxAccountsExceeded, len(ix.Accounts))
	}

	dedup, positions := dedupeMetas(ix.Accounts)

	views := make([]*AccountInfo, len(dedup))
	for idx, instrAcct := range dedup {
		view := caller.AccountByKey(instrAcct.Pubkey)
		if view == nil {
			klog.Errorf("instruction references unknown account %s", instrAcct.Pubkey)
			return nil, nil, fmt.Errorf("%w: %s", InstrErrMissingAccount, instrAcct.Pubkey)
		}

		// "Read-only in caller cannot become writable in callee"
		if instrAcct.IsWritable && !view.IsWritable() {
			klog.Errorf("%s is read-only in caller %s but writable in callee %s", instrAcct.Pubkey, caller.ProgramId, ix.ProgramId)
			return nil, nil, fmt.Errorf("%w: %s writable", InstrErrPrivilegeEscalation, instrAcct.Pubkey)
		}

		// "To be signed in the callee,
		// it must be either signed in the caller or by the program"
		if instrAcct.IsSigner && !(view.IsSigner() || lo.Contains(signers, instrAcct.Pubkey)) {
			klog.Errorf("%s must be a signer in caller %s or one of its PDAs", instrAcct.Pubkey, caller.ProgramId)
			return nil, nil, fmt.Errorf("%w: %s signer", InstrErrPrivilegeEscalation, instrAcct.Pubkey)
		}
		views[idx] = view
	}

	callerViews := make([]*AccountInfo, len(ix.Accounts))
	serialized := make([]SerializedAccount, len(ix.Accounts))
	for idx := range ix.Accounts {
		slot := positions[idx]
		instrAcct := dedup[slot]
		if instrAcct.IndexInCallee != uint64(idx) {
			serialized[idx] = SerializedAccount{IsDuplicate: true, IndexOfAcct: uint8(instrAcct.IndexInCallee)}
			continue
		}
		callerViews[idx] = views[slot]
		serialized[idx] = SerializedAccount{
			Pubkey:     instrAcct.Pubkey,
			IsSigner:   instrAcct.IsSigner,
			IsWritable: instrAcct.IsWritable,
			Account:    views[slot].Account(),
		}
	}

	return callerViews, serialized, nil
}

func writeBack(dst *AccountInfo, src *AccountInfo) error {
	dst.SetLamports(src.Lamports())
	dst.Assign(src.Owner())

	if dst.DataLen() != src.DataLen() {
		if err := dst.Realloc(src.DataLen(), false); err != nil {
			return err
		}
	}
	copy(dst.Data(), src.Data())
	return nil
}

// verifyAccountChanges applies the runtime's ownership rules to the changes a
// frame made since its accounts were last snapshotted.
func verifyAccountChanges(frame *InstructionCtx) error {
	var preHi, preLo, postHi, postLo uint64

	for _, info := range frame.UniqueAccounts() {
		pre, ok := frame.pre[info]
		if !ok {
			continue
		}
		key := info.Key()
		owned := pre.Owner == frame.ProgramId

		lamportsChanged := pre.Lamports != info.Lamports()
		ownerChanged := pre.Owner != info.Owner()
		dataChanged := string(pre.Data) != string(info.Data())

		if pre.Executable && (lamportsChanged || ownerChanged || dataChanged) {
			return fmt.Errorf("%w: %s", InstrErrExecutableDataModified, key)
		}

		if !info.IsWritable() {
			if lamportsChanged {
				return fmt.Errorf("%w: %s", InstrErrReadonlyLamportChange, key)
			}
			if ownerChanged || dataChanged {
				return fmt.Errorf("%w: %s", InstrErrReadonlyDataModified, key)
			}
		}

		if ownerChanged && !owned {
			return fmt.Errorf("%w: %s reassigned by %s", InstrErrModifiedProgramId, key, frame.ProgramId)
		}
		if dataChanged && !owned {
			return fmt.Errorf("%w: %s modified by %s", InstrErrExternalAccountDataModified, key, frame.ProgramId)
		}
		if info.Lamports() < pre.Lamports && !owned {
			return fmt.Errorf("%w: %s debited by %s", InstrErrExternalAccountLamportSpend, key, frame.ProgramId)
		}

		var carry uint64
		preLo, carry = bits.Add64(preLo, pre.Lamports, 0)
		preHi += carry
		postLo, carry = bits.Add64(postLo, info.Lamports(), 0)
		postHi += carry
	}

	if preHi != postHi || preLo != postLo {
		return fmt.Errorf("%w: program %s", InstrErrUnbalancedInstruction, frame.ProgramId)
	}
	return nil
}
