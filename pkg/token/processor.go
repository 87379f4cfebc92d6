package token

import (
	"fmt"

	"github.com/Overclock-Validator/solfuzz/pkg/safemath"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

// Token program error codes, surfaced as custom program errors.
const (
	ErrCodeNotRentExempt       = 0
	ErrCodeInsufficientFunds   = 1
	ErrCodeInvalidMint         = 2
	ErrCodeMintMismatch        = 3
	ErrCodeOwnerMismatch       = 4
	ErrCodeFixedSupply         = 5
	ErrCodeAlreadyInUse        = 6
	ErrCodeUninitializedState  = 9
	ErrCodeNonNativeHasBalance = 11
	ErrCodeOverflow            = 14
	ErrCodeAccountFrozen       = 17
	ErrCodeNativeNotSupported  = 19
)

var (
	ErrNotRentExempt       = sealevel.NewCustomError(ErrCodeNotRentExempt)
	ErrInsufficientFunds   = sealevel.NewCustomError(ErrCodeInsufficientFunds)
	ErrInvalidMint         = sealevel.NewCustomError(ErrCodeInvalidMint)
	ErrMintMismatch        = sealevel.NewCustomError(ErrCodeMintMismatch)
	ErrOwnerMismatch       = sealevel.NewCustomError(ErrCodeOwnerMismatch)
	ErrFixedSupply         = sealevel.NewCustomError(ErrCodeFixedSupply)
	ErrAlreadyInUse        = sealevel.NewCustomError(ErrCodeAlreadyInUse)
	ErrUninitializedState  = sealevel.NewCustomError(ErrCodeUninitializedState)
	ErrNonNativeHasBalance = sealevel.NewCustomError(ErrCodeNonNativeHasBalance)
	ErrOverflow            = sealevel.NewCustomError(ErrCodeOverflow)
	ErrAccountFrozen       = sealevel.NewCustomError(ErrCodeAccountFrozen)
	ErrNativeNotSupported  = sealevel.NewCustomError(ErrCodeNativeNotSupported)
)

// NativeMint is the mint of wrapped SOL.
var NativeMint = solana.SolMint

// Process is the token program handler.
func Process(execCtx *sealevel.ExecutionCtx, programId solana.PublicKey, accts []*sealevel.AccountInfo, data []byte) error {
	err := execCtx.Consume(sealevel.CUTokenProgramDefaultComputeUnits)
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(data)
	instrType, err := decoder.ReadUint8()
	if err != nil {
		return sealevel.InstrErrInvalidInstructionData
	}

	switch instrType {
	case InstrTypeInitializeMint:
		var instr InstrInitializeMint
		if err = instr.UnmarshalWithDecoder(decoder); err != nil {
			return sealevel.InstrErrInvalidInstructionData
		}
		if err = checkNumOfAccounts(accts, 1); err != nil {
			return err
		}
		execCtx.Logf("Instruction: InitializeMint")
		return processInitializeMint(execCtx, programId, accts[0], &instr)

	case InstrTypeInitializeAccount:
		if err = checkNumOfAccounts(accts, 3); err != nil {
			return err
		}
		execCtx.Logf("Instruction: InitializeAccount")
		return processInitializeAccount(execCtx, programId, accts[0], accts[1], accts[2].Key())

	case InstrTypeTransfer, InstrTypeMintTo, InstrTypeBurn:
		var instr InstrAmount
		if err = instr.UnmarshalWithDecoder(decoder); err != nil {
			return sealevel.InstrErrInvalidInstructionData
		}
		if err = checkNumOfAccounts(accts, 3); err != nil {
			return err
		}
		switch instrType {
		case InstrTypeTransfer:
			execCtx.Logf("Instruction: Transfer")
			return processTransfer(programId, accts[0], accts[1], accts[2], instr.Amount)
		case InstrTypeMintTo:
			execCtx.Logf("Instruction: MintTo")
			return processMintTo(programId, accts[0], accts[1], accts[2], instr.Amount)
		default:
			execCtx.Logf("Instruction: Burn")
			return processBurn(programId, accts[0], accts[1], accts[2], instr.Amount)
		}

	case InstrTypeCloseAccount:
		if err = checkNumOfAccounts(accts, 3); err != nil {
			return err
		}
		execCtx.Logf("Instruction: CloseAccount")
		return processCloseAccount(programId, accts[0], accts[1], accts[2])

	default:
		klog.Errorf("unsupported token instruction %d", instrType)
		return sealevel.InstrErrInvalidInstructionData
	}
}

func checkNumOfAccounts(accts []*sealevel.AccountInfo, n int) error {
	if len(accts) < n {
		return fmt.Errorf("%w: token instruction wants %d accounts, got %d", sealevel.InstrErrNotEnoughAccountKeys, n, len(accts))
	}
	return nil
}

func loadMint(programId solana.PublicKey, info *sealevel.AccountInfo) (*Mint, error) {
	if !info.IsOwnedBy(programId) {
		return nil, sealevel.InstrErrInvalidAccountOwner
	}
	mint, err := UnpackMint(info.Data())
	if err != nil {
		return nil, ErrInvalidMint
	}
	if !mint.IsInitialized {
		return nil, ErrUninitializedState
	}
	return mint, nil
}

func loadAccount(programId solana.PublicKey, info *sealevel.AccountInfo) (*Account, error) {
	if !info.IsOwnedBy(programId) {
		return nil, sealevel.InstrErrInvalidAccountOwner
	}
	acct, err := UnpackAccount(info.Data())
	if err != nil {
		return nil, sealevel.InstrErrInvalidAccountData
	}
	if acct.State == AccountStateUninitialized {
		return nil, ErrUninitializedState
	}
	return acct, nil
}

func store(info *sealevel.AccountInfo, packed []byte) error {
	if !info.IsWritable() {
		return fmt.Errorf("%w: %s", sealevel.InstrErrReadonlyDataModified, info.Key())
	}
	copy(info.Data(), packed)
	return nil
}

// validateOwner checks that authority is expectedOwner and signed.
func validateOwner(expectedOwner solana.PublicKey, authority *sealevel.AccountInfo) error {
	if expectedOwner != authority.Key() {
		return ErrOwnerMismatch
	}
	if !authority.IsSigner() {
		klog.Errorf("token authority %s did not sign", authority.Key())
		return sealevel.InstrErrMissingRequiredSignature
	}
	return nil
}

func processInitializeMint(execCtx *sealevel.ExecutionCtx, programId solana.PublicKey, mintInfo *sealevel.AccountInfo, instr *InstrInitializeMint) error {
	if mintInfo.DataLen() != MintLen {
		return sealevel.InstrErrInvalidAccountData
	}
	mint, err := UnpackMint(mintInfo.Data())
	if err != nil {
		return sealevel.InstrErrInvalidAccountData
	}
	if mint.IsInitialized {
		return ErrAlreadyInUse
	}

	rent := execCtx.Rent()
	if !rent.IsExempt(mintInfo.Lamports(), mintInfo.DataLen()) {
		return ErrNotRentExempt
	}

	mintAuthority := instr.MintAuthority
	mint.MintAuthority = &mintAuthority
	mint.Decimals = instr.Decimals
	mint.IsInitialized = true
	mint.FreezeAuthority = instr.FreezeAuthority

	return store(mintInfo, mint.Pack())
}

func processInitializeAccount(execCtx *sealevel.ExecutionCtx, programId solana.PublicKey, acctInfo *sealevel.AccountInfo, mintInfo *sealevel.AccountInfo, owner solana.PublicKey) error {
	if acctInfo.DataLen() != AccountLen {
		return sealevel.InstrErrInvalidAccountData
	}
	acct, err := UnpackAccount(acctInfo.Data())
	if err != nil {
		return sealevel.InstrErrInvalidAccountData
	}
	if acct.State != AccountStateUninitialized {
		return ErrAlreadyInUse
	}

	rent := execCtx.Rent()
	reserve := rent.MinimumBalance(acctInfo.DataLen())
	if acctInfo.Lamports() < reserve {
		return ErrNotRentExempt
	}

	isNativeMint := mintInfo.Key() == NativeMint
	if !isNativeMint {
		if _, err = loadMint(programId, mintInfo); err != nil {
			return ErrInvalidMint
		}
	}

	acct.Mint = mintInfo.Key()
	acct.Owner = owner
	acct.Delegate = nil
	acct.DelegatedAmount = 0
	acct.State = AccountStateInitialized
	if isNativeMint {
		acct.IsNative = &reserve
		acct.Amount = acctInfo.Lamports() - reserve
	} else {
		acct.IsNative = nil
		acct.Amount = 0
	}

	return store(acctInfo, acct.Pack())
}

func processTransfer(programId solana.PublicKey, sourceInfo *sealevel.AccountInfo, destInfo *sealevel.AccountInfo, authority *sealevel.AccountInfo, amount uint64) error {
	source, err := loadAccount(programId, sourceInfo)
	if err != nil {
		return err
	}
	dest, err := loadAccount(programId, destInfo)
	if err != nil {
		return err
	}

	if source.IsFrozen() || dest.IsFrozen() {
		return ErrAccountFrozen
	}
	if source.Amount < amount {
		return ErrInsufficientFunds
	}
	if source.Mint != dest.Mint {
		return ErrMintMismatch
	}

	usedDelegate := false
	if source.Delegate != nil && *source.Delegate == authority.Key() {
		if err = validateOwner(*source.Delegate, authority); err != nil {
			return err
		}
		if source.DelegatedAmount < amount {
			return ErrInsufficientFunds
		}
		usedDelegate = true
	} else if err = validateOwner(source.Owner, authority); err != nil {
		return err
	}

	if sourceInfo.Key() == destInfo.Key() {
		return nil
	}

	if usedDelegate {
		source.DelegatedAmount -= amount
		if source.DelegatedAmount == 0 {
			source.Delegate = nil
		}
	}
	source.Amount -= amount
	var ok bool
	dest.Amount, ok = safemath.CheckedAddU64(dest.Amount, amount)
	if !ok {
		return ErrOverflow
	}

	if source.IsNative != nil {
		if err = sourceInfo.CheckedSubLamports(amount); err != nil {
			return ErrOverflow
		}
		if err = destInfo.CheckedAddLamports(amount); err != nil {
			return ErrOverflow
		}
	}

	if err = store(sourceInfo, source.Pack()); err != nil {
		return err
	}
	return store(destInfo, dest.Pack())
}

func processMintTo(programId solana.PublicKey, mintInfo *sealevel.AccountInfo, destInfo *sealevel.AccountInfo, authority *sealevel.AccountInfo, amount uint64) error {
	dest, err := loadAccount(programId, destInfo)
	if err != nil {
		return err
	}
	if dest.IsFrozen() {
		return ErrAccountFrozen
	}
	if dest.IsNative != nil {
		return ErrNativeNotSupported
	}
	if dest.Mint != mintInfo.Key() {
		return ErrMintMismatch
	}

	mint, err := loadMint(programId, mintInfo)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil {
		return ErrFixedSupply
	}
	if err = validateOwner(*mint.MintAuthority, authority); err != nil {
		return err
	}

	var ok bool
	if dest.Amount, ok = safemath.CheckedAddU64(dest.Amount, amount); !ok {
		return ErrOverflow
	}
	if mint.Supply, ok = safemath.CheckedAddU64(mint.Supply, amount); !ok {
		return ErrOverflow
	}

	if err = store(mintInfo, mint.Pack()); err != nil {
		return err
	}
	return store(destInfo, dest.Pack())
}

func processBurn(programId solana.PublicKey, acctInfo *sealevel.AccountInfo, mintInfo *sealevel.AccountInfo, authority *sealevel.AccountInfo, amount uint64) error {
	acct, err := loadAccount(programId, acctInfo)
	if err != nil {
		return err
	}
	if acct.IsFrozen() {
		return ErrAccountFrozen
	}
	if acct.IsNative != nil {
		return ErrNativeNotSupported
	}
	if acct.Mint != mintInfo.Key() {
		return ErrMintMismatch
	}
	if acct.Amount < amount {
		return ErrInsufficientFunds
	}

	mint, err := loadMint(programId, mintInfo)
	if err != nil {
		return err
	}

	if acct.Delegate != nil && *acct.Delegate == authority.Key() {
		if err = validateOwner(*acct.Delegate, authority); err != nil {
			return err
		}
		if acct.DelegatedAmount < amount {
			return ErrInsufficientFunds
		}
		acct.DelegatedAmount -= amount
		if acct.DelegatedAmount == 0 {
			acct.Delegate = nil
		}
	} else if err = validateOwner(acct.Owner, authority); err != nil {
		return err
	}

	acct.Amount -= amount
	var ok bool
	if mint.Supply, ok = safemath.CheckedSubU64(mint.Supply, amount); !ok {
		return ErrOverflow
	}

	if err = store(acctInfo, acct.Pack()); err != nil {
		return err
	}
	return store(mintInfo, mint.Pack())
}

func processCloseAccount(programId solana.PublicKey, sourceInfo *sealevel.AccountInfo, destInfo *sealevel.AccountInfo, authority *sealevel.AccountInfo) error {
	if sourceInfo.Key() == destInfo.Key() {
		return sealevel.InstrErrInvalidAccountData
	}

	source, err := loadAccount(programId, sourceInfo)
	if err != nil {
		return err
	}
	if source.IsNative == nil && source.Amount != 0 {
		return ErrNonNativeHasBalance
	}

	closeAuthority := source.Owner
	if source.CloseAuthority != nil {
		closeAuthority = *source.CloseAuthority
	}
	if err = validateOwner(closeAuthority, authority); err != nil {
		return err
	}

	if !sourceInfo.IsWritable() || !destInfo.IsWritable() {
		return sealevel.InstrErrReadonlyLamportChange
	}
	if err = destInfo.CheckedAddLamports(sourceInfo.Lamports()); err != nil {
		return ErrOverflow
	}
	sourceInfo.SetLamports(0)

	if err = sourceInfo.Realloc(0, false); err != nil {
		return err
	}
	sourceInfo.Assign(solana.SystemProgramID)
	return nil
}
