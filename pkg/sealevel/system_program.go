package sealevel

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/pda"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const SystemProgMaxPermittedDataLen = accounts.MaxDataLen

const (
	SystemProgramInstrTypeCreateAccount = iota
	SystemProgramInstrTypeAssign
	SystemProgramInstrTypeTransfer
	SystemProgramInstrTypeCreateAccountWithSeed
	SystemProgramInstrTypeAdvanceNonceAccount
	SystemProgramInstrTypeWithdrawNonceAccount
	SystemProgramInstrTypeInitializeNonceAccount
	SystemProgramInstrTypeAuthorizeNonceAccount
	SystemProgramInstrTypeAllocate
	SystemProgramInstrTypeAllocateWithSeed
	SystemProgramInstrTypeAssignWithSeed
	SystemProgramInstrTypeTransferWithSeed
)

var (
	SystemProgErrAccountAlreadyInUse        = errors.New("SystemProgErrAccountAlreadyInUse")
	SystemProgErrInvalidAccountDataLength   = errors.New("SystemProgErrInvalidAccountDataLength")
	SystemProgErrResultWithNegativeLamports = errors.New("SystemProgErrResultWithNegativeLamports")
	SystemProgErrAddressWithSeedMismatch    = errors.New("SystemProgErrAddressWithSeedMismatch")
)

type SystemInstrCreateAccount struct {
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

type SystemInstrAssign struct {
	Owner solana.PublicKey
}

type SystemInstrTransfer struct {
	Lamports uint64
}

type SystemInstrCreateAccountWithSeed struct {
	Base     solana.PublicKey
	Seed     string
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

type SystemInstrAllocate struct {
	Space uint64
}

type SystemInstrAllocateWithSeed struct {
	Base  solana.PublicKey
	Seed  string
	Space uint64
	Owner solana.PublicKey
}

type SystemInstrAssignWithSeed struct {
	Base  solana.PublicKey
	Seed  string
	Owner solana.PublicKey
}

type SystemInstrTransferWithSeed struct {
	Lamports  uint64
	FromSeed  string
	FromOwner solana.PublicKey
}

func checkWithinDeserializationLimit(decoder *bin.Decoder) error {
	if decoder.Position() > 1232 {
		return InstrErrInvalidInstructionData
	}
	return nil
}

func readPubkey(decoder *bin.Decoder) (solana.PublicKey, error) {
	pk, err := decoder.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(pk), nil
}

func (instr *SystemInstrCreateAccount) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	instr.Space, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	instr.Owner, err = readPubkey(decoder)
	if err != nil {
		return err
	}

	return checkWithinDeserializationLimit(decoder)
}

func (instr *SystemInstrCreateAccount) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeCreateAccount, bin.LE)
	_ = encoder.WriteUint64(instr.Lamports, bin.LE)
	_ = encoder.WriteUint64(instr.Space, bin.LE)
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *SystemInstrAssign) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Owner, err = readPubkey(decoder)
	if err != nil {
		return err
	}
	return checkWithinDeserializationLimit(decoder)
}

func (instr *SystemInstrAssign) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeAssign, bin.LE)
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *SystemInstrTransfer) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	return checkWithinDeserializationLimit(decoder)
}

func (instr *SystemInstrTransfer) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeTransfer, bin.LE)
	return encoder.WriteUint64(instr.Lamports, bin.LE)
}

func (instr *SystemInstrCreateAccountWithSeed) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Base, err = readPubkey(decoder)
	if err != nil {
		return err
	}

	instr.Seed, err = decoder.ReadRustString()
	if err != nil {
		return err
	}

	instr.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	instr.Space, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	instr.Owner, err = readPubkey(decoder)
	if err != nil {
		return err
	}

	return checkWithinDeserializationLimit(decoder)
}

func (instr *SystemInstrCreateAccountWithSeed) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeCreateAccountWithSeed, bin.LE)
	_ = encoder.WriteBytes(instr.Base[:], false)
	_ = encoder.WriteRustString(instr.Seed)
	_ = encoder.WriteUint64(instr.Lamports, bin.LE)
	_ = encoder.WriteUint64(instr.Space, bin.LE)
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *SystemInstrAllocate) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Space, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	return checkWithinDeserializationLimit(decoder)
}

func (instr *SystemInstrAllocate) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeAllocate, bin.LE)
	return encoder.WriteUint64(instr.Space, bin.LE)
}

func (instr *SystemInstrAllocateWithSeed) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Base, err = readPubkey(decoder)
	if err != nil {
		return err
	}

	instr.Seed, err = decoder.ReadRustString()
	if err != nil {
		return err
	}

	instr.Space, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	instr.Owner, err = readPubkey(decoder)
	if err != nil {
		return err
	}

	return checkWithinDeserializationLimit(decoder)
}

func (instr *SystemInstrAllocateWithSeed) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeAllocateWithSeed, bin.LE)
	_ = encoder.WriteBytes(instr.Base[:], false)
	_ = encoder.WriteRustString(instr.Seed)
	_ = encoder.WriteUint64(instr.Space, bin.LE)
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *SystemInstrAssignWithSeed) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Base, err = readPubkey(decoder)
	if err != nil {
		return err
	}

	instr.Seed, err = decoder.ReadRustString()
	if err != nil {
		return err
	}

	instr.Owner, err = readPubkey(decoder)
	if err != nil {
		return err
	}
	return checkWithinDeserializationLimit(decoder)
}

func (instr *SystemInstrAssignWithSeed) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeAssignWithSeed, bin.LE)
	_ = encoder.WriteBytes(instr.Base[:], false)
	_ = encoder.WriteRustString(instr.Seed)
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *SystemInstrTransferWithSeed) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	instr.FromSeed, err = decoder.ReadRustString()
	if err != nil {
		return err
	}

	instr.FromOwner, err = readPubkey(decoder)
	if err != nil {
		return err
	}

	return checkWithinDeserializationLimit(decoder)
}

func (instr *SystemInstrTransferWithSeed) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeTransferWithSeed, bin.LE)
	_ = encoder.WriteUint64(instr.Lamports, bin.LE)
	_ = encoder.WriteRustString(instr.FromSeed)
	return encoder.WriteBytes(instr.FromOwner[:], false)
}

type marshaler interface {
	MarshalWithEncoder(encoder *bin.Encoder) error
}

func newSystemInstruction(instr marshaler, accountMetas []AccountMeta) Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := instr.MarshalWithEncoder(encoder)
	if err != nil {
		panic("shouldn't fail")
	}

	return Instruction{Accounts: accountMetas, Data: buf.Bytes(), ProgramId: SystemProgramAddr}
}

func NewCreateAccountInstruction(from solana.PublicKey, to solana.PublicKey, lamports uint64, space uint64, owner solana.PublicKey) Instruction {
	return newSystemInstruction(&SystemInstrCreateAccount{Lamports: lamports, Space: space, Owner: owner},
		[]AccountMeta{{Pubkey: from, IsSigner: true, IsWritable: true}, {Pubkey: to, IsSigner: true, IsWritable: true}})
}

func NewTransferInstruction(from solana.PublicKey, to solana.PublicKey, lamports uint64) Instruction {
	return newSystemInstruction(&SystemInstrTransfer{Lamports: lamports},
		[]AccountMeta{{Pubkey: from, IsSigner: true, IsWritable: true}, {Pubkey: to, IsSigner: false, IsWritable: true}})
}

func NewAllocateInstruction(pubkey solana.PublicKey, space uint64) Instruction {
	return newSystemInstruction(&SystemInstrAllocate{Space: space},
		[]AccountMeta{{Pubkey: pubkey, IsSigner: true, IsWritable: true}})
}

func NewAssignInstruction(pubkey solana.PublicKey, owner solana.PublicKey) Instruction {
	return newSystemInstruction(&SystemInstrAssign{Owner: owner},
		[]AccountMeta{{Pubkey: pubkey, IsSigner: true, IsWritable: true}})
}

func NewCreateAccountWithSeedInstruction(from solana.PublicKey, to solana.PublicKey, base solana.PublicKey, seed string, lamports uint64, space uint64, owner solana.PublicKey) Instruction {
	metas := []AccountMeta{{Pubkey: from, IsSigner: true, IsWritable: true}, {Pubkey: to, IsSigner: false, IsWritable: true}}
	if base != from {
		metas = append(metas, AccountMeta{Pubkey: base, IsSigner: true, IsWritable: false})
	}
	return newSystemInstruction(&SystemInstrCreateAccountWithSeed{Base: base, Seed: seed, Lamports: lamports, Space: space, Owner: owner}, metas)
}

func NewAllocateWithSeedInstruction(acct solana.PublicKey, base solana.PublicKey, seed string, space uint64, owner solana.PublicKey) Instruction {
	return newSystemInstruction(&SystemInstrAllocateWithSeed{Base: base, Seed: seed, Space: space, Owner: owner},
		[]AccountMeta{{Pubkey: acct, IsSigner: false, IsWritable: true}, {Pubkey: base, IsSigner: true, IsWritable: false}})
}

func NewAssignWithSeedInstruction(acct solana.PublicKey, base solana.PublicKey, seed string, owner solana.PublicKey) Instruction {
	return newSystemInstruction(&SystemInstrAssignWithSeed{Base: base, Seed: seed, Owner: owner},
		[]AccountMeta{{Pubkey: acct, IsSigner: false, IsWritable: true}, {Pubkey: base, IsSigner: true, IsWritable: false}})
}

func NewTransferWithSeedInstruction(from solana.PublicKey, base solana.PublicKey, seed string, fromOwner solana.PublicKey, to solana.PublicKey, lamports uint64) Instruction {
	return newSystemInstruction(&SystemInstrTransferWithSeed{Lamports: lamports, FromSeed: seed, FromOwner: fromOwner},
		[]AccountMeta{{Pubkey: from, IsSigner: false, IsWritable: true}, {Pubkey: base, IsSigner: true, IsWritable: false}, {Pubkey: to, IsSigner: false, IsWritable: true}})
}

func checkNumOfAccounts(accts []*AccountInfo, n int) error {
	if len(accts) < n {
		return fmt.Errorf("%w: need %d, have %d", InstrErrNotEnoughAccountKeys, n, len(accts))
	}
	return nil
}

func isSignerKey(accts []*AccountInfo, key solana.PublicKey) bool {
	for _, acct := range accts {
		if acct.Key() == key && acct.IsSigner() {
			return true
		}
	}
	return false
}

func verifyAddressWithSeed(addr solana.PublicKey, base solana.PublicKey, seed string, owner solana.PublicKey) error {
	addrWithSeed, err := pda.CreateWithSeed(base, seed, owner)
	if err != nil {
		return fmt.Errorf("%w: %w", InstrErrInvalidSeeds, err)
	}
	if addr != addrWithSeed {
		klog.Errorf("Create: address %s does not match derived address %s", addr, addrWithSeed)
		return SystemProgErrAddressWithSeedMismatch
	}
	return nil
}

// SystemProgramExecute is the built-in system program handler.
func SystemProgramExecute(execCtx *ExecutionCtx, programId solana.PublicKey, accts []*AccountInfo, data []byte) error {
	err := execCtx.Consume(CUSystemProgramDefaultComputeUnits)
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(data)

	instructionType, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	switch instructionType {
	case SystemProgramInstrTypeCreateAccount:
		{
			var createAccount SystemInstrCreateAccount
			if err = createAccount.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			if err = checkNumOfAccounts(accts, 2); err != nil {
				return err
			}
			to := accts[1]
			if !to.IsSigner() {
				klog.Errorf("Create Account: 'to' account %s must sign", to.Key())
				return InstrErrMissingRequiredSignature
			}
			return SystemProgramCreateAccount(accts[0], to, createAccount.Lamports, createAccount.Space, createAccount.Owner)
		}

	case SystemProgramInstrTypeAssign:
		{
			var assign SystemInstrAssign
			if err = assign.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			if err = checkNumOfAccounts(accts, 1); err != nil {
				return err
			}
			return SystemProgramAssign(accts[0], assign.Owner, accts[0].IsSigner())
		}

	case SystemProgramInstrTypeTransfer:
		{
			var transfer SystemInstrTransfer
			if err = transfer.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			if err = checkNumOfAccounts(accts, 2); err != nil {
				return err
			}
			return SystemProgramTransfer(accts[0], accts[1], transfer.Lamports)
		}

	case SystemProgramInstrTypeCreateAccountWithSeed:
		{
			var createAcctWithSeed SystemInstrCreateAccountWithSeed
			if err = createAcctWithSeed.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			if err = checkNumOfAccounts(accts, 2); err != nil {
				return err
			}
			to := accts[1]
			err = verifyAddressWithSeed(to.Key(), createAcctWithSeed.Base, createAcctWithSeed.Seed, createAcctWithSeed.Owner)
			if err != nil {
				return err
			}
			if !isSignerKey(accts, createAcctWithSeed.Base) {
				klog.Errorf("Create Account: base %s must sign", createAcctWithSeed.Base)
				return InstrErrMissingRequiredSignature
			}
			return SystemProgramCreateAccount(accts[0], to, createAcctWithSeed.Lamports, createAcctWithSeed.Space, createAcctWithSeed.Owner)
		}

	case SystemProgramInstrTypeAllocate:
		{
			var allocate SystemInstrAllocate
			if err = allocate.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			if err = checkNumOfAccounts(accts, 1); err != nil {
				return err
			}
			if !accts[0].IsSigner() {
				klog.Errorf("Allocate: 'to' account %s must sign", accts[0].Key())
				return InstrErrMissingRequiredSignature
			}
			return SystemProgramAllocate(accts[0], allocate.Space)
		}

	case SystemProgramInstrTypeAllocateWithSeed:
		{
			var allocateWithSeed SystemInstrAllocateWithSeed
			if err = allocateWithSeed.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			if err = checkNumOfAccounts(accts, 2); err != nil {
				return err
			}
			acct := accts[0]
			err = verifyAddressWithSeed(acct.Key(), allocateWithSeed.Base, allocateWithSeed.Seed, allocateWithSeed.Owner)
			if err != nil {
				return err
			}
			if !isSignerKey(accts, allocateWithSeed.Base) {
				klog.Errorf("Allocate: base %s must sign", allocateWithSeed.Base)
				return InstrErrMissingRequiredSignature
			}
			if err = SystemProgramAllocate(acct, allocateWithSeed.Space); err != nil {
				return err
			}
			return SystemProgramAssign(acct, allocateWithSeed.Owner, true)
		}

	case SystemProgramInstrTypeAssignWithSeed:
		{
			var assignWithSeed SystemInstrAssignWithSeed
			if err = assignWithSeed.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			if err = checkNumOfAccounts(accts, 2); err != nil {
				return err
			}
			acct := accts[0]
			err = verifyAddressWithSeed(acct.Key(), assignWithSeed.Base, assignWithSeed.Seed, assignWithSeed.Owner)
			if err != nil {
				return err
			}
			return SystemProgramAssign(acct, assignWithSeed.Owner, isSignerKey(accts, assignWithSeed.Base))
		}

	case SystemProgramInstrTypeTransferWithSeed:
		{
			var transferWithSeed SystemInstrTransferWithSeed
			if err = transferWithSeed.UnmarshalWithDecoder(decoder); err != nil {
				return InstrErrInvalidInstructionData
			}
			if err = checkNumOfAccounts(accts, 3); err != nil {
				return err
			}
			return SystemProgramTransferWithSeed(accts[0], accts[1], transferWithSeed.FromSeed, transferWithSeed.FromOwner, accts[2], transferWithSeed.Lamports)
		}

	default:
		klog.Errorf("system program: unsupported instruction type %d", instructionType)
		return InstrErrInvalidInstructionData
	}
}

func SystemProgramCreateAccount(from *AccountInfo, to *AccountInfo, lamports uint64, space uint64, owner solana.PublicKey) error {
	if to.Lamports() > 0 {
		klog.Errorf("CreateAccount: account %s already in use (non-zero lamports)", to.Key())
		return SystemProgErrAccountAlreadyInUse
	}

	if err := SystemProgramAllocate(to, space); err != nil {
		return err
	}
	if err := SystemProgramAssign(to, owner, true); err != nil {
		return err
	}

	if !from.IsSigner() {
		klog.Errorf("CreateAccount: 'from' account %s must sign", from.Key())
		return InstrErrMissingRequiredSignature
	}
	return transferInternal(from, to, lamports)
}

func SystemProgramAllocate(acct *AccountInfo, space uint64) error {
	if acct.DataLen() != 0 || acct.Owner() != SystemProgramAddr {
		klog.Errorf("Allocate: account %s already in use", acct.Key())
		return SystemProgErrAccountAlreadyInUse
	}

	if space > SystemProgMaxPermittedDataLen {
		klog.Errorf("Allocate: requested %d, max allowed %d", space, SystemProgMaxPermittedDataLen)
		return SystemProgErrInvalidAccountDataLength
	}

	return acct.Realloc(space, true)
}

func SystemProgramAssign(acct *AccountInfo, owner solana.PublicKey, isSigner bool) error {
	if acct.Owner() == owner {
		return nil
	}

	if !isSigner {
		klog.Errorf("Assign: account %s must sign", acct.Key())
		return InstrErrMissingRequiredSignature
	}

	acct.Assign(owner)
	return nil
}

func SystemProgramTransfer(from *AccountInfo, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner() {
		klog.Errorf("Transfer: `from` account %s must sign", from.Key())
		return InstrErrMissingRequiredSignature
	}

	return transferInternal(from, to, lamports)
}

func SystemProgramTransferWithSeed(from *AccountInfo, base *AccountInfo, fromSeed string, fromOwner solana.PublicKey, to *AccountInfo, lamports uint64) error {
	if !base.IsSigner() {
		klog.Errorf("Transfer: from account must sign")
		return InstrErrMissingRequiredSignature
	}

	addrFromSeed, err := pda.CreateWithSeed(base.Key(), fromSeed, fromOwner)
	if err != nil {
		return fmt.Errorf("%w: %w", InstrErrInvalidSeeds, err)
	}

	if from.Key() != addrFromSeed {
		klog.Errorf("Transfer: from address %s does not match derived address %s", from.Key(), addrFromSeed)
		return SystemProgErrAddressWithSeedMismatch
	}

	return transferInternal(from, to, lamports)
}

func transferInternal(from *AccountInfo, to *AccountInfo, lamports uint64) error {
	if from.DataLen() != 0 {
		klog.Errorf("Transfer: `from` must not carry data")
		return InstrErrInvalidArgument
	}

	if lamports > from.Lamports() {
		klog.Errorf("Transfer: insufficient lamports %d, need %d", from.Lamports(), lamports)
		return SystemProgErrResultWithNegativeLamports
	}

	if err := from.CheckedSubLamports(lamports); err != nil {
		return err
	}
	return to.CheckedAddLamports(lamports)
}
