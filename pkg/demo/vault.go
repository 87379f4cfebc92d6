// Package demo holds a small lamport vault program and the fuzz target that
// drives it. Withdraw carries a known accounting bug so the fuzz runner
// has something to find.
package demo

import (
	"bytes"
	"fmt"

	"github.com/Overclock-Validator/solfuzz/pkg/pda"
	"github.com/Overclock-Validator/solfuzz/pkg/safemath"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/Overclock-Validator/solfuzz/pkg/snapshot"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

var ProgramID = solana.MustPublicKeyFromBase58("Vau1t11111111111111111111111111111111111111")

const (
	InstrTypeInitialize = 0
	InstrTypeDeposit    = 1
	InstrTypeWithdraw   = 2
	InstrTypeClose      = 3
)

const (
	ErrCodeInvalidVault = 6000
	ErrCodeUnauthorized = 6001
	ErrCodeOverflow     = 6002
)

var (
	ErrInvalidVault = sealevel.NewCustomError(ErrCodeInvalidVault)
	ErrUnauthorized = sealevel.NewCustomError(ErrCodeUnauthorized)
	ErrOverflow     = sealevel.NewCustomError(ErrCodeOverflow)
)

const CUVaultDefaultComputeUnits = 150

var VaultSeed = []byte("vault")

var VaultDiscriminator = snapshot.AnchorDiscriminator("Vault")

// VaultLen is discriminator, authority, bump and deposits.
const VaultLen = 8 + solana.PublicKeyLength + 1 + 8

type Vault struct {
	Authority solana.PublicKey
	Bump      uint8
	Deposits  uint64
}

func (v *Vault) Pack() []byte {
	buf := new(bytes.Buffer)
	buf.Write(VaultDiscriminator)
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		panic(fmt.Sprintf("encoding vault: %s", err))
	}
	return buf.Bytes()
}

func UnpackVault(data []byte) (*Vault, error) {
	if len(data) != VaultLen {
		return nil, fmt.Errorf("%w: vault is %d bytes, want %d", snapshot.ErrAccountDataTooSmall, len(data), VaultLen)
	}
	if !bytes.Equal(data[:8], VaultDiscriminator) {
		return nil, snapshot.ErrDiscriminatorMismatch
	}
	v := new(Vault)
	if err := bin.NewBorshDecoder(data[8:]).Decode(v); err != nil {
		return nil, err
	}
	return v, nil
}

// VaultDecoder types vault accounts in snapshots.
func VaultDecoder() snapshot.Decoder {
	return snapshot.Anchor[Vault](ProgramID, "Vault")
}

// VaultAddress derives the vault PDA of authority.
func VaultAddress(authority solana.PublicKey) (solana.PublicKey, uint8) {
	addr, bump, err := pda.FindProgramAddress([][]byte{VaultSeed, authority[:]}, ProgramID)
	if err != nil {
		panic(fmt.Sprintf("no vault address for %s: %s", authority, err))
	}
	return addr, bump
}

type InstrAmount struct {
	Amount uint64
}

func newVaultInstruction(instrType uint8, amount *uint64, metas []sealevel.AccountMeta) sealevel.Instruction {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	_ = encoder.WriteUint8(instrType)
	if amount != nil {
		_ = encoder.WriteUint64(*amount, bin.LE)
	}
	return sealevel.Instruction{ProgramId: ProgramID, Accounts: metas, Data: buf.Bytes()}
}

func NewInitializeInstruction(authority solana.PublicKey) sealevel.Instruction {
	vault, _ := VaultAddress(authority)
	return newVaultInstruction(InstrTypeInitialize, nil, []sealevel.AccountMeta{
		sealevel.NewAccountMeta(authority, true, true),
		sealevel.NewAccountMeta(vault, true, false),
		sealevel.NewAccountMeta(solana.SystemProgramID, false, false),
	})
}

func NewDepositInstruction(depositor solana.PublicKey, vault solana.PublicKey, amount uint64) sealevel.Instruction {
	return newVaultInstruction(InstrTypeDeposit, &amount, []sealevel.AccountMeta{
		sealevel.NewAccountMeta(depositor, true, true),
		sealevel.NewAccountMeta(vault, true, false),
		sealevel.NewAccountMeta(solana.SystemProgramID, false, false),
	})
}

func NewWithdrawInstruction(authority solana.PublicKey, amount uint64) sealevel.Instruction {
	vault, _ := VaultAddress(authority)
	return newVaultInstruction(InstrTypeWithdraw, &amount, []sealevel.AccountMeta{
		sealevel.NewAccountMeta(authority, true, true),
		sealevel.NewAccountMeta(vault, true, false),
	})
}

func NewCloseInstruction(authority solana.PublicKey) sealevel.Instruction {
	vault, _ := VaultAddress(authority)
	return newVaultInstruction(InstrTypeClose, nil, []sealevel.AccountMeta{
		sealevel.NewAccountMeta(authority, true, true),
		sealevel.NewAccountMeta(vault, true, false),
	})
}

// Process is the vault program handler.
func Process(execCtx *sealevel.ExecutionCtx, programId solana.PublicKey, accts []*sealevel.AccountInfo, data []byte) error {
	err := execCtx.Consume(CUVaultDefaultComputeUnits)
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(data)
	instrType, err := decoder.ReadUint8()
	if err != nil {
		return sealevel.InstrErrInvalidInstructionData
	}

	switch instrType {
	case InstrTypeInitialize:
		if err = checkNumOfAccounts(accts, 3); err != nil {
			return err
		}
		execCtx.Logf("Instruction: Initialize")
		return processInitialize(execCtx, programId, accts[0], accts[1])

	case InstrTypeDeposit, InstrTypeWithdraw:
		var instr InstrAmount
		if instr.Amount, err = decoder.ReadUint64(bin.LE); err != nil {
			return sealevel.InstrErrInvalidInstructionData
		}
		if instrType == InstrTypeDeposit {
			if err = checkNumOfAccounts(accts, 3); err != nil {
				return err
			}
			execCtx.Logf("Instruction: Deposit")
			return processDeposit(execCtx, programId, accts[0], accts[1], instr.Amount)
		}
		if err = checkNumOfAccounts(accts, 2); err != nil {
			return err
		}
		execCtx.Logf("Instruction: Withdraw")
		return processWithdraw(programId, accts[0], accts[1], instr.Amount)

	case InstrTypeClose:
		if err = checkNumOfAccounts(accts, 2); err != nil {
			return err
		}
		execCtx.Logf("Instruction: Close")
		return processClose(programId, accts[0], accts[1])

	default:
		klog.Errorf("unsupported vault instruction %d", instrType)
		return sealevel.InstrErrInvalidInstructionData
	}
}

func checkNumOfAccounts(accts []*sealevel.AccountInfo, n int) error {
	if len(accts) < n {
		return fmt.Errorf("%w: vault instruction wants %d accounts, got %d", sealevel.InstrErrNotEnoughAccountKeys, n, len(accts))
	}
	return nil
}

func loadVault(programId solana.PublicKey, info *sealevel.AccountInfo) (*Vault, error) {
	if !info.IsOwnedBy(programId) {
		return nil, sealevel.InstrErrInvalidAccountOwner
	}
	vault, err := UnpackVault(info.Data())
	if err != nil {
		return nil, ErrInvalidVault
	}
	return vault, nil
}

func storeVault(info *sealevel.AccountInfo, vault *Vault) error {
	if !info.IsWritable() {
		return fmt.Errorf("%w: %s", sealevel.InstrErrReadonlyDataModified, info.Key())
	}
	copy(info.Data(), vault.Pack())
	return nil
}

func checkAuthority(vault *Vault, authority *sealevel.AccountInfo) error {
	if vault.Authority != authority.Key() {
		return ErrUnauthorized
	}
	if !authority.IsSigner() {
		return sealevel.InstrErrMissingRequiredSignature
	}
	return nil
}

func processInitialize(execCtx *sealevel.ExecutionCtx, programId solana.PublicKey, authority *sealevel.AccountInfo, vaultInfo *sealevel.AccountInfo) error {
	if !authority.IsSigner() {
		return sealevel.InstrErrMissingRequiredSignature
	}

	authorityKey := authority.Key()
	seeds := [][]byte{VaultSeed, authorityKey[:]}
	addr, bump, err := pda.FindProgramAddress(seeds, programId)
	if err != nil {
		return fmt.Errorf("%w: %w", sealevel.InstrErrInvalidSeeds, err)
	}
	if addr != vaultInfo.Key() {
		klog.Errorf("vault %s does not derive from authority %s", vaultInfo.Key(), authorityKey)
		return sealevel.InstrErrInvalidSeeds
	}

	r := execCtx.Rent()
	create := sealevel.NewCreateAccountInstruction(authorityKey, addr, r.MinimumBalance(VaultLen), VaultLen, programId)
	signerSeeds := [][][]byte{append(seeds, []byte{bump})}
	if err = execCtx.InvokeSigned(create, signerSeeds); err != nil {
		return err
	}

	return storeVault(vaultInfo, &Vault{Authority: authorityKey, Bump: bump})
}

func processDeposit(execCtx *sealevel.ExecutionCtx, programId solana.PublicKey, depositor *sealevel.AccountInfo, vaultInfo *sealevel.AccountInfo, amount uint64) error {
	vault, err := loadVault(programId, vaultInfo)
	if err != nil {
		return err
	}

	if err = execCtx.Invoke(sealevel.NewTransferInstruction(depositor.Key(), vaultInfo.Key(), amount)); err != nil {
		return err
	}

	deposits, ok := safemath.CheckedAddU64(vault.Deposits, amount)
	if !ok {
		return ErrOverflow
	}
	vault.Deposits = deposits
	return storeVault(vaultInfo, vault)
}

func processWithdraw(programId solana.PublicKey, authority *sealevel.AccountInfo, vaultInfo *sealevel.AccountInfo, amount uint64) error {
	vault, err := loadVault(programId, vaultInfo)
	if err != nil {
		return err
	}
	if err = checkAuthority(vault, authority); err != nil {
		return err
	}

	if err = vaultInfo.CheckedSubLamports(amount); err != nil {
		return sealevel.InstrErrInsufficientFunds
	}
	if err = authority.CheckedAddLamports(amount); err != nil {
		return ErrOverflow
	}

	// Deposits is not bounded by amount: withdrawing into the rent reserve
	// underflows the counter. The vault fuzz target finds this.
	vault.Deposits -= amount
	return storeVault(vaultInfo, vault)
}

func processClose(programId solana.PublicKey, authority *sealevel.AccountInfo, vaultInfo *sealevel.AccountInfo) error {
	vault, err := loadVault(programId, vaultInfo)
	if err != nil {
		return err
	}
	if err = checkAuthority(vault, authority); err != nil {
		return err
	}

	if err = authority.CheckedAddLamports(vaultInfo.Lamports()); err != nil {
		return ErrOverflow
	}
	vaultInfo.SetLamports(0)

	if err = vaultInfo.Realloc(0, false); err != nil {
		return err
	}
	vaultInfo.Assign(solana.SystemProgramID)
	return nil
}
