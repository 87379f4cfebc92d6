package token

import (
	"bytes"

	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	InstrTypeInitializeMint    = 0
	InstrTypeInitializeAccount = 1
	InstrTypeTransfer          = 3
	InstrTypeMintTo            = 7
	InstrTypeBurn              = 8
	InstrTypeCloseAccount      = 9
)

type InstrInitializeMint struct {
	Decimals        byte
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

// InstrAmount is the body shared by Transfer, MintTo and Burn.
type InstrAmount struct {
	Amount uint64
}

func (instr *InstrInitializeMint) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Decimals, err = decoder.ReadUint8()
	if err != nil {
		return err
	}

	instr.MintAuthority, err = readPubkey(decoder)
	if err != nil {
		return err
	}

	hasFreeze, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	switch hasFreeze {
	case 0:
		instr.FreezeAuthority = nil
	case 1:
		freeze, err := readPubkey(decoder)
		if err != nil {
			return err
		}
		instr.FreezeAuthority = &freeze
	default:
		return sealevel.InstrErrInvalidInstructionData
	}
	return nil
}

func (instr *InstrInitializeMint) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint8(InstrTypeInitializeMint)
	_ = encoder.WriteUint8(instr.Decimals)
	_ = encoder.WriteBytes(instr.MintAuthority[:], false)
	if instr.FreezeAuthority == nil {
		return encoder.WriteUint8(0)
	}
	_ = encoder.WriteUint8(1)
	return encoder.WriteBytes(instr.FreezeAuthority[:], false)
}

func (instr *InstrAmount) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	instr.Amount, err = decoder.ReadUint64(bin.LE)
	return
}

func newInstruction(data []byte, accountMetas []sealevel.AccountMeta) sealevel.Instruction {
	return sealevel.Instruction{ProgramId: ProgramID, Accounts: accountMetas, Data: data}
}

func amountData(instrType byte, amount uint64) []byte {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	_ = encoder.WriteUint8(instrType)
	_ = encoder.WriteUint64(amount, bin.LE)
	return buf.Bytes()
}

func NewInitializeMintInstruction(mint solana.PublicKey, decimals byte, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) sealevel.Instruction {
	instr := InstrInitializeMint{Decimals: decimals, MintAuthority: mintAuthority, FreezeAuthority: freezeAuthority}
	buf := new(bytes.Buffer)
	if err := instr.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		panic("shouldn't fail")
	}
	return newInstruction(buf.Bytes(), []sealevel.AccountMeta{
		sealevel.NewAccountMeta(mint, true, false),
		sealevel.NewAccountMeta(sealevel.SysvarRentAddr, false, false),
	})
}

func NewInitializeAccountInstruction(account solana.PublicKey, mint solana.PublicKey, owner solana.PublicKey) sealevel.Instruction {
	return newInstruction([]byte{InstrTypeInitializeAccount}, []sealevel.AccountMeta{
		sealevel.NewAccountMeta(account, true, false),
		sealevel.NewAccountMeta(mint, false, false),
		sealevel.NewAccountMeta(owner, false, false),
		sealevel.NewAccountMeta(sealevel.SysvarRentAddr, false, false),
	})
}

func NewTransferInstruction(source solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey, amount uint64) sealevel.Instruction {
	return newInstruction(amountData(InstrTypeTransfer, amount), []sealevel.AccountMeta{
		sealevel.NewAccountMeta(source, true, false),
		sealevel.NewAccountMeta(destination, true, false),
		sealevel.NewAccountMeta(authority, false, true),
	})
}

func NewMintToInstruction(mint solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey, amount uint64) sealevel.Instruction {
	return newInstruction(amountData(InstrTypeMintTo, amount), []sealevel.AccountMeta{
		sealevel.NewAccountMeta(mint, true, false),
		sealevel.NewAccountMeta(destination, true, false),
		sealevel.NewAccountMeta(authority, false, true),
	})
}

func NewBurnInstruction(account solana.PublicKey, mint solana.PublicKey, authority solana.PublicKey, amount uint64) sealevel.Instruction {
	return newInstruction(amountData(InstrTypeBurn, amount), []sealevel.AccountMeta{
		sealevel.NewAccountMeta(account, true, false),
		sealevel.NewAccountMeta(mint, true, false),
		sealevel.NewAccountMeta(authority, false, true),
	})
}

func NewCloseAccountInstruction(account solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey) sealevel.Instruction {
	return newInstruction([]byte{InstrTypeCloseAccount}, []sealevel.AccountMeta{
		sealevel.NewAccountMeta(account, true, false),
		sealevel.NewAccountMeta(destination, true, false),
		sealevel.NewAccountMeta(authority, false, true),
	})
}
