// Package token implements the subset of the SPL token program the harness
// routes automatically, along with the packed Mint and Account layouts.
package token

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var ProgramID = solana.TokenProgramID

const (
	MintLen    = 82
	AccountLen = 165
)

type AccountState uint8

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

type Account struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

func (acct *Account) IsFrozen() bool {
	return acct.State == AccountStateFrozen
}

func readCOptionTag(decoder *bin.Decoder) (bool, error) {
	tag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return false, err
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid COption tag %d", tag)
	}
}

func readCOptionPubkey(decoder *bin.Decoder) (*solana.PublicKey, error) {
	present, err := readCOptionTag(decoder)
	if err != nil {
		return nil, err
	}
	pk, err := decoder.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	key := solana.PublicKeyFromBytes(pk)
	return &key, nil
}

func writeCOptionPubkey(encoder *bin.Encoder, key *solana.PublicKey) error {
	if key == nil {
		_ = encoder.WriteUint32(0, bin.LE)
		return encoder.WriteBytes(make([]byte, solana.PublicKeyLength), false)
	}
	_ = encoder.WriteUint32(1, bin.LE)
	return encoder.WriteBytes(key[:], false)
}

func readPubkey(decoder *bin.Decoder) (solana.PublicKey, error) {
	pk, err := decoder.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(pk), nil
}

func (mint *Mint) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	mint.MintAuthority, err = readCOptionPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read MintAuthority when decoding Mint: %w", err)
	}

	mint.Supply, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Supply when decoding Mint: %w", err)
	}

	mint.Decimals, err = decoder.ReadUint8()
	if err != nil {
		return fmt.Errorf("failed to read Decimals when decoding Mint: %w", err)
	}

	mint.IsInitialized, err = decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read IsInitialized when decoding Mint: %w", err)
	}

	mint.FreezeAuthority, err = readCOptionPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read FreezeAuthority when decoding Mint: %w", err)
	}
	return nil
}

func (mint *Mint) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = writeCOptionPubkey(encoder, mint.MintAuthority)
	_ = encoder.WriteUint64(mint.Supply, bin.LE)
	_ = encoder.WriteUint8(mint.Decimals)
	_ = encoder.WriteBool(mint.IsInitialized)
	return writeCOptionPubkey(encoder, mint.FreezeAuthority)
}

func (mint *Mint) Pack() []byte {
	buf := new(bytes.Buffer)
	if err := mint.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		panic(err.Error())
	}
	return buf.Bytes()
}

func UnpackMint(data []byte) (*Mint, error) {
	if len(data) != MintLen {
		return nil, fmt.Errorf("mint data must be %d bytes, got %d", MintLen, len(data))
	}
	var mint Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return &mint, nil
}

func (acct *Account) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	acct.Mint, err = readPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Mint when decoding token Account: %w", err)
	}

	acct.Owner, err = readPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Owner when decoding token Account: %w", err)
	}

	acct.Amount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Amount when decoding token Account: %w", err)
	}

	acct.Delegate, err = readCOptionPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Delegate when decoding token Account: %w", err)
	}

	state, err := decoder.ReadUint8()
	if err != nil {
		return fmt.Errorf("failed to read State when decoding token Account: %w", err)
	}
	if state > uint8(AccountStateFrozen) {
		return fmt.Errorf("invalid token account state %d", state)
	}
	acct.State = AccountState(state)

	isNative, err := readCOptionTag(decoder)
	if err != nil {
		return fmt.Errorf("failed to read IsNative when decoding token Account: %w", err)
	}
	reserve, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read IsNative when decoding token Account: %w", err)
	}
	if isNative {
		acct.IsNative = &reserve
	} else {
		acct.IsNative = nil
	}

	acct.DelegatedAmount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read DelegatedAmount when decoding token Account: %w", err)
	}

	acct.CloseAuthority, err = readCOptionPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read CloseAuthority when decoding token Account: %w", err)
	}
	return nil
}

func (acct *Account) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteBytes(acct.Mint[:], false)
	_ = encoder.WriteBytes(acct.Owner[:], false)
	_ = encoder.WriteUint64(acct.Amount, bin.LE)
	_ = writeCOptionPubkey(encoder, acct.Delegate)
	_ = encoder.WriteUint8(uint8(acct.State))
	if acct.IsNative == nil {
		_ = encoder.WriteUint32(0, bin.LE)
		_ = encoder.WriteUint64(0, bin.LE)
	} else {
		_ = encoder.WriteUint32(1, bin.LE)
		_ = encoder.WriteUint64(*acct.IsNative, bin.LE)
	}
	_ = encoder.WriteUint64(acct.DelegatedAmount, bin.LE)
	return writeCOptionPubkey(encoder, acct.CloseAuthority)
}

func (acct *Account) Pack() []byte {
	buf := new(bytes.Buffer)
	if err := acct.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		panic(err.Error())
	}
	return buf.Bytes()
}

func UnpackAccount(data []byte) (*Account, error) {
	if len(data) != AccountLen {
		return nil, fmt.Errorf("token account data must be %d bytes, got %d", AccountLen, len(data))
	}
	var acct Account
	if err := acct.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return &acct, nil
}
