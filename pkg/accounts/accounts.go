package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/zeebo/blake3"
)

var (
	ErrAccountNotFound  = errors.New("ErrAccountNotFound")
	ErrMalformedAccount = errors.New("ErrMalformedAccount")
)

// MaxDataLen is the largest account data size the runtime permits.
const MaxDataLen = 10 * 1024 * 1024

type Accounts interface {
	GetAccount(pubkey solana.PublicKey) (*Account, error)
	SetAccount(pubkey solana.PublicKey, acct *Account) error
	RemoveAccount(pubkey solana.PublicKey) error
	Keys() []solana.PublicKey
	Len() int
}

type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      solana.PublicKey
	Executable bool
	RentEpoch  uint64
}

// NewAccount returns a zeroed account of the given size.
func NewAccount(lamports uint64, space uint64, owner solana.PublicKey) *Account {
	return &Account{Lamports: lamports, Data: make([]byte, space), Owner: owner}
}

func (a *Account) Clone() *Account {
	c := *a
	c.Data = make([]byte, len(a.Data))
	copy(c.Data, a.Data)
	return &c
}

// IsClosed reports whether the account no longer represents live state: owned
// by the system program, no data, and no lamports.
func (a *Account) IsClosed() bool {
	return a.Owner == solana.SystemProgramID && len(a.Data) == 0 && a.Lamports == 0
}

// Validate reports records no program could have produced.
func (a *Account) Validate() error {
	if len(a.Data) > MaxDataLen {
		return fmt.Errorf("%w: %d bytes of data, max is %d", ErrMalformedAccount, len(a.Data), MaxDataLen)
	}
	return nil
}

func (a *Account) SetData(data []byte) {
	a.Data = make([]byte, len(data))
	copy(a.Data, data)
}

func (a *Account) Resize(newLen uint64) {
	if uint64(len(a.Data)) >= newLen {
		a.Data = a.Data[:newLen]
		return
	}
	a.Data = append(a.Data, make([]byte, newLen-uint64(len(a.Data)))...)
}

func (a *Account) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	a.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	var dataLen uint64
	dataLen, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	if dataLen > uint64(decoder.Remaining()) {
		return io.ErrUnexpectedEOF
	}
	a.Data, err = decoder.ReadNBytes(int(dataLen))
	if err != nil {
		return err
	}
	owner, err := decoder.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	a.Owner = solana.PublicKeyFromBytes(owner)
	a.Executable, err = decoder.ReadBool()
	if err != nil {
		return err
	}
	a.RentEpoch, err = decoder.ReadUint64(bin.LE)
	return
}

func (a *Account) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(a.Lamports, bin.LE)
	_ = encoder.WriteUint64(uint64(len(a.Data)), bin.LE)
	_ = encoder.WriteBytes(a.Data, false)
	_ = encoder.WriteBytes(a.Owner[:], false)
	_ = encoder.WriteBool(a.Executable)
	return encoder.WriteUint64(a.RentEpoch, bin.LE)
}

// Hash computes the blake3 digest of the account as stored under pubkey.
func (a *Account) Hash(pubkey solana.PublicKey) [32]byte {
	hasher := blake3.New()

	var lamportBytes [8]byte
	binary.LittleEndian.PutUint64(lamportBytes[:], a.Lamports)
	_, _ = hasher.Write(lamportBytes[:])

	var rentEpochBytes [8]byte
	binary.LittleEndian.PutUint64(rentEpochBytes[:], a.RentEpoch)
	_, _ = hasher.Write(rentEpochBytes[:])

	_, _ = hasher.Write(a.Data)

	if a.Executable {
		_, _ = hasher.Write([]byte{1})
	} else {
		_, _ = hasher.Write([]byte{0})
	}

	_, _ = hasher.Write(a.Owner[:])
	_, _ = hasher.Write(pubkey[:])

	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out
}

// StateHash folds the hashes of every account in key order. Two stores with
// identical contents always produce the same value.
func StateHash(accts Accounts) [32]byte {
	hasher := blake3.New()
	for _, key := range accts.Keys() {
		acct, err := accts.GetAccount(key)
		if err != nil {
			continue
		}
		h := acct.Hash(key)
		_, _ = hasher.Write(h[:])
	}
	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out
}
