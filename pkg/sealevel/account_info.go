package sealevel

import (
	"encoding/binary"
	"fmt"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/safemath"
	"github.com/gagliardetto/solana-go"
)

// AccountInfo is a borrowed view of one account record inside a packed
// Parameters buffer. Every accessor reads and writes the buffer directly, so
// changes are visible through all handles of a duplicated account.
type AccountInfo struct {
	params *Parameters
	off    uint64
}

func (a *AccountInfo) at(fieldOff uint64) []byte {
	return a.params.buf[a.off+fieldOff:]
}

func (a *AccountInfo) Key() solana.PublicKey {
	return solana.PublicKeyFromBytes(a.at(offKey)[:solana.PublicKeyLength])
}

func (a *AccountInfo) Owner() solana.PublicKey {
	return solana.PublicKeyFromBytes(a.at(offOwner)[:solana.PublicKeyLength])
}

func (a *AccountInfo) IsSigner() bool {
	return a.at(offIsSigner)[0] != 0
}

func (a *AccountInfo) IsWritable() bool {
	return a.at(offIsWritable)[0] != 0
}

func (a *AccountInfo) Executable() bool {
	return a.at(offExecutable)[0] != 0
}

func (a *AccountInfo) Lamports() uint64 {
	return binary.LittleEndian.Uint64(a.at(offLamports))
}

func (a *AccountInfo) SetLamports(lamports uint64) {
	binary.LittleEndian.PutUint64(a.at(offLamports), lamports)
}

func (a *AccountInfo) CheckedAddLamports(lamports uint64) error {
	sum, ok := safemath.CheckedAddU64(a.Lamports(), lamports)
	if !ok {
		return fmt.Errorf("%w: adding %d lamports to %s (balance %d)", InstrErrArithmeticOverflow, lamports, a.Key(), a.Lamports())
	}
	a.SetLamports(sum)
	return nil
}

func (a *AccountInfo) CheckedSubLamports(lamports uint64) error {
	diff, ok := safemath.CheckedSubU64(a.Lamports(), lamports)
	if !ok {
		return fmt.Errorf("%w: subtracting %d lamports from %s (balance %d)", InstrErrArithmeticOverflow, lamports, a.Key(), a.Lamports())
	}
	a.SetLamports(diff)
	return nil
}

func (a *AccountInfo) DataLen() uint64 {
	return binary.LittleEndian.Uint64(a.at(offDataLen))
}

// OriginalDataLen is the data length at the time the buffer was packed.
func (a *AccountInfo) OriginalDataLen() uint64 {
	return uint64(binary.LittleEndian.Uint32(a.at(offOriginalDataLen)))
}

// Data returns the account data, aliasing the packed buffer. Its capacity is
// clipped so appends cannot run into the reserved growth region.
func (a *AccountInfo) Data() []byte {
	start := a.off + offData
	end := start + a.DataLen()
	return a.params.buf[start:end:end]
}

// Realloc resizes the data segment within the growth region reserved when
// the buffer was packed.
func (a *AccountInfo) Realloc(newLen uint64, zeroInit bool) error {
	origLen := a.OriginalDataLen()
	if newLen > origLen+MaxPermittedDataIncrease || newLen > SystemProgMaxPermittedDataLen {
		return fmt.Errorf("%w: account %s, requested %d bytes, original length %d", InstrErrInvalidRealloc, a.Key(), newLen, origLen)
	}

	oldLen := a.DataLen()
	if newLen > oldLen && zeroInit {
		start := a.off + offData
		clear(a.params.buf[start+oldLen : start+newLen])
	}
	binary.LittleEndian.PutUint64(a.at(offDataLen), newLen)
	return nil
}

func (a *AccountInfo) Assign(owner solana.PublicKey) {
	copy(a.at(offOwner), owner[:])
}

func (a *AccountInfo) RentEpoch() uint64 {
	return binary.LittleEndian.Uint64(a.at(offData + alignedLen(a.OriginalDataLen()) + MaxPermittedDataIncrease))
}

func (a *AccountInfo) IsClosed() bool {
	return a.Owner() == solana.SystemProgramID && a.DataLen() == 0 && a.Lamports() == 0
}

func (a *AccountInfo) IsOwnedBy(programId solana.PublicKey) bool {
	return a.Owner() == programId
}

// Account copies the current state of the view into a standalone record.
func (a *AccountInfo) Account() *accounts.Account {
	acct := &accounts.Account{
		Lamports:   a.Lamports(),
		Owner:      a.Owner(),
		Executable: a.Executable(),
		RentEpoch:  a.RentEpoch(),
	}
	acct.SetData(a.Data())
	return acct
}

func (a *AccountInfo) String() string {
	return fmt.Sprintf("AccountInfo{%s owner=%s lamports=%d len=%d signer=%t writable=%t}",
		a.Key(), a.Owner(), a.Lamports(), a.DataLen(), a.IsSigner(), a.IsWritable())
}
