package sealevel

import (
	"encoding/binary"
	"fmt"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/gagliardetto/solana-go"
)

const (
	MaxPermittedDataIncrease = 1024 * 10
	NonDupMarker             = 0xff
	alignmentMask            = uint64(7)
)

// offsets within a full (non-duplicate) account record
const (
	offIsSigner        = 1
	offIsWritable      = 2
	offExecutable      = 3
	offOriginalDataLen = 4
	offKey             = 8
	offOwner           = offKey + solana.PublicKeyLength
	offLamports        = offOwner + solana.PublicKeyLength
	offDataLen         = offLamports + 8
	offData            = offDataLen + 8
)

// SerializedAccount is one instruction account handed to the packer. A
// duplicate carries only the position of its first occurrence.
type SerializedAccount struct {
	IsDuplicate bool
	IndexOfAcct uint8
	Pubkey      solana.PublicKey
	IsSigner    bool
	IsWritable  bool
	Account     *accounts.Account
}

// Parameters is a packed input buffer in the aligned loader layout.
type Parameters struct {
	buf          []byte
	instrDataOff uint64
	instrDataLen uint64
	infos        []*AccountInfo
}

func alignedLen(n uint64) uint64 {
	return n + (-n & alignmentMask)
}

func fullRecordSize(dataLen uint64) uint64 {
	return offData + alignedLen(dataLen) + MaxPermittedDataIncrease + 8
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SerializeParameters packs accts, the instruction data and the program id.
// The buffer size is computed up front; a write cursor that ends anywhere
// else means the layout arithmetic is broken, and it panics.
func SerializeParameters(accts []SerializedAccount, instrData []byte, programId solana.PublicKey) *Parameters {
	size := uint64(8)
	for _, acct := range accts {
		size += 1 // dup

		if acct.IsDuplicate {
			size += 7 // padding to 64-bit aligned
		} else {
			size += fullRecordSize(uint64(len(acct.Account.Data))) - 1
		}
	}
	size += 8 + uint64(len(instrData)) // instr data len + data
	size += solana.PublicKeyLength     // program id

	buf := make([]byte, size)
	var off uint64

	binary.LittleEndian.PutUint64(buf[off:], uint64(len(accts)))
	off += 8

	for i, acct := range accts {
		if acct.IsDuplicate {
			if int(acct.IndexOfAcct) >= i || accts[acct.IndexOfAcct].IsDuplicate {
				panic(fmt.Sprintf("duplicate account %d points at %d, which is not a first occurrence", i, acct.IndexOfAcct))
			}
			buf[off] = acct.IndexOfAcct
			off += 8
			continue
		}

		dataLen := uint64(len(acct.Account.Data))

		buf[off] = NonDupMarker
		buf[off+offIsSigner] = boolToByte(acct.IsSigner)
		buf[off+offIsWritable] = boolToByte(acct.IsWritable)
		buf[off+offExecutable] = boolToByte(acct.Account.Executable)
		binary.LittleEndian.PutUint32(buf[off+offOriginalDataLen:], uint32(dataLen))
		copy(buf[off+offKey:], acct.Pubkey[:])
		copy(buf[off+offOwner:], acct.Account.Owner[:])
		binary.LittleEndian.PutUint64(buf[off+offLamports:], acct.Account.Lamports)
		binary.LittleEndian.PutUint64(buf[off+offDataLen:], dataLen)
		copy(buf[off+offData:], acct.Account.Data)

		off += offData + alignedLen(dataLen) + MaxPermittedDataIncrease
		binary.LittleEndian.PutUint64(buf[off:], acct.Account.RentEpoch)
		off += 8
	}

	binary.LittleEndian.PutUint64(buf[off:], uint64(len(instrData)))
	off += 8
	instrDataOff := off
	copy(buf[off:], instrData)
	off += uint64(len(instrData))
	copy(buf[off:], programId[:])
	off += solana.PublicKeyLength

	// sanity check for expected len vs. serialized data size
	if off != size {
		panic(fmt.Sprintf("mismatch between serialized data (%d) and expected length (%d)", off, size))
	}

	return &Parameters{buf: buf, instrDataOff: instrDataOff, instrDataLen: uint64(len(instrData))}
}

// Deserialize builds the account views over the packed buffer, one per
// instruction account. Duplicates share the handle of their first occurrence.
// Views are built once; later calls return the same handles.
func (p *Parameters) Deserialize() []*AccountInfo {
	if p.infos != nil {
		return p.infos
	}

	buf := p.buf
	var off uint64

	numAccts := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	infos := make([]*AccountInfo, numAccts)
	for i := range infos {
		marker := buf[off]
		if marker != NonDupMarker {
			if int(marker) >= i {
				panic(fmt.Sprintf("duplicate account %d points forward to %d", i, marker))
			}
			infos[i] = infos[marker]
			off += 8
			continue
		}

		info := &AccountInfo{params: p, off: off}
		infos[i] = info
		off += fullRecordSize(info.OriginalDataLen())
	}

	instrDataLen := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	if off != p.instrDataOff || instrDataLen != p.instrDataLen {
		panic(fmt.Sprintf("unpacker desynchronized: instruction data at %d, packer wrote %d", off, p.instrDataOff))
	}
	off += instrDataLen
	off += solana.PublicKeyLength

	if off != uint64(len(buf)) {
		panic(fmt.Sprintf("unpacker consumed %d bytes of a %d byte buffer", off, len(buf)))
	}

	p.infos = infos
	return infos
}

func (p *Parameters) Bytes() []byte {
	return p.buf
}

func (p *Parameters) InstructionData() []byte {
	end := p.instrDataOff + p.instrDataLen
	return p.buf[p.instrDataOff:end:end]
}

func (p *Parameters) ProgramId() solana.PublicKey {
	return solana.PublicKeyFromBytes(p.buf[uint64(len(p.buf))-solana.PublicKeyLength:])
}
