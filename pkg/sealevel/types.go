package sealevel

import (
	"github.com/gagliardetto/solana-go"
)

const MaxInstructionAccounts = 255

type Instruction struct {
	ProgramId solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

type AccountMeta struct {
	Pubkey     solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

func NewAccountMeta(pubkey solana.PublicKey, isWritable bool, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: isWritable}
}

// InstructionAccount is one logical account of an instruction after
// duplicate metas have been folded into their first occurrence.
type InstructionAccount struct {
	Pubkey        solana.PublicKey
	IndexInCallee uint64
	IsSigner      bool
	IsWritable    bool
}

// dedupeMetas folds duplicate metas into the first occurrence of each key,
// OR'ing the signer and writable flags upward. positions maps every meta to
// its slot in the returned slice.
func dedupeMetas(metas []AccountMeta) ([]InstructionAccount, []int) {
	dedup := make([]InstructionAccount, 0, len(metas))
	positions := make([]int, 0, len(metas))

	for idx, meta := range metas {
		duplicateIndex := -1
		for i, instrAcct := range dedup {
			if instrAcct.Pubkey == meta.Pubkey {
				duplicateIndex = i
				break
			}
		}

		if duplicateIndex != -1 {
			dedup[duplicateIndex].IsSigner = dedup[duplicateIndex].IsSigner || meta.IsSigner
			dedup[duplicateIndex].IsWritable = dedup[duplicateIndex].IsWritable || meta.IsWritable
			positions = append(positions, duplicateIndex)
			continue
		}

		positions = append(positions, len(dedup))
		dedup = append(dedup, InstructionAccount{
			Pubkey:        meta.Pubkey,
			IndexInCallee: uint64(idx),
			IsSigner:      meta.IsSigner,
			IsWritable:    meta.IsWritable,
		})
	}

	return dedup, positions
}
