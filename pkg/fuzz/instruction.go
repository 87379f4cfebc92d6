package fuzz

import (
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/Overclock-Validator/solfuzz/pkg/snapshot"
)

// Instruction is one fuzzed instruction. A is the per-iteration account
// storage shared by every instruction of a FuzzData.
type Instruction[A any] interface {
	Name() string
	Accounts(client Client, accts *A) ([]sealevel.AccountMeta, error)
	Data(client Client, accts *A) ([]byte, error)
	// Decoders type the accounts returned by Accounts, index for index.
	Decoders() []snapshot.Decoder
	Check(pair snapshot.Pair, data []byte) error
}

// TxErrorHandler is implemented by instructions that want to see failed
// submissions. Returning an error turns the failure into a finding.
type TxErrorHandler interface {
	HandleTxError(err error, pair snapshot.Pair, data []byte) error
}

// Factory builds an instruction from fuzzer input.
type Factory[A any] func(u *Unstructured) (Instruction[A], error)

// ArbitraryIxs draws a non-empty instruction sequence of at most maxLen
// elements, each built by one of factories.
func ArbitraryIxs[A any](u *Unstructured, factories []Factory[A], maxLen int) ([]Instruction[A], error) {
	if len(factories) == 0 || u.IsEmpty() {
		return nil, ErrNotEnoughData
	}
	n, err := u.IntInRange(1, uint64(max(maxLen, 1)))
	if err != nil {
		return nil, err
	}

	ixs := make([]Instruction[A], 0, n)
	for i := uint64(0); i < n && !u.IsEmpty(); i++ {
		choice, err := u.Choose(len(factories))
		if err != nil {
			break
		}
		ix, err := factories[choice](u)
		if err != nil {
			break
		}
		ixs = append(ixs, ix)
	}
	if len(ixs) == 0 {
		return nil, ErrNotEnoughData
	}
	return ixs, nil
}
