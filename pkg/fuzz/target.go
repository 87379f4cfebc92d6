package fuzz

import (
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
)

const DefaultMaxIxs = 8

// Target describes a program under test and how to derive instruction
// sequences for it from fuzzer input.
type Target[A any] struct {
	Name      string
	ProgramId solana.PublicKey
	Program   sealevel.Program

	NewAccounts  func() *A
	Instructions []Factory[A]
	MaxIxs       int

	// PreIxs and PostIxs optionally bracket the fuzzed sequence.
	PreIxs  func(u *Unstructured) ([]Instruction[A], error)
	PostIxs func(u *Unstructured) ([]Instruction[A], error)
}

// Build derives one iteration's instructions from u.
func (t *Target[A]) Build(u *Unstructured) (*FuzzData[A], error) {
	data := &FuzzData[A]{Accounts: t.NewAccounts()}

	var err error
	if t.PreIxs != nil {
		if data.PreIxs, err = t.PreIxs(u); err != nil {
			return nil, err
		}
	}

	maxIxs := t.MaxIxs
	if maxIxs == 0 {
		maxIxs = DefaultMaxIxs
	}
	if data.Ixs, err = ArbitraryIxs(u, t.Instructions, maxIxs); err != nil {
		return nil, err
	}

	if t.PostIxs != nil {
		if data.PostIxs, err = t.PostIxs(u); err != nil {
			return nil, err
		}
	}
	return data, nil
}
