// Package snapshot captures the accounts an instruction touches before and
// after it runs, and hands both sides to invariant checks.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
)

var ErrNotCaptured = errors.New("ErrNotCaptured")

type State int

const (
	StateAbsent State = iota
	StateRaw
	StateTyped
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateRaw:
		return "raw"
	case StateTyped:
		return "typed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Entry is one account as seen by a snapshot. Account is a private copy; Err
// holds the decoder failure for raw entries.
type Entry struct {
	Key     solana.PublicKey
	State   State
	Account *accounts.Account
	Value   any
	Err     error
}

// Typed returns the decoded value of e if it has type T.
func Typed[T any](e Entry) (T, bool) {
	var zero T
	if e.State != StateTyped {
		return zero, false
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// AccountsReader is the read side of a harness.
type AccountsReader interface {
	GetAccounts(metas []sealevel.AccountMeta) ([]*accounts.Account, error)
}

type Snapshot struct {
	metas    []sealevel.AccountMeta
	decoders []Decoder
	before   []Entry
	after    []Entry
}

// New prepares a snapshot of metas. decoders[i] types metas[i]; missing or
// nil decoders leave the account raw.
func New(metas []sealevel.AccountMeta, decoders []Decoder) *Snapshot {
	return &Snapshot{metas: metas, decoders: decoders}
}

func (s *Snapshot) capture(reader AccountsReader) ([]Entry, error) {
	accts, err := reader.GetAccounts(s.metas)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(s.metas))
	for idx, meta := range s.metas {
		entry := Entry{Key: meta.Pubkey}
		acct := accts[idx]
		if acct == nil {
			entries[idx] = entry
			continue
		}

		entry.Account = acct
		entry.State = StateRaw

		var decoder Decoder
		if idx < len(s.decoders) {
			decoder = s.decoders[idx]
		}
		if decoder != nil {
			entry.Value, entry.Err = decoder(meta.Pubkey, acct.Clone())
			if entry.Err == nil {
				entry.State = StateTyped
			} else {
				entry.Value = nil
			}
		}
		entries[idx] = entry
	}
	return entries, nil
}

func (s *Snapshot) CaptureBefore(reader AccountsReader) error {
	entries, err := s.capture(reader)
	if err != nil {
		return err
	}
	s.before = entries
	return nil
}

func (s *Snapshot) CaptureAfter(reader AccountsReader) error {
	entries, err := s.capture(reader)
	if err != nil {
		return err
	}
	s.after = entries
	return nil
}

// Before returns the entries of the last CaptureBefore.
func (s *Snapshot) Before() ([]Entry, error) {
	if s.before == nil {
		return nil, ErrNotCaptured
	}
	return s.before, nil
}

func (s *Snapshot) Pair() (Pair, error) {
	if s.before == nil || s.after == nil {
		return Pair{}, ErrNotCaptured
	}
	return Pair{Metas: s.metas, Before: s.before, After: s.after}, nil
}

// Pair is the before and after view of one instruction's accounts, indexed
// like the instruction's metas.
type Pair struct {
	Metas  []sealevel.AccountMeta
	Before []Entry
	After  []Entry
}

// Lookup finds the first entry pair for key.
func (p Pair) Lookup(key solana.PublicKey) (Entry, Entry, bool) {
	for idx, meta := range p.Metas {
		if meta.Pubkey == key {
			return p.Before[idx], p.After[idx], true
		}
	}
	return Entry{}, Entry{}, false
}

// Changed lists the keys whose stored account differs between the two sides.
func (p Pair) Changed() []solana.PublicKey {
	var changed []solana.PublicKey
	seen := make(map[solana.PublicKey]struct{}, len(p.Metas))
	for idx, meta := range p.Metas {
		if _, ok := seen[meta.Pubkey]; ok {
			continue
		}
		seen[meta.Pubkey] = struct{}{}
		if !sameAccount(p.Before[idx].Account, p.After[idx].Account) {
			changed = append(changed, meta.Pubkey)
		}
	}
	return changed
}

func sameAccount(a, b *accounts.Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}
