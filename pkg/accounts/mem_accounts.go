package accounts

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/tidwall/btree"
)

type memEntry struct {
	key  solana.PublicKey
	acct *Account
}

// MemAccounts is the in-memory account store owned by a single harness
// instance. Records are copied on the way in and on the way out. Records are
// stored as given and validated when loaded.
type MemAccounts struct {
	tree *btree.BTreeG[memEntry]
}

func NewMemAccounts() *MemAccounts {
	return &MemAccounts{
		tree: btree.NewBTreeG(func(a, b memEntry) bool {
			return bytes.Compare(a.key[:], b.key[:]) < 0
		}),
	}
}

func (m *MemAccounts) GetAccount(pubkey solana.PublicKey) (*Account, error) {
	entry, ok := m.tree.Get(memEntry{key: pubkey})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	if err := entry.acct.Validate(); err != nil {
		return nil, fmt.Errorf("account %s: %w", pubkey, err)
	}
	return entry.acct.Clone(), nil
}

func (m *MemAccounts) SetAccount(pubkey solana.PublicKey, acct *Account) error {
	if acct == nil {
		return fmt.Errorf("%w: nil account for %s", ErrMalformedAccount, pubkey)
	}
	m.tree.Set(memEntry{key: pubkey, acct: acct.Clone()})
	return nil
}

func (m *MemAccounts) RemoveAccount(pubkey solana.PublicKey) error {
	if _, ok := m.tree.Delete(memEntry{key: pubkey}); !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	return nil
}

func (m *MemAccounts) Keys() []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, m.tree.Len())
	m.tree.Scan(func(entry memEntry) bool {
		keys = append(keys, entry.key)
		return true
	})
	return keys
}

func (m *MemAccounts) Len() int {
	return m.tree.Len()
}
