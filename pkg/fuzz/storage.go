package fuzz

import (
	"slices"

	"github.com/Overclock-Validator/solfuzz/pkg/lightclient"
	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
)

// AccountId names an account slot inside one fuzz iteration. Fuzzed
// instructions pick ids, so a small id space makes instructions collide on
// the same accounts.
type AccountId = uint8

type TokenStore struct {
	Pubkey solana.PublicKey
}

type MintStore struct {
	Pubkey solana.PublicKey
}

// AccountsStorage remembers the accounts created for each id so later
// instructions in the same iteration reuse them.
type AccountsStorage[T any] struct {
	accounts    map[AccountId]T
	maxAccounts uint8
}

func NewAccountsStorage[T any](maxAccounts uint8) *AccountsStorage[T] {
	return &AccountsStorage[T]{accounts: make(map[AccountId]T), maxAccounts: maxAccounts}
}

func (s *AccountsStorage[T]) Get(id AccountId) (T, bool) {
	v, ok := s.accounts[id]
	return v, ok
}

func (s *AccountsStorage[T]) Len() int {
	return len(s.accounts)
}

// Ids returns the occupied ids in ascending order.
func (s *AccountsStorage[T]) Ids() []AccountId {
	ids := lo.Keys(s.accounts)
	slices.Sort(ids)
	return ids
}

// clamp folds id into the configured id space.
func (s *AccountsStorage[T]) clamp(id AccountId) AccountId {
	if s.maxAccounts == 0 {
		return id
	}
	return id % s.maxAccounts
}

func (s *AccountsStorage[T]) getOrCreate(id AccountId, create func() (T, error)) (T, error) {
	id = s.clamp(id)
	if v, ok := s.accounts[id]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	s.accounts[id] = v
	return v, nil
}

func GetOrCreateKeypair(s *AccountsStorage[solana.PrivateKey], id AccountId, client Client, lamports uint64) solana.PrivateKey {
	key, _ := s.getOrCreate(id, func() (solana.PrivateKey, error) {
		return client.SetAccount(lamports), nil
	})
	return key
}

func GetOrCreateDataKeypair(s *AccountsStorage[solana.PrivateKey], id AccountId, client Client, lamports uint64, space uint64) solana.PrivateKey {
	key, _ := s.getOrCreate(id, func() (solana.PrivateKey, error) {
		return client.SetDataAccount(lamports, space), nil
	})
	return key
}

func GetOrCreatePda(s *AccountsStorage[lightclient.PdaStore], id AccountId, client Client, seeds [][]byte, programId solana.PublicKey) (lightclient.PdaStore, error) {
	return s.getOrCreate(id, func() (lightclient.PdaStore, error) {
		return client.SetPdaAccount(seeds, programId)
	})
}

func GetOrCreatePdaData(s *AccountsStorage[lightclient.PdaStore], id AccountId, client Client, seeds [][]byte, programId solana.PublicKey, space uint64) (lightclient.PdaStore, error) {
	return s.getOrCreate(id, func() (lightclient.PdaStore, error) {
		return client.SetPdaDataAccount(seeds, programId, space)
	})
}

func GetOrCreateToken(s *AccountsStorage[TokenStore], id AccountId, client Client, mint solana.PublicKey, owner solana.PublicKey, amount uint64, delegate *solana.PublicKey, isNative *uint64, delegatedAmount uint64, closeAuthority *solana.PublicKey) solana.PublicKey {
	store, _ := s.getOrCreate(id, func() (TokenStore, error) {
		return TokenStore{Pubkey: client.SetTokenAccount(mint, owner, amount, delegate, isNative, delegatedAmount, closeAuthority)}, nil
	})
	return store.Pubkey
}

func GetOrCreateMint(s *AccountsStorage[MintStore], id AccountId, client Client, decimals uint8, authority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.PublicKey {
	store, _ := s.getOrCreate(id, func() (MintStore, error) {
		return MintStore{Pubkey: client.SetMintAccount(decimals, authority, freezeAuthority)}, nil
	})
	return store.Pubkey
}
