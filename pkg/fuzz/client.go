package fuzz

import (
	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/lightclient"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
)

// Client is the harness surface fuzz instructions drive.
type Client interface {
	Process(ix sealevel.Instruction) error
	TraceLength() uint64
	GetAccount(key solana.PublicKey) (*accounts.Account, error)
	GetAccounts(metas []sealevel.AccountMeta) ([]*accounts.Account, error)
	GetRent() sealevel.SysvarRent
	GetClock() sealevel.SysvarClock

	SetAccountCustom(key solana.PublicKey, acct *accounts.Account)
	SetAccount(lamports uint64) solana.PrivateKey
	SetDataAccount(lamports uint64, space uint64) solana.PrivateKey
	SetPdaAccount(seeds [][]byte, programId solana.PublicKey) (lightclient.PdaStore, error)
	SetPdaDataAccount(seeds [][]byte, programId solana.PublicKey, space uint64) (lightclient.PdaStore, error)
	SetTokenAccount(mint solana.PublicKey, owner solana.PublicKey, amount uint64, delegate *solana.PublicKey, isNative *uint64, delegatedAmount uint64, closeAuthority *solana.PublicKey) solana.PublicKey
	SetMintAccount(decimals uint8, authority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.PublicKey
}

var _ Client = (*lightclient.LightClient)(nil)
