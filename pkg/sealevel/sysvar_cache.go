package sealevel

import "github.com/gagliardetto/solana-go"

var SysvarOwnerAddr = solana.MustPublicKeyFromBase58("Sysvar1111111111111111111111111111111111111")

// SysvarCache holds the harness controlled environment values handed to
// programs in place of the real sysvar accounts.
type SysvarCache struct {
	Clock SysvarClock
	Rent  SysvarRent
}

func DefaultSysvarCache() SysvarCache {
	return SysvarCache{Rent: DefaultRent()}
}
