package sealevel

import (
	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
)

// InstructionCtx is one frame of the invocation stack.
type InstructionCtx struct {
	ProgramId   solana.PublicKey
	Accounts    []*AccountInfo
	Data        []byte
	Signers     []solana.PublicKey
	StackHeight uint64

	pre map[*AccountInfo]*accounts.Account
}

func (instrCtx *InstructionCtx) AccountByKey(key solana.PublicKey) *AccountInfo {
	acct, ok := lo.Find(instrCtx.Accounts, func(info *AccountInfo) bool {
		return info.Key() == key
	})
	if !ok {
		return nil
	}
	return acct
}

// IsSigner reports whether key signed this frame, either as a signer account
// or as a PDA derived from the seeds the caller presented.
func (instrCtx *InstructionCtx) IsSigner(key solana.PublicKey) bool {
	if lo.Contains(instrCtx.Signers, key) {
		return true
	}
	acct := instrCtx.AccountByKey(key)
	return acct != nil && acct.IsSigner()
}

// UniqueAccounts returns each logical account once, in first-occurrence order.
func (instrCtx *InstructionCtx) UniqueAccounts() []*AccountInfo {
	return lo.Uniq(instrCtx.Accounts)
}

func (instrCtx *InstructionCtx) snapshotAccounts() {
	instrCtx.pre = make(map[*AccountInfo]*accounts.Account, len(instrCtx.Accounts))
	for _, info := range instrCtx.UniqueAccounts() {
		instrCtx.pre[info] = info.Account()
	}
}
