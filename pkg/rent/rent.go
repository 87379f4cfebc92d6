package rent

import (
	"errors"
	"fmt"
	"math"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const (
	RentStateUninitialized = iota
	RentStateRentPaying
	RentStateRentExempt
)

var IncineratorAddr = solana.MustPublicKeyFromBase58("1nc1nerator11111111111111111111111111111111")

var ErrInvalidRentPayingAccount = errors.New("ErrInvalidRentPayingAccount")

type RentPayingInfo struct {
	Lamports uint64
	DataSize uint64
}

type RentStateInfo struct {
	RentState      uint64
	RentPayingInfo RentPayingInfo
}

func rentStateFromAcct(lamports uint64, dataLen uint64, rent *sealevel.SysvarRent) *RentStateInfo {
	if lamports == 0 {
		return &RentStateInfo{RentState: RentStateUninitialized}
	} else if rent.IsExempt(lamports, dataLen) {
		return &RentStateInfo{RentState: RentStateRentExempt}
	} else {
		return &RentStateInfo{RentState: RentStateRentPaying, RentPayingInfo: RentPayingInfo{Lamports: lamports, DataSize: dataLen}}
	}
}

// NewRentStateInfos captures the rent state of every writable view. Read-only
// views get a nil entry.
func NewRentStateInfos(rent *sealevel.SysvarRent, infos []*sealevel.AccountInfo) []*RentStateInfo {
	rentStateInfos := make([]*RentStateInfo, 0, len(infos))
	for _, info := range infos {
		if info.IsWritable() {
			rentStateInfos = append(rentStateInfos, rentStateFromAcct(info.Lamports(), info.DataLen(), rent))
		} else {
			rentStateInfos = append(rentStateInfos, nil)
		}
	}
	return rentStateInfos
}

func checkRentStateTransitionAllowed(preRentState *RentStateInfo, postRentState *RentStateInfo, key solana.PublicKey) error {
	if preRentState == nil && postRentState == nil {
		return nil
	} else if preRentState == nil || postRentState == nil {
		panic("programming error - rent state captured for only one side")
	}

	if key == IncineratorAddr {
		return nil
	}

	switch postRentState.RentState {
	case RentStateUninitialized, RentStateRentExempt:
		return nil
	}

	if preRentState.RentState == RentStateRentPaying &&
		postRentState.RentPayingInfo.DataSize == preRentState.RentPayingInfo.DataSize &&
		postRentState.RentPayingInfo.Lamports <= preRentState.RentPayingInfo.Lamports {
		return nil
	}

	klog.Errorf("account %s left rent paying with %d lamports for %d bytes", key, postRentState.RentPayingInfo.Lamports, postRentState.RentPayingInfo.DataSize)
	return fmt.Errorf("%w: %s", ErrInvalidRentPayingAccount, key)
}

// VerifyRentStateChanges rejects any writable account that ends up rent
// paying unless it already was and neither grew nor gained lamports.
func VerifyRentStateChanges(preStates []*RentStateInfo, postStates []*RentStateInfo, infos []*sealevel.AccountInfo) error {
	if len(preStates) != len(postStates) || len(preStates) != len(infos) {
		panic("programming error - pre and post rent states must be same length")
	}

	for idx := range preStates {
		err := checkRentStateTransitionAllowed(preStates[idx], postStates[idx], infos[idx].Key())
		if err != nil {
			return err
		}
	}
	return nil
}

// ShouldSetRentExemptRentEpochMax reports whether acct is exempt but has not
// yet been marked with the max rent epoch.
func ShouldSetRentExemptRentEpochMax(rent *sealevel.SysvarRent, acct *accounts.Account) bool {
	if acct.RentEpoch == math.MaxUint64 {
		return false
	}
	if acct.Executable {
		return true
	}
	return acct.Lamports >= rent.MinimumBalance(uint64(len(acct.Data)))
}

func MaybeSetRentExemptRentEpochMax(rent *sealevel.SysvarRent, acct *accounts.Account) {
	if ShouldSetRentExemptRentEpochMax(rent, acct) {
		acct.RentEpoch = math.MaxUint64
	}
}
