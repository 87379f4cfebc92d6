package rent

import (
	"math"
	"testing"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) solana.PublicKey {
	privKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return privKey.PublicKey()
}

func pack(t *testing.T, accts ...*accounts.Account) []*sealevel.AccountInfo {
	serialized := make([]sealevel.SerializedAccount, len(accts))
	for idx, acct := range accts {
		serialized[idx] = sealevel.SerializedAccount{Pubkey: newKey(t), IsWritable: true, Account: acct}
	}
	return sealevel.SerializeParameters(serialized, nil, sealevel.SystemProgramAddr).Deserialize()
}

func TestVerifyRentStateChanges(t *testing.T) {
	rent := sealevel.DefaultRent()
	exempt := rent.MinimumBalance(0)

	infos := pack(t,
		accounts.NewAccount(exempt, 0, sealevel.SystemProgramAddr),
		accounts.NewAccount(0, 0, sealevel.SystemProgramAddr),
	)
	pre := NewRentStateInfos(&rent, infos)

	// exempt -> uninitialized, uninitialized -> exempt
	infos[0].SetLamports(0)
	infos[1].SetLamports(exempt)
	assert.NoError(t, VerifyRentStateChanges(pre, NewRentStateInfos(&rent, infos), infos))

	// uninitialized -> rent paying
	infos[0].SetLamports(1)
	err := VerifyRentStateChanges(pre, NewRentStateInfos(&rent, infos), infos)
	assert.ErrorIs(t, err, ErrInvalidRentPayingAccount)
}

func TestVerifyRentStateChanges_RentPaying(t *testing.T) {
	rent := sealevel.DefaultRent()

	infos := pack(t, accounts.NewAccount(1000, 0, sealevel.SystemProgramAddr))
	pre := NewRentStateInfos(&rent, infos)

	infos[0].SetLamports(900)
	assert.NoError(t, VerifyRentStateChanges(pre, NewRentStateInfos(&rent, infos), infos))

	infos[0].SetLamports(1001)
	assert.Error(t, VerifyRentStateChanges(pre, NewRentStateInfos(&rent, infos), infos))
}

func TestMaybeSetRentExemptRentEpochMax(t *testing.T) {
	rent := sealevel.DefaultRent()

	acct := accounts.NewAccount(rent.MinimumBalance(10), 10, sealevel.SystemProgramAddr)
	MaybeSetRentExemptRentEpochMax(&rent, acct)
	assert.Equal(t, uint64(math.MaxUint64), acct.RentEpoch)

	poor := accounts.NewAccount(1, 10, sealevel.SystemProgramAddr)
	MaybeSetRentExemptRentEpochMax(&rent, poor)
	assert.Equal(t, uint64(0), poor.RentEpoch)
}
