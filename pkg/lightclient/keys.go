package lightclient

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
)

// keyGen hands out keypairs. With deterministic set, the n-th key of a run
// is a pure function of the seed and n.
type keyGen struct {
	deterministic bool
	seed          uint64
	counter       uint64
}

func (g *keyGen) next() solana.PrivateKey {
	if !g.deterministic {
		return solana.NewWallet().PrivateKey
	}

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], g.seed)
	binary.LittleEndian.PutUint64(buf[8:], g.counter)
	g.counter++

	keySeed := sha256.Sum256(buf[:])
	return solana.PrivateKey(ed25519.NewKeyFromSeed(keySeed[:]))
}

func (g *keyGen) reset() {
	g.counter = 0
}
