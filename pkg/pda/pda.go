package pda

import (
	"bytes"
	"errors"
	"math"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
	sha256 "github.com/minio/sha256-simd"
)

const MaxSeeds = 16
const MaxSeedLen = 32
const PublicKeyLength = 32
const PdaMarker = "ProgramDerivedAddress"

var (
	ErrMaxSeedsExceeded      = errors.New("Max seeds (16) exceeded")
	ErrMaxSeedLengthExceeded = errors.New("Max seed length (32) exceeded")
	ErrOnCurveInvalidSeeds   = errors.New("Invalid seeds - generated address must be off-curve")
	ErrNoViableBump          = errors.New("Unable to find a viable program address bump seed")
	ErrIllegalOwner          = errors.New("Provided owner is not allowed")
)

// CreateProgramAddress derives the program address for the given seeds. The
// seeds are used verbatim, no bump is appended.
func CreateProgramAddress(seeds [][]byte, programId solana.PublicKey) (solana.PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return solana.PublicKey{}, ErrMaxSeedsExceeded
	}

	hasher := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return solana.PublicKey{}, ErrMaxSeedLengthExceeded
		}
		hasher.Write(seed)
	}

	hasher.Write(programId[:])
	hasher.Write([]byte(PdaMarker))
	hash := hasher.Sum(nil)

	if IsOnCurve(hash) {
		return solana.PublicKey{}, ErrOnCurveInvalidSeeds
	}

	return solana.PublicKeyFromBytes(hash), nil
}

// FindProgramAddress searches bump seeds from 255 down to 1 and returns the
// first off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programId solana.PublicKey) (solana.PublicKey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return solana.PublicKey{}, 0, ErrMaxSeedsExceeded
	}

	for bumpSeed := uint8(math.MaxUint8); bumpSeed > 0; bumpSeed-- {
		seedsWithBump := make([][]byte, 0, len(seeds)+1)
		seedsWithBump = append(seedsWithBump, seeds...)
		seedsWithBump = append(seedsWithBump, []byte{bumpSeed})

		addr, err := CreateProgramAddress(seedsWithBump, programId)
		if err == nil {
			return addr, bumpSeed, nil
		}
		if err != ErrOnCurveInvalidSeeds {
			return solana.PublicKey{}, 0, err
		}
	}

	return solana.PublicKey{}, 0, ErrNoViableBump
}

// CreateWithSeed derives base+seed+owner addresses the way the system program
// expects them.
func CreateWithSeed(base solana.PublicKey, seed string, owner solana.PublicKey) (solana.PublicKey, error) {
	if len(seed) > MaxSeedLen {
		return solana.PublicKey{}, ErrMaxSeedLengthExceeded
	}

	if bytes.HasSuffix(owner[:], []byte(PdaMarker)) {
		return solana.PublicKey{}, ErrIllegalOwner
	}

	b := make([]byte, 0, 64+len(seed))
	b = append(b, base[:]...)
	b = append(b, seed...)
	b = append(b, owner[:]...)
	hash := sha256.Sum256(b)
	return solana.PublicKeyFromBytes(hash[:]), nil
}

// IsOnCurve checks if 'b' is on the ed25519 curve
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	onCurve := err == nil
	return onCurve
}
