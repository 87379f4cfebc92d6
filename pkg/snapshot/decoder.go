package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/Overclock-Validator/solfuzz/pkg/token"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
)

var (
	ErrUnexpectedOwner       = errors.New("ErrUnexpectedOwner")
	ErrDiscriminatorMismatch = errors.New("ErrDiscriminatorMismatch")
	ErrAccountDataTooSmall   = errors.New("ErrAccountDataTooSmall")
	errNoTypedRepresentation = errors.New("no typed representation")
)

// Decoder turns a stored account into its typed form. A failing decoder
// leaves the entry in the raw state.
type Decoder func(key solana.PublicKey, acct *accounts.Account) (any, error)

// Raw never types an account.
func Raw() Decoder {
	return func(solana.PublicKey, *accounts.Account) (any, error) {
		return nil, errNoTypedRepresentation
	}
}

// Expect checks the owner and hands the data to unmarshal.
func Expect[T any](owner solana.PublicKey, unmarshal func(data []byte) (T, error)) Decoder {
	return func(key solana.PublicKey, acct *accounts.Account) (any, error) {
		if acct.Owner != owner {
			return nil, fmt.Errorf("%w: %s owned by %s, want %s", ErrUnexpectedOwner, key, acct.Owner, owner)
		}
		return unmarshal(acct.Data)
	}
}

// Borsh decodes T from the data following discriminator.
func Borsh[T any](owner solana.PublicKey, discriminator []byte) Decoder {
	return Expect(owner, func(data []byte) (*T, error) {
		if len(data) < len(discriminator) {
			return nil, ErrAccountDataTooSmall
		}
		if !bytes.Equal(data[:len(discriminator)], discriminator) {
			return nil, ErrDiscriminatorMismatch
		}

		out := new(T)
		if err := bin.NewBorshDecoder(data[len(discriminator):]).Decode(out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// AnchorDiscriminator is the 8-byte account tag Anchor prefixes to the
// account named name.
func AnchorDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:8]
}

func Anchor[T any](owner solana.PublicKey, name string) Decoder {
	return Borsh[T](owner, AnchorDiscriminator(name))
}

func TokenAccount() Decoder {
	return Expect(token.ProgramID, token.UnpackAccount)
}

func Mint() Decoder {
	return Expect(token.ProgramID, token.UnpackMint)
}
