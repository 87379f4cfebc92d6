package lightclient

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ClientError is returned by Process for any instruction that did not commit.
type ClientError struct {
	Program solana.PublicKey
	Err     error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("processing instruction for program %s: %s", e.Program, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}
