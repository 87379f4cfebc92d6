package fuzz

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

type Context int

const (
	ContextNone Context = iota
	ContextPre
	ContextPost
)

func (c Context) String() string {
	switch c {
	case ContextPre:
		return "pre"
	case ContextPost:
		return "post"
	default:
		return "none"
	}
}

// Origin locates an error: the instruction it came from and, for account
// lookups, the account.
type Origin struct {
	Instruction string
	Account     *solana.PublicKey
}

func (o Origin) String() string {
	var sb strings.Builder
	if o.Instruction != "" {
		fmt.Fprintf(&sb, "instruction %s", o.Instruction)
	}
	if o.Account != nil {
		if sb.Len() != 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "account %s", o.Account)
	}
	return sb.String()
}

// FuzzClientError is a failure of the harness itself while driving an
// instruction: building accounts or data, or taking snapshots.
type FuzzClientError struct {
	Err     error
	Origin  Origin
	Context Context
}

func (e *FuzzClientError) Error() string {
	return fmt.Sprintf("fuzz client error: %s (origin: %s, context: %s)", e.Err, e.Origin, e.Context)
}

func (e *FuzzClientError) Unwrap() error {
	return e.Err
}

// FuzzingError is a finding: a check that did not hold, or an error a
// transaction error handler chose to surface.
type FuzzingError struct {
	Err     error
	Origin  Origin
	Context Context
}

func (e *FuzzingError) Error() string {
	return fmt.Sprintf("fuzzing error: %s (origin: %s, context: %s)", e.Err, e.Origin, e.Context)
}

func (e *FuzzingError) Unwrap() error {
	return e.Err
}

// PanicError is a panic raised while executing an iteration, usually an
// internal consistency failure in a program or the dispatcher.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
