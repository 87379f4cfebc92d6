package sealevel

import (
	"errors"

	"github.com/edwingeng/deque/v2"
	"github.com/gagliardetto/solana-go"
)

var ErrNoCurrentInstruction = errors.New("ErrNoCurrentInstruction")

type DispatchState int

const (
	StateIdle DispatchState = iota
	StateDispatching
	StateExecuting
	StateReturned
)

func (s DispatchState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateDispatching:
		return "Dispatching"
	case StateExecuting:
		return "Executing"
	case StateReturned:
		return "Returned"
	default:
		return "Unknown"
	}
}

// TransactionCtx owns the invocation stack of one harness.
type TransactionCtx struct {
	frames      *deque.Deque[*InstructionCtx]
	state       DispatchState
	traceLength uint64
}

func NewTransactionCtx() *TransactionCtx {
	return &TransactionCtx{frames: deque.NewDeque[*InstructionCtx]()}
}

func (txCtx *TransactionCtx) CurrentInstructionCtx() (*InstructionCtx, error) {
	frame, ok := txCtx.frames.Back()
	if !ok {
		return nil, ErrNoCurrentInstruction
	}
	return frame, nil
}

func (txCtx *TransactionCtx) InstructionCtxStackHeight() uint64 {
	return uint64(txCtx.frames.Len())
}

func (txCtx *TransactionCtx) InstructionTraceLength() uint64 {
	return txCtx.traceLength
}

func (txCtx *TransactionCtx) State() DispatchState {
	return txCtx.state
}

func (txCtx *TransactionCtx) containsProgram(programId solana.PublicKey) bool {
	var found bool
	txCtx.frames.Range(func(_ int, frame *InstructionCtx) bool {
		if frame.ProgramId == programId {
			found = true
			return false
		}
		return true
	})
	return found
}

func (txCtx *TransactionCtx) push(frame *InstructionCtx) {
	frame.StackHeight = txCtx.InstructionCtxStackHeight() + 1
	txCtx.frames.PushBack(frame)
	txCtx.traceLength++
	txCtx.state = StateExecuting
}

func (txCtx *TransactionCtx) pop() {
	if txCtx.frames.IsEmpty() {
		panic("invocation stack underflow")
	}
	txCtx.frames.PopBack()
	if txCtx.frames.IsEmpty() {
		txCtx.state = StateReturned
	} else {
		txCtx.state = StateExecuting
	}
}

// reset returns the context to idle. The trace length of the last top-level
// instruction stays readable until the next one starts.
func (txCtx *TransactionCtx) reset() {
	if !txCtx.frames.IsEmpty() {
		panic("resetting a transaction context with frames still on the stack")
	}
	txCtx.state = StateIdle
}
