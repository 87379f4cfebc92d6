package fuzz

import (
	"encoding/binary"
	"fmt"

	"github.com/Overclock-Validator/solfuzz/pkg/sealevel"
	"github.com/Overclock-Validator/solfuzz/pkg/snapshot"
	"github.com/cespare/xxhash/v2"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

// FuzzData is the instruction sequence of one iteration.
type FuzzData[A any] struct {
	PreIxs   []Instruction[A]
	Ixs      []Instruction[A]
	PostIxs  []Instruction[A]
	Accounts *A
}

// RunStats counts what happened to the instructions of one Run.
type RunStats struct {
	Processed int
	Failed    int
	Skipped   int
	// Invocations counts program invocations, nested ones included.
	Invocations int
}

// All returns pre, main and post instructions in execution order.
func (d *FuzzData[A]) All() []Instruction[A] {
	all := make([]Instruction[A], 0, len(d.PreIxs)+len(d.Ixs)+len(d.PostIxs))
	all = append(all, d.PreIxs...)
	all = append(all, d.Ixs...)
	return append(all, d.PostIxs...)
}

// Sequence renders the instruction sequence for crash reports.
func (d *FuzzData[A]) Sequence() []string {
	all := d.All()
	out := make([]string, len(all))
	for idx, ix := range all {
		out[idx] = fmt.Sprintf("%d: %s %+v", idx, ix.Name(), ix)
	}
	return out
}

// Run submits every instruction against programId in order. Each
// instruction is snapshotted before and after dispatch. The check runs on
// the pair of committed instructions; failed ones hand the pair to their
// TxErrorHandler. Identical submissions are skipped unless allowDuplicates
// is set.
func (d *FuzzData[A]) Run(client Client, programId solana.PublicKey, allowDuplicates bool) (RunStats, error) {
	var stats RunStats
	sent := make(map[uint64]struct{})

	for _, ix := range d.All() {
		origin := Origin{Instruction: ix.Name()}

		metas, err := ix.Accounts(client, d.Accounts)
		if err != nil {
			return stats, &FuzzClientError{Err: err, Origin: origin, Context: ContextPre}
		}

		snap := snapshot.New(metas, ix.Decoders())
		if err = snap.CaptureBefore(client); err != nil {
			return stats, &FuzzClientError{Err: err, Origin: origin, Context: ContextPre}
		}

		data, err := ix.Data(client, d.Accounts)
		if err != nil {
			return stats, &FuzzClientError{Err: err, Origin: origin, Context: ContextPre}
		}

		instr := sealevel.Instruction{ProgramId: programId, Accounts: metas, Data: data}
		if !allowDuplicates {
			h := instructionHash(instr)
			if _, dup := sent[h]; dup {
				klog.Warningf("skipping duplicate instruction %s", ix.Name())
				stats.Skipped++
				continue
			}
			sent[h] = struct{}{}
		}

		txErr := client.Process(instr)
		stats.Processed++
		stats.Invocations += int(client.TraceLength())

		if err = snap.CaptureAfter(client); err != nil {
			return stats, &FuzzClientError{Err: err, Origin: origin, Context: ContextPost}
		}
		pair, err := snap.Pair()
		if err != nil {
			return stats, &FuzzClientError{Err: err, Origin: origin, Context: ContextPost}
		}

		if txErr != nil {
			stats.Failed++
			klog.V(2).Infof("instruction %s failed: %s", ix.Name(), txErr)

			handler, ok := ix.(TxErrorHandler)
			if !ok {
				continue
			}
			if err = handler.HandleTxError(txErr, pair, data); err != nil {
				return stats, &FuzzingError{Err: err, Origin: origin, Context: ContextPost}
			}
			continue
		}

		if err = ix.Check(pair, data); err != nil {
			klog.Errorf("CRASH DETECTED! check after the %s instruction did not pass: %s", ix.Name(), err)
			return stats, &FuzzingError{Err: err, Origin: origin, Context: ContextPost}
		}
	}
	return stats, nil
}

func instructionHash(ix sealevel.Instruction) uint64 {
	h := xxhash.New()
	_, _ = h.Write(ix.ProgramId[:])
	var flags [2]byte
	for _, meta := range ix.Accounts {
		_, _ = h.Write(meta.Pubkey[:])
		flags[0], flags[1] = 0, 0
		if meta.IsSigner {
			flags[0] = 1
		}
		if meta.IsWritable {
			flags[1] = 1
		}
		_, _ = h.Write(flags[:])
	}
	var dataLen [8]byte
	binary.LittleEndian.PutUint64(dataLen[:], uint64(len(ix.Data)))
	_, _ = h.Write(dataLen[:])
	_, _ = h.Write(ix.Data)
	return h.Sum64()
}
