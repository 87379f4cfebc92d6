package sealevel

import (
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"k8s.io/klog/v2"
)

var SystemProgramAddr = solana.SystemProgramID

var NativeLoaderAddr = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")

// Program is a handler invoked with the views of its instruction accounts and
// the raw instruction data.
type Program interface {
	Process(execCtx *ExecutionCtx, programId solana.PublicKey, accts []*AccountInfo, data []byte) error
}

type ProgramFn func(execCtx *ExecutionCtx, programId solana.PublicKey, accts []*AccountInfo, data []byte) error

func (fn ProgramFn) Process(execCtx *ExecutionCtx, programId solana.PublicKey, accts []*AccountInfo, data []byte) error {
	return fn(execCtx, programId, accts, data)
}

// Programs resolves program ids to handlers. Explicitly registered programs
// take precedence over built-ins.
type Programs struct {
	registered map[solana.PublicKey]Program
	builtins   map[solana.PublicKey]Program
}

func NewPrograms() *Programs {
	p := &Programs{
		registered: make(map[solana.PublicKey]Program),
		builtins:   make(map[solana.PublicKey]Program),
	}
	p.RegisterBuiltin(SystemProgramAddr, ProgramFn(SystemProgramExecute))
	return p
}

func (p *Programs) Register(programId solana.PublicKey, program Program) {
	if p.IsBuiltin(programId) {
		klog.Warningf("program %s shadows a built-in", programId)
	} else {
		klog.V(2).Infof("registering program %s", programId)
	}
	p.registered[programId] = program
}

func (p *Programs) RegisterBuiltin(programId solana.PublicKey, program Program) {
	p.builtins[programId] = program
}

func (p *Programs) Resolve(programId solana.PublicKey) (Program, error) {
	if program, ok := p.registered[programId]; ok {
		return program, nil
	}
	if program, ok := p.builtins[programId]; ok {
		return program, nil
	}
	return nil, fmt.Errorf("%w: program not found: %s", InstrErrUnsupportedProgramId, programId)
}

func (p *Programs) IsBuiltin(programId solana.PublicKey) bool {
	_, ok := p.builtins[programId]
	return ok
}

// Ids returns every resolvable program id in a stable order.
func (p *Programs) Ids() []solana.PublicKey {
	ids := lo.Uniq(append(lo.Keys(p.registered), lo.Keys(p.builtins)...))
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}
