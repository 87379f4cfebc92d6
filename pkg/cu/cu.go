package cu

import (
	"errors"

	"github.com/Overclock-Validator/solfuzz/pkg/safemath"
	"k8s.io/klog/v2"
)

const DefaultComputeBudget = 1_400_000

var ErrComputeExceeded = errors.New("ErrComputeExceeded")

// ComputeMeter tracks the units consumed by one top-level instruction,
// including everything it invokes.
type ComputeMeter struct {
	remaining uint64
	budget    uint64
	exceeded  bool
	disabled  bool
}

func NewComputeMeter(budget uint64) ComputeMeter {
	if budget == 0 {
		budget = DefaultComputeBudget
	}
	return ComputeMeter{remaining: budget, budget: budget}
}

func (cm *ComputeMeter) Consume(cost uint64) error {
	if cm.remaining < cost {
		cm.exceeded = true
	}
	cm.remaining = safemath.SaturatingSubU64(cm.remaining, cost)

	if cm.exceeded {
		if cm.disabled {
			klog.V(2).Infof("compute budget of %d exceeded, metering disabled", cm.budget)
			return nil
		}
		return ErrComputeExceeded
	}
	return nil
}

// Reset refills the meter for the next top-level instruction.
func (cm *ComputeMeter) Reset() {
	cm.remaining = cm.budget
	cm.exceeded = false
}

func (cm *ComputeMeter) Used() uint64 {
	return cm.budget - cm.remaining
}

func (cm *ComputeMeter) Exceeded() bool {
	return cm.exceeded
}

func (cm *ComputeMeter) Remaining() uint64 {
	return cm.remaining
}

func (cm *ComputeMeter) Disable() {
	cm.disabled = true
}
