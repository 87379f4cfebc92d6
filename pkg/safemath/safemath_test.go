package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckedAddU64(t *testing.T) {
	sum, ok := CheckedAddU64(1, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), sum)

	_, ok = CheckedAddU64(math.MaxUint64, 1)
	assert.False(t, ok)
}

func TestCheckedSubU64(t *testing.T) {
	diff, ok := CheckedSubU64(10, 4)
	assert.True(t, ok)
	assert.Equal(t, uint64(6), diff)

	_, ok = CheckedSubU64(0, 1)
	assert.False(t, ok)
}

func TestCheckedMulU64(t *testing.T) {
	prod, ok := CheckedMulU64(1<<31, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(1<<32), prod)

	_, ok = CheckedMulU64(math.MaxUint64, 2)
	assert.False(t, ok)
}

func TestSaturating(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAddU64(math.MaxUint64, 5))
	assert.Equal(t, uint64(0), SaturatingSubU64(3, 5))
	assert.Equal(t, uint64(math.MaxUint64), SaturatingMulU64(math.MaxUint64, 3))
	assert.Equal(t, uint64(15), SaturatingMulU64(3, 5))
}
