// Package safemath provides overflow-aware integer helpers.
package safemath

import "math/bits"

func CheckedAddU64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

func CheckedSubU64(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

func CheckedMulU64(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

func SaturatingAddU64(a, b uint64) uint64 {
	sum, ok := CheckedAddU64(a, b)
	if !ok {
		return ^uint64(0)
	}
	return sum
}

func SaturatingSubU64(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

func SaturatingMulU64(a, b uint64) uint64 {
	prod, ok := CheckedMulU64(a, b)
	if !ok {
		return ^uint64(0)
	}
	return prod
}
