package fuzz

import (
	"encoding/binary"
	"errors"

	gofuzz "github.com/gagliardetto/gofuzz"
	"github.com/gagliardetto/gofuzz/bytesource"
)

var ErrNotEnoughData = errors.New("ErrNotEnoughData")

// Unstructured turns raw fuzzer input into structured values. Every read is
// a pure function of the remaining bytes.
type Unstructured struct {
	data []byte
}

func NewUnstructured(data []byte) *Unstructured {
	return &Unstructured{data: data}
}

func (u *Unstructured) Len() int {
	return len(u.data)
}

func (u *Unstructured) IsEmpty() bool {
	return len(u.data) == 0
}

func (u *Unstructured) Bytes(n int) ([]byte, error) {
	if n > len(u.data) {
		return nil, ErrNotEnoughData
	}
	out := u.data[:n:n]
	u.data = u.data[n:]
	return out, nil
}

// uintN reads up to n bytes; missing trailing bytes read as zero.
func (u *Unstructured) uintN(n int) uint64 {
	var buf [8]byte
	take := min(n, len(u.data))
	copy(buf[:], u.data[:take])
	u.data = u.data[take:]
	return binary.LittleEndian.Uint64(buf[:])
}

func (u *Unstructured) Uint8() uint8 {
	return uint8(u.uintN(1))
}

func (u *Unstructured) Uint16() uint16 {
	return uint16(u.uintN(2))
}

func (u *Unstructured) Uint32() uint32 {
	return uint32(u.uintN(4))
}

func (u *Unstructured) Uint64() uint64 {
	return u.uintN(8)
}

func (u *Unstructured) Bool() bool {
	return u.Uint8()&1 == 1
}

// IntInRange returns a value in [lo, hi], consuming only as many bytes as
// the width of the range needs.
func (u *Unstructured) IntInRange(lo, hi uint64) (uint64, error) {
	if lo > hi {
		return 0, errors.New("IntInRange: lo > hi")
	}
	width := hi - lo
	if width == 0 {
		return lo, nil
	}

	var n int
	for w := width; w != 0; w >>= 8 {
		n++
	}
	v := u.uintN(n)
	if width == ^uint64(0) {
		return v, nil
	}
	return lo + v%(width+1), nil
}

// Choose picks an index in [0, n).
func (u *Unstructured) Choose(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("Choose: empty choice")
	}
	if u.IsEmpty() {
		return 0, ErrNotEnoughData
	}
	idx, err := u.IntInRange(0, uint64(n-1))
	return int(idx), err
}

// Fill populates the exported fields of obj from the input.
func (u *Unstructured) Fill(obj any) error {
	if u.IsEmpty() {
		return ErrNotEnoughData
	}
	src := bytesource.New(u.data)
	gofuzz.New().RandSource(src).NilChance(0).NumElements(0, 8).Fuzz(obj)
	u.data = u.data[len(u.data)-src.Len():]
	return nil
}
