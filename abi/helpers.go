package abi

import "math"

// AlignUp rounds offset up to a multiple of align. Alignments of 0 and 1
// leave offset unchanged; align must otherwise be a power of two.
func AlignUp(offset, align uint64) uint64 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// AlignDown rounds offset down to a multiple of align.
func AlignDown(offset, align uint64) uint64 {
	if align <= 1 {
		return offset
	}
	return offset &^ (align - 1)
}

// IsPowerOfTwo reports whether v is a non-zero power of two.
func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

func SafeMul(a, b uint64) (uint64, bool) {
	if b != 0 && a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

func SafeAdd(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// MinAlign caps align at pack when pack is non-zero.
func MinAlign(align, pack uint64) uint64 {
	if pack != 0 && pack < align {
		return pack
	}
	return align
}
