// Package layout computes the in-memory layout of C/C++ records under an
// ABI profile.
//
// Build walks a declaration once, in declaration order, and produces a
// TypeLayout: member offsets, base subobjects, bitfield storage runs, the
// vtable pointer slot and every padding byte, classified by why it exists.
// The result satisfies the invariants enforced by Check:
//
//   - members, bitfield storage runs, base subobjects, the own vtable
//     pointer slot and padding regions tile [0, TotalSize) exactly
//   - TotalSize is a multiple of Alignment
//   - UsefulSize + sum(padding) == TotalSize
//
// # Bitfields
//
// A bitfield member reports the byte that holds its first bit as Offset,
// the bit within that byte as BitOffset, and the number of bytes its bits
// touch as Size. Consecutive bitfields that share storage form one
// StorageUnit; the unit, not the individual bitfields, takes part in the
// coverage tiling. Bytes left unused at the end of a storage unit, or
// skipped to reach the next unit, are reported as bitfield-unit-gap
// padding.
//
// # Usage
//
//	p, _ := abi.Resolve("x64", "clang")
//	tl, err := layout.Build(rec, p)
//	if err != nil {
//	    return err // errors.KindUnsupportedConstruct for out-of-scope ABI corners
//	}
//	for _, m := range tl.Members {
//	    fmt.Printf("%-8s @%d (%d bytes)\n", m.Name, m.Offset, m.Size)
//	}
package layout
