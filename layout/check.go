package layout

import (
	"fmt"
	"sort"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/errors"
)

type region struct {
	offset uint64
	size   uint64
	what   string
}

// Check verifies the structural invariants of a layout: size and
// alignment agree, padding accounts for exactly the bytes not counted as
// useful, every member lies inside the record and, for non-union records,
// members, bitfield storage runs, bases, the own vtable pointer slot and
// padding tile [0, TotalSize) without gaps or overlaps.
func Check(tl *TypeLayout) error {
	fail := func(format string, args ...any) error {
		return errors.Invariant(errors.PhaseBuild, tl.QualifiedName, fmt.Sprintf(format, args...))
	}

	if !abi.IsPowerOfTwo(tl.Alignment) {
		return fail("alignment %d is not a power of two", tl.Alignment)
	}
	if tl.TotalSize == 0 {
		return fail("total size is zero")
	}
	if tl.TotalSize%tl.Alignment != 0 {
		return fail("total size %d is not a multiple of alignment %d", tl.TotalSize, tl.Alignment)
	}

	var padding uint64
	for _, p := range tl.Padding {
		if p.Size == 0 {
			return fail("empty padding region at %d", p.Offset)
		}
		switch p.Reason {
		case ReasonAlignmentGap, ReasonTailPadding, ReasonBitfieldUnitGap:
		default:
			return fail("padding at %d has unknown reason %q", p.Offset, p.Reason)
		}
		padding += p.Size
	}
	if tl.UsefulSize+padding != tl.TotalSize {
		return fail("useful size %d + padding %d != total size %d", tl.UsefulSize, padding, tl.TotalSize)
	}

	for _, m := range tl.Members {
		if m.Offset+m.Size > tl.TotalSize {
			return fail("member %s [%d,%d) exceeds total size %d", m.Name, m.Offset, m.Offset+m.Size, tl.TotalSize)
		}
		if !m.IsBitfield {
			continue
		}
		if m.BitOffset+m.BitWidth > 8*m.Size {
			return fail("bitfield %s: bits %d+%d exceed %d bytes", m.Name, m.BitOffset, m.BitWidth, m.Size)
		}
		if m.BitOffset >= 8*m.UnitSize {
			return fail("bitfield %s: bit offset %d outside its %d-byte type", m.Name, m.BitOffset, m.UnitSize)
		}
		if tl.Kind == "union" {
			continue
		}
		if m.StorageUnit < 1 || m.StorageUnit > len(tl.StorageUnits) {
			return fail("bitfield %s has no storage unit", m.Name)
		}
		u := tl.StorageUnits[m.StorageUnit-1]
		if m.Offset < u.Offset || m.Offset+m.Size > u.Offset+u.Size {
			return fail("bitfield %s lies outside its storage unit [%d,%d)", m.Name, u.Offset, u.Offset+u.Size)
		}
	}

	if tl.Kind == "union" {
		return nil
	}
	return checkCoverage(tl, fail)
}

func checkCoverage(tl *TypeLayout, fail func(string, ...any) error) error {
	regions := make([]region, 0, len(tl.Members)+len(tl.Padding)+len(tl.Bases)+1)
	for _, m := range tl.Members {
		if m.IsBitfield || m.Size == 0 {
			continue
		}
		regions = append(regions, region{m.Offset, m.Size, "member " + m.Name})
	}
	for i, u := range tl.StorageUnits {
		regions = append(regions, region{u.Offset, u.Size, fmt.Sprintf("bitfield unit %d", i+1)})
	}
	for _, b := range tl.Bases {
		if b.Size == 0 {
			continue
		}
		regions = append(regions, region{b.Offset, b.Size, "base " + b.Name})
	}
	if tl.VTable != nil && !tl.VTable.Inherited {
		regions = append(regions, region{tl.VTable.PointerOffset, tl.VTable.PointerSize, "vtable pointer"})
	}
	for _, p := range tl.Padding {
		regions = append(regions, region{p.Offset, p.Size, p.Reason})
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].offset < regions[j].offset
	})

	var pos uint64
	for _, r := range regions {
		switch {
		case r.offset > pos:
			return fail("bytes [%d,%d) are not covered", pos, r.offset)
		case r.offset < pos:
			return fail("%s at %d overlaps the preceding region ending at %d", r.what, r.offset, pos)
		}
		pos += r.size
	}
	if pos != tl.TotalSize {
		return fail("coverage ends at %d, total size is %d", pos, tl.TotalSize)
	}
	return nil
}
