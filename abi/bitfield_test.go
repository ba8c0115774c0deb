package abi

import "testing"

func placeAll(r BitfieldRule, fields []Bitfield) []Placement {
	var st BitfieldState
	var out []Placement
	for _, f := range fields {
		pl := r.Place(st, 0, f)
		out = append(out, pl)
		st = pl.State
	}
	return out
}

func TestBitCountPacksAcrossTypes(t *testing.T) {
	// unsigned a:3; unsigned char b:4; unsigned short c:9;
	got := placeAll(BitfieldsByBitCount, []Bitfield{
		{Size: 4, Align: 4, Width: 3},
		{Size: 1, Align: 1, Width: 4},
		{Size: 2, Align: 2, Width: 9},
	})
	wantBits := []uint64{0, 3, 7}
	for i, pl := range got {
		if pl.Bit != wantBits[i] {
			t.Errorf("field %d: bit = %d, want %d", i, pl.Bit, wantBits[i])
		}
	}
	if !got[0].Fresh || got[1].Fresh || got[2].Fresh {
		t.Errorf("only the first field should open a run: %+v", got)
	}
}

func TestBitCountStraddleMovesToNextContainer(t *testing.T) {
	// unsigned a:20; unsigned b:20; -> b moves to bit 32, a whole byte is skipped.
	got := placeAll(BitfieldsByBitCount, []Bitfield{
		{Size: 4, Align: 4, Width: 20},
		{Size: 4, Align: 4, Width: 20},
	})
	if got[1].Bit != 32 {
		t.Errorf("b: bit = %d, want 32", got[1].Bit)
	}
	if !got[1].Fresh {
		t.Error("b should start a new run after a skipped byte")
	}
}

func TestBitCountAfterOrdinaryMember(t *testing.T) {
	// char a; int b:4; -> b shares the int container starting at byte 0.
	pl := BitfieldsByBitCount.Place(BitfieldState{}, 1, Bitfield{Size: 4, Align: 4, Width: 4})
	if pl.Bit != 8 {
		t.Errorf("bit = %d, want 8", pl.Bit)
	}
}

func TestByUnitOpensUnitOnSizeChange(t *testing.T) {
	// unsigned a:3; unsigned char b:4; -> b opens a one-byte unit at byte 4.
	got := placeAll(BitfieldsByUnit, []Bitfield{
		{Size: 4, Align: 4, Width: 3},
		{Size: 1, Align: 1, Width: 4},
	})
	if got[1].Bit != 32 || !got[1].Fresh {
		t.Errorf("b: %+v, want fresh unit at bit 32", got[1])
	}
	if end := BitfieldsByUnit.UnitEnd(got[0].State); end != 4 {
		t.Errorf("unit end = %d, want 4", end)
	}
}

func TestByUnitSharesSameSizeTypes(t *testing.T) {
	// int a:1; unsigned b:1; share one unit.
	got := placeAll(BitfieldsByUnit, []Bitfield{
		{Size: 4, Align: 4, Width: 1},
		{Size: 4, Align: 4, Width: 1},
	})
	if got[1].Fresh || got[1].Bit != 1 {
		t.Errorf("b: %+v, want bit 1 in the same unit", got[1])
	}
}

func TestByUnitOverflowOpensNextUnit(t *testing.T) {
	got := placeAll(BitfieldsByUnit, []Bitfield{
		{Size: 2, Align: 2, Width: 10},
		{Size: 2, Align: 2, Width: 10},
	})
	if got[1].Bit != 16 || !got[1].Fresh {
		t.Errorf("b: %+v, want fresh unit at bit 16", got[1])
	}
}

func TestZeroWidth(t *testing.T) {
	open := BitfieldState{Open: true, Bit: 3, UnitBit: 0, UnitSize: 4}
	f := Bitfield{Size: 4, Align: 4}

	if c, a := BitfieldsByBitCount.ZeroWidth(open, f); !c || a != 4 {
		t.Errorf("bit-count open: close=%v align=%d", c, a)
	}
	if c, a := BitfieldsByBitCount.ZeroWidth(BitfieldState{}, f); c || a != 4 {
		t.Errorf("bit-count closed: close=%v align=%d", c, a)
	}
	if c, a := BitfieldsByUnit.ZeroWidth(open, f); !c || a != 1 {
		t.Errorf("by-unit open: close=%v align=%d", c, a)
	}
	if c, _ := BitfieldsByUnit.ZeroWidth(BitfieldState{}, f); c {
		t.Error("by-unit closed: zero-width field should be ignored")
	}
}

func TestVPtrOrder(t *testing.T) {
	bases := []BaseTraits{
		{Dynamic: false},
		{Dynamic: true},
		{Dynamic: true, Virtual: true},
		{Dynamic: true},
	}

	order, primary := VPtrPrimaryBase.Order(bases)
	if primary != 1 {
		t.Errorf("primary = %d, want 1", primary)
	}
	if want := []int{1, 0, 3}; !equalInts(order, want) {
		t.Errorf("itanium order = %v, want %v", order, want)
	}

	order, primary = VPtrPolymorphicBasesFirst.Order(bases)
	if primary != 1 {
		t.Errorf("primary = %d, want 1", primary)
	}
	if want := []int{1, 3, 0}; !equalInts(order, want) {
		t.Errorf("msvc order = %v, want %v", order, want)
	}

	if !VPtrPrimaryBase.NeedsOwnVPtr(true, -1) || VPtrPrimaryBase.NeedsOwnVPtr(true, 0) || VPtrPrimaryBase.NeedsOwnVPtr(false, -1) {
		t.Error("NeedsOwnVPtr mismatch")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
