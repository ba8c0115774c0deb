package abi

// BitfieldRule selects how consecutive bitfields share storage.
type BitfieldRule uint8

const (
	// BitfieldsByBitCount packs bitfields by bit count: a field goes at the
	// bit cursor unless it would straddle a naturally aligned container of
	// its declared type, in which case it moves to the next such boundary.
	BitfieldsByBitCount BitfieldRule = iota
	// BitfieldsByUnit allocates a storage unit sized to the declared type
	// and opens a new unit whenever the type size changes or bits run out.
	BitfieldsByUnit
)

func (r BitfieldRule) String() string {
	if r == BitfieldsByUnit {
		return "by-unit"
	}
	return "by-bit-count"
}

// Bitfield describes one bitfield being allocated. Align is the declared
// type's effective alignment (already capped by any packing).
type Bitfield struct {
	Size  uint64
	Align uint64
	Width uint64
}

// BitfieldState is the allocation state of the storage run in progress.
type BitfieldState struct {
	Open     bool
	Bit      uint64 // absolute bit cursor
	UnitBit  uint64 // absolute bit offset of the active unit
	UnitSize uint64 // byte size of the active unit's type
}

// UsedEnd returns the first byte after the last used bit of the run.
func (s BitfieldState) UsedEnd() uint64 {
	return (s.Bit + 7) / 8
}

// Placement is the result of allocating one bitfield.
type Placement struct {
	Bit   uint64 // absolute bit position of the field
	Fresh bool   // the field starts a new storage run
	State BitfieldState
}

// UnitEnd returns the byte at which the open run's storage ends. For the
// by-unit rule this is the end of the whole unit, which may lie past the
// last used bit.
func (r BitfieldRule) UnitEnd(st BitfieldState) uint64 {
	if !st.Open {
		return 0
	}
	if r == BitfieldsByUnit {
		return st.UnitBit/8 + st.UnitSize
	}
	return st.UsedEnd()
}

// Place allocates a non-zero-width bitfield. cursor is the byte cursor of
// the record when no run is open.
func (r BitfieldRule) Place(st BitfieldState, cursor uint64, f Bitfield) Placement {
	if r == BitfieldsByUnit {
		return r.placeByUnit(st, cursor, f)
	}
	return r.placeByBitCount(st, cursor, f)
}

func (r BitfieldRule) placeByBitCount(st BitfieldState, cursor uint64, f Bitfield) Placement {
	bit := cursor * 8
	if st.Open {
		bit = st.Bit
	}

	alignBits := f.Align * 8
	if alignBits == 0 {
		alignBits = 8
	}
	container := AlignDown(bit, alignBits)
	if bit+f.Width > container+f.Size*8 {
		bit = AlignUp(bit, alignBits)
	}

	fresh := !st.Open || bit/8 > st.UsedEnd()
	next := BitfieldState{
		Open:     true,
		Bit:      bit + f.Width,
		UnitBit:  AlignDown(bit, alignBits),
		UnitSize: f.Size,
	}
	return Placement{Bit: bit, Fresh: fresh, State: next}
}

func (r BitfieldRule) placeByUnit(st BitfieldState, cursor uint64, f Bitfield) Placement {
	if st.Open && st.UnitSize == f.Size && st.Bit+f.Width <= st.UnitBit+st.UnitSize*8 {
		next := st
		next.Bit = st.Bit + f.Width
		return Placement{Bit: st.Bit, State: next}
	}

	if st.Open {
		cursor = r.UnitEnd(st)
	}
	start := AlignUp(cursor, f.Align)
	next := BitfieldState{
		Open:     true,
		Bit:      start*8 + f.Width,
		UnitBit:  start * 8,
		UnitSize: f.Size,
	}
	return Placement{Bit: start * 8, Fresh: true, State: next}
}

// ZeroWidth applies a zero-width bitfield of the given type. It reports
// whether the open run must be closed and the byte alignment the cursor
// must then be rounded up to (1 when none).
func (r BitfieldRule) ZeroWidth(st BitfieldState, f Bitfield) (closeRun bool, align uint64) {
	if r == BitfieldsByUnit {
		// A zero-width field only terminates a unit in progress.
		return st.Open, 1
	}
	return st.Open, f.Align
}
