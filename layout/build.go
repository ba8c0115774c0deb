package layout

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/errors"
)

// Build computes the layout of rec under profile p.
//
// Unions are not accepted as the requested type; they are laid out only as
// members of other records.
func Build(rec *decl.Record, p abi.Profile) (*TypeLayout, error) {
	if rec == nil {
		return nil, errors.InvalidInput(errors.PhaseBuild, "nil record")
	}
	if rec.Kind == decl.Union {
		return nil, errors.Unsupported(rec.DisplayName(), "", "unions are only laid out as members")
	}
	if err := decl.Validate(rec); err != nil {
		return nil, err
	}

	b := &builder{
		p:      p,
		memo:   make(map[*decl.Record]*built),
		active: make(map[*decl.Record]bool),
	}
	res, err := b.record(rec)
	if err != nil {
		return nil, err
	}

	Logger().Debug("record laid out",
		zap.String("record", res.tl.QualifiedName),
		zap.String("profile", p.String()),
		zap.Uint64("size", res.tl.TotalSize),
		zap.Uint64("align", res.tl.Alignment),
		zap.Uint64("padding", res.tl.PaddingBytes()))
	return res.tl, nil
}

// emptySub is an empty-class subobject at an offset relative to the start
// of the record that contains it. Two subobjects of the same type may not
// share an address.
type emptySub struct {
	rec    *decl.Record
	offset uint64
}

type built struct {
	tl      *TypeLayout
	empties []emptySub
}

type builder struct {
	p      abi.Profile
	memo   map[*decl.Record]*built
	active map[*decl.Record]bool
}

func (b *builder) record(rec *decl.Record) (*built, error) {
	if res, ok := b.memo[rec]; ok {
		return res, nil
	}
	if b.active[rec] {
		return nil, errors.Unsupported(rec.DisplayName(), "", "record contains itself by value")
	}
	b.active[rec] = true
	defer delete(b.active, rec)

	f := newFrame(b, rec)
	var err error
	if rec.Kind == decl.Union {
		err = f.union()
	} else {
		err = f.class()
	}
	if err != nil {
		return nil, err
	}

	res := &built{tl: f.tl, empties: f.empties}
	b.memo[rec] = res
	return res, nil
}

// typeInfo resolves the size and alignment of t. For record types, and
// arrays of them, the nested layout is returned as well.
func (b *builder) typeInfo(rec *decl.Record, t *decl.TypeRef) (abi.TypeInfo, *built, error) {
	var (
		info  abi.TypeInfo
		child *built
	)

	switch t.Kind {
	case decl.KindFundamental, decl.KindEnum:
		fi, ok := b.p.Fundamental(t.Fundamental)
		if !ok {
			return info, nil, errors.Unsupported(rec.DisplayName(), t.String(),
				fmt.Sprintf("%s is not available on %s", t.Fundamental, b.p))
		}
		info = fi

	case decl.KindPointer, decl.KindReference:
		info = b.p.Pointer()

	case decl.KindArray:
		elem, ec, err := b.typeInfo(rec, t.Elem)
		if err != nil {
			return info, nil, err
		}
		child = ec
		info.Align = elem.Align
		if !t.Flexible {
			size, ok := abi.SafeMul(elem.Size, t.Len)
			if !ok {
				return info, nil, errors.Overflow(errors.PhaseBuild, []string{rec.DisplayName()}, t.Len, "array size")
			}
			info.Size = size
		}

	case decl.KindRecord:
		if t.Record == nil {
			return info, nil, errors.Unsupported(rec.DisplayName(), t.String(), "incomplete record type")
		}
		res, err := b.record(t.Record)
		if err != nil {
			return info, nil, err
		}
		child = res
		info = abi.TypeInfo{Size: res.tl.TotalSize, Align: res.tl.Alignment}

	default:
		reason := t.Reason
		if reason == "" {
			reason = "type cannot be resolved"
		}
		return info, nil, errors.Unsupported(rec.DisplayName(), t.String(), reason)
	}

	if t.AlignAs > info.Align {
		info.Align = t.AlignAs
	}
	return info, child, nil
}

// frame is the state of one record being laid out.
type frame struct {
	b   *builder
	rec *decl.Record
	tl  *TypeLayout

	cursor uint64
	align  uint64

	bits      abi.BitfieldState
	unit      int  // 1-based index of the open storage unit
	afterBits bool // the last storage emitted was a bitfield run

	empties  []emptySub
	occupied map[emptySub]bool
	collided bool
}

func newFrame(b *builder, rec *decl.Record) *frame {
	return &frame{
		b:   b,
		rec: rec,
		tl: &TypeLayout{
			Name:          rec.Name,
			QualifiedName: rec.DisplayName(),
			Kind:          rec.Kind.String(),
			Profile:       b.p.String(),
			Members:       []MemberLayout{},
			Padding:       []PaddingRegion{},
			Suggestions:   []Suggestion{},
		},
		align:    1,
		occupied: make(map[emptySub]bool),
	}
}

func (f *frame) fail(format string, args ...any) error {
	return errors.New(errors.PhaseBuild, errors.KindUnsupportedConstruct).
		Record(f.rec.DisplayName()).
		Detail(format, args...).
		Build()
}

// capped applies the record's packing to a natural alignment.
func (f *frame) capped(align uint64) uint64 {
	a := abi.MinAlign(align, f.rec.Pack)
	if a == 0 {
		return 1
	}
	return a
}

func (f *frame) raise(align uint64) {
	if align > f.align {
		f.align = align
	}
}

// pad advances the cursor to offset, recording the skipped bytes.
func (f *frame) pad(offset uint64, reason string) {
	if offset <= f.cursor {
		return
	}
	f.tl.Padding = append(f.tl.Padding, PaddingRegion{
		Offset: f.cursor,
		Size:   offset - f.cursor,
		Reason: reason,
	})
	f.cursor = offset
}

func (f *frame) advance(offset, size uint64) error {
	end, ok := abi.SafeAdd(offset, size)
	if !ok {
		return errors.Overflow(errors.PhaseBuild, []string{f.rec.DisplayName()}, offset, "record size")
	}
	if end > f.cursor {
		f.cursor = end
	}
	return nil
}

// fits reports whether child's empty subobjects can be placed at offset
// without two subobjects of the same type sharing an address.
func (f *frame) fits(child *built, offset uint64) bool {
	if child == nil {
		return true
	}
	for _, e := range child.empties {
		if f.occupied[emptySub{rec: e.rec, offset: offset + e.offset}] {
			return false
		}
	}
	return true
}

func (f *frame) occupy(child *built, offset uint64) {
	if child == nil {
		return
	}
	for _, e := range child.empties {
		s := emptySub{rec: e.rec, offset: offset + e.offset}
		if !f.occupied[s] {
			f.occupied[s] = true
			f.empties = append(f.empties, s)
		}
	}
}

// class lays out a struct or class: vtable pointer, non-virtual bases,
// data members, then (Itanium only) virtual bases.
func (f *frame) class() error {
	rec, p := f.rec, f.b.p

	if rec.Empty() {
		f.occupy(&built{empties: []emptySub{{rec: rec}}}, 0)
	}

	traits := make([]abi.BaseTraits, len(rec.Bases))
	for i, base := range rec.Bases {
		if base.Virtual && !p.VirtualBases {
			return f.fail("virtual base %s is not supported on %s", base.Name, p)
		}
		traits[i] = abi.BaseTraits{Dynamic: base.Record.Dynamic(), Virtual: base.Virtual}
	}
	order, primary := p.VPtr.Order(traits)

	dynamic := rec.Dynamic()
	if p.VPtr.NeedsOwnVPtr(dynamic, primary) {
		ptr := p.Pointer()
		al := f.capped(ptr.Align)
		f.tl.VTable = &VTableInfo{PointerOffset: 0, PointerSize: ptr.Size}
		f.cursor = ptr.Size
		f.raise(al)
	}

	polymorphicBases := 0
	for _, idx := range order {
		base := rec.Bases[idx]
		if traits[idx].Dynamic {
			polymorphicBases++
		}
		child, err := f.b.record(base.Record)
		if err != nil {
			return err
		}
		bl, err := f.placeBase(base, child, len(rec.Bases) == 1)
		if err != nil {
			return err
		}
		bl.Primary = idx == primary
		f.tl.Bases = append(f.tl.Bases, bl)

		if bl.Primary && child.tl.VTable != nil {
			f.tl.VTable = &VTableInfo{
				PointerOffset:    bl.Offset + child.tl.VTable.PointerOffset,
				PointerSize:      child.tl.VTable.PointerSize,
				VirtualFunctions: append([]string(nil), child.tl.VTable.VirtualFunctions...),
				Inherited:        true,
				PrimaryBase:      base.Name,
			}
		}
	}

	if f.tl.VTable != nil {
		vt := f.tl.VTable
		vt.VirtualFunctions = mergeVirtuals(vt.VirtualFunctions, rec.VirtualFunctions)
		vt.HasVirtualBase = rec.HasVirtualBases()
		vt.Partial = p.Dialect == abi.MSVC && polymorphicBases > 1
	}

	for i := range rec.Members {
		if err := f.member(&rec.Members[i]); err != nil {
			return err
		}
	}
	f.closeRun()

	nvEnd, nvAlign := f.cursor, f.align
	if rec.AlignAs > nvAlign {
		nvAlign = rec.AlignAs
	}

	vbases := virtualBases(rec)
	for _, vb := range vbases {
		child, err := f.b.record(vb.Record)
		if err != nil {
			return err
		}
		bl, err := f.placeBase(vb, child, false)
		if err != nil {
			return err
		}
		f.tl.Bases = append(f.tl.Bases, bl)
	}

	if err := f.finish(); err != nil {
		return err
	}
	if len(vbases) == 0 {
		f.tl.NonVirtualSize = f.tl.TotalSize
		f.tl.NonVirtualAlign = f.tl.Alignment
	} else {
		f.tl.NonVirtualSize = abi.AlignUp(nvEnd, nvAlign)
		f.tl.NonVirtualAlign = nvAlign
	}

	f.tl.IsPolymorphic = rec.Polymorphic()
	f.tl.IsStandardLayout = f.standardLayout()
	return nil
}

// placeBase positions one base subobject. Empty bases are overlapped at
// offset 0 when the profile allows it and no subobject of the same type is
// already there.
func (f *frame) placeBase(base decl.Base, child *built, sole bool) (BaseLayout, error) {
	al := f.capped(child.tl.NonVirtualAlign)
	bl := BaseLayout{
		Name:      base.Name,
		Alignment: al,
		Virtual:   base.Virtual,
		Empty:     base.Record.Empty(),
	}

	overlap := false
	if bl.Empty {
		switch f.b.p.EmptyBases {
		case abi.EmptyBasesDistinct:
			overlap = true
		case abi.EmptyBasesSoleOnly:
			overlap = sole
		}
	}

	if overlap && f.fits(child, 0) {
		bl.Offset = 0
		f.occupy(child, 0)
		f.raise(al)
		return bl, nil
	}

	offset := abi.AlignUp(f.cursor, al)
	for !f.fits(child, offset) {
		f.collided = true
		offset += al
	}
	f.pad(offset, ReasonAlignmentGap)
	bl.Offset = offset
	bl.Size = child.tl.NonVirtualSize
	if err := f.advance(offset, bl.Size); err != nil {
		return bl, err
	}
	f.occupy(child, offset)
	f.raise(al)
	return bl, nil
}

func (f *frame) member(m *decl.Member) error {
	if m.Bitfield {
		return f.bitfield(m)
	}
	f.closeRun()

	info, child, err := f.b.typeInfo(f.rec, m.Type)
	if err != nil {
		return err
	}
	al := f.capped(info.Align)
	if m.AlignAs > al {
		al = m.AlignAs
	}

	offset := abi.AlignUp(f.cursor, al)
	if info.Size > 0 {
		for !f.fits(child, offset) {
			f.collided = true
			offset += al
		}
	}
	f.pad(offset, ReasonAlignmentGap)
	f.afterBits = false

	f.tl.Members = append(f.tl.Members, MemberLayout{
		Name:      m.Name,
		Type:      m.Type.String(),
		Access:    m.Access.String(),
		Offset:    offset,
		Size:      info.Size,
		Alignment: al,
	})
	if err := f.advance(offset, info.Size); err != nil {
		return err
	}
	if info.Size > 0 {
		f.occupy(child, offset)
	}
	f.raise(al)
	return nil
}

func (f *frame) bitfield(m *decl.Member) error {
	p := f.b.p
	info, _, err := f.b.typeInfo(f.rec, m.Type)
	if err != nil {
		return err
	}
	if m.BitWidth > info.Size*8 {
		return errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			Record(f.rec.DisplayName()).
			Path(f.rec.DisplayName(), m.Name).
			Detail("bitfield width %d exceeds the %d bits of %s", m.BitWidth, info.Size*8, m.Type).
			Build()
	}

	al := f.capped(info.Align)
	bf := abi.Bitfield{Size: info.Size, Align: al, Width: m.BitWidth}

	if m.BitWidth == 0 {
		closeRun, zeroAlign := p.Bitfields.ZeroWidth(f.bits, bf)
		if closeRun {
			f.closeRun()
		}
		reason := ReasonAlignmentGap
		if f.afterBits {
			reason = ReasonBitfieldUnitGap
		}
		f.pad(abi.AlignUp(f.cursor, zeroAlign), reason)
		return nil
	}

	pl := p.Bitfields.Place(f.bits, f.cursor, bf)
	if pl.Fresh {
		f.closeRun()
		reason := ReasonAlignmentGap
		if f.afterBits {
			reason = ReasonBitfieldUnitGap
		}
		start := pl.Bit / 8
		f.pad(start, reason)
		f.tl.StorageUnits = append(f.tl.StorageUnits, StorageUnit{Offset: start})
		f.unit = len(f.tl.StorageUnits)
	}
	f.bits = pl.State

	unit := &f.tl.StorageUnits[f.unit-1]
	unit.Size = pl.State.UsedEnd() - unit.Offset

	inByte := pl.Bit % 8
	f.tl.Members = append(f.tl.Members, MemberLayout{
		Name:        m.Name,
		Type:        m.Type.String(),
		Access:      m.Access.String(),
		Offset:      pl.Bit / 8,
		Size:        (inByte + m.BitWidth + 7) / 8,
		Alignment:   al,
		IsBitfield:  true,
		BitWidth:    m.BitWidth,
		BitOffset:   inByte,
		UnitSize:    info.Size,
		StorageUnit: f.unit,
	})
	if !m.Unnamed || p.UnnamedBitfieldAlign {
		f.raise(al)
	}
	return nil
}

// closeRun ends the open bitfield run, moving the cursor past its storage.
func (f *frame) closeRun() {
	if !f.bits.Open {
		return
	}
	used := f.bits.UsedEnd()
	end := f.b.p.Bitfields.UnitEnd(f.bits)
	if used > f.cursor {
		f.cursor = used
	}
	f.pad(end, ReasonBitfieldUnitGap)
	f.bits = abi.BitfieldState{}
	f.unit = 0
	f.afterBits = true
}

// finish computes the record alignment, total size and tail padding.
func (f *frame) finish() error {
	if f.rec.AlignAs > f.align {
		f.align = f.rec.AlignAs
	}
	end := f.cursor
	if end == 0 {
		end = 1
	}
	total := abi.AlignUp(end, f.align)
	if total < end {
		return errors.Overflow(errors.PhaseBuild, []string{f.rec.DisplayName()}, end, "record size")
	}
	f.pad(total, ReasonTailPadding)

	f.tl.TotalSize = total
	f.tl.Alignment = f.align
	f.tl.UsefulSize = total - f.tl.PaddingBytes()
	return nil
}

// union lays out every member at offset 0.
func (f *frame) union() error {
	rec := f.rec
	if rec.Dynamic() || len(rec.Bases) > 0 {
		return f.fail("union with bases or virtual functions")
	}

	var size uint64
	for i := range rec.Members {
		m := &rec.Members[i]
		if m.IsZeroWidth() {
			continue
		}
		info, child, err := f.b.typeInfo(rec, m.Type)
		if err != nil {
			return err
		}
		al := f.capped(info.Align)
		if m.AlignAs > al {
			al = m.AlignAs
		}

		ml := MemberLayout{
			Name:      m.Name,
			Type:      m.Type.String(),
			Access:    m.Access.String(),
			Size:      info.Size,
			Alignment: al,
		}
		if m.Bitfield {
			ml.IsBitfield = true
			ml.BitWidth = m.BitWidth
			ml.Size = (m.BitWidth + 7) / 8
			ml.UnitSize = info.Size
			if f.b.p.Bitfields == abi.BitfieldsByUnit {
				ml.Size = info.Size
			}
		}
		f.tl.Members = append(f.tl.Members, ml)
		if ml.Size > size {
			size = ml.Size
		}
		if ml.Size > 0 && child != nil {
			f.occupy(child, 0)
		}
		if !m.Unnamed || f.b.p.UnnamedBitfieldAlign {
			f.raise(al)
		}
	}

	f.cursor = size
	if err := f.finish(); err != nil {
		return err
	}
	f.tl.NonVirtualSize = f.tl.TotalSize
	f.tl.NonVirtualAlign = f.tl.Alignment
	f.tl.IsStandardLayout = f.standardLayout()
	return nil
}

// standardLayout applies a conservative standard-layout test: a record is
// standard-layout only if it is not dynamic, data members are declared in
// at most one class of the hierarchy, all of them share one access level,
// no two subobjects of the same type had to be separated, and every base
// and member record is standard-layout itself.
func (f *frame) standardLayout() bool {
	rec := f.rec
	if rec.Dynamic() || f.collided {
		return false
	}

	dataBases := 0
	for _, base := range rec.Bases {
		res := f.b.memo[base.Record]
		if res == nil || !res.tl.IsStandardLayout {
			return false
		}
		if !base.Record.Empty() {
			dataBases++
		}
	}
	if rec.HasStorageMembers() && dataBases > 0 || dataBases > 1 {
		return false
	}

	access := -1
	for i := range rec.Members {
		m := &rec.Members[i]
		if m.Unnamed {
			continue
		}
		if access >= 0 && decl.Access(access) != m.Access {
			return false
		}
		access = int(m.Access)

		for t := m.Type; t != nil; t = t.Elem {
			if t.Kind == decl.KindPointer || t.Kind == decl.KindReference {
				break
			}
			if t.Kind == decl.KindRecord {
				if res := f.b.memo[t.Record]; res == nil || !res.tl.IsStandardLayout {
					return false
				}
			}
		}
	}
	return true
}

// virtualBases lists the virtual bases of rec, direct and indirect, in
// depth-first declaration order, each once.
func virtualBases(rec *decl.Record) []decl.Base {
	var out []decl.Base
	seen := make(map[*decl.Record]bool)
	var visit func(*decl.Record)
	visit = func(r *decl.Record) {
		for _, base := range r.Bases {
			if base.Virtual && !seen[base.Record] {
				seen[base.Record] = true
				out = append(out, base)
			}
			visit(base.Record)
		}
	}
	visit(rec)
	return out
}

func mergeVirtuals(inherited, own []string) []string {
	out := inherited
	for _, fn := range own {
		dup := false
		for _, have := range out {
			if have == fn {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, fn)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
