package abi

import "fmt"

// Arch identifies a target architecture.
type Arch uint8

const (
	X86 Arch = iota + 1
	X64
	ARM64
)

func (a Arch) String() string {
	switch a {
	case X86:
		return "x86"
	case X64:
		return "x64"
	case ARM64:
		return "arm64"
	default:
		return fmt.Sprintf("arch(%d)", uint8(a))
	}
}

// Dialect identifies the C++ object-layout convention of a compiler family.
type Dialect uint8

const (
	Itanium Dialect = iota + 1 // clang, gcc
	MSVC
)

func (d Dialect) String() string {
	switch d {
	case Itanium:
		return "itanium"
	case MSVC:
		return "msvc"
	default:
		return fmt.Sprintf("dialect(%d)", uint8(d))
	}
}

// Key identifies a profile.
type Key struct {
	Arch    Arch
	Dialect Dialect
}

func (k Key) String() string {
	return k.Arch.String() + "-" + k.Dialect.String()
}

// EmptyBasePolicy controls when a base class without data may be laid out
// at zero size.
type EmptyBasePolicy uint8

const (
	// EmptyBasesNever gives every empty base one byte of storage.
	EmptyBasesNever EmptyBasePolicy = iota
	// EmptyBasesSoleOnly overlaps an empty base only when it is the only base.
	EmptyBasesSoleOnly
	// EmptyBasesDistinct overlaps every empty base unless another subobject
	// of the same type already occupies the offset.
	EmptyBasesDistinct
)

// Profile is the complete set of layout rules for one (architecture,
// dialect) pair. The zero value is not a usable profile; obtain one from
// Resolve or Profiles.
type Profile struct {
	Arch    Arch
	Dialect Dialect

	PointerSize  uint64
	PointerAlign uint64

	Bitfields  BitfieldRule
	VPtr       VPtrRule
	EmptyBases EmptyBasePolicy

	// VirtualBases reports whether virtual inheritance can be laid out.
	VirtualBases bool
	// UnnamedBitfieldAlign reports whether unnamed bitfields contribute
	// their declared type's alignment to the record.
	UnnamedBitfieldAlign bool

	types     [numFundamentals]TypeInfo
	available [numFundamentals]bool
}

// Key returns the profile's registry key.
func (p Profile) Key() Key {
	return Key{Arch: p.Arch, Dialect: p.Dialect}
}

func (p Profile) String() string {
	return p.Key().String()
}

// Fundamental returns the size and alignment of f. ok is false when the
// type does not exist on this profile.
func (p Profile) Fundamental(f Fundamental) (TypeInfo, bool) {
	if f >= numFundamentals || !p.available[f] {
		return TypeInfo{}, false
	}
	return p.types[f], true
}

// Pointer returns the size and alignment of data pointers and references.
func (p Profile) Pointer() TypeInfo {
	return TypeInfo{Size: p.PointerSize, Align: p.PointerAlign}
}

func newProfile(arch Arch, dialect Dialect) Profile {
	p := Profile{
		Arch:    arch,
		Dialect: dialect,
	}

	ptr := uint64(8)
	if arch == X86 {
		ptr = 4
	}
	p.PointerSize = ptr
	p.PointerAlign = ptr

	set := func(f Fundamental, size, align uint64) {
		p.types[f] = TypeInfo{Size: size, Align: align}
		p.available[f] = true
	}

	for _, f := range []Fundamental{Bool, Char, SChar, UChar, Char8} {
		set(f, 1, 1)
	}
	set(Char16, 2, 2)
	set(Short, 2, 2)
	set(UShort, 2, 2)
	set(Char32, 4, 4)
	set(Int, 4, 4)
	set(UInt, 4, 4)
	set(Float, 4, 4)
	for _, f := range []Fundamental{Nullptr, SizeT, PtrDiffT, IntPtr, UIntPtr} {
		set(f, ptr, ptr)
	}

	switch dialect {
	case Itanium:
		p.Bitfields = BitfieldsByBitCount
		p.VPtr = VPtrPrimaryBase
		p.EmptyBases = EmptyBasesDistinct
		p.VirtualBases = true
		p.UnnamedBitfieldAlign = false
		set(WChar, 4, 4)

		switch arch {
		case X86:
			// i386 System V caps the in-record alignment of 8-byte scalars at 4.
			set(Long, 4, 4)
			set(ULong, 4, 4)
			set(LongLong, 8, 4)
			set(ULongLong, 8, 4)
			set(Double, 8, 4)
			set(LongDouble, 12, 4)
		default:
			set(Long, 8, 8)
			set(ULong, 8, 8)
			set(LongLong, 8, 8)
			set(ULongLong, 8, 8)
			set(Double, 8, 8)
			set(LongDouble, 16, 16)
			set(Int128, 16, 16)
			set(UInt128, 16, 16)
		}

	case MSVC:
		p.Bitfields = BitfieldsByUnit
		p.VPtr = VPtrPolymorphicBasesFirst
		p.EmptyBases = EmptyBasesSoleOnly
		p.VirtualBases = false
		p.UnnamedBitfieldAlign = true
		set(WChar, 2, 2)
		set(Long, 4, 4)
		set(ULong, 4, 4)
		set(LongLong, 8, 8)
		set(ULongLong, 8, 8)
		set(Double, 8, 8)
		set(LongDouble, 8, 8)
	}

	return p
}
