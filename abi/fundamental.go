package abi

// Fundamental enumerates the built-in C/C++ types whose size and alignment
// depend on the profile.
type Fundamental uint8

const (
	Bool Fundamental = iota
	Char
	SChar
	UChar
	Char8
	Char16
	Char32
	WChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LongLong
	ULongLong
	Int128
	UInt128
	Float
	Double
	LongDouble
	Nullptr
	SizeT
	PtrDiffT
	IntPtr
	UIntPtr
	numFundamentals
)

var fundamentalNames = [numFundamentals]string{
	Bool:       "bool",
	Char:       "char",
	SChar:      "signed char",
	UChar:      "unsigned char",
	Char8:      "char8_t",
	Char16:     "char16_t",
	Char32:     "char32_t",
	WChar:      "wchar_t",
	Short:      "short",
	UShort:     "unsigned short",
	Int:        "int",
	UInt:       "unsigned int",
	Long:       "long",
	ULong:      "unsigned long",
	LongLong:   "long long",
	ULongLong:  "unsigned long long",
	Int128:     "__int128",
	UInt128:    "unsigned __int128",
	Float:      "float",
	Double:     "double",
	LongDouble: "long double",
	Nullptr:    "std::nullptr_t",
	SizeT:      "size_t",
	PtrDiffT:   "ptrdiff_t",
	IntPtr:     "intptr_t",
	UIntPtr:    "uintptr_t",
}

func (f Fundamental) String() string {
	if f < numFundamentals {
		return fundamentalNames[f]
	}
	return "invalid"
}

// Bits returns the storage width of f in bits under profile p, or 0 if the
// type is not available.
func (f Fundamental) Bits(p Profile) uint64 {
	info, ok := p.Fundamental(f)
	if !ok {
		return 0
	}
	return info.Size * 8
}

// TypeInfo is the size and alignment of a type in bytes.
type TypeInfo struct {
	Size  uint64
	Align uint64
}

// IsIntegral reports whether f is an integer, character or boolean type,
// the types a bitfield may be declared with.
func (f Fundamental) IsIntegral() bool {
	switch f {
	case Float, Double, LongDouble, Nullptr:
		return false
	}
	return f < numFundamentals
}
