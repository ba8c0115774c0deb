package decl

import (
	"fmt"
	"strconv"

	"github.com/wippyai/structsight/abi"
)

// Kind is the record-key of a declaration.
type Kind uint8

const (
	Struct Kind = iota
	Class
	Union
)

func (k Kind) String() string {
	switch k {
	case Class:
		return "class"
	case Union:
		return "union"
	default:
		return "struct"
	}
}

// DefaultAccess returns the access level members get before any specifier.
func (k Kind) DefaultAccess() Access {
	if k == Class {
		return Private
	}
	return Public
}

// Access is a C++ access specifier.
type Access uint8

const (
	Public Access = iota
	Protected
	Private
)

func (a Access) String() string {
	switch a {
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// TypeKind classifies a TypeRef.
type TypeKind uint8

const (
	KindFundamental TypeKind = iota
	KindPointer
	KindReference
	KindArray
	KindRecord
	KindEnum
	KindUnresolved
)

// TypeRef is a symbolic member type.
type TypeRef struct {
	Spelling    string
	Kind        TypeKind
	Fundamental abi.Fundamental // fundamental type, enum underlying type
	Elem        *TypeRef        // array element or pointee
	Len         uint64          // array length
	Flexible    bool            // array of unknown bound ("T x[]")
	Record      *Record         // by-value record
	AlignAs     uint64          // alignment requested by an alias (e.g. typedef with aligned attribute)
	Reason      string          // why the type could not be resolved
}

func (t *TypeRef) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.Spelling != "" {
		return t.Spelling
	}
	switch t.Kind {
	case KindFundamental, KindEnum:
		return t.Fundamental.String()
	case KindPointer:
		return t.Elem.String() + "*"
	case KindReference:
		return t.Elem.String() + "&"
	case KindArray:
		if t.Flexible {
			return t.Elem.String() + "[]"
		}
		return t.Elem.String() + "[" + strconv.FormatUint(t.Len, 10) + "]"
	case KindRecord:
		if t.Record != nil {
			return t.Record.DisplayName()
		}
	}
	return "<unresolved>"
}

// Fund returns a fundamental type reference.
func Fund(f abi.Fundamental) *TypeRef {
	return &TypeRef{Kind: KindFundamental, Fundamental: f, Spelling: f.String()}
}

// Pointer returns a pointer to elem.
func Pointer(elem *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindPointer, Elem: elem, Spelling: elem.String() + "*"}
}

// Reference returns a reference to elem.
func Reference(elem *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindReference, Elem: elem, Spelling: elem.String() + "&"}
}

// Array returns elem[n].
func Array(elem *TypeRef, n uint64) *TypeRef {
	return &TypeRef{Kind: KindArray, Elem: elem, Len: n, Spelling: fmt.Sprintf("%s[%d]", elem, n)}
}

// FlexibleArray returns elem[].
func FlexibleArray(elem *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindArray, Elem: elem, Flexible: true, Spelling: elem.String() + "[]"}
}

// RecordOf returns a by-value reference to r.
func RecordOf(r *Record) *TypeRef {
	return &TypeRef{Kind: KindRecord, Record: r, Spelling: r.DisplayName()}
}

// Enum returns an enumeration type with the given underlying type.
func Enum(name string, underlying abi.Fundamental) *TypeRef {
	return &TypeRef{Kind: KindEnum, Fundamental: underlying, Spelling: name}
}

// Unresolved returns a type whose size cannot be known.
func Unresolved(spelling, reason string) *TypeRef {
	return &TypeRef{Kind: KindUnresolved, Spelling: spelling, Reason: reason}
}

// Pos is a source position.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" && p.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Member is one non-static data member.
type Member struct {
	Name     string
	Type     *TypeRef
	Index    int // declaration order
	Access   Access
	Bitfield bool
	BitWidth uint64
	Unnamed  bool   // unnamed bitfield
	AlignAs  uint64 // alignas / aligned attribute on the member
}

// IsZeroWidth reports whether m is a zero-width bitfield.
func (m *Member) IsZeroWidth() bool {
	return m.Bitfield && m.BitWidth == 0
}

// IsFlexible reports whether m is a flexible array member.
func (m *Member) IsFlexible() bool {
	return m.Type != nil && m.Type.Kind == KindArray && m.Type.Flexible
}

// Field returns a non-bitfield member.
func Field(name string, t *TypeRef) Member {
	return Member{Name: name, Type: t}
}

// BitField returns a bitfield member.
func BitField(name string, t *TypeRef, width uint64) Member {
	return Member{Name: name, Type: t, Bitfield: true, BitWidth: width, Unnamed: name == ""}
}

// Base is a direct base class.
type Base struct {
	Name    string
	Record  *Record
	Virtual bool
	Access  Access
}
