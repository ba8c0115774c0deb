package cxx

import (
	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/decl"
)

// attrs collects the layout-relevant attributes of a declaration.
type attrs struct {
	packed bool
	align  uint64
}

func (a *attrs) raise(n uint64) {
	if n > a.align {
		a.align = n
	}
}

// specs is a parsed decl-specifier sequence.
type specs struct {
	typ       *decl.TypeRef
	fromIdent bool // typ came from an identifier, possibly a macro
	words     fundWords

	typedef   bool
	static    bool
	constexpr bool
	isConst   bool
	virtual   bool
	friend    bool

	attrs     attrs
	defined   *decl.Record // record defined by this declaration
	anonymous bool

	line, col int
}

func (s *specs) sawType() bool {
	return s.typ != nil || s.words.n > 0
}

// fundWords counts the keywords of a fundamental type specifier
// ("unsigned long long int").
type fundWords struct {
	n                                     int
	signed, unsigned, short, long, int    int
	char, bool, float, double, void, auto int
	wchar, char8, char16, char32, int128  int
}

var qualifierWords = map[string]bool{
	"const": true, "volatile": true, "restrict": true, "__restrict": true,
	"__restrict__": true, "__const": true, "__volatile__": true,
}

var ignoredWords = map[string]bool{
	"inline": true, "__inline": true, "__inline__": true, "__forceinline": true,
	"explicit": true, "extern": true, "register": true, "mutable": true,
	"thread_local": true, "_Thread_local": true, "__thread": true,
	"consteval": true, "constinit": true, "typename": true, "__extension__": true,
	"_Noreturn": true, "__cdecl": true, "__stdcall": true, "__fastcall": true,
	"__ptr32": true, "__ptr64": true, "_Atomic": true,
}

// specifiers parses a decl-specifier sequence into s. It stops at the
// first token that can only start a declarator.
func (p *parser) specifiers(cls *classCtx, s *specs) {
loop:
	for {
		if p.tok.kind == tPunct {
			switch {
			case p.is("[") && p.peek(0).is("["):
				p.skipBalanced()
				continue
			case p.is("::") && !s.sawType():
				p.typeName(s)
				continue
			}
			break loop
		}
		if p.tok.kind != tIdent {
			break loop
		}

		lit := p.tok.lit
		switch {
		case lit == "typedef":
			s.typedef = true
			p.next()
		case lit == "static":
			s.static = true
			p.next()
		case lit == "constexpr":
			s.constexpr = true
			p.next()
		case lit == "virtual":
			s.virtual = true
			p.next()
		case lit == "friend":
			s.friend = true
			p.next()
		case qualifierWords[lit]:
			if lit == "const" || lit == "__const" {
				s.isConst = true
			}
			p.next()
		case ignoredWords[lit]:
			p.next()
			if lit == "_Atomic" && p.is("(") {
				s.typ = p.atomicType()
			}
		case p.fundamentalWord(&s.words):
			p.next()
		case lit == "struct" || lit == "class" || lit == "union":
			if s.fromIdent {
				s.typ, s.fromIdent = nil, false
			}
			p.classSpecifier(cls, s)
		case lit == "enum":
			if s.fromIdent {
				s.typ, s.fromIdent = nil, false
			}
			s.typ = p.enumSpecifier()
		case lit == "alignas" || lit == "_Alignas" || lit == "__attribute__" || lit == "__attribute" || lit == "__declspec":
			p.attributes(&s.attrs)
		case lit == "decltype" || lit == "typeof" || lit == "__typeof__" || lit == "__typeof":
			p.next()
			p.skipBalanced()
			s.typ = decl.Unresolved(lit+"(...)", "decltype")
		case lit == "operator" || s.sawType():
			break loop
		case cls != nil && lit == cls.rec.Name && p.peek(0).is("("):
			// constructor
			break loop
		default:
			p.typeName(s)
		}
	}
	if s.words.n > 0 {
		s.typ = s.words.resolve()
		s.fromIdent = false
	}
}

func (p *parser) typeName(s *specs) {
	name, templated := p.qualifiedName()
	s.typ = p.typeNamed(name, templated)
	s.fromIdent = true
}

func (p *parser) atomicType() *decl.TypeRef {
	p.next()
	t := p.typeID()
	p.want(")")
	return t
}

// qualifiedName parses [::]ident{::ident} with optional template
// arguments. It leaves "::~" and "::*" for the declarator.
func (p *parser) qualifiedName() (string, bool) {
	name := ""
	if p.got("::") {
		name = "::"
	}
	templated := false
	for {
		name += p.ident()
		if p.is("<") {
			p.skipAngles()
			templated = true
		}
		if !p.is("::") || p.peek(0).kind != tIdent || p.peek(0).lit == "operator" {
			return name, templated
		}
		p.next()
		name += "::"
	}
}

func (p *parser) fundamentalWord(w *fundWords) bool {
	var c *int
	switch p.tok.lit {
	case "signed", "__signed__", "__signed":
		c = &w.signed
	case "unsigned":
		c = &w.unsigned
	case "short":
		c = &w.short
	case "long":
		c = &w.long
	case "int":
		c = &w.int
	case "char":
		c = &w.char
	case "bool", "_Bool":
		c = &w.bool
	case "float":
		c = &w.float
	case "double":
		c = &w.double
	case "void":
		c = &w.void
	case "auto":
		c = &w.auto
	case "wchar_t":
		c = &w.wchar
	case "char8_t":
		c = &w.char8
	case "char16_t":
		c = &w.char16
	case "char32_t":
		c = &w.char32
	case "__int128", "__int128_t":
		c = &w.int128
	case "__uint128_t":
		w.unsigned++
		c = &w.int128
	default:
		return false
	}
	*c++
	w.n++
	return true
}

func (w fundWords) resolve() *decl.TypeRef {
	f := abi.Int
	switch {
	case w.void > 0:
		return decl.Unresolved("void", "incomplete type")
	case w.auto > 0:
		return decl.Unresolved("auto", "deduced type")
	case w.bool > 0:
		f = abi.Bool
	case w.char > 0:
		switch {
		case w.unsigned > 0:
			f = abi.UChar
		case w.signed > 0:
			f = abi.SChar
		default:
			f = abi.Char
		}
	case w.wchar > 0:
		f = abi.WChar
	case w.char8 > 0:
		f = abi.Char8
	case w.char16 > 0:
		f = abi.Char16
	case w.char32 > 0:
		f = abi.Char32
	case w.int128 > 0:
		f = pick(w, abi.Int128, abi.UInt128)
	case w.float > 0:
		f = abi.Float
	case w.double > 0:
		f = abi.Double
		if w.long > 0 {
			f = abi.LongDouble
		}
	case w.short > 0:
		f = pick(w, abi.Short, abi.UShort)
	case w.long == 1:
		f = pick(w, abi.Long, abi.ULong)
	case w.long >= 2:
		f = pick(w, abi.LongLong, abi.ULongLong)
	default:
		f = pick(w, abi.Int, abi.UInt)
	}
	return decl.Fund(f)
}

func pick(w fundWords, signed, unsigned abi.Fundamental) abi.Fundamental {
	if w.unsigned > 0 {
		return unsigned
	}
	return signed
}

// attributes parses any run of attribute syntax: [[...]], alignas(...),
// __attribute__((...)) and __declspec(...).
func (p *parser) attributes(a *attrs) {
	for {
		switch {
		case p.is("[") && p.peek(0).is("["):
			p.skipBalanced()
		case p.is("alignas") || p.is("_Alignas"):
			p.next()
			if v, err := p.eval(p.collectBalanced(), false); err == nil && v > 0 {
				a.raise(uint64(v))
			}
		case p.is("__attribute__") || p.is("__attribute"):
			p.next()
			p.want("(")
			p.attributeList(a, p.collectBalanced())
			p.want(")")
		case p.is("__declspec"):
			p.next()
			p.attributeList(a, p.collectBalanced())
		default:
			return
		}
	}
}

// attributeList interprets a GNU attribute list or __declspec body:
// packed, aligned(N), align(N). Other attributes are ignored.
func (p *parser) attributeList(a *attrs, toks []token) {
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind != tIdent {
			continue
		}
		var args []token
		if i+1 < len(toks) && toks[i+1].is("(") {
			depth := 0
			j := i + 1
			for ; j < len(toks); j++ {
				if toks[j].is("(") {
					depth++
				} else if toks[j].is(")") {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			args = toks[i+2 : min(j, len(toks))]
			i = j
		}
		switch t.lit {
		case "packed", "__packed__":
			a.packed = true
		case "aligned", "__aligned__", "align":
			if len(args) == 0 {
				a.raise(16)
			} else if v, err := p.eval(args, false); err == nil && v > 0 {
				a.raise(uint64(v))
			}
		}
	}
}

// builtinTypes are the standard typedef names recognized without a
// header.
var builtinTypes = map[string]abi.Fundamental{
	"size_t": abi.SizeT, "std::size_t": abi.SizeT,
	"ssize_t": abi.PtrDiffT, "ptrdiff_t": abi.PtrDiffT, "std::ptrdiff_t": abi.PtrDiffT,
	"intptr_t": abi.IntPtr, "std::intptr_t": abi.IntPtr,
	"uintptr_t": abi.UIntPtr, "std::uintptr_t": abi.UIntPtr,
	"nullptr_t": abi.Nullptr, "std::nullptr_t": abi.Nullptr,
	"int8_t": abi.SChar, "std::int8_t": abi.SChar,
	"uint8_t": abi.UChar, "std::uint8_t": abi.UChar,
	"int16_t": abi.Short, "std::int16_t": abi.Short,
	"uint16_t": abi.UShort, "std::uint16_t": abi.UShort,
	"int32_t": abi.Int, "std::int32_t": abi.Int,
	"uint32_t": abi.UInt, "std::uint32_t": abi.UInt,
	"int64_t": abi.LongLong, "std::int64_t": abi.LongLong,
	"uint64_t": abi.ULongLong, "std::uint64_t": abi.ULongLong,
	"std::byte": abi.UChar,
	"BYTE": abi.UChar, "WORD": abi.UShort, "DWORD": abi.ULong,
	"BOOL": abi.Int, "UINT": abi.UInt, "INT": abi.Int,
}
