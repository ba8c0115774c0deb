package cxx

import (
	"fmt"

	"github.com/wippyai/structsight/decl"
)

// declarator is the name part of a declaration together with what the
// parser learned about it.
type declarator struct {
	name      string
	qualified bool // A::b, an out-of-class definition
	line, col int
	function  bool
	virtSpec  bool // override or final
	pure      bool
	attrs     attrs
}

type typeOp func(*decl.TypeRef) *decl.TypeRef

var callingConventions = map[string]bool{
	"__cdecl": true, "__stdcall": true, "__fastcall": true, "__thiscall": true,
	"__vectorcall": true, "__clrcall": true, "WINAPI": true, "APIENTRY": true,
}

// declarator parses pointer operators, the declarator id and array or
// function suffixes. The returned function builds the declared type from
// the specifier type.
func (p *parser) declarator(d *declarator) typeOp {
	var ptrs []typeOp
ops:
	for {
		switch {
		case p.is("*") || p.is("^"):
			p.next()
			ptrs = append(ptrs, decl.Pointer)
		case p.is("&"):
			p.next()
			p.got("&")
			ptrs = append(ptrs, decl.Reference)
		case p.tok.kind == tIdent && (qualifierWords[p.tok.lit] || callingConventions[p.tok.lit] ||
			p.tok.lit == "__ptr32" || p.tok.lit == "__ptr64"):
			p.next()
		case p.is("[") && p.peek(0).is("["),
			p.is("__attribute__"), p.is("__attribute"), p.is("__declspec"), p.is("alignas"):
			p.attributes(&d.attrs)
		case p.memberPointerAhead():
			for !p.is("*") {
				p.next()
			}
			p.next()
			ptrs = append(ptrs, memberPointer)
		default:
			break ops
		}
	}

	var inner typeOp
	switch {
	case p.is("(") && p.nestedDeclaratorAhead():
		p.next()
		inner = p.declarator(d)
		p.want(")")
	case p.tok.kind == tIdent && !reserved[p.tok.lit], p.is("::"), p.is("~"):
		p.declaratorName(d)
	}

	var suffixes []typeOp
	fn := false
suffix:
	for {
		switch {
		case p.is("[") && p.peek(0).is("["):
			p.attributes(&d.attrs)
		case p.is("["):
			suffixes = append(suffixes, p.arraySuffix())
		case p.is("("):
			p.skipBalanced()
			p.functionQualifiers(d)
			fn = true
			suffixes = append(suffixes, functionType)
		case p.is("__attribute__") || p.is("__attribute") || p.is("__declspec") || p.is("alignas"):
			p.attributes(&d.attrs)
		default:
			break suffix
		}
	}
	if fn && inner == nil {
		d.function = true
	}

	return func(t *decl.TypeRef) *decl.TypeRef {
		for _, op := range ptrs {
			t = op(t)
		}
		for i := len(suffixes) - 1; i >= 0; i-- {
			t = suffixes[i](t)
		}
		if inner != nil {
			t = inner(t)
		}
		return t
	}
}

// reserved keywords never name a declarator.
var reserved = map[string]bool{
	"const": true, "volatile": true, "struct": true, "class": true, "union": true,
	"enum": true, "override": true, "final": true, "noexcept": true,
}

func (p *parser) declaratorName(d *declarator) {
	d.line, d.col = p.tok.line, p.tok.col
	name := ""
	if p.got("::") {
		d.qualified = true
	}
	for {
		switch {
		case p.got("~"):
			name = "~" + p.ident()
		case p.is("operator"):
			name = p.operatorName()
		default:
			name = p.ident()
			if p.is("<") {
				p.skipAngles()
			}
		}
		if !p.got("::") {
			break
		}
		d.qualified = true
	}
	d.name = name
}

// operatorName parses an operator-function-id or conversion-function-id.
func (p *parser) operatorName() string {
	p.want("operator")
	name := "operator"
	switch {
	case p.is("(") && p.peek(0).is(")"):
		p.next()
		p.next()
		return name + "()"
	case p.is("[") && p.peek(0).is("]"):
		p.next()
		p.next()
		return name + "[]"
	}
	for !p.is("(") && p.tok.kind != tEOF {
		if p.tok.kind == tIdent && name != "operator" {
			name += " "
		}
		name += p.tok.lit
		p.next()
	}
	return name
}

func (p *parser) arraySuffix() typeOp {
	p.want("[")
	if p.got("]") {
		return decl.FlexibleArray
	}
	bound := p.collect("]")
	p.want("]")
	n, err := p.eval(bound, false)
	if err == nil && n < 0 {
		err = fmt.Errorf("negative array size %d", n)
	}
	return func(t *decl.TypeRef) *decl.TypeRef {
		if err != nil {
			return decl.Unresolved(t.String()+"["+spell(bound)+"]", "array bound: "+err.Error())
		}
		return decl.Array(t, uint64(n))
	}
}

func functionType(t *decl.TypeRef) *decl.TypeRef {
	return decl.Unresolved(t.String()+"()", "function type")
}

func memberPointer(t *decl.TypeRef) *decl.TypeRef {
	return decl.Unresolved(t.String()+" C::*", "pointer to member")
}

// functionQualifiers skips cv and ref qualifiers, exception
// specifications and trailing return types after a parameter list, noting
// override and final.
func (p *parser) functionQualifiers(d *declarator) {
	for {
		switch {
		case p.is("const") || p.is("volatile") || p.is("&") || p.is("mutable"):
			p.next()
		case p.is("noexcept") || p.is("throw"):
			p.next()
			if p.is("(") {
				p.skipBalanced()
			}
		case p.is("override") || p.is("final"):
			d.virtSpec = true
			p.next()
		case p.is("-") && p.peek(0).is(">") && p.tok.adjacent(p.peek(0)):
			p.next()
			p.next()
			for !p.is("{") && !p.is(";") && !p.is("=") && !p.is(",") && !p.is("override") &&
				!p.is("final") && !p.is(")") && p.tok.kind != tEOF {
				if closerOf(p.tok.lit) != "" {
					p.skipBalanced()
					continue
				}
				if p.is("<") {
					p.skipAngles()
					continue
				}
				p.next()
			}
		case p.is("requires"):
			p.next()
			for !p.is("{") && !p.is(";") && !p.is("=") && p.tok.kind != tEOF {
				if closerOf(p.tok.lit) != "" {
					p.skipBalanced()
					continue
				}
				p.next()
			}
		case p.is("[") && p.peek(0).is("["),
			p.is("__attribute__"), p.is("__attribute"), p.is("__declspec"):
			p.attributes(&d.attrs)
		default:
			return
		}
	}
}

// nestedDeclaratorAhead reports whether the '(' at the current token opens
// a nested declarator such as (*fp) rather than a parameter list.
func (p *parser) nestedDeclaratorAhead() bool {
	t := p.peek(0)
	switch {
	case t.is("*") || t.is("&") || t.is("^"):
		return true
	case t.kind == tIdent && callingConventions[t.lit]:
		return true
	case t.kind == tIdent:
		for n := 1; ; n += 2 {
			if !p.peek(n).is("::") {
				return false
			}
			next := p.peek(n + 1)
			if next.is("*") {
				return true
			}
			if next.kind != tIdent {
				return false
			}
		}
	}
	return false
}

// memberPointerAhead reports whether the tokens ahead spell C::*.
func (p *parser) memberPointerAhead() bool {
	if p.tok.kind != tIdent || reserved[p.tok.lit] {
		return false
	}
	for n := 0; ; n += 2 {
		if !p.peek(n).is("::") {
			return false
		}
		next := p.peek(n + 1)
		if next.is("*") {
			return true
		}
		if next.kind != tIdent {
			return false
		}
	}
}

func spell(toks []token) string {
	s := ""
	for i, t := range toks {
		if i > 0 && !toks[i-1].adjacent(t) {
			s += " "
		}
		s += t.lit
	}
	return s
}
