package cxx

import (
	"fmt"
	"strings"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/decl"
)

func kindOf(lit string) decl.Kind {
	switch lit {
	case "class":
		return decl.Class
	case "union":
		return decl.Union
	}
	return decl.Struct
}

// classSpecifier parses struct, class and union specifiers: definitions,
// forward declarations and elaborated type references.
func (p *parser) classSpecifier(cls *classCtx, s *specs) {
	kind := kindOf(p.tok.lit)
	line, col := p.tok.line, p.tok.col
	p.next()

	var a attrs
	p.attributes(&a)
	name, templated := "", false
	if p.tok.kind == tIdent && !p.is("final") {
		name, templated = p.qualifiedName()
	} else if p.is("::") {
		name, templated = p.qualifiedName()
	}
	if p.is("final") && (p.peek(0).is(":") || p.peek(0).is("{")) {
		p.next()
	}
	p.attributes(&a)

	defining := p.is("{") || p.is(":")
	if templated {
		// explicit specialization or instantiation
		if defining {
			if p.is(":") {
				for !p.is("{") && p.tok.kind != tEOF {
					p.next()
				}
			}
			p.skipBalanced()
		}
		s.typ = decl.Unresolved(name+"<...>", "template instantiation")
		return
	}
	if !defining {
		s.typ = p.elaborated(name, kind, cls)
		return
	}

	rec := p.defineRecord(name, kind, cls, line, col)
	if p.is(":") {
		p.baseClause(rec)
	}
	p.classBody(rec)

	var trailing attrs
	p.attributes(&trailing)
	if a.packed || trailing.packed {
		rec.Pack = 1
	}
	a.raise(trailing.align)
	if a.align > rec.AlignAs {
		rec.AlignAs = a.align
	}
	delete(p.incomplete, rec)

	s.typ = decl.RecordOf(rec)
	s.defined = rec
	s.anonymous = name == ""
}

// elaborated resolves "struct X" used as a type, declaring X when it is
// not yet known.
func (p *parser) elaborated(name string, kind decl.Kind, cls *classCtx) *decl.TypeRef {
	if name == "" {
		p.syntaxError(fmt.Sprintf("expected %s name or body, found %s", kind, p.tok))
	}
	if sym := p.lookup(name); sym != nil {
		if sym.rec != nil {
			return decl.RecordOf(sym.rec)
		}
		c := *sym.typ
		return &c
	}
	if strings.Contains(name, "::") {
		return decl.Unresolved(name, "unknown type")
	}
	rec := &decl.Record{
		Name:          name,
		QualifiedName: p.qualify(name),
		Kind:          kind,
		TopLevel:      cls == nil,
	}
	p.symbols[rec.QualifiedName] = &symbol{rec: rec}
	p.incomplete[rec] = true
	return decl.RecordOf(rec)
}

// defineRecord returns the record a definition fills in, reusing a
// forward declaration when there is one.
func (p *parser) defineRecord(name string, kind decl.Kind, cls *classCtx, line, col int) *decl.Record {
	var rec *decl.Record
	if name != "" {
		key := p.qualify(name)
		if strings.Contains(name, "::") {
			if k, ok := p.resolve(name, func(k string) bool { _, ok := p.symbols[k]; return ok }); ok {
				key = k
			}
		}
		if sym, ok := p.symbols[key]; ok && sym.rec != nil {
			if !p.incomplete[sym.rec] {
				p.errorAt(line, col, fmt.Sprintf("redefinition of '%s'", name))
			}
			rec = sym.rec
		} else {
			rec = &decl.Record{}
			p.symbols[key] = &symbol{rec: rec}
		}
		rec.Name = name[strings.LastIndex(name, ":")+1:]
		rec.QualifiedName = key
	} else {
		rec = &decl.Record{QualifiedName: p.qualify(fmt.Sprintf("(anonymous %s)", kind))}
	}
	rec.Kind = kind
	rec.TopLevel = cls == nil
	rec.Pos = decl.Pos{File: p.file, Line: line, Col: col}
	rec.Pack = p.pack
	p.incomplete[rec] = true
	p.records = append(p.records, rec)
	return rec
}

func (p *parser) baseClause(rec *decl.Record) {
	p.want(":")
	for {
		b := decl.Base{Access: rec.Kind.DefaultAccess()}
		for {
			switch {
			case p.got("virtual"):
				b.Virtual = true
				continue
			case p.is("public") || p.is("protected") || p.is("private"):
				b.Access = accessOf(p.tok.lit)
				p.next()
				continue
			case p.is("[") && p.peek(0).is("["):
				p.skipBalanced()
				continue
			}
			break
		}
		line, col := p.tok.line, p.tok.col
		name, templated := p.qualifiedName()
		p.got("...")
		b.Name = name
		if !templated {
			if sym := p.lookup(name); sym != nil {
				switch {
				case sym.rec != nil:
					b.Record = sym.rec
				case sym.typ.Kind == decl.KindRecord:
					b.Record = sym.typ.Record
				}
			}
		}
		if b.Record == rec {
			p.errorAt(line, col, fmt.Sprintf("'%s' derives from itself", name))
		}
		rec.Bases = append(rec.Bases, b)
		if !p.got(",") {
			return
		}
	}
}

func (p *parser) classBody(rec *decl.Record) {
	saved := p.scopes
	if rec.Name != "" {
		p.scopes = strings.Split(rec.QualifiedName, "::")
	}
	cls := &classCtx{rec: rec, access: rec.Kind.DefaultAccess()}

	p.want("{")
	for !p.is("}") && p.tok.kind != tEOF {
		p.declaration(cls)
	}
	p.want("}")
	p.scopes = saved
}

// enumSpecifier parses enum and enum class specifiers, registering the
// type and its enumerators.
func (p *parser) enumSpecifier() *decl.TypeRef {
	line, col := p.tok.line, p.tok.col
	p.want("enum")
	scoped := p.got("class") || p.got("struct")
	p.attributes(&attrs{})

	name := ""
	if p.tok.kind == tIdent || p.is("::") {
		name, _ = p.qualifiedName()
	}
	p.attributes(&attrs{})

	var fixed *decl.TypeRef
	if p.got(":") {
		var s specs
		p.specifiers(nil, &s)
		if s.typ == nil || !integral(s.typ) {
			p.errorAt(line, col, "enum underlying type must be integral")
		}
		fixed = s.typ
	}

	if !p.is("{") {
		if name == "" {
			p.syntaxError("expected enum name or body, found " + p.tok.String())
		}
		if sym := p.lookup(name); sym != nil && sym.typ != nil {
			c := *sym.typ
			return &c
		}
		if fixed == nil && !scoped {
			return decl.Unresolved(name, "incomplete enum")
		}
		t := enumType(p.qualify(name), fixed, nil)
		p.symbols[p.qualify(name)] = &symbol{typ: t}
		return t
	}

	p.want("{")
	var values []int64
	next := int64(0)
	for !p.is("}") && p.tok.kind != tEOF {
		en := p.ident()
		p.attributes(&attrs{})
		v := next
		if p.got("=") {
			expr := p.collect(",", "}")
			var err error
			if v, err = p.eval(expr, false); err != nil {
				p.errorAt(line, col, fmt.Sprintf("enumerator '%s': %v", en, err))
			}
		}
		values = append(values, v)
		next = v + 1
		if name != "" {
			p.defineConst(name+"::"+en, v)
		}
		if !scoped {
			p.defineConst(en, v)
		}
		if !p.got(",") {
			break
		}
	}
	p.want("}")

	if name == "" {
		return enumType("(anonymous enum)", fixed, values)
	}
	if scoped && fixed == nil {
		fixed = decl.Fund(abi.Int)
	}
	t := enumType(p.qualify(name), fixed, values)
	p.symbols[p.qualify(name)] = &symbol{typ: t}
	return t
}

// enumType picks the underlying type: the fixed one when given, otherwise
// int unless an enumerator needs a wider type.
func enumType(name string, fixed *decl.TypeRef, values []int64) *decl.TypeRef {
	if fixed != nil {
		return decl.Enum(name, fixed.Fundamental)
	}
	f := abi.Int
	for _, v := range values {
		switch {
		case v < -1<<31 || v > 1<<32-1:
			f = abi.LongLong
		case v > 1<<31-1 && f == abi.Int:
			f = abi.UInt
		}
	}
	return decl.Enum(name, f)
}
