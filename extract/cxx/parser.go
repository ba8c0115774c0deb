package cxx

import (
	"context"
	"fmt"
	"strings"

	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/errors"
)

// bailout carries a fatal error out of the recursive descent.
type bailout struct{ err error }

// symbol is a named type: a record, or an alias or enumeration.
type symbol struct {
	rec *decl.Record
	typ *decl.TypeRef
}

// classCtx is the record whose body is being parsed.
type classCtx struct {
	rec    *decl.Record
	access decl.Access
	anon   map[decl.Kind]int
}

// anonName names an anonymous struct or union member so it can be
// reported and reordered like any other member.
func (c *classCtx) anonName(k decl.Kind) string {
	if c.anon == nil {
		c.anon = make(map[decl.Kind]int)
	}
	c.anon[k]++
	if n := c.anon[k]; n > 1 {
		return fmt.Sprintf("(anonymous %s %d)", k, n)
	}
	return fmt.Sprintf("(anonymous %s)", k)
}

type parser struct {
	ctx  context.Context
	file string
	toks []token
	i    int
	tok  token

	scopes  []string // enclosing namespaces and classes
	usings  []string // namespaces named by using-directives
	symbols map[string]*symbol
	consts  map[string]int64
	macros  map[string]bool

	pack        uint64
	defaultPack uint64
	packStack   []uint64
	cond        []condState

	records    []*decl.Record
	incomplete map[*decl.Record]bool
}

func newParser(ctx context.Context, file string, toks []token, cfg flagConfig) *parser {
	p := &parser{
		ctx:         ctx,
		file:        file,
		toks:        toks,
		i:           -1,
		symbols:     make(map[string]*symbol),
		consts:      make(map[string]int64),
		macros:      map[string]bool{"__cplusplus": true},
		pack:        cfg.pack,
		defaultPack: cfg.pack,
		incomplete:  make(map[*decl.Record]bool),
	}
	p.consts["__cplusplus"] = 201703
	for name, v := range cfg.defines {
		p.macros[name] = true
		if v.ok {
			p.consts[name] = v.val
		}
	}
	return p
}

// parse runs the parser over the whole translation unit.
func (p *parser) parse() (recs []*decl.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			recs, err = nil, b.err
		}
	}()

	p.next()
	for p.tok.kind != tEOF {
		if err := p.ctx.Err(); err != nil {
			return nil, errors.Canceled(errors.PhaseParse, err)
		}
		if p.is("}") {
			p.syntaxError("unexpected '}'")
		}
		p.declaration(nil)
	}
	p.resolveIncomplete()
	return p.records, nil
}

// ----------------------------------------------------------------------------
// Token handling

// next advances to the next token, executing preprocessor directives and
// skipping tokens in inactive conditional regions.
func (p *parser) next() {
	for {
		if p.i < len(p.toks)-1 {
			p.i++
		}
		p.tok = p.toks[p.i]
		switch {
		case p.tok.kind == tEOF:
			return
		case p.tok.kind == tDirective:
			p.directive(p.tok)
		case p.active():
			return
		}
	}
}

// peek returns the n-th token after the current one, ignoring directives.
func (p *parser) peek(n int) token {
	for j := p.i + 1; j < len(p.toks); j++ {
		if p.toks[j].kind == tDirective {
			continue
		}
		if n == 0 {
			return p.toks[j]
		}
		n--
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) is(lit string) bool {
	return (p.tok.kind == tIdent || p.tok.kind == tPunct) && p.tok.lit == lit
}

func (t token) is(lit string) bool {
	return (t.kind == tIdent || t.kind == tPunct) && t.lit == lit
}

func (p *parser) got(lit string) bool {
	if p.is(lit) {
		p.next()
		return true
	}
	return false
}

func (p *parser) want(lit string) {
	if !p.got(lit) {
		p.syntaxError(fmt.Sprintf("expected '%s', found %s", lit, p.tok))
	}
}

func (p *parser) syntaxError(msg string) {
	p.errorAt(p.tok.line, p.tok.col, msg)
}

func (p *parser) errorAt(line, col int, msg string) {
	panic(bailout{errors.SyntaxError(p.file, line, col, msg)})
}

func (p *parser) ident() string {
	if p.tok.kind != tIdent {
		p.syntaxError("expected identifier, found " + p.tok.String())
	}
	lit := p.tok.lit
	p.next()
	return lit
}

// skipBalanced skips from an opening bracket past its matching close.
func (p *parser) skipBalanced() {
	p.collectBalanced()
}

// collectBalanced consumes a bracketed group and returns the tokens inside
// it.
func (p *parser) collectBalanced() []token {
	open := p.tok
	closer := closerOf(open.lit)
	if closer == "" {
		p.syntaxError("expected bracket, found " + open.String())
	}
	p.next()
	var out []token
	depth := 0
	for {
		switch {
		case p.tok.kind == tEOF:
			p.errorAt(open.line, open.col, fmt.Sprintf("unbalanced '%s'", open.lit))
		case p.tok.kind == tPunct && strings.Contains("([{", p.tok.lit):
			depth++
		case p.tok.kind == tPunct && strings.Contains(")]}", p.tok.lit):
			if depth == 0 {
				if p.tok.lit != closer {
					p.syntaxError(fmt.Sprintf("expected '%s', found %s", closer, p.tok))
				}
				p.next()
				return out
			}
			depth--
		}
		out = append(out, p.tok)
		p.next()
	}
}

func closerOf(open string) string {
	switch open {
	case "(":
		return ")"
	case "[":
		return "]"
	case "{":
		return "}"
	}
	return ""
}

// collect gathers tokens up to, not including, the first of stops found
// outside brackets.
func (p *parser) collect(stops ...string) []token {
	var out []token
	for p.tok.kind != tEOF {
		if p.tok.kind == tPunct {
			for _, s := range stops {
				if p.tok.lit == s {
					return out
				}
			}
			if c := closerOf(p.tok.lit); c != "" {
				open := p.tok
				inner := p.collectBalanced()
				out = append(out, open)
				out = append(out, inner...)
				out = append(out, token{kind: tPunct, lit: c})
				continue
			}
			if strings.Contains(")]}", p.tok.lit) {
				return out
			}
		}
		out = append(out, p.tok)
		p.next()
	}
	return out
}

// skipAngles skips a template argument or parameter list.
func (p *parser) skipAngles() {
	line, col := p.tok.line, p.tok.col
	p.want("<")
	depth := 1
	for depth > 0 {
		switch {
		case p.tok.kind == tEOF:
			p.errorAt(line, col, "unbalanced '<'")
		case p.is("<"):
			depth++
		case p.is(">"):
			depth--
		case p.is("(") || p.is("[") || p.is("{"):
			p.skipBalanced()
			continue
		case p.is(";") || p.is("}"):
			p.errorAt(line, col, "unbalanced '<'")
		}
		p.next()
	}
}

// skipDeclaration skips a declaration the extractor does not model:
// templates, friends, asm.
func (p *parser) skipDeclaration() {
	for {
		switch {
		case p.tok.kind == tEOF, p.is("}"):
			return
		case p.is(";"):
			p.next()
			return
		case p.is("(") || p.is("["):
			p.skipBalanced()
		case p.is("{"):
			p.skipBalanced()
			p.got(";")
			return
		default:
			p.next()
		}
	}
}

// ----------------------------------------------------------------------------
// Scopes and symbols

func (p *parser) qualify(name string) string {
	if len(p.scopes) == 0 {
		return name
	}
	return strings.Join(p.scopes, "::") + "::" + name
}

// resolve finds the key under which name is visible from the current scope.
func (p *parser) resolve(name string, has func(string) bool) (string, bool) {
	if strings.HasPrefix(name, "::") {
		name = name[2:]
		return name, has(name)
	}
	for i := len(p.scopes); i >= 0; i-- {
		key := name
		if i > 0 {
			key = strings.Join(p.scopes[:i], "::") + "::" + name
		}
		if has(key) {
			return key, true
		}
	}
	for _, ns := range p.usings {
		if key := ns + "::" + name; has(key) {
			return key, true
		}
	}
	return "", false
}

func (p *parser) lookup(name string) *symbol {
	key, ok := p.resolve(name, func(k string) bool { _, ok := p.symbols[k]; return ok })
	if !ok {
		return nil
	}
	return p.symbols[key]
}

func (p *parser) constant(name string) (int64, bool) {
	key, ok := p.resolve(name, func(k string) bool { _, ok := p.consts[k]; return ok })
	if !ok {
		return 0, false
	}
	return p.consts[key], true
}

func (p *parser) defineConst(name string, v int64) {
	p.consts[p.qualify(name)] = v
}

func (p *parser) defineAlias(name string, t *decl.TypeRef) {
	key := p.qualify(name)
	if s, ok := p.symbols[key]; ok && s.rec != nil {
		// typedef struct X X;
		if t.Kind == decl.KindRecord && t.Record == s.rec {
			return
		}
	}
	p.symbols[key] = &symbol{typ: t}
}

// typeNamed returns the type an identifier in a declaration refers to.
func (p *parser) typeNamed(name string, templated bool) *decl.TypeRef {
	if templated {
		return decl.Unresolved(name+"<...>", "template instantiation")
	}
	if s := p.lookup(name); s != nil {
		if s.rec != nil {
			return decl.RecordOf(s.rec)
		}
		c := *s.typ
		return &c
	}
	if f, ok := builtinTypes[strings.TrimPrefix(name, "::")]; ok {
		return &decl.TypeRef{Kind: decl.KindFundamental, Fundamental: f, Spelling: name}
	}
	if strings.HasPrefix(name, "std::") {
		return decl.Unresolved(name, "standard library type")
	}
	return decl.Unresolved(name, "unknown type")
}

// resolveIncomplete replaces by-value uses of records that were declared
// but never defined.
func (p *parser) resolveIncomplete() {
	if len(p.incomplete) == 0 {
		return
	}
	var fix func(t *decl.TypeRef) *decl.TypeRef
	fix = func(t *decl.TypeRef) *decl.TypeRef {
		switch {
		case t == nil:
			return nil
		case t.Kind == decl.KindRecord && p.incomplete[t.Record]:
			return decl.Unresolved(t.String(), "incomplete type")
		case t.Kind == decl.KindArray:
			if e := fix(t.Elem); e != t.Elem {
				c := *t
				c.Elem = e
				return &c
			}
		}
		return t
	}
	for _, r := range p.records {
		for i := range r.Members {
			r.Members[i].Type = fix(r.Members[i].Type)
		}
		for i := range r.Bases {
			if p.incomplete[r.Bases[i].Record] {
				r.Bases[i].Record = nil
			}
		}
	}
}

// ----------------------------------------------------------------------------
// Declarations

func (p *parser) declaration(cls *classCtx) {
	switch {
	case p.is(";"):
		p.next()
	case p.is("namespace"):
		p.namespace()
	case p.is("inline") && p.peek(0).is("namespace"):
		p.next()
		p.namespace()
	case p.is("extern") && p.peek(0).kind == tString:
		p.next()
		p.next()
		if p.got("{") {
			for !p.is("}") && p.tok.kind != tEOF {
				p.declaration(cls)
			}
			p.want("}")
			return
		}
		p.declaration(cls)
	case p.is("template"):
		p.next()
		if p.is("<") {
			p.skipAngles()
		}
		p.skipDeclaration()
	case p.is("using"):
		p.using()
	case p.is("static_assert") || p.is("_Static_assert"):
		p.next()
		p.skipBalanced()
		p.want(";")
	case p.is("asm") || p.is("__asm__") || p.is("friend"):
		p.skipDeclaration()
	case cls != nil && (p.is("public") || p.is("protected") || p.is("private")) && p.peek(0).is(":"):
		cls.access = accessOf(p.tok.lit)
		p.next()
		p.next()
	default:
		p.simpleDeclaration(cls)
	}
}

func accessOf(lit string) decl.Access {
	switch lit {
	case "private":
		return decl.Private
	case "protected":
		return decl.Protected
	}
	return decl.Public
}

func (p *parser) namespace() {
	p.want("namespace")
	var names []string
	for p.tok.kind == tIdent {
		names = append(names, p.ident())
		if !p.got("::") {
			break
		}
		p.got("inline")
	}
	p.attributes(&attrs{})
	if p.got("=") {
		// namespace alias
		p.collect(";")
		p.want(";")
		return
	}

	saved := p.scopes
	p.scopes = append(append([]string(nil), p.scopes...), names...)
	p.want("{")
	for !p.is("}") && p.tok.kind != tEOF {
		if err := p.ctx.Err(); err != nil {
			panic(bailout{errors.Canceled(errors.PhaseParse, err)})
		}
		p.declaration(nil)
	}
	p.want("}")
	p.scopes = saved
}

func (p *parser) using() {
	p.want("using")
	if p.got("namespace") {
		name, _ := p.qualifiedName()
		p.usings = append(p.usings, strings.TrimPrefix(name, "::"))
		p.want(";")
		return
	}
	if p.tok.kind == tIdent && (p.peek(0).is("=") || p.peek(0).is("[")) {
		name := p.ident()
		p.attributes(&attrs{})
		p.want("=")
		t := p.typeID()
		c := *t
		c.Spelling = name
		p.defineAlias(name, &c)
		p.want(";")
		return
	}
	p.collect(";")
	p.want(";")
}

// typeID parses a type without a declarator name.
func (p *parser) typeID() *decl.TypeRef {
	var s specs
	p.specifiers(nil, &s)
	if s.typ == nil {
		p.syntaxError("expected type, found " + p.tok.String())
	}
	var d declarator
	wrap := p.declarator(&d)
	return wrap(s.typ)
}

func (p *parser) simpleDeclaration(cls *classCtx) {
	var s specs
	s.line, s.col = p.tok.line, p.tok.col
	if p.got("typedef") {
		s.typedef = true
	}
	p.specifiers(cls, &s)

	if p.got(";") {
		if cls != nil && s.defined != nil && s.anonymous && !s.typedef {
			cls.rec.AddMembers(decl.Member{
				Name:   cls.anonName(s.defined.Kind),
				Type:   decl.RecordOf(s.defined),
				Access: cls.access,
			})
		}
		return
	}

	for {
		var d declarator
		d.line, d.col = p.tok.line, p.tok.col
		wrap := p.declarator(&d)
		if p.finishDeclarator(cls, &s, &d, wrap) {
			return
		}
		if !p.got(",") {
			break
		}
	}
	p.want(";")
}

// finishDeclarator parses what follows a declarator (bitfield width,
// initializer, function body) and records the declaration. It reports
// whether the declaration ended with a function body.
func (p *parser) finishDeclarator(cls *classCtx, s *specs, d *declarator, wrap func(*decl.TypeRef) *decl.TypeRef) bool {
	if d.function {
		return p.finishFunction(cls, s, d)
	}

	var (
		bitfield bool
		width    []token
		init     []token
	)
	if p.got(":") {
		bitfield = true
		width = p.collect(",", ";", "=", "{")
		if len(width) == 0 {
			p.syntaxError("expected bitfield width")
		}
	}
	p.attributes(&d.attrs)
	switch {
	case p.got("="):
		init = p.collect(",", ";")
	case p.is("{"):
		init = p.collectBalanced()
	case p.is("("):
		init = p.collectBalanced()
	}

	if s.typ == nil {
		p.errorAt(d.line, d.col, "missing type specifier")
	}
	t := wrap(s.typ)

	switch {
	case s.typedef:
		if d.name == "" {
			return false
		}
		if s.defined != nil && s.anonymous && t.Kind == decl.KindRecord && t.Record == s.defined {
			s.defined.Name = d.name
			s.defined.QualifiedName = p.qualify(d.name)
			s.anonymous = false
			p.symbols[s.defined.QualifiedName] = &symbol{rec: s.defined}
			return false
		}
		c := *t
		c.Spelling = d.name
		if a := max(s.attrs.align, d.attrs.align); a > c.AlignAs {
			c.AlignAs = a
		}
		p.defineAlias(d.name, &c)
		return false
	case s.friend || d.qualified:
		return false
	case s.static || cls == nil:
		if (s.constexpr || s.isConst) && len(init) > 0 && integral(t) {
			if v, err := p.eval(init, false); err == nil {
				p.defineConst(d.name, v)
			}
		}
		return false
	}

	m := decl.Member{
		Name:    d.name,
		Type:    t,
		Access:  cls.access,
		AlignAs: max(s.attrs.align, d.attrs.align),
	}
	if bitfield {
		w, err := p.eval(width, false)
		switch {
		case err != nil:
			m.Type = decl.Unresolved(t.String(), "bitfield width: "+err.Error())
		case w < 0:
			p.errorAt(d.line, d.col, fmt.Sprintf("bitfield '%s' has negative width", d.name))
		default:
			m.Bitfield = true
			m.BitWidth = uint64(w)
			m.Unnamed = d.name == ""
		}
	}
	if m.Name == "" && !m.Bitfield {
		p.errorAt(d.line, d.col, "declaration does not declare anything")
	}
	cls.rec.AddMembers(m)
	return false
}

func (p *parser) finishFunction(cls *classCtx, s *specs, d *declarator) bool {
	if p.got("=") {
		if p.is("0") {
			d.pure = true
		}
		p.next()
	}
	if cls != nil && !s.friend && !s.typedef && (s.virtual || d.virtSpec || d.pure) {
		addVirtual(cls.rec, d.name)
	}
	if p.got(":") {
		// constructor initializer list
		for {
			for p.tok.kind == tIdent || p.is("::") {
				p.next()
				if p.is("<") {
					p.skipAngles()
				}
			}
			if p.is("(") || p.is("{") {
				p.skipBalanced()
			}
			p.got("...")
			if !p.got(",") {
				break
			}
		}
	}
	if p.got("try") {
		p.skipBalanced()
		for p.got("catch") {
			p.skipBalanced()
			p.skipBalanced()
		}
		return true
	}
	if p.is("{") {
		p.skipBalanced()
		return true
	}
	return false
}

func addVirtual(r *decl.Record, name string) {
	if name == "" {
		return
	}
	for _, f := range r.VirtualFunctions {
		if f == name {
			return
		}
	}
	r.VirtualFunctions = append(r.VirtualFunctions, name)
}

func integral(t *decl.TypeRef) bool {
	switch t.Kind {
	case decl.KindEnum:
		return true
	case decl.KindFundamental:
		return t.Fundamental.IsIntegral()
	}
	return false
}
