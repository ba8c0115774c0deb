package cxx

import "strconv"

// condState is one level of #if nesting.
type condState struct {
	active bool // tokens in the current branch are parsed
	taken  bool // some branch of this #if has been active
	parent bool // the enclosing region is active
}

func (p *parser) active() bool {
	return len(p.cond) == 0 || p.cond[len(p.cond)-1].active
}

// directive executes a preprocessor line. Conditionals, #define, #undef
// and #pragma pack are understood; everything else, #include included, is
// ignored. Malformed directives are skipped.
func (p *parser) directive(t token) {
	toks, err := scan(p.file, t.lit, t.line)
	if err != nil || len(toks) < 2 || toks[0].kind != tIdent {
		return
	}
	name, rest := toks[0].lit, toks[1:len(toks)-1]

	switch name {
	case "if", "ifdef", "ifndef":
		parent := p.active()
		v := parent && p.condition(name, rest)
		p.cond = append(p.cond, condState{active: v, taken: v, parent: parent})
		return
	case "elif", "elifdef", "elifndef":
		if len(p.cond) == 0 {
			return
		}
		c := &p.cond[len(p.cond)-1]
		if c.taken {
			c.active = false
			return
		}
		kind := "if"
		if name != "elif" {
			kind = name[2:]
		}
		c.active = c.parent && p.condition(kind, rest)
		c.taken = c.active
		return
	case "else":
		if len(p.cond) == 0 {
			return
		}
		c := &p.cond[len(p.cond)-1]
		c.active = c.parent && !c.taken
		c.taken = true
		return
	case "endif":
		if len(p.cond) > 0 {
			p.cond = p.cond[:len(p.cond)-1]
		}
		return
	}

	if !p.active() {
		return
	}
	switch name {
	case "define":
		p.define(rest)
	case "undef":
		if len(rest) > 0 {
			delete(p.macros, rest[0].lit)
			delete(p.consts, rest[0].lit)
		}
	case "pragma":
		if len(rest) > 0 && rest[0].is("pack") {
			p.pragmaPack(rest[1:])
		}
	}
}

func (p *parser) condition(kind string, toks []token) bool {
	switch kind {
	case "ifdef", "def":
		return len(toks) > 0 && p.macros[toks[0].lit]
	case "ifndef", "ndef":
		return len(toks) > 0 && !p.macros[toks[0].lit]
	}
	v, err := p.eval(toks, true)
	// An expression we cannot evaluate keeps its branch.
	return err != nil || v != 0
}

// define records an object-like macro. Macros whose body is an integer
// constant expression can be used in array bounds and bitfield widths.
func (p *parser) define(toks []token) {
	if len(toks) == 0 || toks[0].kind != tIdent {
		return
	}
	name := toks[0].lit
	p.macros[name] = true
	delete(p.consts, name)
	if len(toks) > 1 && toks[1].is("(") && toks[0].adjacent(toks[1]) {
		// function-like
		return
	}
	if len(toks) == 1 {
		return
	}
	if v, err := p.eval(toks[1:], false); err == nil {
		p.consts[name] = v
	}
}

// pragmaPack handles #pragma pack(N), pack(), pack(push[, id][, N]) and
// pack(pop[, id]).
func (p *parser) pragmaPack(toks []token) {
	if len(toks) < 2 || !toks[0].is("(") || !toks[len(toks)-1].is(")") {
		return
	}
	var args [][]token
	var cur []token
	for _, t := range toks[1 : len(toks)-1] {
		if t.is(",") {
			args = append(args, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 || len(args) > 0 {
		args = append(args, cur)
	}

	if len(args) == 0 {
		p.pack = p.defaultPack
		return
	}
	switch {
	case len(args[0]) == 1 && args[0][0].is("push"):
		p.packStack = append(p.packStack, p.pack)
		if n, ok := packValue(args[len(args)-1]); ok && len(args) > 1 {
			p.pack = n
		}
	case len(args[0]) == 1 && args[0][0].is("pop"):
		if len(p.packStack) > 0 {
			p.pack = p.packStack[len(p.packStack)-1]
			p.packStack = p.packStack[:len(p.packStack)-1]
		}
		if n, ok := packValue(args[len(args)-1]); ok && len(args) > 1 {
			p.pack = n
		}
	default:
		if n, ok := packValue(args[0]); ok {
			p.pack = n
		}
	}
}

func packValue(toks []token) (uint64, bool) {
	if len(toks) != 1 || toks[0].kind != tNumber {
		return 0, false
	}
	n, err := strconv.ParseUint(toks[0].lit, 10, 64)
	if err != nil || !validPack(n) {
		return 0, false
	}
	return n, true
}

func validPack(n uint64) bool {
	switch n {
	case 1, 2, 4, 8, 16:
		return true
	}
	return false
}
