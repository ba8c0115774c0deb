package cxx

import (
	"fmt"
	"strconv"
	"strings"
)

// evaluator computes integer constant expressions over literals, enum
// constants, constexpr variables and object-like macros.
type evaluator struct {
	p    *parser
	toks []token
	i    int
	pp   bool // #if semantics: defined(X), unknown names are 0
}

func (p *parser) eval(toks []token, pp bool) (v int64, err error) {
	if len(toks) == 0 {
		return 0, fmt.Errorf("empty expression")
	}
	e := &evaluator{p: p, toks: toks, pp: pp}
	defer func() {
		if r := recover(); r != nil {
			ee, ok := r.(evalError)
			if !ok {
				panic(r)
			}
			v, err = 0, ee
		}
	}()
	v = e.ternary()
	if e.i < len(e.toks) {
		e.fail("unexpected %q", e.toks[e.i].lit)
	}
	return v, nil
}

type evalError struct{ msg string }

func (e evalError) Error() string { return e.msg }

func (e *evaluator) fail(format string, args ...any) {
	panic(evalError{fmt.Sprintf(format, args...)})
}

func (e *evaluator) peek() token {
	if e.i < len(e.toks) {
		return e.toks[e.i]
	}
	return token{kind: tEOF}
}

// op returns the operator at the current token, joining adjacent
// single-character punctuators ("<<", "&&", "!=").
func (e *evaluator) op() (string, int) {
	t := e.peek()
	if t.kind != tPunct {
		return "", 0
	}
	if e.i+1 < len(e.toks) {
		u := e.toks[e.i+1]
		if u.kind == tPunct && t.adjacent(u) {
			switch two := t.lit + u.lit; two {
			case "<<", ">>", "<=", ">=", "==", "!=", "&&", "||":
				return two, 2
			}
		}
	}
	return t.lit, 1
}

var precedence = map[string]int{
	"||": 1, "&&": 2, "|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6, "<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8, "+": 9, "-": 9, "*": 10, "/": 10, "%": 10,
}

func (e *evaluator) ternary() int64 {
	cond := e.binary(1)
	if op, n := e.op(); op == "?" {
		e.i += n
		a := e.ternary()
		if op, n := e.op(); op != ":" {
			e.fail("expected ':' in conditional expression")
		} else {
			e.i += n
		}
		b := e.ternary()
		if cond != 0 {
			return a
		}
		return b
	}
	return cond
}

func (e *evaluator) binary(minPrec int) int64 {
	x := e.unary()
	for {
		op, n := e.op()
		prec, ok := precedence[op]
		if !ok || prec < minPrec {
			return x
		}
		e.i += n
		y := e.binary(prec + 1)
		x = e.apply(op, x, y)
	}
}

func (e *evaluator) apply(op string, x, y int64) int64 {
	switch op {
	case "||":
		return b2i(x != 0 || y != 0)
	case "&&":
		return b2i(x != 0 && y != 0)
	case "|":
		return x | y
	case "^":
		return x ^ y
	case "&":
		return x & y
	case "==":
		return b2i(x == y)
	case "!=":
		return b2i(x != y)
	case "<":
		return b2i(x < y)
	case ">":
		return b2i(x > y)
	case "<=":
		return b2i(x <= y)
	case ">=":
		return b2i(x >= y)
	case "<<":
		if y < 0 || y > 63 {
			e.fail("shift count %d out of range", y)
		}
		return x << uint(y)
	case ">>":
		if y < 0 || y > 63 {
			e.fail("shift count %d out of range", y)
		}
		return x >> uint(y)
	case "+":
		return x + y
	case "-":
		return x - y
	case "*":
		return x * y
	case "/", "%":
		if y == 0 {
			e.fail("division by zero")
		}
		if op == "/" {
			return x / y
		}
		return x % y
	}
	e.fail("unknown operator %q", op)
	return 0
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (e *evaluator) unary() int64 {
	t := e.peek()
	switch {
	case t.is("-"):
		e.i++
		return -e.unary()
	case t.is("+"):
		e.i++
		return e.unary()
	case t.is("~"):
		e.i++
		return ^e.unary()
	case t.is("!"):
		e.i++
		return b2i(e.unary() == 0)
	}
	return e.primary()
}

func (e *evaluator) primary() int64 {
	t := e.peek()
	switch t.kind {
	case tNumber:
		e.i++
		return e.number(t.lit)
	case tChar:
		e.i++
		return e.char(t.lit)
	case tPunct:
		if t.is("(") {
			e.i++
			// C-style cast to a fundamental type
			for e.i < len(e.toks) && e.toks[e.i].kind == tIdent && castWord(e.toks[e.i].lit) {
				e.i++
				if e.peek().is(")") {
					e.i++
					return e.unary()
				}
			}
			v := e.ternary()
			if !e.peek().is(")") {
				e.fail("expected ')'")
			}
			e.i++
			return v
		}
		if t.is("::") {
			return e.name()
		}
	case tIdent:
		return e.name()
	case tEOF:
		e.fail("unexpected end of expression")
	}
	e.fail("unexpected %q", t.lit)
	return 0
}

func castWord(lit string) bool {
	switch lit {
	case "int", "unsigned", "signed", "long", "short", "char", "size_t", "bool",
		"uint8_t", "uint16_t", "uint32_t", "uint64_t", "int8_t", "int16_t", "int32_t", "int64_t":
		return true
	}
	return false
}

func (e *evaluator) name() int64 {
	t := e.peek()
	switch t.lit {
	case "true":
		e.i++
		return 1
	case "false", "nullptr":
		e.i++
		return 0
	case "defined":
		if !e.pp {
			break
		}
		e.i++
		paren := e.peek().is("(")
		if paren {
			e.i++
		}
		n := e.peek()
		e.i++
		if paren {
			if !e.peek().is(")") {
				e.fail("expected ')' after defined")
			}
			e.i++
		}
		return b2i(e.p.macros[n.lit])
	case "sizeof", "alignof", "_Alignof", "__alignof__":
		e.fail("%s depends on the target ABI", t.lit)
	case "static_cast":
		e.i++
		if e.peek().is("<") {
			for e.i < len(e.toks) && !e.toks[e.i].is(">") {
				e.i++
			}
			e.i++
		}
		if !e.peek().is("(") {
			e.fail("expected '(' after %s", t.lit)
		}
		return e.primary()
	}

	var b strings.Builder
	if e.peek().is("::") {
		e.i++
	}
	for {
		t := e.peek()
		if t.kind != tIdent {
			e.fail("expected identifier, found %q", t.lit)
		}
		b.WriteString(t.lit)
		e.i++
		if !e.peek().is("::") {
			break
		}
		e.i++
		b.WriteString("::")
	}
	name := b.String()
	if v, ok := e.p.constant(name); ok {
		return v
	}
	if e.pp {
		return 0
	}
	e.fail("%s is not a constant", name)
	return 0
}

func (e *evaluator) number(lit string) int64 {
	s := strings.ReplaceAll(lit, "'", "")
	s = strings.TrimRight(s, "uUlLzZ")
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		base, s = 2, s[2:]
	case len(s) > 1 && s[0] == '0':
		base, s = 8, s[1:]
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		e.fail("%s is not an integer constant", lit)
	}
	return int64(v)
}

func (e *evaluator) char(lit string) int64 {
	q := strings.IndexByte(lit, '\'')
	body := lit[q+1 : len(lit)-1]
	v, _, tail, err := strconv.UnquoteChar(body, '\'')
	if err != nil || tail != "" {
		e.fail("unsupported character literal %s", lit)
	}
	return int64(v)
}
