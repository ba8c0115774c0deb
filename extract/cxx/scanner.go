package cxx

import (
	"fmt"
	"strings"
)

type tokKind uint8

const (
	tEOF tokKind = iota
	tIdent
	tNumber
	tString
	tChar
	tPunct
	tDirective // lit holds the directive text after '#', continuations joined
)

func (k tokKind) String() string {
	switch k {
	case tIdent:
		return "identifier"
	case tNumber:
		return "number"
	case tString:
		return "string literal"
	case tChar:
		return "character literal"
	case tPunct:
		return "punctuator"
	case tDirective:
		return "directive"
	default:
		return "end of file"
	}
}

type token struct {
	kind tokKind
	lit  string
	line int
	col  int
}

func (t token) String() string {
	if t.kind == tEOF {
		return "end of file"
	}
	return fmt.Sprintf("%q", t.lit)
}

// adjacent reports whether u starts right after t on the same line, so
// that two single-character punctuators form one operator.
func (t token) adjacent(u token) bool {
	return t.line == u.line && t.col+len(t.lit) == u.col
}

// scanner splits C/C++ source into tokens. Punctuators are single
// characters except "::" and "..."; multi-character operators are
// recombined where they matter using token adjacency.
type scanner struct {
	src  string
	file string
	offs int
	line int
	col  int
	bol  bool // only whitespace seen since the start of the line
}

func scan(file, src string, line int) ([]token, error) {
	s := &scanner{src: src, file: file, line: line, col: 1, bol: true}
	var toks []token
	for {
		t, err := s.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tEOF {
			return toks, nil
		}
	}
}

func (s *scanner) errorf(line, col int, format string, args ...any) error {
	return &scanError{file: s.file, line: line, col: col, msg: fmt.Sprintf(format, args...)}
}

type scanError struct {
	file      string
	line, col int
	msg       string
}

func (e *scanError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.file, e.line, e.col, e.msg)
}

func (s *scanner) peek(n int) byte {
	if s.offs+n < len(s.src) {
		return s.src[s.offs+n]
	}
	return 0
}

func (s *scanner) advance() {
	if s.offs >= len(s.src) {
		return
	}
	if s.src[s.offs] == '\n' {
		s.line++
		s.col = 1
		s.bol = true
	} else {
		s.col++
	}
	s.offs++
}

func (s *scanner) skipSpaceAndComments() error {
	for s.offs < len(s.src) {
		c := s.src[s.offs]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == '\v':
			s.advance()
		case c == '\\' && s.peek(1) == '\n':
			s.advance()
			s.advance()
		case c == '/' && s.peek(1) == '/':
			for s.offs < len(s.src) && s.src[s.offs] != '\n' {
				s.advance()
			}
		case c == '/' && s.peek(1) == '*':
			line, col := s.line, s.col
			s.advance()
			s.advance()
			for {
				if s.offs >= len(s.src) {
					return s.errorf(line, col, "unterminated comment")
				}
				if s.src[s.offs] == '*' && s.peek(1) == '/' {
					s.advance()
					s.advance()
					break
				}
				s.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func (s *scanner) next() (token, error) {
	bol := s.bol
	if err := s.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	// A newline seen while skipping also starts a line.
	bol = bol || s.bol
	line, col := s.line, s.col
	if s.offs >= len(s.src) {
		return token{kind: tEOF, line: line, col: col}, nil
	}

	c := s.src[s.offs]
	s.bol = false
	switch {
	case c == '#' && bol:
		return s.directive(line, col), nil
	case isIdentStart(c):
		if t, ok, err := s.prefixedLiteral(line, col); ok || err != nil {
			return t, err
		}
		start := s.offs
		for s.offs < len(s.src) && isIdentPart(s.src[s.offs]) {
			s.advance()
		}
		return token{kind: tIdent, lit: s.src[start:s.offs], line: line, col: col}, nil
	case isDigit(c) || c == '.' && isDigit(s.peek(1)):
		return s.number(line, col), nil
	case c == '"':
		return s.quoted('"', tString, s.offs, line, col)
	case c == '\'':
		return s.quoted('\'', tChar, s.offs, line, col)
	case c == ':' && s.peek(1) == ':':
		s.advance()
		s.advance()
		return token{kind: tPunct, lit: "::", line: line, col: col}, nil
	case c == '.' && s.peek(1) == '.' && s.peek(2) == '.':
		s.advance()
		s.advance()
		s.advance()
		return token{kind: tPunct, lit: "...", line: line, col: col}, nil
	case strings.IndexByte("{}[]()<>;:,=+-*/%&|^!~?.#@$\\", c) >= 0:
		s.advance()
		return token{kind: tPunct, lit: string(c), line: line, col: col}, nil
	}
	return token{}, s.errorf(line, col, "unexpected character %q", c)
}

// prefixedLiteral scans string and character literals with an encoding
// prefix (L, u, U, u8) or a raw string (R"delim(...)delim").
func (s *scanner) prefixedLiteral(line, col int) (token, bool, error) {
	rest := s.src[s.offs:]
	for _, prefix := range []string{"u8R", "LR", "uR", "UR", "R", "u8", "L", "u", "U"} {
		if !strings.HasPrefix(rest, prefix) || len(rest) <= len(prefix) {
			continue
		}
		q := rest[len(prefix)]
		if q != '"' && q != '\'' {
			continue
		}
		start := s.offs
		for range prefix {
			s.advance()
		}
		if strings.HasSuffix(prefix, "R") {
			if q != '"' {
				return token{}, false, s.errorf(line, col, "malformed raw string")
			}
			t, err := s.raw(start, line, col)
			return t, true, err
		}
		kind := tString
		if q == '\'' {
			kind = tChar
		}
		t, err := s.quoted(q, kind, start, line, col)
		return t, true, err
	}
	return token{}, false, nil
}

func (s *scanner) raw(start, line, col int) (token, error) {
	s.advance() // opening quote
	open := strings.IndexByte(s.src[s.offs:], '(')
	if open < 0 {
		return token{}, s.errorf(line, col, "malformed raw string")
	}
	delim := s.src[s.offs : s.offs+open]
	end := strings.Index(s.src[s.offs+open:], ")"+delim+"\"")
	if end < 0 {
		return token{}, s.errorf(line, col, "unterminated raw string")
	}
	stop := s.offs + open + end + len(delim) + 2
	for s.offs < stop {
		s.advance()
	}
	return token{kind: tString, lit: s.src[start:s.offs], line: line, col: col}, nil
}

func (s *scanner) quoted(q byte, kind tokKind, start, line, col int) (token, error) {
	s.advance()
	for {
		if s.offs >= len(s.src) || s.src[s.offs] == '\n' {
			return token{}, s.errorf(line, col, "unterminated %s", kind)
		}
		c := s.src[s.offs]
		s.advance()
		if c == '\\' {
			s.advance()
			continue
		}
		if c == q {
			break
		}
	}
	return token{kind: kind, lit: s.src[start:s.offs], line: line, col: col}, nil
}

func (s *scanner) number(line, col int) token {
	start := s.offs
	for s.offs < len(s.src) {
		c := s.src[s.offs]
		switch {
		case isIdentPart(c) || c == '.':
			s.advance()
		case c == '\'' && isIdentPart(s.peek(1)):
			s.advance()
		case (c == '+' || c == '-') && exponentSign(s.src[start:s.offs]):
			s.advance()
		default:
			return token{kind: tNumber, lit: s.src[start:s.offs], line: line, col: col}
		}
	}
	return token{kind: tNumber, lit: s.src[start:s.offs], line: line, col: col}
}

// exponentSign reports whether a sign following lit belongs to an
// exponent (1e-3, 0x1p+4).
func exponentSign(lit string) bool {
	if lit == "" {
		return false
	}
	last := lit[len(lit)-1]
	hex := len(lit) > 1 && (lit[1] == 'x' || lit[1] == 'X')
	if hex {
		return last == 'p' || last == 'P'
	}
	return last == 'e' || last == 'E'
}

// directive consumes a preprocessor line, joining continuation lines.
func (s *scanner) directive(line, col int) token {
	s.advance() // '#'
	var b strings.Builder
	for s.offs < len(s.src) {
		c := s.src[s.offs]
		if c == '\\' && s.peek(1) == '\n' {
			s.advance()
			s.advance()
			b.WriteByte(' ')
			continue
		}
		if c == '\\' && s.peek(1) == '\r' && s.peek(2) == '\n' {
			s.advance()
			s.advance()
			s.advance()
			b.WriteByte(' ')
			continue
		}
		if c == '\n' {
			break
		}
		b.WriteByte(c)
		s.advance()
	}
	return token{kind: tDirective, lit: strings.TrimSpace(b.String()), line: line, col: col}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
