package cxx

import (
	"context"
	"testing"
)

func evalString(t *testing.T, p *parser, expr string, pp bool) (int64, error) {
	t.Helper()
	toks, err := scan("e.h", expr, 1)
	if err != nil {
		t.Fatal(err)
	}
	return p.eval(toks[:len(toks)-1], pp)
}

func TestEval(t *testing.T) {
	p := newParser(context.Background(), "e.h", nil, flagConfig{})
	p.consts["N"] = 4
	p.consts["ns::K"] = 10
	p.macros["FEATURE"] = true

	tests := []struct {
		expr string
		want int64
	}{
		{"42", 42},
		{"0x2A", 42},
		{"052", 42},
		{"0b101010", 42},
		{"1'000", 1000},
		{"16u", 16},
		{"10ULL", 10},
		{"'A'", 65},
		{"'\\n'", 10},
		{"N * 2 + 1", 9},
		{"(N + 1) * 2", 10},
		{"ns::K / 3", 3},
		{"::ns::K % 4", 2},
		{"1 << 4 | 1", 17},
		{"256 >> 2", 64},
		{"-N", -4},
		{"~0 & 0xFF", 255},
		{"!0 + !5", 1},
		{"N > 2 ? 8 : 16", 8},
		{"N >= 5 || N <= 3", 0},
		{"N == 4 && N != 5", 1},
		{"true + false", 1},
		{"(int)7", 7},
		{"static_cast<int>(N)", 4},
		{"2 + 3 * 4 - 6 / 2", 11},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalString(t, p, tt.expr, false)
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	p := newParser(context.Background(), "e.h", nil, flagConfig{})
	for _, expr := range []string{"UNKNOWN", "sizeof(int)", "1 / 0", "1.5", "(1", "1 2", "1 << 64"} {
		t.Run(expr, func(t *testing.T) {
			if _, err := evalString(t, p, expr, false); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEvalPreprocessor(t *testing.T) {
	p := newParser(context.Background(), "e.h", nil, flagConfig{})
	p.macros["FEATURE"] = true

	tests := []struct {
		expr string
		want int64
	}{
		{"defined(FEATURE)", 1},
		{"defined FEATURE && !defined(OTHER)", 1},
		{"UNDEFINED_NAME", 0},
		{"__cplusplus >= 201103", 1},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalString(t, p, tt.expr, true)
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
