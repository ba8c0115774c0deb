package cxx

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/errors"
)

// Extractor reads record declarations from C and C++ source text.
type Extractor struct {
	log *zap.Logger
}

var _ decl.Extractor = (*Extractor)(nil)

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns a C/C++ declaration extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses src and returns every complete struct, class and union
// definition in source order. Flags may carry -fpack-struct[=N], /Zp[N],
// -D and -U.
func (e *Extractor) Extract(ctx context.Context, src decl.Source) ([]*decl.Record, error) {
	start := time.Now()
	cfg, err := parseFlags(src.Flags)
	if err != nil {
		return nil, err
	}

	file := src.Path
	if file == "" {
		file = "<input>"
	}
	toks, err := scan(file, src.Text, 1)
	if err != nil {
		var se *scanError
		if stderrors.As(err, &se) {
			return nil, errors.SyntaxError(se.file, se.line, se.col, se.msg)
		}
		return nil, err
	}

	recs, err := newParser(ctx, file, toks, cfg).parse()
	if err != nil {
		return nil, err
	}
	e.log.Debug("declarations extracted",
		zap.String("file", file),
		zap.Int("tokens", len(toks)),
		zap.Int("records", len(recs)),
		zap.Duration("elapsed", time.Since(start)))
	return recs, nil
}

type macroValue struct {
	val int64
	ok  bool
}

type flagConfig struct {
	pack    uint64
	defines map[string]macroValue
}

func parseFlags(flags []string) (flagConfig, error) {
	cfg := flagConfig{defines: make(map[string]macroValue)}
	for i := 0; i < len(flags); i++ {
		f := flags[i]
		switch {
		case f == "-fpack-struct":
			cfg.pack = 1
		case strings.HasPrefix(f, "-fpack-struct="), strings.HasPrefix(f, "/Zp"):
			v := strings.TrimPrefix(strings.TrimPrefix(f, "-fpack-struct="), "/Zp")
			if v == "" {
				cfg.pack = 1
				continue
			}
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil || !validPack(n) {
				return cfg, errors.InvalidInput(errors.PhaseExtract, fmt.Sprintf("invalid packing flag %q", f))
			}
			cfg.pack = n
		case f == "-D" || f == "/D" || f == "-U" || f == "/U":
			if i+1 >= len(flags) {
				return cfg, errors.InvalidInput(errors.PhaseExtract, fmt.Sprintf("flag %s needs a macro name", f))
			}
			i++
			applyMacroFlag(&cfg, f[1:], flags[i])
		case strings.HasPrefix(f, "-D"), strings.HasPrefix(f, "/D"), strings.HasPrefix(f, "-U"), strings.HasPrefix(f, "/U"):
			applyMacroFlag(&cfg, f[1:2], f[2:])
		}
	}
	return cfg, nil
}

func applyMacroFlag(cfg *flagConfig, kind, arg string) {
	name, value, hasValue := strings.Cut(arg, "=")
	if name == "" {
		return
	}
	if kind == "U" {
		delete(cfg.defines, name)
		return
	}
	if !hasValue {
		cfg.defines[name] = macroValue{val: 1, ok: true}
		return
	}
	v, err := strconv.ParseInt(value, 0, 64)
	cfg.defines[name] = macroValue{val: v, ok: err == nil}
}
