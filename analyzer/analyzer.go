package analyzer

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/errors"
	"github.com/wippyai/structsight/layout"
	"github.com/wippyai/structsight/optimizer"
)

// Analyzer runs layout analysis requests. It holds no per-request state and
// is safe for concurrent use.
type Analyzer struct {
	extractor decl.Extractor
	opts      options
}

// New returns an Analyzer that obtains declarations from ex.
func New(ex decl.Extractor, opts ...Option) *Analyzer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Analyzer{extractor: ex, opts: o}
}

// outcome is the result of one per-type pass.
type outcome struct {
	rec      *decl.Record
	layout   *layout.TypeLayout
	err      error // the type is omitted
	notes    []string
	canceled bool
}

// Analyze runs req. Every failure is mapped into the returned Result.
func (a *Analyzer) Analyze(ctx context.Context, req Request) Result {
	log := a.opts.logger.With(zap.String("file", req.FilePath))
	start := time.Now()

	arch, compiler := req.Architecture, req.Compiler
	if arch == "" {
		arch = DefaultArch
	}
	if compiler == "" {
		compiler = DefaultCompiler
	}
	p, err := abi.Resolve(arch, compiler)
	if err != nil {
		log.Debug("profile resolution failed", zap.Error(err))
		return Result{ErrorMessage: err.Error(), Layouts: []*layout.TypeLayout{}}
	}

	if err := ctx.Err(); err != nil {
		return CanceledResult()
	}

	recs, err := a.extractor.Extract(ctx, decl.Source{
		Path:  req.FilePath,
		Text:  req.SourceCode,
		Flags: req.CompileFlags,
	})
	if err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return CanceledResult()
		}
		log.Debug("extraction failed", zap.Error(err))
		return Result{ErrorMessage: err.Error(), Layouts: []*layout.TypeLayout{}}
	}

	selected, notes := selectRecords(recs, req.TypeName)
	outcomes := a.run(ctx, selected, p, log)

	res := Result{Success: true, Layouts: []*layout.TypeLayout{}}
	res.Diagnostics = append(res.Diagnostics, notes...)

	failures := make(map[string]error)
	var order []string
	canceled := false
	for _, o := range outcomes {
		switch {
		case o.canceled:
			canceled = true
		case o.err != nil:
			name := o.rec.DisplayName()
			failures[name] = o.err
			order = append(order, name)
			res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("%s: %v", name, o.err))
		default:
			res.Layouts = append(res.Layouts, o.layout)
		}
		res.Diagnostics = append(res.Diagnostics, o.notes...)
	}
	if len(order) > 0 {
		res.ErrorMessage = errors.NewSkippedTypesError(failures, order).Error()
	}
	if canceled {
		res.Diagnostics = append(res.Diagnostics, CanceledDiagnostic)
	}

	log.Info("analysis complete",
		zap.String("profile", p.String()),
		zap.String("type", req.TypeName),
		zap.Int("records", len(recs)),
		zap.Int("layouts", len(res.Layouts)),
		zap.Int("skipped", len(order)),
		zap.Bool("canceled", canceled),
		zap.Duration("elapsed", time.Since(start)))
	return res
}

// selectRecords picks the records a request asks for: every struct or class
// named name (by plain or qualified name), or every top-level struct or
// class when name is empty. Unions are never selected.
func selectRecords(recs []*decl.Record, name string) ([]*decl.Record, []string) {
	var (
		out   []*decl.Record
		notes []string
	)
	seen := make(map[*decl.Record]bool)

	for _, r := range recs {
		if r == nil || seen[r] {
			continue
		}
		if name != "" {
			if r.Name != name && r.QualifiedName != name {
				continue
			}
		} else if !r.TopLevel || r.Name == "" {
			continue
		}
		seen[r] = true
		if r.Kind == decl.Union {
			if name != "" {
				notes = append(notes, fmt.Sprintf("%s: unions are not analyzed", r.DisplayName()))
			}
			continue
		}
		out = append(out, r)
	}

	if name != "" && len(out) == 0 && len(notes) == 0 {
		notes = append(notes, errors.NotFound(errors.PhaseAnalyze, "type", name).Detail)
	}
	return out, notes
}

// run lays out and optimizes recs concurrently, returning outcomes in the
// order of recs.
func (a *Analyzer) run(ctx context.Context, recs []*decl.Record, p abi.Profile, log *zap.Logger) []outcome {
	outcomes := make([]outcome, len(recs))

	var g errgroup.Group
	g.SetLimit(a.opts.workers)
	for i, rec := range recs {
		outcomes[i].rec = rec
		if ctx.Err() != nil {
			outcomes[i].canceled = true
			continue
		}
		g.Go(func() error {
			outcomes[i] = a.analyzeOne(ctx, rec, p, log)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (a *Analyzer) analyzeOne(ctx context.Context, rec *decl.Record, p abi.Profile, log *zap.Logger) (out outcome) {
	out.rec = rec
	if ctx.Err() != nil {
		out.canceled = true
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during layout", zap.String("record", rec.DisplayName()), zap.Any("panic", r))
			out.layout = nil
			out.err = errors.Invariant(errors.PhaseAnalyze, rec.DisplayName(), fmt.Sprintf("internal error: %v", r))
		}
	}()

	tl, err := layout.Build(rec, p)
	if err != nil {
		log.Debug("record skipped", zap.String("record", rec.DisplayName()), zap.Error(err))
		out.err = err
		return out
	}
	if err := layout.Check(tl); err != nil {
		log.Warn("layout invariant violated", zap.String("record", rec.DisplayName()), zap.Error(err))
		out.err = err
		return out
	}

	binary := a.opts.binary != nil && a.opts.binary.UsedInBinaryContext(rec)
	sugs, err := optimizer.Optimize(rec, tl, p, optimizer.Options{
		ExhaustiveLimit:  a.opts.exhaustiveLimit,
		BinaryCompatible: binary,
		Logger:           log,
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrOptimizeInvariant) || stderrors.Is(err, errors.ErrInvariant) {
			log.Warn("optimizer produced an invalid order", zap.String("record", rec.DisplayName()), zap.Error(err))
		} else {
			log.Debug("optimizer failed", zap.String("record", rec.DisplayName()), zap.Error(err))
		}
		out.notes = append(out.notes, fmt.Sprintf("%s: no suggestions: %v", rec.DisplayName(), err))
	}
	if sugs != nil {
		tl.Suggestions = sugs
	}
	tl.Hints = layout.CacheLineHints(tl, a.opts.cacheLine)
	if note := canonicalNote(rec, tl, p); note != "" {
		out.notes = append(out.notes, note)
	}

	out.layout = tl
	return out
}

// canonicalNote compares the layout with the one the source format fixes
// for rec. The canonical ABI targets 32-bit linear memory, so only
// profiles with 4-byte pointers are compared.
func canonicalNote(rec *decl.Record, tl *layout.TypeLayout, p abi.Profile) string {
	c := rec.Canonical
	if c == nil || p.PointerSize != 4 {
		return ""
	}
	if c.Size == tl.TotalSize && c.Align == tl.Alignment {
		return ""
	}
	return fmt.Sprintf("%s: canonical ABI layout is %d bytes align %d, %s C layout is %d bytes align %d",
		rec.DisplayName(), c.Size, c.Align, p, tl.TotalSize, tl.Alignment)
}

// Message returns a one-line summary of a result, for logs and status
// lines.
func (r Result) Message() string {
	if !r.Success {
		return "analysis failed: " + r.ErrorMessage
	}
	var names []string
	for _, tl := range r.Layouts {
		names = append(names, tl.QualifiedName)
	}
	msg := fmt.Sprintf("%d layout(s)", len(r.Layouts))
	if len(names) > 0 {
		msg += ": " + strings.Join(names, ", ")
	}
	return msg
}
