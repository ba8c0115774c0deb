package wit

import (
	"context"
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/errors"
)

// Extractor turns WIT JSON into C record declarations.
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

func New(opts ...Option) *Extractor {
	e := &Extractor{log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract decodes src.Text as WIT JSON and returns one top-level record per
// named struct-like type, in type definition order, each followed by the
// helper records it introduced.
func (e *Extractor) Extract(ctx context.Context, src decl.Source) ([]*decl.Record, error) {
	res, err := wit.DecodeJSON(strings.NewReader(src.Text))
	if err != nil {
		path := src.Path
		if path == "" {
			path = "<input>"
		}
		return nil, errors.ExtractionFailure(fmt.Sprintf("%s: decoding WIT JSON: %v", path, err), err)
	}

	m := newMapper()
	for _, td := range res.TypeDefs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Canceled(errors.PhaseExtract, err)
		}
		if td.Name == nil {
			continue
		}
		m.named(td)
	}

	for _, rec := range m.defs {
		e.log.Debug("wit record",
			zap.String("record", rec.DisplayName()),
			zap.Uint64("canonical_size", rec.Canonical.Size),
			zap.Uint64("canonical_align", rec.Canonical.Align))
	}
	return m.records, nil
}

// mapper converts WIT types to declarations the way wit-bindgen's C
// generator spells them.
type mapper struct {
	records []*decl.Record
	defs    map[*wit.TypeDef]*decl.Record
	helpers map[string]*decl.Record
	types   map[*wit.TypeDef]*decl.TypeRef
	calc    *Calculator
}

func newMapper() *mapper {
	return &mapper{
		defs:    make(map[*wit.TypeDef]*decl.Record),
		helpers: make(map[string]*decl.Record),
		types:   make(map[*wit.TypeDef]*decl.TypeRef),
		calc:    NewCalculator(),
	}
}

// named maps a named type definition, emitting a top-level record for
// struct-like kinds.
func (m *mapper) named(td *wit.TypeDef) *decl.TypeRef {
	if t, ok := m.types[td]; ok {
		return t
	}
	name := cName(*td.Name)
	var t *decl.TypeRef
	switch kind := td.Kind.(type) {
	case *wit.Record, *wit.Tuple, *wit.Option, *wit.Result, *wit.Variant, *wit.List:
		rec := &decl.Record{
			Name:          name,
			QualifiedName: qualifiedName(td),
			Kind:          decl.Struct,
			TopLevel:      true,
		}
		// register before filling so self-references through lists resolve
		m.defs[td] = rec
		t = decl.RecordOf(rec)
		m.types[td] = t
		m.records = append(m.records, rec)
		m.fill(rec, kind)
		info := m.calc.Canonical(td)
		rec.Canonical = &decl.Extent{Size: info.Size, Align: info.Align}
		return t
	case *wit.Enum:
		t = decl.Enum(name, uintOfSize(discriminantSize(len(kind.Cases))))
	case *wit.Flags:
		t = flagsType(name, len(kind.Flags))
	case *wit.Own, *wit.Borrow:
		t = handleType()
	case wit.Type:
		t = m.typeOf(kind)
	default:
		t = decl.Unresolved(name, fmt.Sprintf("WIT %T has no C layout", kind))
	}
	m.types[td] = t
	return t
}

// fill adds the members of a struct-like kind to rec.
func (m *mapper) fill(rec *decl.Record, kind wit.TypeDefKind) {
	switch k := kind.(type) {
	case *wit.Record:
		for _, f := range k.Fields {
			rec.AddMembers(decl.Field(cIdent(f.Name), m.typeOf(f.Type)))
		}
	case *wit.Tuple:
		for i, t := range k.Types {
			rec.AddMembers(decl.Field(fmt.Sprintf("f%d", i), m.typeOf(t)))
		}
	case *wit.Option:
		rec.AddMembers(
			decl.Field("is_some", decl.Fund(abi.Bool)),
			decl.Field("val", m.typeOf(k.Type)),
		)
	case *wit.Result:
		rec.AddMembers(decl.Field("is_err", decl.Fund(abi.Bool)))
		u := m.union(rec.Name, []string{"ok", "err"}, []wit.Type{k.OK, k.Err})
		if u != nil {
			rec.AddMembers(decl.Field("val", decl.RecordOf(u)))
		}
	case *wit.Variant:
		names := make([]string, len(k.Cases))
		types := make([]wit.Type, len(k.Cases))
		for i, c := range k.Cases {
			names[i], types[i] = cIdent(c.Name), c.Type
		}
		rec.AddMembers(decl.Field("tag", fixedWidth(uintOfSize(discriminantSize(len(k.Cases))))))
		if u := m.union(rec.Name, names, types); u != nil {
			rec.AddMembers(decl.Field("val", decl.RecordOf(u)))
		}
	case *wit.List:
		rec.AddMembers(
			decl.Field("ptr", decl.Pointer(m.typeOf(k.Type))),
			decl.Field("len", fixedWidth(abi.SizeT)),
		)
	}
}

// union builds the payload union of a result or variant. Cases without a
// payload take no member; nil means no case has one.
func (m *mapper) union(owner string, names []string, types []wit.Type) *decl.Record {
	u := &decl.Record{
		QualifiedName: owner + "::val",
		Kind:          decl.Union,
	}
	for i, t := range types {
		if t == nil {
			continue
		}
		u.AddMembers(decl.Field(names[i], m.typeOf(t)))
	}
	if len(u.Members) == 0 {
		return nil
	}
	m.records = append(m.records, u)
	return u
}

// typeOf maps a WIT type used as a member.
func (m *mapper) typeOf(t wit.Type) *decl.TypeRef {
	switch typ := t.(type) {
	case wit.Bool:
		return decl.Fund(abi.Bool)
	case wit.S8:
		return fixedWidth(abi.SChar)
	case wit.U8:
		return fixedWidth(abi.UChar)
	case wit.S16:
		return fixedWidth(abi.Short)
	case wit.U16:
		return fixedWidth(abi.UShort)
	case wit.S32:
		return fixedWidth(abi.Int)
	case wit.U32, wit.Char:
		return fixedWidth(abi.UInt)
	case wit.S64:
		return fixedWidth(abi.LongLong)
	case wit.U64:
		return fixedWidth(abi.ULongLong)
	case wit.F32:
		return decl.Fund(abi.Float)
	case wit.F64:
		return decl.Fund(abi.Double)
	case wit.String:
		return decl.RecordOf(m.helper("string_t", func(r *decl.Record) {
			r.AddMembers(
				decl.Field("ptr", decl.Pointer(fixedWidth(abi.UChar))),
				decl.Field("len", fixedWidth(abi.SizeT)),
			)
		}))
	case *wit.TypeDef:
		if typ.Name != nil {
			return m.named(typ)
		}
		return m.anonymous(typ)
	}
	return decl.Unresolved(fmt.Sprintf("%T", t), "unsupported WIT type")
}

// anonymous maps an unnamed type definition such as list<u8> or
// option<string> to a helper record named after its structure.
func (m *mapper) anonymous(td *wit.TypeDef) *decl.TypeRef {
	if t, ok := m.types[td]; ok {
		return t
	}
	var t *decl.TypeRef
	switch kind := td.Kind.(type) {
	case *wit.Record, *wit.Tuple, *wit.Option, *wit.Result, *wit.Variant, *wit.List:
		t = decl.RecordOf(m.helper(m.spell(td)+"_t", func(r *decl.Record) { m.fill(r, kind) }))
	case *wit.Enum:
		t = fixedWidth(uintOfSize(discriminantSize(len(kind.Cases))))
	case *wit.Flags:
		t = flagsType("", len(kind.Flags))
	case *wit.Own, *wit.Borrow:
		t = handleType()
	case wit.Type:
		t = m.typeOf(kind)
	default:
		t = decl.Unresolved(fmt.Sprintf("%T", kind), "unsupported WIT type")
	}
	m.types[td] = t
	return t
}

// helper returns the shared non-top-level record called name, creating it
// with fill on first use.
func (m *mapper) helper(name string, fill func(*decl.Record)) *decl.Record {
	if r, ok := m.helpers[name]; ok {
		return r
	}
	r := &decl.Record{Name: name, QualifiedName: name, Kind: decl.Struct}
	m.helpers[name] = r
	fill(r)
	m.records = append(m.records, r)
	return r
}

// spell names an anonymous type by structure: list_u8, option_string,
// result_u32_string, tuple2_u32_u64.
func (m *mapper) spell(t wit.Type) string {
	switch typ := t.(type) {
	case nil:
		return "void"
	case *wit.TypeDef:
		if typ.Name != nil {
			return cIdent(*typ.Name)
		}
		switch k := typ.Kind.(type) {
		case *wit.List:
			return "list_" + m.spell(k.Type)
		case *wit.Option:
			return "option_" + m.spell(k.Type)
		case *wit.Result:
			return "result_" + m.spell(k.OK) + "_" + m.spell(k.Err)
		case *wit.Tuple:
			parts := []string{fmt.Sprintf("tuple%d", len(k.Types))}
			for _, e := range k.Types {
				parts = append(parts, m.spell(e))
			}
			return strings.Join(parts, "_")
		case *wit.Own, *wit.Borrow:
			return "handle"
		case wit.Type:
			return m.spell(k)
		}
		return "anon"
	case wit.String:
		return "string"
	case wit.Char:
		return "char32"
	}
	return strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", t), "wit."))
}

func fixedWidth(f abi.Fundamental) *decl.TypeRef {
	t := decl.Fund(f)
	switch f {
	case abi.SChar:
		t.Spelling = "int8_t"
	case abi.UChar:
		t.Spelling = "uint8_t"
	case abi.Short:
		t.Spelling = "int16_t"
	case abi.UShort:
		t.Spelling = "uint16_t"
	case abi.Int:
		t.Spelling = "int32_t"
	case abi.UInt:
		t.Spelling = "uint32_t"
	case abi.LongLong:
		t.Spelling = "int64_t"
	case abi.ULongLong:
		t.Spelling = "uint64_t"
	}
	return t
}

func uintOfSize(n uint64) abi.Fundamental {
	switch n {
	case 1:
		return abi.UChar
	case 2:
		return abi.UShort
	}
	return abi.UInt
}

func flagsType(name string, n int) *decl.TypeRef {
	var t *decl.TypeRef
	switch {
	case n <= 8:
		t = fixedWidth(abi.UChar)
	case n <= 16:
		t = fixedWidth(abi.UShort)
	case n <= 32:
		t = fixedWidth(abi.UInt)
	case n <= 64:
		t = fixedWidth(abi.ULongLong)
	default:
		return decl.Array(fixedWidth(abi.UInt), uint64((n+31)/32))
	}
	if name != "" {
		t.Spelling = name
	}
	return t
}

// handleType is the C representation of own and borrow handles.
func handleType() *decl.TypeRef {
	return fixedWidth(abi.Int)
}

// cIdent converts a kebab-case WIT identifier to a C identifier.
func cIdent(s string) string {
	s = strings.TrimPrefix(s, "%")
	return strings.ReplaceAll(s, "-", "_")
}

func cName(s string) string {
	return cIdent(s) + "_t"
}

func qualifiedName(td *wit.TypeDef) string {
	name := cName(*td.Name)
	if iface, ok := td.Owner.(*wit.Interface); ok && iface.Name != nil {
		return cIdent(*iface.Name) + "::" + name
	}
	return name
}
