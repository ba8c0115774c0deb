package cxx

import (
	"context"
	stderrors "errors"
	"os"
	"strings"
	"testing"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/errors"
	"github.com/wippyai/structsight/layout"
)

func extract(t *testing.T, src string, flags ...string) []*decl.Record {
	t.Helper()
	recs, err := New().Extract(context.Background(), decl.Source{Path: "test.h", Text: src, Flags: flags})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return recs
}

func find(t *testing.T, recs []*decl.Record, qname string) *decl.Record {
	t.Helper()
	for _, r := range recs {
		if r.QualifiedName == qname {
			return r
		}
	}
	t.Fatalf("record %s not found", qname)
	return nil
}

func member(t *testing.T, r *decl.Record, name string) *decl.Member {
	t.Helper()
	m, ok := r.Member(name)
	if !ok {
		t.Fatalf("%s has no member %s (members %v)", r.DisplayName(), name, r.MemberNames())
	}
	return m
}

func TestExtractFixture(t *testing.T) {
	src, err := os.ReadFile("testdata/structs.cpp")
	if err != nil {
		t.Fatal(err)
	}
	recs := extract(t, string(src))

	var names []string
	for _, r := range recs {
		names = append(names, r.QualifiedName)
	}
	want := []string{
		"TestStruct", "OptimizedStruct", "BaseClass", "DerivedClass", "BitfieldStruct",
		"OuterStruct", "OuterStruct::InnerStruct", "PackedStruct", "EmptyStruct", "CacheLineTest",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("records: got %v, want %v", names, want)
	}

	ts := find(t, recs, "TestStruct")
	if got := strings.Join(ts.MemberNames(), " "); got != "a b c d" {
		t.Errorf("TestStruct members: %s", got)
	}
	if m := member(t, ts, "d"); m.Type.Kind != decl.KindFundamental || m.Type.Fundamental != abi.Double {
		t.Errorf("d: %v", m.Type)
	}

	base := find(t, recs, "BaseClass")
	if base.Kind != decl.Class || strings.Join(base.VirtualFunctions, " ") != "foo bar" {
		t.Errorf("BaseClass: kind %v, virtuals %v", base.Kind, base.VirtualFunctions)
	}
	if m := member(t, base, "x"); m.Access != decl.Public {
		t.Errorf("x access: %v", m.Access)
	}

	derived := find(t, recs, "DerivedClass")
	if len(derived.Bases) != 1 || derived.Bases[0].Record != base || derived.Bases[0].Access != decl.Public {
		t.Errorf("DerivedClass bases: %+v", derived.Bases)
	}
	if strings.Join(derived.VirtualFunctions, " ") != "foo" {
		t.Errorf("DerivedClass virtuals: %v", derived.VirtualFunctions)
	}

	bf := find(t, recs, "BitfieldStruct")
	for name, width := range map[string]uint64{"flag1": 1, "flag2": 1, "value": 6} {
		m := member(t, bf, name)
		if !m.Bitfield || m.BitWidth != width || m.Type.Fundamental != abi.UInt {
			t.Errorf("%s: bitfield %v width %d type %v", name, m.Bitfield, m.BitWidth, m.Type)
		}
	}

	inner := find(t, recs, "OuterStruct::InnerStruct")
	if inner.TopLevel {
		t.Error("InnerStruct should not be top-level")
	}
	if m := member(t, find(t, recs, "OuterStruct"), "inner"); m.Type.Record != inner {
		t.Errorf("inner: %v", m.Type)
	}

	if p := find(t, recs, "PackedStruct").Pack; p != 1 {
		t.Errorf("PackedStruct pack: got %d, want 1", p)
	}
	if p := find(t, recs, "EmptyStruct").Pack; p != 0 {
		t.Errorf("pack after pop: got %d, want 0", p)
	}
	if n := len(find(t, recs, "CacheLineTest").Members); n != 9 {
		t.Errorf("CacheLineTest members: %d", n)
	}
}

func TestExtractFixtureLayouts(t *testing.T) {
	src, err := os.ReadFile("testdata/structs.cpp")
	if err != nil {
		t.Fatal(err)
	}
	recs := extract(t, string(src))
	p, err := abi.Resolve("x64", "clang")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		size uint64
	}{
		{"TestStruct", 24},
		{"OptimizedStruct", 16},
		{"BaseClass", 16},
		{"DerivedClass", 24},
		{"BitfieldStruct", 8},
		{"OuterStruct", 16},
		{"PackedStruct", 6},
		{"EmptyStruct", 1},
		{"CacheLineTest", 72},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, err := layout.Build(find(t, recs, tt.name), p)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if err := layout.Check(tl); err != nil {
				t.Fatalf("Check: %v", err)
			}
			if tl.TotalSize != tt.size {
				t.Errorf("size: got %d, want %d", tl.TotalSize, tt.size)
			}
		})
	}
}

func TestExtractConstants(t *testing.T) {
	recs := extract(t, `
#define N 4
#define FLAGS (1 << 3) | 1
enum { M = N * 2, L };
namespace cfg { constexpr int Depth = 3; }
struct S {
    static constexpr unsigned K = 0x10;
    char a[N];
    int b[M];
    char c[K];
    short d[cfg::Depth][L];
    char e[FLAGS];
    char f[sizeof(int)];
};
`)
	s := find(t, recs, "S")
	for name, n := range map[string]uint64{"a": 4, "b": 8, "c": 16, "d": 3, "e": 9} {
		m := member(t, s, name)
		if m.Type.Kind != decl.KindArray || m.Type.Len != n {
			t.Errorf("%s: got %v, want length %d", name, m.Type, n)
		}
	}
	if d := member(t, s, "d").Type; d.Elem.Kind != decl.KindArray || d.Elem.Len != 9 {
		t.Errorf("d inner dimension: %v", d.Elem)
	}
	if f := member(t, s, "f").Type; f.Kind != decl.KindUnresolved {
		t.Errorf("sizeof bound should be unresolved: %v", f)
	}
	if _, ok := s.Member("K"); ok {
		t.Error("static member K should not be a data member")
	}
}

func TestExtractDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		flags []string
		check func(t *testing.T, recs []*decl.Record)
	}{
		{
			name: "namespaces",
			src:  "namespace a::b { struct S { int x; }; } namespace c { inline namespace v1 { struct T { S* s; }; } }",
			check: func(t *testing.T, recs []*decl.Record) {
				s := find(t, recs, "a::b::S")
				if !s.TopLevel || s.Name != "S" {
					t.Errorf("S: top %v name %q", s.TopLevel, s.Name)
				}
				find(t, recs, "c::v1::T")
			},
		},
		{
			name: "typedef anonymous struct",
			src:  "typedef struct { int x, y; } Point; struct Line { Point a, b; };",
			check: func(t *testing.T, recs []*decl.Record) {
				p := find(t, recs, "Point")
				if p.Name != "Point" || len(p.Members) != 2 {
					t.Errorf("Point: %+v", p)
				}
				if m := member(t, find(t, recs, "Line"), "b"); m.Type.Record != p {
					t.Errorf("b: %v", m.Type)
				}
			},
		},
		{
			name: "anonymous union member",
			src:  "struct V { int tag; union { int i; float f; }; union { char c; }; };",
			check: func(t *testing.T, recs []*decl.Record) {
				v := find(t, recs, "V")
				want := "tag (anonymous union) (anonymous union 2)"
				if got := strings.Join(v.MemberNames(), " "); got != want {
					t.Errorf("members: got %q, want %q", got, want)
				}
				if m := member(t, v, "(anonymous union)"); m.Type.Record.Kind != decl.Union {
					t.Errorf("union member: %v", m.Type)
				}
			},
		},
		{
			name: "pointers references and function pointers",
			src: `struct Node;
struct H {
    const char* const name;
    int& ref;
    void (*cb)(int, void*);
    int (*table[4])(void);
    Node* next;
    int Node::* field;
};`,
			check: func(t *testing.T, recs []*decl.Record) {
				h := find(t, recs, "H")
				kinds := map[string]decl.TypeKind{
					"name": decl.KindPointer, "ref": decl.KindReference, "cb": decl.KindPointer,
					"table": decl.KindArray, "next": decl.KindPointer, "field": decl.KindUnresolved,
				}
				for name, k := range kinds {
					if m := member(t, h, name); m.Type.Kind != k {
						t.Errorf("%s: got kind %v (%v), want %v", name, m.Type.Kind, m.Type, k)
					}
				}
				if tbl := member(t, h, "table").Type; tbl.Len != 4 || tbl.Elem.Kind != decl.KindPointer {
					t.Errorf("table: %v", tbl)
				}
			},
		},
		{
			name: "bitfields",
			src:  "struct B { unsigned a : 3, : 2; int : 0; unsigned long long b : 40; bool c : 1 = true; };",
			check: func(t *testing.T, recs []*decl.Record) {
				b := find(t, recs, "B")
				if len(b.Members) != 5 {
					t.Fatalf("members: %d", len(b.Members))
				}
				if m := b.Members[1]; !m.Unnamed || m.BitWidth != 2 {
					t.Errorf("unnamed: %+v", m)
				}
				if m := b.Members[2]; !m.IsZeroWidth() {
					t.Errorf("zero width: %+v", m)
				}
				if m := member(t, b, "b"); m.BitWidth != 40 || m.Type.Fundamental != abi.ULongLong {
					t.Errorf("b: %+v", m)
				}
			},
		},
		{
			name: "flexible array",
			src:  "struct Packet { unsigned short len; unsigned char data[]; };",
			check: func(t *testing.T, recs []*decl.Record) {
				if m := member(t, find(t, recs, "Packet"), "data"); !m.IsFlexible() {
					t.Errorf("data: %v", m.Type)
				}
			},
		},
		{
			name: "access and methods",
			src: `class C {
    int a;
public:
    C() : a(0), b{1} {}
    explicit C(int x) : a(x) {}
    virtual ~C() = default;
    virtual int get() const noexcept = 0;
    static int count;
    int b;
    bool operator==(const C& o) const { return a == o.a; }
    friend class D;
    using Alias = int;
    Alias c;
protected:
    auto f() -> int override;
};`,
			check: func(t *testing.T, recs []*decl.Record) {
				c := find(t, recs, "C")
				if got := strings.Join(c.MemberNames(), " "); got != "a b c" {
					t.Errorf("members: %s", got)
				}
				if member(t, c, "a").Access != decl.Private || member(t, c, "b").Access != decl.Public {
					t.Error("access specifiers not applied")
				}
				if got := strings.Join(c.VirtualFunctions, " "); got != "~C get f" {
					t.Errorf("virtuals: %s", got)
				}
				if m := member(t, c, "c"); m.Type.Fundamental != abi.Int {
					t.Errorf("alias member: %v", m.Type)
				}
			},
		},
		{
			name: "bases",
			src:  "struct A { int a; }; struct E {}; class B : virtual public A, E { int b; };",
			check: func(t *testing.T, recs []*decl.Record) {
				b := find(t, recs, "B")
				if len(b.Bases) != 2 {
					t.Fatalf("bases: %+v", b.Bases)
				}
				if !b.Bases[0].Virtual || b.Bases[0].Access != decl.Public {
					t.Errorf("A: %+v", b.Bases[0])
				}
				if b.Bases[1].Virtual || b.Bases[1].Access != decl.Private || b.Bases[1].Name != "E" {
					t.Errorf("E: %+v", b.Bases[1])
				}
			},
		},
		{
			name: "enums",
			src: `enum class Color : unsigned char { Red, Green };
enum Big { Small = 1, Huge = 0x100000000 };
struct S { Color c; Big b; enum { X = 2 } e; char arr[X]; };`,
			check: func(t *testing.T, recs []*decl.Record) {
				s := find(t, recs, "S")
				if m := member(t, s, "c"); m.Type.Kind != decl.KindEnum || m.Type.Fundamental != abi.UChar {
					t.Errorf("c: %+v", m.Type)
				}
				if m := member(t, s, "b"); m.Type.Fundamental != abi.LongLong {
					t.Errorf("b: %v", m.Type.Fundamental)
				}
				if m := member(t, s, "arr"); m.Type.Len != 2 {
					t.Errorf("arr: %v", m.Type)
				}
			},
		},
		{
			name: "templates",
			src: `template <typename T, int N = (3 > 2)> struct Box { T v[N]; };
template <> struct Box<char, 1> { char c; };
template <typename T> T id(T x) { return x; }
struct Holder { Box<int> b; int x; };`,
			check: func(t *testing.T, recs []*decl.Record) {
				if len(recs) != 1 {
					t.Fatalf("records: %d", len(recs))
				}
				if m := member(t, recs[0], "b"); m.Type.Kind != decl.KindUnresolved {
					t.Errorf("b: %v", m.Type)
				}
			},
		},
		{
			name: "packing and alignment",
			src: `#pragma pack(push, 2)
struct P2 { char a; int b; };
#pragma pack(pop)
#pragma pack(4)
struct P4 { char a; };
#pragma pack()
struct __attribute__((packed)) GP { char a; int b; };
struct GA { int a; } __attribute__((aligned(32)));
struct alignas(16) A16 { alignas(8) int x; int y __attribute__((aligned(4))); };
struct __declspec(align(64)) D64 { int x; };
typedef int wide_int __attribute__((aligned(8)));
struct W { wide_int w; };`,
			check: func(t *testing.T, recs []*decl.Record) {
				checks := map[string][2]uint64{
					"P2": {2, 0}, "P4": {4, 0}, "GP": {1, 0}, "GA": {0, 32}, "A16": {0, 16}, "D64": {0, 64},
				}
				for name, want := range checks {
					r := find(t, recs, name)
					if r.Pack != want[0] || r.AlignAs != want[1] {
						t.Errorf("%s: pack %d align %d, want %v", name, r.Pack, r.AlignAs, want)
					}
				}
				a := find(t, recs, "A16")
				if member(t, a, "x").AlignAs != 8 || member(t, a, "y").AlignAs != 4 {
					t.Errorf("member alignment: %+v", a.Members)
				}
				if w := member(t, find(t, recs, "W"), "w"); w.Type.AlignAs != 8 || w.Type.Spelling != "wide_int" {
					t.Errorf("aligned typedef: %+v", w.Type)
				}
			},
		},
		{
			name:  "pack flag",
			src:   "struct S { char a; int b; };\n#pragma pack(push, 1)\nstruct T { int x; };\n#pragma pack(pop)\nstruct U { int x; };",
			flags: []string{"-fpack-struct=2"},
			check: func(t *testing.T, recs []*decl.Record) {
				for name, want := range map[string]uint64{"S": 2, "T": 1, "U": 2} {
					if p := find(t, recs, name).Pack; p != want {
						t.Errorf("%s: pack %d, want %d", name, p, want)
					}
				}
			},
		},
		{
			name:  "conditionals",
			src:   "#ifndef GUARD_H\n#define GUARD_H\n#if 0\nstruct Hidden {};\n#elif defined(FEATURE) && WIDTH > 2\nstruct Feature { char x[WIDTH]; };\n#else\nstruct Fallback {};\n#endif\n#endif",
			flags: []string{"-DFEATURE", "-D", "WIDTH=3"},
			check: func(t *testing.T, recs []*decl.Record) {
				if len(recs) != 1 || recs[0].Name != "Feature" {
					t.Fatalf("records: %+v", recs)
				}
				if m := member(t, recs[0], "x"); m.Type.Len != 3 {
					t.Errorf("x: %v", m.Type)
				}
			},
		},
		{
			name: "extern C and forward declarations",
			src:  "extern \"C\" { struct Fwd; struct Uses { struct Fwd* p; int n; }; int f(void); }\nstruct Fwd { int v; };",
			check: func(t *testing.T, recs []*decl.Record) {
				fwd := find(t, recs, "Fwd")
				if len(fwd.Members) != 1 {
					t.Errorf("Fwd: %+v", fwd)
				}
				if m := member(t, find(t, recs, "Uses"), "p"); m.Type.Elem.Record != fwd {
					t.Errorf("p: %v", m.Type)
				}
			},
		},
		{
			name: "incomplete by value",
			src:  "struct Later; struct Bad { struct Later l; };",
			check: func(t *testing.T, recs []*decl.Record) {
				if m := member(t, find(t, recs, "Bad"), "l"); m.Type.Kind != decl.KindUnresolved {
					t.Errorf("l: %v", m.Type)
				}
			},
		},
		{
			name: "standard types",
			src:  "#include <cstdint>\n#include <string>\nstruct S { uint8_t a; std::int64_t b; size_t n; std::string s; };",
			check: func(t *testing.T, recs []*decl.Record) {
				s := find(t, recs, "S")
				if m := member(t, s, "a"); m.Type.Fundamental != abi.UChar || m.Type.Spelling != "uint8_t" {
					t.Errorf("a: %+v", m.Type)
				}
				if m := member(t, s, "n"); m.Type.Fundamental != abi.SizeT {
					t.Errorf("n: %+v", m.Type)
				}
				if m := member(t, s, "s"); m.Type.Kind != decl.KindUnresolved {
					t.Errorf("s: %+v", m.Type)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, extract(t, tt.src, tt.flags...))
		})
	}
}

func TestExtractSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		pos  string
	}{
		{"missing semicolon", "struct S {\n  int x\n};", "test.h:3:1"},
		{"unbalanced brace", "struct S {\n  int x;\n", "test.h:3:1"},
		{"unterminated comment", "/* open", "test.h:1:1"},
		{"stray close", "};", "test.h:1:1"},
		{"redefinition", "struct S {};\nstruct S {};", "test.h:2:1"},
		{"no declarator", "struct S { x; };", "test.h:1:13"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Extract(context.Background(), decl.Source{Path: "test.h", Text: tt.src})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.pos) {
				t.Errorf("error %q does not contain %s", err, tt.pos)
			}
		})
	}
}

func TestExtractInvalidFlag(t *testing.T) {
	_, err := New().Extract(context.Background(), decl.Source{Text: "struct S {};", Flags: []string{"-fpack-struct=3"}})
	if err == nil || !strings.Contains(err.Error(), "-fpack-struct=3") {
		t.Errorf("error: %v", err)
	}
}

func TestExtractCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Extract(ctx, decl.Source{Text: "struct S { int x; };"})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("error: got %v, want context.Canceled", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindCanceled {
		t.Errorf("error kind: %v", err)
	}
}
