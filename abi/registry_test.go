package abi

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/structsight/errors"
)

func TestResolveAliases(t *testing.T) {
	tests := []struct {
		arch, compiler string
		want           Key
	}{
		{"x64", "clang", Key{X64, Itanium}},
		{"x86_64", "gcc", Key{X64, Itanium}},
		{"AMD64", "msvc", Key{X64, MSVC}},
		{"i686", "g++", Key{X86, Itanium}},
		{"x86", "cl", Key{X86, MSVC}},
		{"aarch64", "itanium", Key{ARM64, Itanium}},
		{" arm64 ", "Microsoft", Key{ARM64, MSVC}},
	}

	for _, tc := range tests {
		t.Run(tc.arch+"/"+tc.compiler, func(t *testing.T) {
			p, err := Resolve(tc.arch, tc.compiler)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if p.Key() != tc.want {
				t.Errorf("key: got %v, want %v", p.Key(), tc.want)
			}
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	for _, tc := range [][2]string{{"sparc", "gcc"}, {"x64", "icc"}, {"", ""}} {
		_, err := Resolve(tc[0], tc[1])
		if err == nil {
			t.Fatalf("Resolve(%q, %q): expected error", tc[0], tc[1])
		}
		if !stderrors.Is(err, errors.ErrUnknownProfile) {
			t.Errorf("Resolve(%q, %q): got %v, want unknown profile", tc[0], tc[1], err)
		}
	}
}

func TestProfilesStableOrder(t *testing.T) {
	ps := Profiles()
	want := []string{"x86-itanium", "x86-msvc", "x64-itanium", "x64-msvc", "arm64-itanium", "arm64-msvc"}
	if len(ps) != len(want) {
		t.Fatalf("got %d profiles, want %d", len(ps), len(want))
	}
	for i, p := range ps {
		if p.String() != want[i] {
			t.Errorf("profile %d: got %s, want %s", i, p, want[i])
		}
	}
}

func TestProfileIsValueCopy(t *testing.T) {
	a, _ := Resolve("x64", "clang")
	a.PointerSize = 99
	b, _ := Resolve("x64", "clang")
	if b.PointerSize != 8 {
		t.Errorf("mutating a resolved profile leaked into the registry: %d", b.PointerSize)
	}
}

func TestFundamentalTable(t *testing.T) {
	tests := []struct {
		key   Key
		typ   Fundamental
		size  uint64
		align uint64
	}{
		{Key{X64, Itanium}, Char, 1, 1},
		{Key{X64, Itanium}, Bool, 1, 1},
		{Key{X64, Itanium}, Short, 2, 2},
		{Key{X64, Itanium}, Int, 4, 4},
		{Key{X64, Itanium}, Long, 8, 8},
		{Key{X64, Itanium}, LongLong, 8, 8},
		{Key{X64, Itanium}, Float, 4, 4},
		{Key{X64, Itanium}, Double, 8, 8},
		{Key{X64, Itanium}, LongDouble, 16, 16},
		{Key{X64, Itanium}, WChar, 4, 4},
		{Key{X64, Itanium}, Int128, 16, 16},
		{Key{X64, MSVC}, Long, 4, 4},
		{Key{X64, MSVC}, LongDouble, 8, 8},
		{Key{X64, MSVC}, WChar, 2, 2},
		{Key{X86, Itanium}, Long, 4, 4},
		{Key{X86, Itanium}, LongLong, 8, 4},
		{Key{X86, Itanium}, Double, 8, 4},
		{Key{X86, Itanium}, LongDouble, 12, 4},
		{Key{X86, Itanium}, SizeT, 4, 4},
		{Key{X86, MSVC}, Double, 8, 8},
		{Key{X86, MSVC}, LongLong, 8, 8},
		{Key{ARM64, Itanium}, Long, 8, 8},
		{Key{ARM64, Itanium}, LongDouble, 16, 16},
		{Key{ARM64, MSVC}, Long, 4, 4},
		{Key{ARM64, MSVC}, PtrDiffT, 8, 8},
	}

	for _, tc := range tests {
		t.Run(tc.key.String()+"/"+tc.typ.String(), func(t *testing.T) {
			p, err := Lookup(tc.key)
			if err != nil {
				t.Fatal(err)
			}
			info, ok := p.Fundamental(tc.typ)
			if !ok {
				t.Fatalf("%s not available", tc.typ)
			}
			if info.Size != tc.size {
				t.Errorf("size: got %d, want %d", info.Size, tc.size)
			}
			if info.Align != tc.align {
				t.Errorf("align: got %d, want %d", info.Align, tc.align)
			}
		})
	}
}

func TestInt128Availability(t *testing.T) {
	for _, p := range Profiles() {
		_, ok := p.Fundamental(Int128)
		want := p.Dialect == Itanium && p.Arch != X86
		if ok != want {
			t.Errorf("%s: __int128 available = %v, want %v", p, ok, want)
		}
	}
}

func TestPointerWidth(t *testing.T) {
	for _, p := range Profiles() {
		want := uint64(8)
		if p.Arch == X86 {
			want = 4
		}
		if got := p.Pointer(); got.Size != want || got.Align != want {
			t.Errorf("%s: pointer = %+v, want %d/%d", p, got, want, want)
		}
	}
}

func TestAlignHelpers(t *testing.T) {
	tests := []struct {
		offset, align, up, down uint64
	}{
		{0, 8, 0, 0},
		{1, 8, 8, 0},
		{8, 8, 8, 8},
		{13, 4, 16, 12},
		{5, 1, 5, 5},
		{5, 0, 5, 5},
	}
	for _, tc := range tests {
		if got := AlignUp(tc.offset, tc.align); got != tc.up {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tc.offset, tc.align, got, tc.up)
		}
		if got := AlignDown(tc.offset, tc.align); got != tc.down {
			t.Errorf("AlignDown(%d, %d) = %d, want %d", tc.offset, tc.align, got, tc.down)
		}
	}

	if _, ok := SafeMul(1<<40, 1<<40); ok {
		t.Error("SafeMul should report overflow")
	}
	if v, ok := SafeAdd(3, 4); !ok || v != 7 {
		t.Errorf("SafeAdd(3, 4) = %d, %v", v, ok)
	}
	if MinAlign(8, 2) != 2 || MinAlign(8, 0) != 8 || MinAlign(1, 4) != 1 {
		t.Error("MinAlign mismatch")
	}
	if !IsPowerOfTwo(16) || IsPowerOfTwo(12) || IsPowerOfTwo(0) {
		t.Error("IsPowerOfTwo mismatch")
	}
}
