package abi

import (
	"strings"

	"github.com/wippyai/structsight/errors"
)

var registry = func() map[Key]Profile {
	m := make(map[Key]Profile, 6)
	for _, arch := range []Arch{X86, X64, ARM64} {
		for _, d := range []Dialect{Itanium, MSVC} {
			p := newProfile(arch, d)
			m[p.Key()] = p
		}
	}
	return m
}()

var archAliases = map[string]Arch{
	"x86":     X86,
	"i386":    X86,
	"i686":    X86,
	"ia32":    X86,
	"x64":     X64,
	"x86_64":  X64,
	"x86-64":  X64,
	"amd64":   X64,
	"arm64":   ARM64,
	"aarch64": ARM64,
}

var dialectAliases = map[string]Dialect{
	"itanium":   Itanium,
	"clang":     Itanium,
	"gcc":       Itanium,
	"g++":       Itanium,
	"clang++":   Itanium,
	"msvc":      MSVC,
	"cl":        MSVC,
	"microsoft": MSVC,
}

// ParseArch maps an architecture tag to an Arch.
func ParseArch(tag string) (Arch, bool) {
	a, ok := archAliases[strings.ToLower(strings.TrimSpace(tag))]
	return a, ok
}

// ParseDialect maps a compiler tag to a Dialect.
func ParseDialect(tag string) (Dialect, bool) {
	d, ok := dialectAliases[strings.ToLower(strings.TrimSpace(tag))]
	return d, ok
}

// Resolve returns the profile for an architecture and compiler tag pair.
func Resolve(arch, compiler string) (Profile, error) {
	a, ok := ParseArch(arch)
	if !ok {
		return Profile{}, errors.UnknownProfile(arch, compiler)
	}
	d, ok := ParseDialect(compiler)
	if !ok {
		return Profile{}, errors.UnknownProfile(arch, compiler)
	}
	return Lookup(Key{Arch: a, Dialect: d})
}

// Lookup returns the profile registered under k.
func Lookup(k Key) (Profile, error) {
	p, ok := registry[k]
	if !ok {
		return Profile{}, errors.UnknownProfile(k.Arch.String(), k.Dialect.String())
	}
	return p, nil
}

// Profiles returns every supported profile in a stable order.
func Profiles() []Profile {
	out := make([]Profile, 0, len(registry))
	for _, arch := range []Arch{X86, X64, ARM64} {
		for _, d := range []Dialect{Itanium, MSVC} {
			out = append(out, registry[Key{Arch: arch, Dialect: d}])
		}
	}
	return out
}
