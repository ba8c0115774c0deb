// Package abi provides the ABI profile registry used for record layout.
//
// A Profile fixes every layout rule the builder needs for one
// (architecture, compiler dialect) pair: pointer width, the size and
// alignment of fundamental types, how bitfields are allocated into storage
// units, where the vtable pointer goes, and whether empty bases may be
// overlapped.
//
// # Supported Profiles
//
//	x86-itanium   x86-msvc
//	x64-itanium   x64-msvc
//	arm64-itanium arm64-msvc
//
// Profiles are plain comparable values. Resolve returns a copy, so a
// profile can be shared freely between goroutines.
//
// # Usage
//
//	p, err := abi.Resolve("x86_64", "clang")
//	if err != nil {
//	    return err // errors.KindUnknownProfile
//	}
//	info, ok := p.Fundamental(abi.LongDouble) // 16/16 on x64-itanium
package abi
