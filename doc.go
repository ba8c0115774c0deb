// Package structsight computes C and C++ record layouts for a chosen ABI
// and suggests member orders that waste less padding.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	structsight/         Root package with the one-call Analyze entry point
//	├── abi/             ABI profiles: fundamental types, bitfield and vptr rules
//	├── decl/            Declaration tree consumed by the layout core
//	├── layout/          Layout builder, invariant checker, cache-line hints
//	├── optimizer/       Member reordering search
//	├── analyzer/        Request handling, per-type parallelism, result envelope
//	├── extract/cxx/     C/C++ declaration subset parser
//	├── extract/wit/     WIT JSON to C records, as wit-bindgen lays them out
//	├── cache/           Short-lived result memoization
//	├── config/          Environment configuration
//	├── report/          Memory maps, JSON reports, report diffs
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
//	res := structsight.Analyze(ctx, analyzer.Request{
//	    SourceCode:   "struct S { char a; double b; char c; };",
//	    FilePath:     "s.h",
//	    Architecture: "x64",
//	    Compiler:     "msvc",
//	})
//	for _, tl := range res.Layouts {
//	    fmt.Println(tl.Name, tl.TotalSize, tl.Suggestions)
//	}
//
// # Profiles
//
// Six profiles are supported: x86, x64 and arm64, each with the Itanium
// (GCC, Clang) or MSVC rules. Declarations carry no sizes, so one extracted
// record can be laid out under every profile.
//
// # Thread Safety
//
// Profiles are immutable values. Analyzer, the extractors and the cache are
// safe for concurrent use.
package structsight
