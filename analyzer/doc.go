// Package analyzer runs layout analysis for a batch of record types and
// maps every outcome into a single result envelope.
//
// A request names a source unit, an optional type and an (architecture,
// compiler) pair. The analyzer resolves the ABI profile, hands the source
// to a declaration extractor, lays out and optimizes each selected record
// in parallel, and returns the layouts in source order.
//
// # Failure Mapping
//
//	unknown profile          success=false, errorMessage set
//	extraction failure       success=false, extractor message verbatim
//	type not found           success=true, no layouts
//	unsupported construct    success=true, type omitted, errorMessage lists it
//	no improving order       success=true, empty optimizations
//	canceled                 success=true, partial layouts, diagnostic added
//
// # Usage
//
//	a := analyzer.New(cxx.New(), analyzer.WithWorkers(4))
//	res := a.Analyze(ctx, analyzer.Request{
//	    SourceCode:   src,
//	    FilePath:     "shapes.h",
//	    Architecture: "x64",
//	    Compiler:     "clang",
//	})
package analyzer
