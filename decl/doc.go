// Package decl defines the record declarations consumed by the layout
// builder and the Extractor interface that produces them.
//
// A declaration is the flattened, source-ordered description of a C/C++
// record: its data members, base classes and virtual functions. Member types
// are symbolic (TypeRef); sizes and alignments are resolved later against an
// ABI profile, so one extracted declaration can be laid out for every
// profile.
//
// Base classes and by-value record members reference other Records
// directly, forming a tree that is built bottom-up by the extractor.
package decl
