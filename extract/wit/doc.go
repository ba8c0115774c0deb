// Package wit extracts C record declarations from WebAssembly Interface
// Type definitions.
//
// The input is the JSON form of a resolved WIT package, as printed by
// "wasm-tools component wit --json". Every named record, tuple, option,
// result and variant becomes a struct declared the way the wit-bindgen C
// generator declares it, so its native layout can be analyzed for each
// target profile. Anonymous helper types (string and list views, nested
// options) become non-top-level records.
//
// Canonical computes the Component Model canonical ABI size and alignment
// of a WIT type, which is the layout the value has in linear memory.
package wit
