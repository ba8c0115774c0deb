// Package cxx extracts record declarations from C and C++ source without a
// compiler.
//
// The extractor understands the declaration subset that determines object
// layout: struct, class and union definitions (nested and anonymous), base
// clauses, access specifiers, data members including bitfields, pointers,
// references and arrays with constant bounds, virtual member functions,
// enumerations, typedef and using aliases, namespaces and extern "C"
// blocks. Packing and alignment come from #pragma pack, alignas,
// __attribute__((packed, aligned)), __declspec(align) and -fpack-struct.
//
// Templates are skipped; instantiations used as member types are reported
// as unresolved, which makes the containing record unsupported rather than
// failing the whole file. The preprocessor is partial: conditionals,
// object-like integer macros and #pragma pack are honored, #include and
// macro expansion in declarations are not.
//
// Syntax errors are reported with file:line:col positions.
package cxx
