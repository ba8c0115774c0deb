// Package report renders analysis results for people and for files.
//
// Text draws a memory map of each layout: one row per member, base, vptr
// and padding region, followed by a byte strip and the suggestions. Write
// and Read store a result as versioned JSON so two runs can be compared
// with Diff.
package report
