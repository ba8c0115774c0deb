// Package cache memoizes analysis results for a short time.
//
// Entries are keyed by document path, a fingerprint of the source text and
// compile flags, the requested type, architecture and compiler. Any change
// to the text yields a new key, and InvalidateDocument drops every entry of
// a document eagerly, so a stale layout is never served after an edit.
// Concurrent identical requests share one analysis.
package cache
