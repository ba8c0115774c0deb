// Package optimizer searches for a member order that lowers the padding of
// a record.
//
// Members are grouped into blocks. An ordinary data member is a block of
// its own; consecutive bitfields that share storage form one block that is
// only ever moved as a whole. Blocks holding a flexible array member or a
// zero-width bitfield are anchors and keep their position. Base subobjects
// and the vtable pointer are not members and are never moved.
//
// Candidate orders are produced by a stable sort on descending alignment,
// by the same sort with descending size as tie breaker, and, for records
// with few free blocks, by trying every permutation. Every candidate is
// verified by laying it out again; the smallest verified size wins and ties
// go to the earlier candidate. The search then restarts from the winner until
// it finds nothing better, so applying a suggestion and optimizing again
// yields no further suggestion.
package optimizer
