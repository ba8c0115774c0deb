package decl

import (
	"fmt"

	"github.com/wippyai/structsight/errors"
)

// Record is a flattened struct, class or union declaration.
type Record struct {
	Name             string
	QualifiedName    string
	Kind             Kind
	Members          []Member
	Bases            []Base
	VirtualFunctions []string // declared or overridden in this record, in order
	Pack             uint64   // maximum member alignment, 0 when unpacked
	AlignAs          uint64   // minimum record alignment, 0 when unset
	TopLevel         bool     // declared at namespace scope
	Pos              Pos

	// Canonical is the size and alignment the source format itself fixes
	// for the record, such as the WIT canonical ABI. Nil for C++.
	Canonical *Extent
}

// Extent is a size and alignment in bytes.
type Extent struct {
	Size  uint64
	Align uint64
}

// NewRecord returns a struct declaration with the given members, numbering
// them in order.
func NewRecord(name string, members ...Member) *Record {
	r := &Record{Name: name, QualifiedName: name, Kind: Struct, TopLevel: true}
	r.AddMembers(members...)
	return r
}

// AddMembers appends members and assigns their declaration indices.
func (r *Record) AddMembers(members ...Member) {
	for _, m := range members {
		m.Index = len(r.Members)
		r.Members = append(r.Members, m)
	}
}

// DisplayName returns the qualified name, falling back to the plain name.
func (r *Record) DisplayName() string {
	if r.QualifiedName != "" {
		return r.QualifiedName
	}
	if r.Name != "" {
		return r.Name
	}
	return "(anonymous)"
}

// Polymorphic reports whether r declares or inherits a virtual function.
func (r *Record) Polymorphic() bool {
	if len(r.VirtualFunctions) > 0 {
		return true
	}
	for _, b := range r.Bases {
		if b.Record != nil && b.Record.Polymorphic() {
			return true
		}
	}
	return false
}

// HasVirtualBases reports whether r has a virtual base anywhere in its
// hierarchy.
func (r *Record) HasVirtualBases() bool {
	for _, b := range r.Bases {
		if b.Virtual {
			return true
		}
		if b.Record != nil && b.Record.HasVirtualBases() {
			return true
		}
	}
	return false
}

// Dynamic reports whether objects of r carry a vtable pointer.
func (r *Record) Dynamic() bool {
	return r.Polymorphic() || r.HasVirtualBases()
}

// HasStorageMembers reports whether r declares members occupying storage.
// Zero-width bitfields do not count.
func (r *Record) HasStorageMembers() bool {
	for i := range r.Members {
		if !r.Members[i].IsZeroWidth() {
			return true
		}
	}
	return false
}

// Empty reports whether r is an empty class: no storage members, no
// vtable pointer and only empty bases.
func (r *Record) Empty() bool {
	if r.HasStorageMembers() || r.Dynamic() {
		return false
	}
	for _, b := range r.Bases {
		if b.Record != nil && !b.Record.Empty() {
			return false
		}
	}
	return true
}

// MemberNames returns the names of members that have one, in declaration
// order.
func (r *Record) MemberNames() []string {
	names := make([]string, 0, len(r.Members))
	for i := range r.Members {
		if r.Members[i].Name != "" {
			names = append(names, r.Members[i].Name)
		}
	}
	return names
}

// Member returns the member named name.
func (r *Record) Member(name string) (*Member, bool) {
	for i := range r.Members {
		if r.Members[i].Name == name {
			return &r.Members[i], true
		}
	}
	return nil, false
}

// Clone returns a shallow copy of r with its own member, base and virtual
// function slices. Nested records are shared.
func (r *Record) Clone() *Record {
	c := *r
	c.Members = append([]Member(nil), r.Members...)
	c.Bases = append([]Base(nil), r.Bases...)
	c.VirtualFunctions = append([]string(nil), r.VirtualFunctions...)
	return &c
}

// Reorder returns a copy of r whose named members follow order. Unnamed
// members (unnamed bitfields) keep their place relative to the named member
// that precedes them. order must be a permutation of MemberNames().
func (r *Record) Reorder(order []string) (*Record, error) {
	names := r.MemberNames()
	if len(order) != len(names) {
		return nil, errors.InvalidInput(errors.PhaseOptimize,
			fmt.Sprintf("order has %d names, %s has %d members", len(order), r.DisplayName(), len(names)))
	}

	// Attach unnamed members to the preceding named member.
	groups := make(map[string][]Member, len(names))
	var leading []Member
	last := ""
	for _, m := range r.Members {
		if m.Name == "" {
			if last == "" {
				leading = append(leading, m)
			} else {
				groups[last] = append(groups[last], m)
			}
			continue
		}
		groups[m.Name] = append(groups[m.Name], m)
		last = m.Name
	}

	seen := make(map[string]bool, len(order))
	c := r.Clone()
	c.Members = c.Members[:0]
	c.AddMembers(leading...)
	for _, name := range order {
		g, ok := groups[name]
		if !ok || seen[name] {
			return nil, errors.InvalidInput(errors.PhaseOptimize,
				fmt.Sprintf("order is not a permutation of %s members: %q", r.DisplayName(), name))
		}
		seen[name] = true
		c.AddMembers(g...)
	}
	return c, nil
}

// Walk calls fn for r and every record reachable through bases and
// by-value members, each at most once.
func (r *Record) Walk(fn func(*Record)) {
	seen := make(map[*Record]bool)
	var visit func(*Record)
	visit = func(rec *Record) {
		if rec == nil || seen[rec] {
			return
		}
		seen[rec] = true
		fn(rec)
		for _, b := range rec.Bases {
			visit(b.Record)
		}
		for i := range rec.Members {
			for t := rec.Members[i].Type; t != nil; t = t.Elem {
				if t.Kind == KindPointer || t.Kind == KindReference {
					break
				}
				if t.Kind == KindRecord {
					visit(t.Record)
				}
			}
		}
	}
	visit(r)
}
