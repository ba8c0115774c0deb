package abi

// VPtrRule selects where the vtable pointer lives and how bases carrying
// their own vtable pointer are ordered.
type VPtrRule uint8

const (
	// VPtrPrimaryBase shares the vptr with the first non-virtual polymorphic
	// base, which is placed at offset 0 ahead of every other base.
	VPtrPrimaryBase VPtrRule = iota
	// VPtrPolymorphicBasesFirst places every non-virtual base carrying a
	// vfptr first, in declaration order, and shares the first one's vfptr.
	VPtrPolymorphicBasesFirst
)

func (r VPtrRule) String() string {
	if r == VPtrPolymorphicBasesFirst {
		return "polymorphic-bases-first"
	}
	return "primary-base"
}

// BaseTraits is what the vptr rule needs to know about one base.
type BaseTraits struct {
	Dynamic bool // carries a vtable pointer
	Virtual bool // inherited virtually
}

// Order returns the placement order of the non-virtual bases and the index
// of the primary base whose vptr the derived class reuses (-1 if none).
// Virtual bases are excluded from the order.
func (r VPtrRule) Order(bases []BaseTraits) (order []int, primary int) {
	primary = -1
	for i, b := range bases {
		if !b.Virtual && b.Dynamic {
			primary = i
			break
		}
	}

	switch r {
	case VPtrPolymorphicBasesFirst:
		for i, b := range bases {
			if !b.Virtual && b.Dynamic {
				order = append(order, i)
			}
		}
		for i, b := range bases {
			if !b.Virtual && !b.Dynamic {
				order = append(order, i)
			}
		}
	default:
		if primary >= 0 {
			order = append(order, primary)
		}
		for i, b := range bases {
			if !b.Virtual && i != primary {
				order = append(order, i)
			}
		}
	}
	return order, primary
}

// NeedsOwnVPtr reports whether a dynamic class must allocate its own vptr
// slot at offset 0 instead of sharing its primary base's.
func (r VPtrRule) NeedsOwnVPtr(dynamic bool, primary int) bool {
	return dynamic && primary < 0
}
