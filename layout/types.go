package layout

// Padding reasons.
const (
	ReasonAlignmentGap    = "alignment-gap"
	ReasonTailPadding     = "tail-padding"
	ReasonBitfieldUnitGap = "bitfield-unit-gap"
)

// TypeLayout is the complete layout of one record under one profile.
type TypeLayout struct {
	Name             string `json:"name"`
	QualifiedName    string `json:"qualifiedName"`
	Kind             string `json:"kind"`
	Profile          string `json:"profile"`
	TotalSize        uint64 `json:"totalSize"`
	Alignment        uint64 `json:"alignment"`
	UsefulSize       uint64 `json:"usefulSize"`
	NonVirtualSize   uint64 `json:"nonVirtualSize"`
	NonVirtualAlign  uint64 `json:"nonVirtualAlignment"`
	IsPolymorphic    bool   `json:"isPolymorphic"`
	IsStandardLayout bool   `json:"isStandardLayout"`

	Members      []MemberLayout  `json:"members"`
	Bases        []BaseLayout    `json:"bases,omitempty"`
	StorageUnits []StorageUnit   `json:"storageUnits,omitempty"`
	Padding      []PaddingRegion `json:"padding"`
	VTable       *VTableInfo     `json:"vtable,omitempty"`
	Suggestions  []Suggestion    `json:"optimizations"`
	Hints        []Hint          `json:"hints,omitempty"`
}

// MemberLayout is the placement of one data member.
type MemberLayout struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Access     string `json:"access,omitempty"`
	Offset     uint64 `json:"offset"`
	Size       uint64 `json:"size"`
	Alignment  uint64 `json:"alignment"`
	IsBitfield bool   `json:"isBitfield"`
	BitWidth   uint64 `json:"bitfieldWidth"`
	BitOffset  uint64 `json:"bitfieldOffset"`

	// UnitSize is the size of the bitfield's declared type.
	UnitSize uint64 `json:"unitSize,omitempty"`
	// StorageUnit is the 1-based index into TypeLayout.StorageUnits of the
	// run holding the bitfield, 0 for ordinary members.
	StorageUnit int `json:"storageUnit,omitempty"`
}

// BaseLayout is the placement of one base subobject. Size is the number of
// bytes the subobject occupies in this record: 0 for an overlapped empty
// base, the base's non-virtual size otherwise.
type BaseLayout struct {
	Name      string `json:"name"`
	Offset    uint64 `json:"offset"`
	Size      uint64 `json:"size"`
	Alignment uint64 `json:"alignment"`
	Virtual   bool   `json:"virtual,omitempty"`
	Empty     bool   `json:"empty,omitempty"`
	Primary   bool   `json:"primary,omitempty"`
}

// StorageUnit is the byte span used by a run of bitfields sharing storage.
type StorageUnit struct {
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
}

// PaddingRegion is a run of bytes that carries no data.
type PaddingRegion struct {
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
	Reason string `json:"reason"`
}

// VTableInfo describes the vtable pointer of a dynamic record. When
// Inherited is set the pointer lives inside the primary base subobject and
// has no slot of its own.
type VTableInfo struct {
	PointerOffset    uint64   `json:"pointerOffset"`
	PointerSize      uint64   `json:"pointerSize"`
	VirtualFunctions []string `json:"virtualFunctions"`
	HasVirtualBase   bool     `json:"hasVirtualBase"`
	Inherited        bool     `json:"inherited,omitempty"`
	PrimaryBase      string   `json:"primaryBase,omitempty"`
	// Partial marks layouts with more than one vtable pointer that are only
	// modeled approximately.
	Partial bool `json:"partial,omitempty"`
}

// Suggestion is a member reordering that reduces the record size.
type Suggestion struct {
	Description    string   `json:"description"`
	BytesSaved     uint64   `json:"bytesSaved"`
	SuggestedOrder []string `json:"suggestedOrder"`
	Confidence     float64  `json:"confidence"`
}

// Hint is an informational finding that does not change the record size.
type Hint struct {
	Member      string `json:"member"`
	Offset      uint64 `json:"offset"`
	Size        uint64 `json:"size"`
	Description string `json:"description"`
}

// Member returns the layout of the member named name.
func (tl *TypeLayout) Member(name string) (*MemberLayout, bool) {
	for i := range tl.Members {
		if tl.Members[i].Name == name {
			return &tl.Members[i], true
		}
	}
	return nil, false
}

// PaddingBytes returns the total number of padding bytes.
func (tl *TypeLayout) PaddingBytes() uint64 {
	var n uint64
	for _, p := range tl.Padding {
		n += p.Size
	}
	return n
}

// MemberNames returns the names of named members in layout order.
func (tl *TypeLayout) MemberNames() []string {
	names := make([]string, 0, len(tl.Members))
	for _, m := range tl.Members {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}
