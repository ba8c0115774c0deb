package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/wippyai/structsight/layout"
)

// ChangeKind classifies a difference between two reports.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
	Changed ChangeKind = "changed"
)

// Change is one difference for one type under one profile.
type Change struct {
	Type    string     `json:"type"`
	Profile string     `json:"profile"`
	Kind    ChangeKind `json:"kind"`
	Detail  string     `json:"detail"`
}

func key(tl *layout.TypeLayout) string {
	return tl.QualifiedName + "@" + tl.Profile
}

// Diff compares the layouts of two reports. Types are matched by qualified
// name and profile; changes follow the order of to, then removed types in
// the order of from.
func Diff(from, to *Report) []Change {
	before := make(map[string]*layout.TypeLayout, len(from.Layouts))
	for _, tl := range from.Layouts {
		before[key(tl)] = tl
	}

	var out []Change
	seen := make(map[string]bool)
	for _, tl := range to.Layouts {
		k := key(tl)
		seen[k] = true
		prev, ok := before[k]
		if !ok {
			out = append(out, Change{Type: tl.QualifiedName, Profile: tl.Profile, Kind: Added,
				Detail: fmt.Sprintf("size %d", tl.TotalSize)})
			continue
		}
		for _, d := range compare(prev, tl) {
			out = append(out, Change{Type: tl.QualifiedName, Profile: tl.Profile, Kind: Changed, Detail: d})
		}
	}
	for _, tl := range from.Layouts {
		if !seen[key(tl)] {
			out = append(out, Change{Type: tl.QualifiedName, Profile: tl.Profile, Kind: Removed,
				Detail: fmt.Sprintf("size %d", tl.TotalSize)})
		}
	}
	return out
}

func compare(a, b *layout.TypeLayout) []string {
	var out []string
	if a.TotalSize != b.TotalSize {
		out = append(out, fmt.Sprintf("size %d -> %d (%+d)", a.TotalSize, b.TotalSize, int64(b.TotalSize)-int64(a.TotalSize)))
	}
	if a.Alignment != b.Alignment {
		out = append(out, fmt.Sprintf("alignment %d -> %d", a.Alignment, b.Alignment))
	}
	if pa, pb := a.PaddingBytes(), b.PaddingBytes(); pa != pb {
		out = append(out, fmt.Sprintf("padding %d -> %d", pa, pb))
	}

	for _, m := range b.Members {
		if m.Name == "" {
			continue
		}
		prev, ok := a.Member(m.Name)
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("member %s added at %d", m.Name, m.Offset))
		case prev.Offset != m.Offset || prev.BitOffset != m.BitOffset:
			out = append(out, fmt.Sprintf("member %s moved %s -> %s", m.Name, position(prev), position(&m)))
		case prev.Size != m.Size:
			out = append(out, fmt.Sprintf("member %s size %d -> %d", m.Name, prev.Size, m.Size))
		}
	}
	for _, m := range a.Members {
		if m.Name == "" {
			continue
		}
		if _, ok := b.Member(m.Name); !ok {
			out = append(out, fmt.Sprintf("member %s removed", m.Name))
		}
	}

	if len(a.Suggestions) > 0 && len(b.Suggestions) == 0 {
		out = append(out, "no longer has a reordering suggestion")
	}
	return out
}

func position(m *layout.MemberLayout) string {
	if m.IsBitfield {
		return fmt.Sprintf("%d.%d", m.Offset, m.BitOffset)
	}
	return fmt.Sprint(m.Offset)
}

// WriteDiff prints changes one per line.
func WriteDiff(w io.Writer, changes []Change) error {
	var b strings.Builder
	if len(changes) == 0 {
		b.WriteString("no layout changes\n")
	}
	for _, c := range changes {
		fmt.Fprintf(&b, "%-7s %s (%s): %s\n", c.Kind, c.Type, c.Profile, c.Detail)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
