package optimizer

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/errors"
	"github.com/wippyai/structsight/layout"
)

// DefaultExhaustiveLimit is the largest number of free blocks for which
// every permutation is tried.
const DefaultExhaustiveLimit = 7

// Confidence levels attached to suggestions.
const (
	ConfidenceDefault          = 1.0
	ConfidenceBinaryCompatible = 0.7
	ConfidencePartialVTable    = 0.8
)

// Options tunes the search.
type Options struct {
	// ExhaustiveLimit bounds the exhaustive search; 0 selects the default
	// and a negative value disables it.
	ExhaustiveLimit int
	// BinaryCompatible marks records whose raw layout is relied upon
	// elsewhere, which lowers the confidence of any suggestion.
	BinaryCompatible bool
	Logger           *zap.Logger
}

// block is a group of members, by position, that moves as a unit.
type block struct {
	members []int
	align   uint64
	size    uint64
	anchor  bool
}

type candidate struct {
	strategy string
	order    []string
	size     uint64
}

// Optimize returns at most one suggestion for rec. baseline is the layout
// of rec as declared under p; it is computed when nil. An empty result
// means the declared order cannot be improved.
func Optimize(rec *decl.Record, baseline *layout.TypeLayout, p abi.Profile, opts Options) ([]layout.Suggestion, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if rec.Kind == decl.Union {
		return nil, nil
	}
	if baseline == nil {
		var err error
		if baseline, err = layout.Build(rec, p); err != nil {
			return nil, err
		}
	}

	limit := opts.ExhaustiveLimit
	if limit == 0 {
		limit = DefaultExhaustiveLimit
	}

	best, err := search(rec, baseline, p, limit)
	if err != nil {
		return nil, err
	}
	// Reordering can bring bitfields together into one storage unit, which
	// changes the blocks a later search sees. Search again from each winner
	// until it is a fixed point.
	for round := 1; best.order != nil && round < maxRounds; round++ {
		c, err := rec.Reorder(best.order)
		if err != nil {
			return nil, err
		}
		tl, err := layout.Build(c, p)
		if err != nil {
			return nil, err
		}
		next, err := search(c, tl, p, limit)
		if err != nil {
			return nil, err
		}
		if next.order == nil {
			break
		}
		log.Debug("order improved again",
			zap.String("record", baseline.QualifiedName),
			zap.Int("round", round),
			zap.Uint64("size", next.size))
		best = next
	}

	if best.order == nil {
		log.Debug("no improving order",
			zap.String("record", baseline.QualifiedName),
			zap.Uint64("size", baseline.TotalSize))
		return nil, nil
	}

	saved := baseline.TotalSize - best.size
	if err := verify(rec, best, baseline, p); err != nil {
		return nil, err
	}

	confidence := ConfidenceDefault
	if baseline.VTable != nil && baseline.VTable.Partial {
		confidence = ConfidencePartialVTable
	}
	if opts.BinaryCompatible {
		confidence = ConfidenceBinaryCompatible
	}

	log.Debug("improving order found",
		zap.String("record", baseline.QualifiedName),
		zap.String("strategy", best.strategy),
		zap.Uint64("saved", saved))

	return []layout.Suggestion{{
		Description: fmt.Sprintf("Reorder members (%s) to shrink %s from %d to %d bytes",
			best.strategy, baseline.Name, baseline.TotalSize, best.size),
		BytesSaved:     saved,
		SuggestedOrder: best.order,
		Confidence:     confidence,
	}}, nil
}

// maxRounds bounds the repeated searches of Optimize.
const maxRounds = 8

// search tries the sorting strategies and, for few enough free blocks,
// every permutation. The returned candidate has a nil order when nothing
// beats baseline.
func search(rec *decl.Record, baseline *layout.TypeLayout, p abi.Profile, limit int) (candidate, error) {
	best := candidate{size: baseline.TotalSize}

	blocks := split(rec, baseline)
	var free []int
	for i, b := range blocks {
		if !b.anchor {
			free = append(free, i)
		}
	}
	if len(free) < 2 {
		return best, nil
	}

	try := func(strategy string, perm []int) error {
		order := assemble(rec, blocks, free, perm)
		size, err := sizeOf(rec, order, p)
		if err != nil {
			return err
		}
		if size < best.size {
			best = candidate{strategy: strategy, order: order, size: size}
		}
		return nil
	}

	byAlign := identity(len(free))
	sort.SliceStable(byAlign, func(i, j int) bool {
		return blocks[free[byAlign[i]]].align > blocks[free[byAlign[j]]].align
	})
	if err := try("descending alignment", byAlign); err != nil {
		return best, err
	}

	bySize := identity(len(free))
	sort.SliceStable(bySize, func(i, j int) bool {
		a, b := blocks[free[bySize[i]]], blocks[free[bySize[j]]]
		if a.align != b.align {
			return a.align > b.align
		}
		return a.size > b.size
	})
	if err := try("descending alignment and size", bySize); err != nil {
		return best, err
	}

	if len(free) <= limit {
		var err error
		permute(identity(len(free)), func(perm []int) bool {
			err = try("exhaustive search", perm)
			return err == nil
		})
		if err != nil {
			return best, err
		}
	}
	return best, nil
}

// split groups rec's members into blocks of member positions. Units follow
// decl.Record.Reorder: members before the first named one stay in front,
// and every named member carries the unnamed members that follow it.
// Adjacent bitfields join one block only when they share a storage unit.
func split(rec *decl.Record, baseline *layout.TypeLayout) []block {
	sizes := make(map[string]layout.MemberLayout, len(baseline.Members))
	for _, m := range baseline.Members {
		if m.Name != "" {
			sizes[m.Name] = m
		}
	}

	// Every member except a zero-width bitfield has one entry in
	// baseline.Members, in declaration order.
	unitOf := make([]int, len(rec.Members))
	next := 0
	for i := range rec.Members {
		if rec.Members[i].IsZeroWidth() || next >= len(baseline.Members) {
			continue
		}
		unitOf[i] = baseline.Members[next].StorageUnit
		next++
	}

	var units [][]int
	for i, m := range rec.Members {
		if m.Name == "" {
			if len(units) > 0 {
				units[len(units)-1] = append(units[len(units)-1], i)
			}
			continue
		}
		units = append(units, []int{i})
	}

	var blocks []block
	for _, u := range units {
		joins := false
		if n := len(blocks); n > 0 {
			prev := blocks[n-1].members
			last := prev[len(prev)-1]
			joins = unitOf[last] != 0 && unitOf[last] == unitOf[u[0]]
		}
		if !joins {
			blocks = append(blocks, block{})
		}
		b := &blocks[len(blocks)-1]
		for _, i := range u {
			m := &rec.Members[i]
			b.members = append(b.members, i)
			if m.IsFlexible() || m.IsZeroWidth() {
				b.anchor = true
			}
			if m.Bitfield {
				b.size += m.BitWidth
			}
			if ml, ok := sizes[m.Name]; ok && m.Name != "" {
				if ml.Alignment > b.align {
					b.align = ml.Alignment
				}
				if !m.Bitfield {
					b.size += ml.Size * 8
				}
			}
		}
	}
	for i := range blocks {
		blocks[i].size = (blocks[i].size + 7) / 8
	}
	return blocks
}

// assemble returns the member names with free blocks reordered by perm and
// anchors left in place.
func assemble(rec *decl.Record, blocks []block, free, perm []int) []string {
	placed := make([]int, len(blocks))
	for i := range blocks {
		placed[i] = i
	}
	for slot, p := range perm {
		placed[free[slot]] = free[p]
	}

	var names []string
	for _, bi := range placed {
		for _, i := range blocks[bi].members {
			if name := rec.Members[i].Name; name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func sizeOf(rec *decl.Record, order []string, p abi.Profile) (uint64, error) {
	c, err := rec.Reorder(order)
	if err != nil {
		return 0, err
	}
	tl, err := layout.Build(c, p)
	if err != nil {
		return 0, err
	}
	return tl.TotalSize, nil
}

// verify re-checks a winning candidate: the order is a permutation of the
// declared names and laying it out reproduces the claimed size.
func verify(rec *decl.Record, best candidate, baseline *layout.TypeLayout, p abi.Profile) error {
	fail := func(format string, args ...any) error {
		return errors.Invariant(errors.PhaseOptimize, baseline.QualifiedName, fmt.Sprintf(format, args...))
	}

	want := make(map[string]int)
	for _, n := range rec.MemberNames() {
		want[n]++
	}
	for _, n := range best.order {
		want[n]--
	}
	for n, c := range want {
		if c != 0 {
			return fail("suggested order is not a permutation of the members (%q)", n)
		}
	}

	c, err := rec.Reorder(best.order)
	if err != nil {
		return err
	}
	tl, err := layout.Build(c, p)
	if err != nil {
		return err
	}
	if err := layout.Check(tl); err != nil {
		return err
	}
	if tl.TotalSize != best.size || best.size >= baseline.TotalSize {
		return fail("suggested order lays out to %d bytes, expected %d", tl.TotalSize, best.size)
	}
	return nil
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// permute calls fn with every permutation of a (Heap's algorithm) until fn
// returns false. a is modified in place.
func permute(a []int, fn func([]int) bool) {
	c := make([]int, len(a))
	if !fn(a) {
		return
	}
	for i := 0; i < len(a); {
		if c[i] < i {
			if i%2 == 0 {
				a[0], a[i] = a[i], a[0]
			} else {
				a[c[i]], a[i] = a[i], a[c[i]]
			}
			if !fn(a) {
				return
			}
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
}
