package layout

import "fmt"

// DefaultCacheLine is the cache line size assumed when none is configured.
const DefaultCacheLine = 64

// CacheLineHints reports members smaller than a cache line that straddle a
// line boundary when the record starts on one. Hints do not change the
// layout and save no bytes.
func CacheLineHints(tl *TypeLayout, lineSize uint64) []Hint {
	if lineSize == 0 {
		lineSize = DefaultCacheLine
	}
	var hints []Hint
	for _, m := range tl.Members {
		if m.IsBitfield || m.Size == 0 || m.Size >= lineSize {
			continue
		}
		first := m.Offset / lineSize
		last := (m.Offset + m.Size - 1) / lineSize
		if first == last {
			continue
		}
		hints = append(hints, Hint{
			Member: m.Name,
			Offset: m.Offset,
			Size:   m.Size,
			Description: fmt.Sprintf("member '%s' [%d,%d) spans cache lines %d-%d of %d bytes",
				m.Name, m.Offset, m.Offset+m.Size, first, last, lineSize),
		})
	}
	return hints
}
