package wit

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/structsight/abi"
)

// Info is a canonical ABI size and alignment.
type Info struct {
	Size  uint64
	Align uint64
}

// discriminantSize returns the byte width of a variant or enum tag.
func discriminantSize(numCases int) uint64 {
	switch {
	case numCases <= 256:
		return 1
	case numCases <= 65536:
		return 2
	}
	return 4
}

// Calculator computes canonical ABI layouts, memoizing type definitions.
type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{cache: make(map[*wit.TypeDef]Info)}
}

// Canonical returns the canonical ABI layout of t.
func (c *Calculator) Canonical(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: 8, Align: 4} // ptr, len
	case *wit.TypeDef:
		return c.typeDef(typ)
	}
	return Info{Size: 0, Align: 1}
}

func (c *Calculator) typeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info
	switch kind := t.Kind.(type) {
	case *wit.Record:
		types := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			types[i] = f.Type
		}
		info = c.sequence(types)
	case *wit.Tuple:
		info = c.sequence(kind.Types)
	case *wit.Variant:
		types := make([]wit.Type, len(kind.Cases))
		for i, cs := range kind.Cases {
			types[i] = cs.Type
		}
		info = c.tagged(discriminantSize(len(kind.Cases)), types...)
	case *wit.Option:
		info = c.tagged(1, kind.Type)
	case *wit.Result:
		info = c.tagged(1, kind.OK, kind.Err)
	case *wit.Enum:
		size := discriminantSize(len(kind.Cases))
		info = Info{Size: size, Align: size}
	case *wit.Flags:
		info = flagsInfo(len(kind.Flags))
	case *wit.List:
		info = Info{Size: 8, Align: 4}
	case *wit.Own, *wit.Borrow:
		info = Info{Size: 4, Align: 4}
	case wit.Type:
		info = c.Canonical(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

// sequence lays out types one after another, as records and tuples are.
func (c *Calculator) sequence(types []wit.Type) Info {
	align, offset := uint64(1), uint64(0)
	for _, t := range types {
		l := c.Canonical(t)
		offset = abi.AlignUp(offset, l.Align)
		align = max(align, l.Align)
		offset += l.Size
	}
	return Info{Size: abi.AlignUp(offset, align), Align: align}
}

// tagged lays out a discriminant followed by the largest payload.
func (c *Calculator) tagged(disc uint64, payloads ...wit.Type) Info {
	align, size := disc, uint64(0)
	for _, t := range payloads {
		if t == nil {
			continue
		}
		l := c.Canonical(t)
		align = max(align, l.Align)
		size = max(size, l.Size)
	}
	return Info{Size: abi.AlignUp(abi.AlignUp(disc, align)+size, align), Align: align}
}

func flagsInfo(n int) Info {
	switch {
	case n == 0:
		return Info{Size: 0, Align: 1}
	case n <= 8:
		return Info{Size: 1, Align: 1}
	case n <= 16:
		return Info{Size: 2, Align: 2}
	case n <= 32:
		return Info{Size: 4, Align: 4}
	case n <= 64:
		return Info{Size: 8, Align: 8}
	}
	return Info{Size: uint64((n + 31) / 32 * 4), Align: 4}
}
