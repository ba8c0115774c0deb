package decl

import (
	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/errors"
)

// maxBitWidth bounds bitfield widths before a profile is known.
const maxBitWidth = 128

// Validate checks the structural well-formedness of r and the records it
// reaches: member types are present, bitfields are integral and no wider
// than their type, named members are unique, flexible arrays come last and
// the base graph is acyclic.
func Validate(r *Record) error {
	if r == nil {
		return errors.InvalidInput(errors.PhaseValidate, "nil record")
	}
	if err := checkBaseCycles(r, nil); err != nil {
		return err
	}

	var firstErr error
	r.Walk(func(rec *Record) {
		if firstErr != nil {
			return
		}
		firstErr = validateRecord(rec)
	})
	return firstErr
}

func validateRecord(r *Record) error {
	fail := func(path []string, format string, args ...any) error {
		return errors.New(errors.PhaseValidate, errors.KindInvalidInput).
			Record(r.DisplayName()).
			Path(path...).
			Detail(format, args...).
			Build()
	}

	if r.Pack != 0 && !abi.IsPowerOfTwo(r.Pack) {
		return fail(nil, "pack value %d is not a power of two", r.Pack)
	}
	if r.AlignAs != 0 && !abi.IsPowerOfTwo(r.AlignAs) {
		return fail(nil, "requested alignment %d is not a power of two", r.AlignAs)
	}

	seen := make(map[string]bool, len(r.Members))
	for i := range r.Members {
		m := &r.Members[i]
		path := []string{r.DisplayName(), m.Name}
		if m.Type == nil {
			return fail(path, "member has no type")
		}
		if m.Name != "" {
			if seen[m.Name] {
				return fail(path, "duplicate member %q", m.Name)
			}
			seen[m.Name] = true
		} else if !m.Bitfield {
			return fail(path, "only bitfields may be unnamed")
		}
		if m.AlignAs != 0 && !abi.IsPowerOfTwo(m.AlignAs) {
			return fail(path, "requested alignment %d is not a power of two", m.AlignAs)
		}
		if m.Bitfield {
			if m.Type.Kind != KindFundamental && m.Type.Kind != KindEnum || !m.Type.Fundamental.IsIntegral() {
				return fail(path, "bitfield of non-integral type %s", m.Type)
			}
			if m.BitWidth > maxBitWidth {
				return fail(path, "bitfield width %d is too large", m.BitWidth)
			}
			if m.BitWidth == 0 && m.Name != "" {
				return fail(path, "named bitfield has zero width")
			}
		}
		if m.IsFlexible() && i != len(r.Members)-1 {
			return fail(path, "flexible array member must be last")
		}
	}
	return nil
}

func checkBaseCycles(r *Record, stack []*Record) error {
	for _, s := range stack {
		if s == r {
			return errors.New(errors.PhaseValidate, errors.KindInvalidInput).
				Record(r.DisplayName()).
				Detail("record inherits from itself").
				Build()
		}
	}
	stack = append(stack, r)
	for _, b := range r.Bases {
		if b.Record == nil {
			return errors.New(errors.PhaseValidate, errors.KindInvalidInput).
				Record(r.DisplayName()).
				Detail("base %q is incomplete", b.Name).
				Build()
		}
		if err := checkBaseCycles(b.Record, stack); err != nil {
			return err
		}
	}
	return nil
}
