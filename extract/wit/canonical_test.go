package wit

import (
	"testing"

	"go.bytecodealliance.org/wit"
)

func TestCanonical(t *testing.T) {
	point := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "x", Type: wit.U8{}},
		{Name: "y", Type: wit.U32{}},
		{Name: "z", Type: wit.U16{}},
	}}}

	tests := []struct {
		name  string
		typ   wit.Type
		size  uint64
		align uint64
	}{
		{"u8", wit.U8{}, 1, 1},
		{"s16", wit.S16{}, 2, 2},
		{"char", wit.Char{}, 4, 4},
		{"f64", wit.F64{}, 8, 8},
		{"string", wit.String{}, 8, 4},
		{"record", point, 12, 4},
		{"tuple", &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U8{}, wit.U64{}}}}, 16, 8},
		{"option", &wit.TypeDef{Kind: &wit.Option{Type: wit.U32{}}}, 8, 4},
		{"result", &wit.TypeDef{Kind: &wit.Result{OK: wit.U8{}, Err: wit.String{}}}, 12, 4},
		{"empty result", &wit.TypeDef{Kind: &wit.Result{}}, 1, 1},
		{"list", &wit.TypeDef{Kind: &wit.List{Type: point}}, 8, 4},
		{"enum", &wit.TypeDef{Kind: &wit.Enum{Cases: make([]wit.EnumCase, 300)}}, 2, 2},
		{"flags", &wit.TypeDef{Kind: &wit.Flags{Flags: make([]wit.Flag, 40)}}, 8, 8},
		{"many flags", &wit.TypeDef{Kind: &wit.Flags{Flags: make([]wit.Flag, 70)}}, 12, 4},
		{"own", &wit.TypeDef{Kind: &wit.Own{}}, 4, 4},
		{"variant", &wit.TypeDef{Kind: &wit.Variant{Cases: []wit.Case{
			{Name: "a", Type: wit.U64{}},
			{Name: "b"},
		}}}, 16, 8},
	}

	c := NewCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Canonical(tt.typ)
			if got.Size != tt.size || got.Align != tt.align {
				t.Errorf("got %d/%d, want %d/%d", got.Size, got.Align, tt.size, tt.align)
			}
		})
	}
}

func TestDiscriminantSize(t *testing.T) {
	tests := []struct {
		cases int
		want  uint64
	}{
		{1, 1}, {256, 1}, {257, 2}, {65536, 2}, {65537, 4},
	}
	for _, tt := range tests {
		if got := discriminantSize(tt.cases); got != tt.want {
			t.Errorf("discriminantSize(%d) = %d, want %d", tt.cases, got, tt.want)
		}
	}
}
