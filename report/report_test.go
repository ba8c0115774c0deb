package report

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/analyzer"
	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/errors"
	"github.com/wippyai/structsight/layout"
)

func analyze(t *testing.T, arch string, recs ...*decl.Record) analyzer.Result {
	t.Helper()
	res := analyzer.New(decl.Static(recs...)).Analyze(context.Background(), analyzer.Request{
		FilePath:     "test.h",
		Architecture: arch,
		Compiler:     "clang",
	})
	if !res.Success {
		t.Fatalf("analyze: %s", res.ErrorMessage)
	}
	return res
}

func padded() *decl.Record {
	return decl.NewRecord("Padded",
		decl.Field("a", decl.Fund(abi.Char)),
		decl.Field("b", decl.Fund(abi.Int)),
		decl.Field("c", decl.Fund(abi.Char)),
		decl.Field("d", decl.Fund(abi.Double)),
	)
}

func TestText(t *testing.T) {
	res := analyze(t, "x64", padded())

	var buf bytes.Buffer
	if err := Text(&buf, res, TextOptions{Width: 80}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"struct Padded",
		"x64-itanium",
		"size 24",
		"padding 10",
		"<alignment-gap>",
		"save 8 bytes",
		"order: d, b, a, c",
		"#...#####.......########",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("plain output should carry no escape codes")
	}
}

func TestTextStripWraps(t *testing.T) {
	big := decl.NewRecord("Big", decl.Field("buf", decl.Array(decl.Fund(abi.Char), 100)))
	res := analyze(t, "x64", big)

	var buf bytes.Buffer
	if err := Text(&buf, res, TextOptions{Width: 44}); err != nil {
		t.Fatal(err)
	}
	// (44-12)/8*8 = 32 bytes per strip line
	if !strings.Contains(buf.String(), "      32  ") || !strings.Contains(buf.String(), "      96  ####\n") {
		t.Errorf("strip not wrapped:\n%s", buf.String())
	}
}

func TestTextStripLargeRecord(t *testing.T) {
	huge := decl.NewRecord("Huge",
		decl.Field("buf", decl.Array(decl.Fund(abi.Char), 1<<50)),
		decl.Field("x", decl.Fund(abi.Int)),
	)
	res := analyze(t, "x64", huge)

	var buf bytes.Buffer
	if err := Text(&buf, res, TextOptions{Width: DefaultWidth}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "       0  # x 1125899906842628\n") {
		t.Errorf("large strip not collapsed:\n%s", buf.String())
	}
}

func TestTextStripRuns(t *testing.T) {
	tl := &layout.TypeLayout{
		Name: "Runs", QualifiedName: "Runs", Kind: "struct", TotalSize: MaxStripBytes + 8, Alignment: 8,
		Members: []layout.MemberLayout{
			{Name: "c", Type: "char", Offset: 0, Size: 1, Alignment: 1},
			{Name: "buf", Type: "long long[512]", Offset: 8, Size: MaxStripBytes, Alignment: 8},
		},
		Padding: []layout.PaddingRegion{{Offset: 1, Size: 7, Reason: "alignment-gap"}},
	}
	var buf bytes.Buffer
	if err := Text(&buf, analyzer.Result{Success: true, Layouts: []*layout.TypeLayout{tl}}, TextOptions{}); err != nil {
		t.Fatal(err)
	}
	want := "       0  # x 1\n       1  . x 7\n       8  # x 4096\n"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("runs:\n%s", buf.String())
	}
}

func TestTextFailure(t *testing.T) {
	var buf bytes.Buffer
	if err := Text(&buf, analyzer.Result{ErrorMessage: "test.h:1:1: expected ';'"}, TextOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "error: test.h:1:1: expected ';'\n" {
		t.Errorf("output: %q", got)
	}
}

func TestWriteRead(t *testing.T) {
	res := analyze(t, "x64", padded())

	var buf bytes.Buffer
	if err := Write(&buf, New("test.h", res)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"schemaVersion": "1.0.0"`) || !strings.Contains(buf.String(), `"layouts"`) {
		t.Errorf("encoded report:\n%s", buf.String())
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Source != "test.h" || len(got.Layouts) != 1 || got.Layouts[0].TotalSize != 24 {
		t.Errorf("decoded: %+v", got)
	}
}

func TestReadSchemaCheck(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"current", `{"schemaVersion":"1.0.0","success":true,"layouts":[]}`, false},
		{"minor bump", `{"schemaVersion":"1.4.2","success":true,"layouts":[]}`, false},
		{"major bump", `{"schemaVersion":"2.0.0","success":true}`, true},
		{"missing", `{"success":true}`, true},
		{"garbage", `{"schemaVersion":"one"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Read(strings.NewReader(tt.input))
			if tt.wantErr {
				if !stderrors.Is(err, errors.ErrIncompatibleSpec) {
					t.Errorf("got %v, want incompatible", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if r.Layouts == nil {
				t.Error("layouts should not be nil")
			}
		})
	}
}

func TestReadMalformed(t *testing.T) {
	if _, err := Read(strings.NewReader("{")); err == nil {
		t.Error("expected error")
	}
}

func TestDiff(t *testing.T) {
	before := New("a.h", analyze(t, "x64", padded(), decl.NewRecord("Gone", decl.Field("x", decl.Fund(abi.Int)))))

	reordered, err := padded().Reorder([]string{"d", "b", "a", "c"})
	if err != nil {
		t.Fatal(err)
	}
	fresh := decl.NewRecord("Fresh", decl.Field("y", decl.Fund(abi.Short)))
	after := New("a.h", analyze(t, "x64", reordered, fresh))

	changes := Diff(before, after)
	kinds := make(map[ChangeKind][]string)
	for _, c := range changes {
		kinds[c.Kind] = append(kinds[c.Kind], c.Type+": "+c.Detail)
	}

	if len(kinds[Added]) != 1 || !strings.HasPrefix(kinds[Added][0], "Fresh") {
		t.Errorf("added: %v", kinds[Added])
	}
	if len(kinds[Removed]) != 1 || !strings.HasPrefix(kinds[Removed][0], "Gone") {
		t.Errorf("removed: %v", kinds[Removed])
	}
	changed := strings.Join(kinds[Changed], "\n")
	for _, want := range []string{"size 24 -> 16 (-8)", "member d moved 16 -> 0", "padding 10 -> 2"} {
		if !strings.Contains(changed, want) {
			t.Errorf("changes missing %q:\n%s", want, changed)
		}
	}

	var buf bytes.Buffer
	if err := WriteDiff(&buf, changes); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "added   Fresh (x64-itanium): size 2") {
		t.Errorf("diff output:\n%s", buf.String())
	}
}

func TestDiffIdentical(t *testing.T) {
	r := New("a.h", analyze(t, "x64", padded()))
	if changes := Diff(r, r); len(changes) != 0 {
		t.Errorf("changes: %v", changes)
	}
	var buf bytes.Buffer
	_ = WriteDiff(&buf, nil)
	if buf.String() != "no layout changes\n" {
		t.Errorf("output: %q", buf.String())
	}
}
