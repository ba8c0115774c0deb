package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/structsight/analyzer"
	"github.com/wippyai/structsight/layout"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 80

// TextOptions controls text rendering.
type TextOptions struct {
	Color bool
	Width int
}

// TerminalOptions inspects f and enables color and the terminal width when
// it is a terminal.
func TerminalOptions(f *os.File) TextOptions {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return TextOptions{Width: DefaultWidth}
	}
	opts := TextOptions{Color: true, Width: DefaultWidth}
	if w, _, err := term.GetSize(fd); err == nil && w > 20 {
		opts.Width = w
	}
	return opts
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	memberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	paddingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	suggestStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type painter struct {
	color bool
}

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// region is one row of the memory map.
type region struct {
	offset, size uint64
	kind         byte // strip glyph: m, b, v, B or .
	label        string
	typ          string
	padding      bool
	bits         string
}

func regions(tl *layout.TypeLayout) []region {
	var out []region
	if tl.VTable != nil && !tl.VTable.Inherited {
		out = append(out, region{offset: tl.VTable.PointerOffset, size: tl.VTable.PointerSize, kind: 'v', label: "<vptr>", typ: "void*"})
	}
	for _, b := range tl.Bases {
		label := "<base " + b.Name + ">"
		if b.Virtual {
			label = "<virtual base " + b.Name + ">"
		}
		out = append(out, region{offset: b.Offset, size: b.Size, kind: 'B', label: label})
	}
	for _, m := range tl.Members {
		if m.IsBitfield {
			name := m.Name
			if name == "" {
				name = "<unnamed>"
			}
			out = append(out, region{offset: m.Offset, size: m.Size, kind: 'b', label: name, typ: m.Type,
				bits: fmt.Sprintf(":%d @bit %d", m.BitWidth, m.BitOffset)})
			continue
		}
		out = append(out, region{offset: m.Offset, size: m.Size, kind: 'm', label: m.Name, typ: m.Type})
	}
	for _, p := range tl.Padding {
		out = append(out, region{offset: p.Offset, size: p.Size, kind: '.', label: "<" + p.Reason + ">", padding: true})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	return out
}

// Text writes a memory map for every layout in res, then its diagnostics.
func Text(w io.Writer, res analyzer.Result, opts TextOptions) error {
	p := painter{color: opts.Color}
	var b strings.Builder

	if !res.Success {
		fmt.Fprintf(&b, "%s %s\n", p.paint(paddingStyle, "error:"), res.ErrorMessage)
		_, err := io.WriteString(w, b.String())
		return err
	}

	for i, tl := range res.Layouts {
		if i > 0 {
			b.WriteString("\n")
		}
		writeLayout(&b, tl, p, opts.Width)
	}
	if len(res.Layouts) == 0 {
		b.WriteString(p.paint(dimStyle, "no layouts") + "\n")
	}
	if res.ErrorMessage != "" {
		fmt.Fprintf(&b, "\n%s %s\n", p.paint(paddingStyle, "skipped:"), res.ErrorMessage)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(&b, "%s %s\n", p.paint(dimStyle, "note:"), d)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeLayout(b *strings.Builder, tl *layout.TypeLayout, p painter, width int) {
	title := fmt.Sprintf("%s %s", tl.Kind, tl.QualifiedName)
	b.WriteString(p.paint(titleStyle, title))
	fmt.Fprintf(b, " %s  size %d  align %d  padding %d (%.1f%%)\n\n",
		p.paint(dimStyle, tl.Profile), tl.TotalSize, tl.Alignment,
		tl.PaddingBytes(), percent(tl.PaddingBytes(), tl.TotalSize))

	digits := len(fmt.Sprint(tl.TotalSize))
	for _, r := range regions(tl) {
		span := fmt.Sprintf("%*d..%-*d", digits, r.offset, digits, r.offset+r.size)
		switch {
		case r.padding:
			fmt.Fprintf(b, "  %s  %s  %d\n", span, p.paint(paddingStyle, r.label), r.size)
		case r.bits != "":
			fmt.Fprintf(b, "  %s  %s %s%s\n", span, p.paint(memberStyle, r.label), p.paint(typeStyle, r.typ), r.bits)
		default:
			line := fmt.Sprintf("  %s  %s", span, p.paint(memberStyle, r.label))
			if r.typ != "" {
				line += " " + p.paint(typeStyle, r.typ)
			}
			fmt.Fprintf(b, "%s  %d\n", line, r.size)
		}
	}

	b.WriteString("\n")
	writeStrip(b, tl, p, width)

	if tl.VTable != nil && len(tl.VTable.VirtualFunctions) > 0 {
		fmt.Fprintf(b, "\n  virtual: %s\n", strings.Join(tl.VTable.VirtualFunctions, ", "))
	}
	for _, s := range tl.Suggestions {
		fmt.Fprintf(b, "\n  %s %s\n    order: %s\n",
			p.paint(suggestStyle, fmt.Sprintf("save %d bytes (confidence %.1f):", s.BytesSaved, s.Confidence)),
			s.Description, strings.Join(s.SuggestedOrder, ", "))
	}
	for _, h := range tl.Hints {
		fmt.Fprintf(b, "  %s %s\n", p.paint(dimStyle, "hint:"), h.Description)
	}
}

// MaxStripBytes is the largest record whose strip is drawn one glyph per
// byte. Larger records get one line per run of equal glyphs.
const MaxStripBytes = 4096

// writeStrip draws one glyph per byte, wrapped to width: '#' data,
// 'v' vptr, 'B' base, 'b' bitfield storage, '.' padding.
func writeStrip(b *strings.Builder, tl *layout.TypeLayout, p painter, width int) {
	if tl.TotalSize == 0 {
		return
	}
	if tl.TotalSize > MaxStripBytes {
		writeRuns(b, tl, p)
		return
	}
	glyphs := make([]byte, tl.TotalSize)
	for i := range glyphs {
		glyphs[i] = '?'
	}
	for _, r := range regions(tl) {
		for i := r.offset; i < r.offset+r.size && i < tl.TotalSize; i++ {
			glyphs[i] = glyph(r)
		}
	}

	perLine := max(8, (width-12)/8*8)
	for start := uint64(0); start < tl.TotalSize; start += uint64(perLine) {
		end := min(start+uint64(perLine), tl.TotalSize)
		fmt.Fprintf(b, "  %6d  ", start)
		for _, g := range glyphs[start:end] {
			if g == '.' {
				b.WriteString(p.paint(paddingStyle, "."))
			} else {
				b.WriteByte(g)
			}
		}
		b.WriteString("\n")
	}
}

type run struct {
	offset, size uint64
	glyph        byte
}

// writeRuns draws the strip of a large record as "offset glyph x count"
// lines, one per run of equal glyphs. Bytes claimed by an earlier region
// are not drawn again.
func writeRuns(b *strings.Builder, tl *layout.TypeLayout, p painter) {
	var runs []run
	add := func(offset, size uint64, g byte) {
		if size == 0 {
			return
		}
		if n := len(runs); n > 0 && runs[n-1].glyph == g && runs[n-1].offset+runs[n-1].size == offset {
			runs[n-1].size += size
			return
		}
		runs = append(runs, run{offset: offset, size: size, glyph: g})
	}

	var cursor uint64
	for _, r := range regions(tl) {
		start, end := max(r.offset, cursor), min(r.offset+r.size, tl.TotalSize)
		if start >= end {
			continue
		}
		add(cursor, start-cursor, '?')
		add(start, end-start, glyph(r))
		cursor = end
	}
	add(cursor, tl.TotalSize-cursor, '?')

	for _, r := range runs {
		g := string(r.glyph)
		if r.glyph == '.' {
			g = p.paint(paddingStyle, g)
		}
		fmt.Fprintf(b, "  %6d  %s x %d\n", r.offset, g, r.size)
	}
}

func glyph(r region) byte {
	if r.kind == 'm' {
		return '#'
	}
	return r.kind
}

func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
