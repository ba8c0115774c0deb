package analyzer

import (
	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/layout"
)

// Defaults applied when a request leaves the profile tags empty.
const (
	DefaultArch     = "x64"
	DefaultCompiler = "clang"
)

// Request names the source unit and profile to analyze.
type Request struct {
	SourceCode   string   `json:"sourceCode"`
	FilePath     string   `json:"filePath"`
	TypeName     string   `json:"structName,omitempty"`
	Architecture string   `json:"architecture"`
	Compiler     string   `json:"compiler"`
	CompileFlags []string `json:"compileFlags,omitempty"`
}

// Result is the envelope returned for every request.
type Result struct {
	Success      bool                 `json:"success"`
	ErrorMessage string               `json:"errorMessage"`
	Layouts      []*layout.TypeLayout `json:"layouts"`
	Diagnostics  []string             `json:"diagnostics,omitempty"`
}

// CanceledDiagnostic closes the diagnostics of a result cut short by
// cancellation.
const CanceledDiagnostic = "analysis canceled"

// CanceledResult is what a caller that gave up before any layout was
// produced gets back.
func CanceledResult() Result {
	return Result{
		Success:     true,
		Layouts:     []*layout.TypeLayout{},
		Diagnostics: []string{CanceledDiagnostic},
	}
}

// Canceled reports whether r was cut short by cancellation.
func (r Result) Canceled() bool {
	for _, d := range r.Diagnostics {
		if d == CanceledDiagnostic {
			return true
		}
	}
	return false
}

// BinaryUsage reports whether a record's raw layout is relied upon outside
// the program, for example because it is serialized or shared with other
// binaries. Reordering such records is riskier.
type BinaryUsage interface {
	UsedInBinaryContext(rec *decl.Record) bool
}

// BinaryUsageFunc adapts a function to BinaryUsage.
type BinaryUsageFunc func(rec *decl.Record) bool

func (f BinaryUsageFunc) UsedInBinaryContext(rec *decl.Record) bool {
	return f(rec)
}
