package structsight

import (
	"context"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/analyzer"
	"github.com/wippyai/structsight/extract/cxx"
	"github.com/wippyai/structsight/extract/wit"
)

// Analyze runs req against C/C++ source with default options.
func Analyze(ctx context.Context, req analyzer.Request) analyzer.Result {
	return analyzer.New(cxx.New()).Analyze(ctx, req)
}

// AnalyzeWIT runs req against WIT JSON with default options.
func AnalyzeWIT(ctx context.Context, req analyzer.Request) analyzer.Result {
	return analyzer.New(wit.New()).Analyze(ctx, req)
}

// AllProfiles analyzes the same request under every supported profile,
// in profile order.
func AllProfiles(ctx context.Context, req analyzer.Request) []analyzer.Result {
	a := analyzer.New(cxx.New())
	var out []analyzer.Result
	for _, p := range abi.Profiles() {
		r := req
		r.Architecture, r.Compiler = p.Arch.String(), p.Dialect.String()
		out = append(out, a.Analyze(ctx, r))
	}
	return out
}
