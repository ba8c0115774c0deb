package decl

import "context"

// Source is the input handed to a declaration extractor.
type Source struct {
	Path  string
	Text  string
	Flags []string
}

// Extractor turns source text into record declarations. Implementations
// return every complete record they find, nested ones included, in source
// order; records declared at namespace scope have TopLevel set. A failure
// to understand the source is reported as an error and is fatal for the
// request.
type Extractor interface {
	Extract(ctx context.Context, src Source) ([]*Record, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, src Source) ([]*Record, error)

func (f ExtractorFunc) Extract(ctx context.Context, src Source) ([]*Record, error) {
	return f(ctx, src)
}

// Static returns an extractor that always yields recs, for callers that
// already hold declarations.
func Static(recs ...*Record) Extractor {
	return ExtractorFunc(func(context.Context, Source) ([]*Record, error) {
		return recs, nil
	})
}
