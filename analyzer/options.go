package analyzer

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/wippyai/structsight/layout"
	"github.com/wippyai/structsight/optimizer"
)

type options struct {
	workers         int
	cacheLine       uint64
	exhaustiveLimit int
	binary          BinaryUsage
	logger          *zap.Logger
}

func defaultOptions() options {
	return options{
		workers:         runtime.GOMAXPROCS(0),
		cacheLine:       layout.DefaultCacheLine,
		exhaustiveLimit: optimizer.DefaultExhaustiveLimit,
		logger:          zap.NewNop(),
	}
}

// Option configures an Analyzer.
type Option func(*options)

// WithWorkers bounds the number of types analyzed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCacheLine sets the cache line size used for split-member hints.
func WithCacheLine(size uint64) Option {
	return func(o *options) {
		if size > 0 {
			o.cacheLine = size
		}
	}
}

// WithExhaustiveLimit sets the number of free blocks up to which the
// optimizer tries every permutation. A negative value disables it.
func WithExhaustiveLimit(n int) Option {
	return func(o *options) {
		o.exhaustiveLimit = n
	}
}

// WithBinaryUsage installs the detector that lowers suggestion confidence
// for records used in binary-compatible contexts.
func WithBinaryUsage(b BinaryUsage) Option {
	return func(o *options) {
		o.binary = b
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
