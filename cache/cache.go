package cache

import (
	"context"
	"fmt"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/structsight/analyzer"
)

// DefaultTTL is how long a result stays fresh.
const DefaultTTL = 30 * time.Second

// Runner is anything that can run an analysis request.
type Runner interface {
	Analyze(ctx context.Context, req analyzer.Request) analyzer.Result
}

// Key identifies a cached result.
type Key struct {
	Document    string
	Fingerprint string
	TypeName    string
	Arch        string
	Compiler    string
}

// String encodes k with every field quoted, so distinct keys never share
// a string.
func (k Key) String() string {
	return fmt.Sprintf("%q %q %q %q %q", k.Document, k.Fingerprint, k.TypeName, k.Arch, k.Compiler)
}

// KeyOf returns the cache key of req.
func KeyOf(req analyzer.Request) Key {
	return Key{
		Document:    req.FilePath,
		Fingerprint: Fingerprint(req.SourceCode, req.CompileFlags),
		TypeName:    req.TypeName,
		Arch:        strings.ToLower(req.Architecture),
		Compiler:    strings.ToLower(req.Compiler),
	}
}

// Fingerprint hashes source text together with the compile flags that can
// change its layout.
func Fingerprint(text string, flags []string) string {
	h := sha256.New()
	h.Write([]byte(text))
	for _, f := range flags {
		h.Write([]byte{0})
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

type entry struct {
	at  time.Time
	res analyzer.Result
}

// Cache wraps a Runner with TTL memoization. It is safe for concurrent use.
type Cache struct {
	next Runner
	ttl  time.Duration
	now  func() time.Time
	log  *zap.Logger

	mu      sync.RWMutex
	entries map[Key]entry
	sf      singleflight.Group

	hits, misses uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the freshness window. Non-positive values are ignored.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(next Runner, opts ...Option) *Cache {
	c := &Cache{
		next:    next,
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     zap.NewNop(),
		entries: make(map[Key]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze returns a fresh cached result for req or runs it. Concurrent
// requests for the same key share one run, which is not tied to any one
// caller's context: a caller whose ctx ends first gets a canceled result
// while the others still receive the full one. Failed and canceled
// analyses are not stored.
func (c *Cache) Analyze(ctx context.Context, req analyzer.Request) analyzer.Result {
	if ctx.Err() != nil {
		return analyzer.CanceledResult()
	}
	key := KeyOf(req)

	c.mu.RLock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.at) < c.ttl {
		c.mu.RUnlock()
		c.count(true)
		c.log.Debug("cache hit", zap.String("document", key.Document), zap.String("type", key.TypeName))
		return e.res
	}
	c.mu.RUnlock()
	c.count(false)

	flight := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key.String(), func() (any, error) {
		// a flight that finished between the lookup above and now
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.now().Sub(e.at) < c.ttl {
			return e.res, nil
		}
		res := c.next.Analyze(flight, req)
		if cacheable(res) {
			c.mu.Lock()
			c.entries[key] = entry{at: c.now(), res: res}
			c.mu.Unlock()
		}
		return res, nil
	})

	select {
	case r := <-ch:
		if r.Shared {
			c.log.Debug("shared in-flight analysis", zap.String("document", key.Document))
		}
		return r.Val.(analyzer.Result)
	case <-ctx.Done():
		c.log.Debug("caller left in-flight analysis", zap.String("document", key.Document), zap.Error(ctx.Err()))
		return analyzer.CanceledResult()
	}
}

func cacheable(res analyzer.Result) bool {
	return res.Success && !res.Canceled()
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

// InvalidateDocument drops every entry for the document at path and
// returns how many were removed.
func (c *Cache) InvalidateDocument(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if k.Document == path {
			delete(c.entries, k)
			n++
		}
	}
	if n > 0 {
		c.log.Debug("invalidated document", zap.String("document", path), zap.Int("entries", n))
	}
	return n
}

// Purge removes expired entries.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.at) >= c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Stats reports cache activity.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
