package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wippyai/structsight/analyzer"
)

type countingRunner struct {
	calls atomic.Int32
	res   analyzer.Result
	gate  chan struct{}
}

func (r *countingRunner) Analyze(ctx context.Context, req analyzer.Request) analyzer.Result {
	r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	return r.res
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func req(text string) analyzer.Request {
	return analyzer.Request{FilePath: "a.h", SourceCode: text, TypeName: "S", Architecture: "x64", Compiler: "clang"}
}

func TestCacheHitAndExpiry(t *testing.T) {
	r := &countingRunner{res: analyzer.Result{Success: true}}
	clk := &clock{t: time.Unix(1000, 0)}
	c := New(r, WithClock(clk.now), WithTTL(30*time.Second))

	ctx := context.Background()
	c.Analyze(ctx, req("struct S { int a; };"))
	c.Analyze(ctx, req("struct S { int a; };"))
	if got := r.calls.Load(); got != 1 {
		t.Fatalf("calls after hit: %d", got)
	}

	clk.advance(29 * time.Second)
	c.Analyze(ctx, req("struct S { int a; };"))
	if got := r.calls.Load(); got != 1 {
		t.Errorf("calls within ttl: %d", got)
	}

	clk.advance(time.Second)
	c.Analyze(ctx, req("struct S { int a; };"))
	if got := r.calls.Load(); got != 2 {
		t.Errorf("calls after expiry: %d", got)
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 2 || s.Entries != 1 {
		t.Errorf("stats: %+v", s)
	}
}

func TestCacheKeyedOnText(t *testing.T) {
	r := &countingRunner{res: analyzer.Result{Success: true}}
	c := New(r)
	ctx := context.Background()

	c.Analyze(ctx, req("struct S { int a; };"))
	c.Analyze(ctx, req("struct S { int a; char b; };"))
	if got := r.calls.Load(); got != 2 {
		t.Errorf("edited text must miss: %d calls", got)
	}

	other := req("struct S { int a; };")
	other.Architecture = "X64"
	c.Analyze(ctx, other)
	if got := r.calls.Load(); got != 2 {
		t.Errorf("architecture tags are case-insensitive: %d calls", got)
	}

	other.Compiler = "msvc"
	c.Analyze(ctx, other)
	if got := r.calls.Load(); got != 3 {
		t.Errorf("compiler is part of the key: %d calls", got)
	}
}

func TestCacheSkipsFailures(t *testing.T) {
	tests := []struct {
		name string
		res  analyzer.Result
	}{
		{"failure", analyzer.Result{ErrorMessage: "boom"}},
		{"canceled", analyzer.Result{Success: true, Diagnostics: []string{analyzer.CanceledDiagnostic}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRunner{res: tt.res}
			c := New(r)
			c.Analyze(context.Background(), req("x"))
			c.Analyze(context.Background(), req("x"))
			if got := r.calls.Load(); got != 2 {
				t.Errorf("calls: %d", got)
			}
		})
	}
}

func TestInvalidateDocument(t *testing.T) {
	r := &countingRunner{res: analyzer.Result{Success: true}}
	c := New(r)
	ctx := context.Background()

	a := req("x")
	b := req("x")
	b.TypeName = "T"
	other := req("x")
	other.FilePath = "b.h"
	c.Analyze(ctx, a)
	c.Analyze(ctx, b)
	c.Analyze(ctx, other)

	if n := c.InvalidateDocument("a.h"); n != 2 {
		t.Errorf("removed: %d", n)
	}
	c.Analyze(ctx, a)
	c.Analyze(ctx, other)
	if got := r.calls.Load(); got != 4 {
		t.Errorf("calls: %d", got)
	}
}

func TestPurge(t *testing.T) {
	r := &countingRunner{res: analyzer.Result{Success: true}}
	clk := &clock{t: time.Unix(0, 0)}
	c := New(r, WithClock(clk.now), WithTTL(time.Second))

	c.Analyze(context.Background(), req("x"))
	clk.advance(2 * time.Second)
	c.Analyze(context.Background(), req("y"))
	if n := c.Purge(); n != 1 {
		t.Errorf("purged: %d", n)
	}
	if s := c.Stats(); s.Entries != 1 {
		t.Errorf("entries: %d", s.Entries)
	}
}

func TestConcurrentRequestsShareAnalysis(t *testing.T) {
	r := &countingRunner{res: analyzer.Result{Success: true}, gate: make(chan struct{})}
	c := New(r)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Analyze(context.Background(), req("x"))
		}()
	}
	// let the first caller reach the runner before releasing it
	for r.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(r.gate)
	wg.Wait()

	if got := r.calls.Load(); got != 1 {
		t.Errorf("calls: %d", got)
	}
}

// slowRunner blocks until released and reports cancellation the way the
// analyzer does.
type slowRunner struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *slowRunner) Analyze(ctx context.Context, req analyzer.Request) analyzer.Result {
	r.once.Do(func() { close(r.started) })
	<-r.release
	if ctx.Err() != nil {
		return analyzer.CanceledResult()
	}
	return analyzer.Result{Success: true, Diagnostics: []string{"done"}}
}

func TestCallerCancellationIsNotShared(t *testing.T) {
	r := &slowRunner{started: make(chan struct{}), release: make(chan struct{})}
	c := New(r)

	ctxA, cancelA := context.WithCancel(context.Background())
	resA := make(chan analyzer.Result, 1)
	go func() { resA <- c.Analyze(ctxA, req("x")) }()
	<-r.started

	resB := make(chan analyzer.Result, 1)
	go func() { resB <- c.Analyze(context.Background(), req("x")) }()
	time.Sleep(10 * time.Millisecond)

	cancelA()
	if a := <-resA; !a.Canceled() {
		t.Errorf("canceled caller: %+v", a)
	}

	close(r.release)
	b := <-resB
	if !b.Success || b.Canceled() {
		t.Errorf("live caller got %+v", b)
	}
	if s := c.Stats(); s.Entries != 1 {
		t.Errorf("entries: %d", s.Entries)
	}
}

func TestAnalyzeWithDoneContext(t *testing.T) {
	r := &countingRunner{res: analyzer.Result{Success: true}}
	c := New(r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if res := c.Analyze(ctx, req("x")); !res.Canceled() {
		t.Errorf("result: %+v", res)
	}
	if got := r.calls.Load(); got != 0 {
		t.Errorf("calls: %d", got)
	}
}

func TestKeyStringIsUnambiguous(t *testing.T) {
	a := Key{Document: "a|b", Fingerprint: "f"}
	b := Key{Document: "a", Fingerprint: "b|f"}
	if a.String() == b.String() {
		t.Errorf("keys collide: %s", a.String())
	}
	c := Key{Document: `a" "b`}
	d := Key{Document: "a", Fingerprint: "b"}
	if c.String() == d.String() {
		t.Errorf("keys collide: %s", c.String())
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("a", nil) == Fingerprint("b", nil) {
		t.Error("text must change the fingerprint")
	}
	if Fingerprint("a", []string{"-fpack-struct=1"}) == Fingerprint("a", nil) {
		t.Error("flags must change the fingerprint")
	}
	if Fingerprint("a", []string{"x", "y"}) == Fingerprint("a", []string{"xy"}) {
		t.Error("flag boundaries must be preserved")
	}
}
