package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/structsight/analyzer"
	"github.com/wippyai/structsight/cache"
	"github.com/wippyai/structsight/config"
	"github.com/wippyai/structsight/decl"
	"github.com/wippyai/structsight/extract/cxx"
	"github.com/wippyai/structsight/extract/wit"
	"github.com/wippyai/structsight/layout"
	"github.com/wippyai/structsight/report"
)

func main() {
	var (
		typeName    = flag.String("type", "", "Analyze only this type (plain or qualified name)")
		arch        = flag.String("arch", "", "Target architecture: x86, x64, arm64 (default from STRUCTSIGHT_ARCH)")
		compiler    = flag.String("compiler", "", "Compiler ABI: clang, gcc, msvc (default from STRUCTSIGHT_COMPILER)")
		jsonOut     = flag.Bool("json", false, "Write a JSON report instead of the memory map")
		compFlags   = flag.String("flags", "", "Compile flags (space-separated, e.g. \"-fpack-struct=1 -DDEBUG\")")
		witInput    = flag.Bool("wit", false, "Treat input as WIT JSON (default for *.json files)")
		profiles    = flag.Bool("profiles", false, "List supported ABI profiles and exit")
		watch       = flag.Bool("watch", false, "Re-analyze files when they change")
		serve       = flag.Bool("serve", false, "Serve the HTTP API (address from STRUCTSIGHT_ADDR)")
		addr        = flag.String("addr", "", "Listen address for -serve")
		diff        = flag.Bool("diff", false, "Compare two JSON reports: -diff old.json new.json")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *arch != "" {
		cfg.Arch = *arch
	}
	if *compiler != "" {
		cfg.Compiler = *compiler
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	layout.SetLogger(log.Named("layout"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(cfg, log)
	opts := runOptions{
		typeName: *typeName,
		arch:     cfg.Arch,
		compiler: cfg.Compiler,
		flags:    strings.Fields(*compFlags),
		wit:      *witInput,
		json:     *jsonOut,
	}

	args := flag.Args()
	switch {
	case *profiles:
		err = listProfiles()
	case *diff:
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = runDiff(args[0], args[1])
	case *serve:
		err = a.serve(ctx)
	case len(args) == 0:
		usage()
		os.Exit(2)
	case *interactive:
		err = a.runInteractive(ctx, args[0], opts)
	case *watch:
		err = a.watch(ctx, args, opts)
	default:
		var ok bool
		ok, err = a.analyzeFiles(ctx, args, opts)
		if err == nil && !ok {
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: structsight [flags] <file>...")
	fmt.Fprintln(os.Stderr, "       structsight -profiles")
	fmt.Fprintln(os.Stderr, "       structsight -watch <file>...")
	fmt.Fprintln(os.Stderr, "       structsight -serve [-addr host:port]")
	fmt.Fprintln(os.Stderr, "       structsight -diff <old.json> <new.json>")
	fmt.Fprintln(os.Stderr, "       structsight -i <file>  (interactive mode)")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

type runOptions struct {
	typeName string
	arch     string
	compiler string
	flags    []string
	wit      bool
	json     bool
}

// app holds the long-lived pieces shared by every mode.
type app struct {
	cfg *config.Config
	log *zap.Logger
	cxx *cache.Cache
	wit *cache.Cache
}

func newApp(cfg *config.Config, log *zap.Logger) *app {
	analyzerOpts := []analyzer.Option{
		analyzer.WithWorkers(cfg.Workers),
		analyzer.WithCacheLine(cfg.CacheLine),
		analyzer.WithExhaustiveLimit(cfg.ExhaustiveLimit),
		analyzer.WithLogger(log.Named("analyzer")),
	}
	cached := func(ex decl.Extractor) *cache.Cache {
		return cache.New(analyzer.New(ex, analyzerOpts...),
			cache.WithTTL(cfg.CacheTTL),
			cache.WithLogger(log.Named("cache")))
	}
	return &app{
		cfg: cfg,
		log: log,
		cxx: cached(cxx.New(cxx.WithLogger(log.Named("cxx")))),
		wit: cached(wit.New(wit.WithLogger(log.Named("wit")))),
	}
}

func (a *app) runner(path string, forceWIT bool) *cache.Cache {
	if forceWIT || strings.EqualFold(filepath.Ext(path), ".json") {
		return a.wit
	}
	return a.cxx
}

func request(path, text string, opts runOptions) analyzer.Request {
	return analyzer.Request{
		SourceCode:   text,
		FilePath:     path,
		TypeName:     opts.typeName,
		Architecture: opts.arch,
		Compiler:     opts.compiler,
		CompileFlags: opts.flags,
	}
}

// analyzeFile reads and analyzes one file.
func (a *app) analyzeFile(ctx context.Context, path string, opts runOptions) (analyzer.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analyzer.Result{}, fmt.Errorf("read file: %w", err)
	}
	return a.runner(path, opts.wit).Analyze(ctx, request(path, string(data), opts)), nil
}

// analyzeFiles prints a report per file. It reports false when any
// analysis failed.
func (a *app) analyzeFiles(ctx context.Context, paths []string, opts runOptions) (bool, error) {
	ok := true
	textOpts := report.TerminalOptions(os.Stdout)
	for i, path := range paths {
		res, err := a.analyzeFile(ctx, path, opts)
		if err != nil {
			return false, err
		}
		ok = ok && res.Success

		if opts.json {
			if err := report.Write(os.Stdout, report.New(path, res)); err != nil {
				return false, err
			}
			continue
		}
		if len(paths) > 1 {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("== %s\n\n", path)
		}
		if err := report.Text(os.Stdout, res, textOpts); err != nil {
			return false, err
		}
	}
	return ok, nil
}

func listProfiles() error {
	for _, p := range profileList() {
		fmt.Printf("%-14s pointer %d  long %d  long double %d/%d  wchar_t %d  bitfields %s\n",
			p.Key, p.PointerSize, p.Long, p.LongDouble.Size, p.LongDouble.Align, p.WChar, p.Bitfields)
	}
	return nil
}

func runDiff(oldPath, newPath string) error {
	from, err := readReport(oldPath)
	if err != nil {
		return err
	}
	to, err := readReport(newPath)
	if err != nil {
		return err
	}
	return report.WriteDiff(os.Stdout, report.Diff(from, to))
}

func readReport(path string) (*report.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	r, err := report.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
