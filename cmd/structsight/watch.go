package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/structsight/report"
)

// settle is how long a file must stay quiet before it is re-analyzed.
// Editors often write a file in several steps.
const settle = 100 * time.Millisecond

// watch analyzes paths, then again whenever one of them changes, until ctx
// is canceled.
func (a *app) watch(ctx context.Context, paths []string, opts runOptions) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// watch directories: editors replace files by rename, which drops a
	// watch on the file itself
	watched := make(map[string]bool)
	abs := make(map[string]string, len(paths))
	for _, p := range paths {
		full, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		abs[full] = p
		dir := filepath.Dir(full)
		if !watched[dir] {
			if err := w.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			watched[dir] = true
		}
	}

	for _, p := range paths {
		a.reanalyze(ctx, p, opts)
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			p, tracked := abs[filepath.Clean(ev.Name)]
			if !tracked || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			a.cxx.InvalidateDocument(p)
			a.wit.InvalidateDocument(p)
			pending[p] = true
			timer.Reset(settle)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			for p := range pending {
				a.reanalyze(ctx, p, opts)
			}
			clear(pending)
		}
	}
}

func (a *app) reanalyze(ctx context.Context, path string, opts runOptions) {
	res, err := a.analyzeFile(ctx, path, opts)
	if err != nil {
		// the file may be mid-rename; the next event retries
		a.log.Warn("analysis skipped", zap.String("file", path), zap.Error(err))
		return
	}
	fmt.Printf("== %s (%s)\n\n", path, time.Now().Format(time.TimeOnly))
	if opts.json {
		_ = report.Write(os.Stdout, report.New(path, res))
		return
	}
	_ = report.Text(os.Stdout, res, report.TerminalOptions(os.Stdout))
	fmt.Println()
}
