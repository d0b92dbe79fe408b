package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/syssam/aggregate/compiler/load"
)

// settle is the quiet period after the last change before run is called.
const settle = 100 * time.Millisecond

// watch calls run whenever a descriptor file below paths changes, until
// ctx is done. Failures of run are logged and do not stop the watch.
func watch(ctx context.Context, logger *slog.Logger, paths []string, run func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("aggregate: watch: %w", err)
	}
	defer w.Close()
	dirs := make(map[string]bool)
	for _, p := range paths {
		dir := p
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("aggregate: watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	logger.InfoContext(ctx, "watching descriptors", "paths", paths)

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, ok := load.FormatOf(ev.Name); !ok {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				logger.DebugContext(ctx, "descriptor changed", "file", ev.Name, "op", ev.Op.String())
				timer.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watch error", "error", err)
		case <-timer.C:
			if err := run(); err != nil {
				logger.ErrorContext(ctx, "generate failed", "error", err)
			}
		}
	}
}
