package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/grepvec/grepvec/internal/config"
	"github.com/grepvec/grepvec/internal/loader"
)

// Watcher re-ingests the codebase when files change. Bursts of filesystem
// events (editor saves, git checkouts) are merged by a debounce window and
// resolved with one incremental run: unchanged fingerprints cost nothing,
// so a full re-sync per burst stays cheap.
type Watcher struct {
	root     string
	loader   *loader.Loader
	indexer  *Indexer
	log      *slog.Logger
	debounce time.Duration

	ignoreDirs map[string]struct{}
}

// NewWatcher creates a Watcher over the loader's root.
func NewWatcher(root string, ld *loader.Loader, idx *Indexer, cfg config.Loader, debounce time.Duration, log *slog.Logger) *Watcher {
	w := &Watcher{
		root:       root,
		loader:     ld,
		indexer:    idx,
		log:        log,
		debounce:   debounce,
		ignoreDirs: make(map[string]struct{}, len(cfg.IgnoreDirs)),
	}
	for _, d := range cfg.IgnoreDirs {
		w.ignoreDirs[d] = struct{}{}
	}
	return w
}

// Watch blocks until ctx is canceled, running an ingestion pass after each
// debounced burst of events.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}

	w.log.Info("watching for changes", "root", w.root, "debounce", w.debounce)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.skip(event.Name) {
				continue
			}
			// New directories need their own watches; fsnotify is not
			// recursive.
			if event.Op.Has(fsnotify.Create) {
				if err := w.addRecursive(fsw, event.Name); err != nil {
					w.log.Warn("failed to watch new path", "path", event.Name, "reason", err)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.sync(ctx); err != nil {
				return err
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("filesystem watcher error", "reason", err)
		}
	}
}

// sync runs one incremental ingestion pass over the whole root.
func (w *Watcher) sync(ctx context.Context) error {
	docs, err := w.loader.Load()
	if err != nil {
		w.log.Warn("reload failed", "reason", err)
		return nil
	}

	report, err := w.indexer.Ingest(ctx, docs)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			w.log.Warn("skipping sync, run already in progress")
			return nil
		}
		return err
	}

	if report.Inserted > 0 || report.Failed > 0 {
		w.log.Info("synced changes",
			"run_id", report.RunID,
			"inserted", report.Inserted,
			"skipped", report.Skipped,
			"failed", report.Failed)
	}
	return nil
}

// addRecursive watches path and, if it is a directory, every non-ignored
// directory beneath it.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The path may already be gone (temp files during saves).
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path {
			if _, ok := w.ignoreDirs[d.Name()]; ok {
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
		}
		return fsw.Add(p)
	})
}

// skip reports whether an event path lies under an ignored directory.
func (w *Watcher) skip(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, ok := w.ignoreDirs[part]; ok {
			return true
		}
		if part != "." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
