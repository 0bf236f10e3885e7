package pipeline

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"unitgen/internal/logging"
)

// debounceWindow suppresses duplicate events from editors that write a
// file several times in quick succession.
const debounceWindow = 500 * time.Millisecond

// Watcher regenerates test files whenever a watched Python source changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	pipeline *Pipeline
	reporter Reporter
	lastSeen map[string]time.Time
}

// NewWatcher watches the given files or directories. Directories are
// watched non-recursively; subdirectories found at setup time are added.
func NewWatcher(p *Pipeline, paths []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		pipeline: p,
		reporter: p.opts.Reporter,
		lastSeen: make(map[string]time.Time),
	}

	for _, path := range paths {
		if err := w.addTree(path); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(d.Name()) && path != root {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Run blocks, processing change events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	log := logging.Get(logging.CategoryWatch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if !isSourceFile(event.Name) {
				continue
			}
			if last, seen := w.lastSeen[event.Name]; seen && time.Since(last) < debounceWindow {
				continue
			}
			w.lastSeen[event.Name] = time.Now()

			log.Info("change detected: %s", event.Name)
			w.reporter.Info("regenerating tests for %s", filepath.Base(event.Name))
			if _, err := w.pipeline.ProcessFile(ctx, event.Name); err != nil {
				w.reporter.Warn("regeneration failed for %s: %v", event.Name, err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error: %v", err)
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
