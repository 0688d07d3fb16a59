// Package watch delivers debounced batches of content changes. It backs
// the preview server's rebuild-on-save loop.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Options tunes a Watcher.
type Options struct {
	// Debounce is how long a path must stay quiet before it is reported.
	// Editors fire several events per save; one batch should come out.
	Debounce time.Duration

	// Extensions restricts reported files (with leading dot, lower case).
	// Empty accepts every non-hidden file.
	Extensions []string

	Logger *zap.Logger
}

const (
	defaultDebounce = 500 * time.Millisecond
	flushInterval   = 100 * time.Millisecond
)

// Stats tracks watcher activity, mostly for the status command and tests.
type Stats struct {
	Created       int
	Modified      int
	Removed       int
	Batches       int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches one or more directory trees and calls onChange with a
// sorted batch of settled paths.
type Watcher struct {
	mu       sync.Mutex
	fw       *fsnotify.Watcher
	roots    []string
	onChange func(paths []string)
	debounce time.Duration
	exts     map[string]bool
	log      *zap.Logger

	pending map[string]time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	closed  bool

	stats Stats
}

// New creates a watcher over the given roots. Roots that do not exist yet
// are skipped at Start with a warning. onChange runs on the watcher
// goroutine; a slow handler delays later batches, never drops them.
func New(roots []string, onChange func(paths []string), opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Watcher{
		fw:       fw,
		roots:    roots,
		onChange: onChange,
		debounce: opts.Debounce,
		exts:     exts,
		log:      opts.Logger.Named("watch"),
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start registers the roots and launches the event loop. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if _, err := os.Stat(root); err != nil {
			w.log.Warn("watch root missing, skipping", zap.String("dir", root))
			continue
		}
		if err := w.addTree(root); err != nil {
			return err
		}
	}

	go w.run(ctx)
	return nil
}

// Stop shuts the event loop down and waits for it to exit. Safe to call
// more than once, and on a watcher that never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	alreadyClosed := w.closed
	w.running = false
	w.closed = true
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if alreadyClosed {
		return
	}
	if err := w.fw.Close(); err != nil {
		w.log.Warn("watcher close", zap.Error(err))
	}
}

// Stats returns a copy of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// addTree registers dir and every non-hidden subdirectory.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			return err
		}
		w.log.Debug("watching", zap.String("dir", path))
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return
	}

	// New directories join the watch set so nested saves keep arriving.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn("watch new dir", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if len(w.exts) > 0 && !w.exts[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Op&fsnotify.Create != 0:
		w.stats.Created++
	case event.Op&fsnotify.Write != 0:
		w.stats.Modified++
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		w.stats.Removed++
	default:
		return // chmod and friends
	}

	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = time.Now()
	w.pending[event.Name] = time.Now()
}

// flush reports every pending path that has settled past the debounce
// window. The callback runs without the lock held.
func (w *Watcher) flush() {
	now := time.Now()

	w.mu.Lock()
	var batch []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			batch = append(batch, path)
			delete(w.pending, path)
		}
	}
	if len(batch) > 0 {
		w.stats.Batches++
	}
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	sort.Strings(batch)
	w.log.Debug("changes settled", zap.Int("count", len(batch)))
	if w.onChange != nil {
		w.onChange(batch)
	}
}
