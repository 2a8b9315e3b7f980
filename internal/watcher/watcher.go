// Package watcher bridges fsnotify into typed notifications. Bursts of
// events for the same path are debounced, and identical events repeated
// inside the dedupe window are suppressed before anything is posted.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/observerkit/internal/cachemanager"
	"github.com/zjrosen/observerkit/internal/log"
	"github.com/zjrosen/observerkit/pkg/center"
	"github.com/zjrosen/observerkit/pkg/notify"
)

// ErrNoPaths is returned by New when Config.Paths is empty.
var ErrNoPaths = errors.New("watcher: no paths to watch")

// FileEvent describes one debounced change to a path.
type FileEvent struct {
	Path string
	Op   string
	At   time.Time
}

// FileChanged is posted for every FileEvent. Observe Watcher.Changes to
// scope delivery to a single watcher.
var FileChanged = notify.New[FileEvent, Watcher]("watcher.file-changed")

// Watcher monitors directories and posts FileChanged through a center.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	paths     []string
	debounce  time.Duration
	dedupe    time.Duration
	center    *center.Center
	seen      cachemanager.CacheManager[string, struct{}]

	done     chan struct{}
	stopOnce sync.Once
}

// Config holds watcher configuration options.
type Config struct {
	Paths        []string
	Debounce     time.Duration
	DedupeWindow time.Duration
	// Center receives posts. Nil uses center.Default().
	Center *center.Center
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(paths ...string) Config {
	return Config{
		Paths:        paths,
		Debounce:     100 * time.Millisecond,
		DedupeWindow: cachemanager.DefaultExpiration,
	}
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, ErrNoPaths
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	c := cfg.Center
	if c == nil {
		c = center.Default()
	}

	return &Watcher{
		fsWatcher: fsw,
		paths:     cfg.Paths,
		debounce:  cfg.Debounce,
		dedupe:    cfg.DedupeWindow,
		center:    c,
		seen:      cachemanager.NewInMemory[string, struct{}]("watcher-dedupe", cfg.DedupeWindow, cachemanager.DefaultCleanupInterval),
		done:      make(chan struct{}),
	}, nil
}

// Changes is FileChanged scoped to this watcher as sender.
func (w *Watcher) Changes() notify.Notification[FileEvent, Watcher] {
	return FileChanged.WithSender(w)
}

// Paths returns the watched paths.
func (w *Watcher) Paths() []string {
	return w.paths
}

// Start adds every configured path and begins posting changes. Posts carry
// ctx.
func (w *Watcher) Start(ctx context.Context) error {
	for _, p := range w.paths {
		if err := w.fsWatcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		log.Info(log.CatWatcher, "watching", "path", p)
	}

	go w.loop(ctx)

	return nil
}

// Stop terminates the watcher and releases resources. Safe to call more
// than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// loop processes file system events with debouncing.
func (w *Watcher) loop(ctx context.Context) {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = make(map[string]fsnotify.Op)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !isRelevantEvent(event) {
				continue
			}

			pending[event.Name] |= event.Op

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.flush(ctx, pending)
			pending = make(map[string]fsnotify.Op)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatcher, "fsnotify error", "error", err)

		case <-ctx.Done():
			_ = w.Stop()
			return

		case <-w.done:
			return
		}
	}
}

// flush posts pending events in path order, skipping duplicates seen inside
// the dedupe window.
func (w *Watcher) flush(ctx context.Context, pending map[string]fsnotify.Op) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	changes := w.Changes()
	for _, p := range paths {
		ev := FileEvent{Path: p, Op: pending[p].String(), At: time.Now()}
		if w.dedupe > 0 && !w.seen.Claim(ctx, ev.Path+"|"+ev.Op, struct{}{}, w.dedupe) {
			continue
		}
		log.Debug(log.CatWatcher, "posting change", "path", ev.Path, "op", ev.Op)
		changes.Post(ctx, ev, notify.WithCenter(w.center))
	}
}

// isRelevantEvent drops chmod-only events and editor swap files.
func isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	base := filepath.Base(event.Name)
	switch {
	case base == "4913", len(base) > 0 && base[len(base)-1] == '~':
		return false
	case filepath.Ext(base) == ".swp", filepath.Ext(base) == ".swx":
		return false
	}
	return true
}
