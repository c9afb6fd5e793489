package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// defaultDebounce is the coalescing window for bursts of filesystem events on
// the same file. Tests that care about timing should construct a Watcher
// directly with a shorter interval rather than depend on this value.
const defaultDebounce = 250 * time.Millisecond

// ChangeEvent reports that the named configuration file changed. Generation
// is a per-file monotonically increasing counter so a consumer can detect
// whether it has already processed the latest change.
type ChangeEvent struct {
	Kind       Kind
	Generation uint64
}

// Watcher observes the configuration directory for changes, coalesces bursts
// of filesystem events within a short window, and emits at most one event
// per affected file per window. It survives transient filesystem errors by
// re-arming the underlying watch.
type Watcher struct {
	dir       string
	debounce  time.Duration
	out       chan ChangeEvent

	mu         sync.Mutex
	generation map[Kind]uint64
	timers     map[Kind]*time.Timer

	watcher *fsnotify.Watcher
}

// NewWatcher creates a Watcher over dir using the default debounce window.
func NewWatcher(dir string) (*Watcher, error) {
	return NewWatcherWithDebounce(dir, defaultDebounce)
}

// NewWatcherWithDebounce creates a Watcher with an explicit debounce window.
func NewWatcherWithDebounce(dir string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		dir:        dir,
		debounce:   debounce,
		out:        make(chan ChangeEvent, 16),
		generation: make(map[Kind]uint64),
		timers:     make(map[Kind]*time.Timer),
		watcher:    fw,
	}, nil
}

// Events returns the channel on which coalesced change events are delivered.
func (w *Watcher) Events() <-chan ChangeEvent { return w.out }

// Run processes filesystem events until ctx is cancelled or Close is called.
// It re-arms the watch after transient errors rather than exiting.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("ConfigWatcher", "filesystem watch error: %v (re-arming)", err)
			if addErr := w.watcher.Add(w.dir); addErr != nil {
				logging.Warn("ConfigWatcher", "re-arming watch on %s failed: %v", w.dir, addErr)
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	kind, ok := kindForFile(ev.Name)
	if !ok {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[kind]; ok {
		t.Stop()
	}
	w.timers[kind] = time.AfterFunc(w.debounce, func() {
		w.emit(kind)
	})
}

func (w *Watcher) emit(kind Kind) {
	w.mu.Lock()
	w.generation[kind]++
	gen := w.generation[kind]
	delete(w.timers, kind)
	w.mu.Unlock()

	select {
	case w.out <- ChangeEvent{Kind: kind, Generation: gen}:
	default:
		logging.Warn("ConfigWatcher", "change event channel full, dropping event for %s generation %d", kind, gen)
	}
}

// Close stops the underlying filesystem watch and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func kindForFile(path string) (Kind, bool) {
	name := filepath.Base(path)
	for _, k := range []Kind{KindInstances, KindTools, KindPrompts, KindServer} {
		if name == k.FileName() {
			return k, true
		}
	}
	return "", false
}
