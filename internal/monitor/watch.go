package monitor

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay is how long store writes must settle before a refresh.
const DefaultWatchDelay = 500 * time.Millisecond

// StoreWatcher calls onChange after writes to a SQLite database file or its
// WAL/journal companions settle, so other processes' task updates show up
// without waiting for the next tick.
type StoreWatcher struct {
	watcher  *fsnotify.Watcher
	base     string // database file name; companions share it as prefix
	onChange func()
	delay    time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool

	wg sync.WaitGroup
}

// WatchStore starts watching the directory holding dbPath. The watcher stops
// when ctx is done or Stop is called.
func WatchStore(ctx context.Context, dbPath string, delay time.Duration, onChange func()) (*StoreWatcher, error) {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(dbPath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &StoreWatcher{
		watcher:  watcher,
		base:     filepath.Base(dbPath),
		onChange: onChange,
		delay:    delay,
	}

	w.wg.Add(1)
	go w.eventLoop(ctx)

	return w, nil
}

// eventLoop processes filesystem events until the watcher closes or ctx is done.
func (w *StoreWatcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WARNING: store watch error: %v", err)

		case <-ctx.Done():
			w.Stop()
			return
		}
	}
}

// relevant reports whether an event touches the database or its companions.
func (w *StoreWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasPrefix(filepath.Base(event.Name), w.base)
}

// schedule (re)starts the settle timer.
func (w *StoreWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.fire)
}

func (w *StoreWatcher) fire() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()

	if !stopped {
		w.onChange()
	}
}

// Stop stops watching. It is safe to call more than once.
func (w *StoreWatcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	_ = w.watcher.Close()
}

// Wait blocks until the event loop has exited.
func (w *StoreWatcher) Wait() {
	w.wg.Wait()
}
