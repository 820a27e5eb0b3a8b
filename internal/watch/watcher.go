// Package watch rebuilds the dependency report when source files change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of filesystem change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one debounced filesystem event.
type Change struct {
	Path string    `json:"path"`
	Op   Op        `json:"op"`
	Time time.Time `json:"time"`
}

// Handler receives a deduplicated batch of changes after the debounce
// window closes.
type Handler func(changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for further events before flushing a
	// batch. Editors tend to emit several events per save.
	Debounce time.Duration
	// Excludes are directory names skipped at any depth.
	Excludes []string
	// Filter, when set, drops events whose path it rejects. Directories
	// are always admitted so new subtrees keep being watched.
	Filter func(path string) bool
	// BufferSize is the capacity of the internal event channel.
	BufferSize int
}

// DefaultOptions returns the defaults used by the CLI.
func DefaultOptions() Options {
	return Options{
		Debounce:   250 * time.Millisecond,
		Excludes:   []string{"node_modules", ".git", "__pycache__", "dist", "build", ".venv"},
		BufferSize: 1024,
	}
}

// Watcher watches a source tree recursively and delivers debounced,
// per-path-deduplicated change batches to a handler.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	excludes map[string]bool
	filter   func(string) bool

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a watcher rooted at root. Call Start to begin.
func NewWatcher(root string, handler Handler, opts *Options) (*Watcher, error) {
	options := DefaultOptions()
	if opts != nil {
		options = *opts
	}
	if options.Debounce <= 0 {
		options.Debounce = DefaultOptions().Debounce
	}
	if options.BufferSize <= 0 {
		options.BufferSize = DefaultOptions().BufferSize
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	excludes := make(map[string]bool, len(options.Excludes))
	for _, name := range options.Excludes {
		excludes[name] = true
	}

	return &Watcher{
		root:     filepath.Clean(root),
		fsw:      fsw,
		handler:  handler,
		debounce: options.Debounce,
		excludes: excludes,
		filter:   options.Filter,
		changes:  make(chan Change, options.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start watches root and all non-excluded subdirectories. Events are
// debounced and handed to the handler in batches until Stop is called
// or the context is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
	return err
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		// The root itself is never excluded, even if its own name matches.
		if path != root && w.excludes[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// excluded reports whether any path component under root is excluded.
func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for rel != "." && rel != "" && rel != string(filepath.Separator) {
		if w.excludes[filepath.Base(rel)] {
			return true
		}
		rel = filepath.Dir(rel)
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if w.excluded(event.Name) {
				continue
			}

			// New directories join the watch; their files arrive as
			// their own events.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.fsw.Add(event.Name)
					continue
				}
			}

			if w.filter != nil && !w.filter(event.Name) {
				continue
			}

			change := Change{
				Path: event.Name,
				Op:   convertOp(event.Op),
				Time: time.Now(),
			}

			select {
			case w.changes <- change:
			default:
				// Buffer full; the debouncer is behind, drop the event.
			}

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			deduped := dedupe(batch)
			if len(deduped) > 0 && w.handler != nil {
				w.handler(deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupe keeps the most recent change per path, preserving first-seen
// order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	result := make([]Change, 0, len(changes))

	for _, change := range changes {
		if idx, ok := seen[change.Path]; ok {
			result[idx] = change
		} else {
			seen[change.Path] = len(result)
			result = append(result, change)
		}
	}

	return result
}
