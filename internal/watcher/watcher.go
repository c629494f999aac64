// Package watcher re-indexes a directory when its contents change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/findex/internal/indexer"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is used when no debounce interval is configured.
const DefaultDebounce = 2 * time.Second

// Indexer is the subset of the indexer service the watcher drives.
type Indexer interface {
	Index(ctx context.Context, opts indexer.IndexOptions) (*indexer.IndexResult, error)
}

// Options configures a directory watcher.
type Options struct {
	// Collection receives the re-indexed records.
	Collection string

	// Directory is the root to watch.
	Directory string

	// Recursive watches subdirectories as well.
	Recursive bool

	// ExcludeDirs are directory names skipped while watching and
	// indexing.
	ExcludeDirs []string

	// Debounce is how long to wait after the last event before
	// re-indexing. Zero selects DefaultDebounce.
	Debounce time.Duration
}

// Watcher observes a directory tree and triggers a full re-index after
// changes settle.
type Watcher struct {
	opts    Options
	indexer Indexer
	watcher *fsnotify.Watcher
	exclude map[string]struct{}
	stop    chan struct{}
	done    chan struct{}
	logger  *zap.Logger
}

// New creates a watcher over the directory in opts.
func New(opts Options, idx Indexer, logger *zap.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	exclude := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, name := range opts.ExcludeDirs {
		exclude[name] = struct{}{}
	}

	return &Watcher{
		opts:    opts,
		indexer: idx,
		watcher: fsw,
		exclude: exclude,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger,
	}, nil
}

// Start registers the directory tree and begins processing events in a
// background goroutine. Call Stop to clean up.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.opts.Directory); err != nil {
		return err
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
		<-w.done
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			// New subdirectories need their own watch.
			if w.opts.Recursive && event.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					_ = w.addTree(event.Name)
				}
			}

			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reindex(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) reindex(ctx context.Context) {
	result, err := w.indexer.Index(ctx, indexer.IndexOptions{
		Collection:  w.opts.Collection,
		Directory:   w.opts.Directory,
		Recursive:   w.opts.Recursive,
		ClearFirst:  true,
		ExcludeDirs: w.opts.ExcludeDirs,
	})
	if err != nil {
		w.logger.Error("re-index failed",
			zap.String("collection", w.opts.Collection),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("re-indexed after change",
		zap.String("collection", result.Collection),
		zap.Int("files", result.FilesIndexed),
	)
}

// relevant filters out events within excluded directories.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.opts.Directory, event.Name)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, skip := w.exclude[part]; skip {
			return false
		}
	}
	return true
}

// addTree registers dir, and its subdirectories when recursive.
func (w *Watcher) addTree(dir string) error {
	if !w.opts.Recursive {
		return w.watcher.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir {
			if _, skip := w.exclude[d.Name()]; skip {
				return fs.SkipDir
			}
		}
		return w.watcher.Add(path)
	})
}
