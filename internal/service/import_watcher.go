package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultImportDebounce is how long a file must stay quiet before it is imported.
const DefaultImportDebounce = 500 * time.Millisecond

// ImportWatcher imports *.json document files from a directory, once at
// start and again whenever a file is written.
type ImportWatcher struct {
	documents *DocumentService
	dir       string
	debounce  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewImportWatcher(documents *DocumentService, dir string, logger *zap.Logger) *ImportWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportWatcher{
		documents: documents,
		dir:       dir,
		debounce:  DefaultImportDebounce,
		logger:    logger.Named("import"),
		timers:    make(map[string]*time.Timer),
	}
}

// SetDebounce changes the quiet period. Call before Start.
func (w *ImportWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

func isDocumentFile(path string) bool {
	base := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}

// ImportExisting imports every document file already in the directory and
// returns how many succeeded. Failures are logged and skipped.
func (w *ImportWatcher) ImportExisting(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("read import dir: %w", err)
	}
	imported := 0
	for _, e := range entries {
		if e.IsDir() || !isDocumentFile(e.Name()) {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if _, err := w.documents.ImportFile(ctx, path); err != nil {
			w.logger.Warn("import_failed", zap.String("path", path), zap.Error(err))
			continue
		}
		imported++
	}
	return imported, nil
}

// Start imports the existing files and then watches the directory until Stop
// is called or ctx is cancelled.
func (w *ImportWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create import dir: %w", err)
	}
	n, err := w.ImportExisting(ctx)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.watcher = watcher
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx, watcher)

	w.logger.Info("import_watcher_started", zap.String("dir", w.dir), zap.Int("imported", n))
	return nil
}

func (w *ImportWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isDocumentFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("import_watcher_error", zap.Error(err))
		}
	}
}

// schedule (re)arms the debounce timer of one file.
func (w *ImportWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if _, err := w.documents.ImportFile(ctx, path); err != nil {
			w.logger.Warn("import_failed", zap.String("path", path), zap.Error(err))
		}
	})
}

// Stop stops watching and cancels pending imports.
func (w *ImportWatcher) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
