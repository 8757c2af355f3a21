package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadedEvent represents a policy document reload attempt
type ReloadedEvent struct {
	Timestamp time.Time
	Error     error
}

// FileWatcher monitors the policy document file and swaps a fresh snapshot
// into the store when it changes. A reload that fails validation leaves the
// previous snapshot in place.
type FileWatcher struct {
	watcher         *fsnotify.Watcher
	documentPath    string
	loader          *Loader
	store           Store
	logger          *zap.Logger
	debounceTimeout time.Duration
	debounceTimer   *time.Timer
	eventChan       chan ReloadedEvent
	mu              sync.Mutex
	isWatching      bool
}

// NewFileWatcher creates a file watcher for the policy document
func NewFileWatcher(documentPath string, store Store, loader *Loader, logger *zap.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:         watcher,
		documentPath:    documentPath,
		loader:          loader,
		store:           store,
		logger:          logger,
		debounceTimeout: 500 * time.Millisecond,
		eventChan:       make(chan ReloadedEvent, 10),
	}, nil
}

// Watch starts watching the policy document for changes
func (fw *FileWatcher) Watch(ctx context.Context) error {
	fw.mu.Lock()
	if fw.isWatching {
		fw.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	fw.isWatching = true
	fw.mu.Unlock()

	// Watch the directory: editors replace files rather than rewrite them,
	// so watching the path directly would lose the watch on the first save.
	if err := fw.watcher.Add(filepath.Dir(fw.documentPath)); err != nil {
		fw.mu.Lock()
		fw.isWatching = false
		fw.mu.Unlock()
		return fmt.Errorf("failed to add path to watcher: %w", err)
	}

	fw.logger.Info("Starting policy document watcher",
		zap.String("file", fw.documentPath),
		zap.Duration("debounce", fw.debounceTimeout),
	)

	go fw.watchLoop(ctx)
	return nil
}

// Events returns the channel of reload events
func (fw *FileWatcher) Events() <-chan ReloadedEvent {
	return fw.eventChan
}

// Stop stops the watcher
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.isWatching {
		return nil
	}
	fw.isWatching = false
	return fw.watcher.Close()
}

// watchLoop processes file system events with debouncing
func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			fw.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(fw.documentPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.scheduleReload()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// scheduleReload coalesces bursts of file events into a single reload
func (fw *FileWatcher) scheduleReload() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debounceTimeout, fw.reload)
}

func (fw *FileWatcher) reload() {
	doc, err := fw.loader.LoadDocument(fw.documentPath)
	if err == nil {
		err = fw.store.Replace(doc)
	}

	if err != nil {
		fw.logger.Error("Policy document reload failed, keeping previous snapshot",
			zap.String("file", fw.documentPath),
			zap.Error(err),
		)
	} else {
		fw.logger.Info("Policy document reloaded", zap.String("file", fw.documentPath))
	}

	select {
	case fw.eventChan <- ReloadedEvent{Timestamp: time.Now(), Error: err}:
	default:
	}
}
