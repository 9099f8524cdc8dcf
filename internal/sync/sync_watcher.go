package sync

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lostsignal/bunnysync/internal/blob"
	"github.com/rjeczalik/notify"
)

const (
	DefaultWatchDebounce = 500 * time.Millisecond
	eventBufferSize      = 64
)

// FilterCallback returns true for root-relative paths whose events should be dropped.
type FilterCallback func(relPath string) bool

// FileWatcher turns bursts of filesystem events under a directory into single
// change signals. Events arriving within the debounce window of each other coalesce.
type FileWatcher struct {
	watchDir        string
	rawEvents       chan notify.EventInfo
	changes         chan struct{}
	done            chan struct{}
	wg              sync.WaitGroup
	debounceTimeout time.Duration
	ignoreCallback  FilterCallback
	stopOnce        sync.Once
}

func NewFileWatcher(watchDir string) *FileWatcher {
	return &FileWatcher{
		watchDir:        watchDir,
		changes:         make(chan struct{}, 1),
		done:            make(chan struct{}),
		debounceTimeout: DefaultWatchDebounce,
	}
}

func (fw *FileWatcher) SetDebounceTimeout(timeout time.Duration) {
	if timeout > 0 {
		fw.debounceTimeout = timeout
	}
}

// FilterPaths must be called before Start.
func (fw *FileWatcher) FilterPaths(callback FilterCallback) {
	fw.ignoreCallback = callback
}

func (fw *FileWatcher) Start(ctx context.Context) error {
	// tmp dirs on macos are symlinks and notify reports resolved paths
	dir, err := filepath.EvalSymlinks(fw.watchDir)
	if err != nil {
		return &ScanError{Path: fw.watchDir, Err: err}
	}
	fw.watchDir = dir

	slog.Info("file watcher start", "dir", fw.watchDir)

	fw.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	if err := notify.Watch(filepath.Join(fw.watchDir, "..."), fw.rawEvents, notify.All); err != nil {
		return err
	}

	fw.wg.Add(1)
	go fw.filterEvents(ctx)
	return nil
}

func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.done)
		if fw.rawEvents != nil {
			notify.Stop(fw.rawEvents)
		}
		fw.wg.Wait()
		slog.Debug("file watcher stopped")
	})
}

// Changes delivers one signal per settled burst of events. A pending signal
// absorbs later ones until it is received.
func (fw *FileWatcher) Changes() <-chan struct{} {
	return fw.changes
}

func (fw *FileWatcher) filterEvents(ctx context.Context) {
	defer fw.wg.Done()

	timer := time.NewTimer(fw.debounceTimeout)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.rawEvents:
			if !ok {
				return
			}
			if fw.shouldIgnore(event.Path()) {
				continue
			}
			slog.Debug("file watcher", "event", event.Event(), "path", event.Path())
			timer.Reset(fw.debounceTimeout)
		case <-timer.C:
			select {
			case fw.changes <- struct{}{}:
			default:
			}
		}
	}
}

func (fw *FileWatcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(fw.watchDir, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return true
	}

	if blob.IsTempName(rel) {
		return true
	}
	if fw.ignoreCallback != nil && fw.ignoreCallback(rel) {
		return true
	}
	return false
}

// Watch runs a sync now and again after every change signal until ctx is done.
// A failed run does not stop watching; the next change retries it.
func (se *SyncEngine) Watch(ctx context.Context, changes <-chan struct{}, onRun func(*SyncResult, error)) error {
	for {
		result, err := se.RunSync(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if onRun != nil {
			onRun(result, err)
		}
		if errors.Is(err, ErrSyncAlreadyRunning) {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		}
	}
}
