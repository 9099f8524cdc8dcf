// Package workspace manages the local data directory: logs, fingerprint caches
// and the lock that keeps two runs from syncing the same directory at once.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/lostsignal/bunnysync/internal/hasher"
	"github.com/lostsignal/bunnysync/internal/utils"
)

const (
	DefaultDataDir = "~/.bunnysync"

	logsDir  = "logs"
	cacheDir = "cache"
	locksDir = "locks"
	logFile  = "bunnysync.log"
	idLength = 16
)

var (
	ErrWorkspaceLocked = errors.New("workspace locked by another process")
)

type Workspace struct {
	DataDir  string
	LogsDir  string
	CacheDir string
	LocksDir string

	// SyncDir is the local directory being synced and ID a stable name derived from it.
	SyncDir string
	ID      string

	flock *flock.Flock
}

func NewWorkspace(dataDir string, syncDir string) (*Workspace, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	data, err := utils.ResolvePath(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir %s: %w", dataDir, err)
	}

	dir, err := utils.ResolvePath(syncDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sync dir %s: %w", syncDir, err)
	}

	id := hasher.Sum([]byte(dir))[:idLength]
	w := &Workspace{
		DataDir:  data,
		LogsDir:  filepath.Join(data, logsDir),
		CacheDir: filepath.Join(data, cacheDir),
		LocksDir: filepath.Join(data, locksDir),
		SyncDir:  dir,
		ID:       id,
	}
	w.flock = flock.New(filepath.Join(w.LocksDir, id+".lock"))
	return w, nil
}

// Setup creates the data directory layout.
func (w *Workspace) Setup() error {
	for _, dir := range []string{w.DataDir, w.LogsDir, w.CacheDir, w.LocksDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Lock takes the per-directory run lock without blocking.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.LocksDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.LocksDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrWorkspaceLocked, w.SyncDir)
	}
	return nil
}

// Unlock releases the run lock. The lock file stays on disk: removing it would
// let a later process lock a fresh inode while another still waits on the old one.
func (w *Workspace) Unlock() error {
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}
	return nil
}

func (w *Workspace) LogFilePath() string {
	return filepath.Join(w.LogsDir, logFile)
}

// HashCachePath is the fingerprint cache of this sync directory.
func (w *Workspace) HashCachePath() string {
	return filepath.Join(w.CacheDir, w.ID+".db")
}

func (w *Workspace) LockFilePath() string {
	return w.flock.Path()
}
