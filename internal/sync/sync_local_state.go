package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lostsignal/bunnysync/internal/hasher"
	"github.com/lostsignal/bunnysync/internal/manifest"
)

var ErrNotDirectory = errors.New("not a directory")

// ScanError reports a local file or directory that could not be read.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan '%s': %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

type ScanOption func(*LocalScanner)

// WithIgnoreList excludes matching paths from the scan.
func WithIgnoreList(ignore *SyncIgnoreList) ScanOption {
	return func(s *LocalScanner) {
		s.ignore = ignore
	}
}

// WithHashCache reuses fingerprints of files whose size and mtime did not change.
func WithHashCache(cache *HashCache) ScanOption {
	return func(s *LocalScanner) {
		s.cache = cache
	}
}

// LocalScanner builds the manifest of a local directory tree.
type LocalScanner struct {
	rootDir string
	ignore  *SyncIgnoreList
	cache   *HashCache
}

func NewLocalScanner(rootDir string, opts ...ScanOption) *LocalScanner {
	s := &LocalScanner{rootDir: rootDir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LocalScanner) Root() string {
	return s.rootDir
}

// Scan fingerprints every regular file under the root. Symlinks to files are
// followed, symlinked directories are not. Any unreadable entry fails the whole scan.
func (s *LocalScanner) Scan(ctx context.Context) (manifest.Manifest, error) {
	root, err := filepath.EvalSymlinks(s.rootDir)
	if err != nil {
		return nil, &ScanError{Path: s.rootDir, Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &ScanError{Path: s.rootDir, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Path: s.rootDir, Err: ErrNotDirectory}
	}

	result := manifest.New()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return &ScanError{Path: path, Err: walkErr}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if s.ignore.ShouldIgnore(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		info, ok, err := fileInfo(path, d)
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		if !ok {
			return nil
		}

		if relPath == manifest.FileName {
			slog.Warn("skipping file that collides with the manifest", "path", path)
			return nil
		}
		if s.ignore.ShouldIgnore(relPath) {
			return nil
		}

		fp, err := s.fingerprint(path, relPath, info)
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		result[relPath] = fp
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if pruned, err := s.cache.Prune(result); err != nil {
			slog.Warn("hash cache prune", "error", err)
		} else if pruned > 0 {
			slog.Debug("hash cache pruned", "entries", pruned)
		}
	}

	return result, nil
}

// fileInfo resolves d to the info of a regular file. ok is false for entries that are skipped.
func fileInfo(path string, d fs.DirEntry) (info fs.FileInfo, ok bool, err error) {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(path)
		if err != nil {
			return nil, false, err
		}
		return info, info.Mode().IsRegular(), nil
	}

	if !d.Type().IsRegular() {
		return nil, false, nil
	}

	info, err = d.Info()
	if err != nil {
		return nil, false, err
	}
	return info, true, nil
}

func (s *LocalScanner) fingerprint(path, relPath string, info fs.FileInfo) (string, error) {
	if s.cache != nil {
		if fp, ok := s.cache.Lookup(relPath, info.Size(), info.ModTime()); ok {
			return fp, nil
		}
	}

	fp, err := hasher.SumFile(path)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Store(relPath, info.Size(), info.ModTime(), fp); err != nil {
			slog.Warn("hash cache store", "path", relPath, "error", err)
		}
	}
	return fp, nil
}
