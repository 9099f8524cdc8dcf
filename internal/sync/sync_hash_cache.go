package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lostsignal/bunnysync/internal/db"
	"github.com/lostsignal/bunnysync/internal/manifest"
)

const hashCacheSchema = `
CREATE TABLE IF NOT EXISTS hash_cache (
    path TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    mod_time INTEGER NOT NULL, -- unix nanoseconds
    fingerprint TEXT NOT NULL
);
`

type hashCacheRow struct {
	Path        string `db:"path"`
	Size        int64  `db:"size"`
	ModTime     int64  `db:"mod_time"`
	Fingerprint string `db:"fingerprint"`
}

// HashCache remembers fingerprints by path, size and modification time so
// unchanged files are not re-hashed on the next scan.
type HashCache struct {
	db *sqlx.DB
}

// NewHashCache opens the cache stored at dbPath. Use ":memory:" for a throwaway cache.
func NewHashCache(dbPath string) (*HashCache, error) {
	conn, err := db.NewSqliteDB(db.WithPath(dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open hash cache: %w", err)
	}

	if _, err := conn.Exec(hashCacheSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init hash cache schema: %w", err)
	}

	return &HashCache{db: conn}, nil
}

func (c *HashCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close hash cache: %w", err)
	}
	return nil
}

// Lookup returns the cached fingerprint of relPath if its size and mtime still match.
func (c *HashCache) Lookup(relPath string, size int64, modTime time.Time) (string, bool) {
	var row hashCacheRow
	err := c.db.Get(&row, "SELECT path, size, mod_time, fingerprint FROM hash_cache WHERE path = ?", relPath)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("hash cache lookup", "path", relPath, "error", err)
		}
		return "", false
	}

	if row.Size != size || row.ModTime != modTime.UnixNano() {
		return "", false
	}
	return row.Fingerprint, true
}

func (c *HashCache) Store(relPath string, size int64, modTime time.Time, fingerprint string) error {
	row := hashCacheRow{
		Path:        relPath,
		Size:        size,
		ModTime:     modTime.UnixNano(),
		Fingerprint: fingerprint,
	}

	query := `INSERT OR REPLACE INTO hash_cache (path, size, mod_time, fingerprint)
	          VALUES (:path, :size, :mod_time, :fingerprint)`
	if _, err := c.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("store hash of '%s': %w", relPath, err)
	}
	return nil
}

// Prune drops every entry whose path is not in keep.
func (c *HashCache) Prune(keep manifest.Manifest) (int, error) {
	var paths []string
	if err := c.db.Select(&paths, "SELECT path FROM hash_cache"); err != nil {
		return 0, fmt.Errorf("list hash cache: %w", err)
	}

	tx, err := c.db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("prune hash cache: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pruned := 0
	for _, p := range paths {
		if _, ok := keep[p]; ok {
			continue
		}
		if _, err := tx.Exec("DELETE FROM hash_cache WHERE path = ?", p); err != nil {
			return 0, fmt.Errorf("prune '%s': %w", p, err)
		}
		pruned++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune hash cache: %w", err)
	}
	return pruned, nil
}

func (c *HashCache) Count() (int, error) {
	var count int
	if err := c.db.Get(&count, "SELECT COUNT(*) FROM hash_cache"); err != nil {
		return 0, fmt.Errorf("count hash cache: %w", err)
	}
	return count, nil
}
