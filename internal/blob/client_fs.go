package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/lostsignal/bunnysync/internal/hasher"
	"github.com/spf13/afero"
)

// FSClient stores objects as files on an afero filesystem. The key maps
// directly onto a path, so the storage zone becomes the top directory.
type FSClient struct {
	fs afero.Fs
}

func NewFSClient(fs afero.Fs) *FSClient {
	return &FSClient{fs: fs}
}

// NewFSClientWithRoot serves objects from a directory on the local disk.
func NewFSClientWithRoot(root string) (*FSClient, error) {
	if root == "" {
		return nil, errors.New("fs backend requires a root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create fs root: %w", err)
	}
	return NewFSClient(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

const (
	tempPrefix = ".bunnysync-"
	tempSuffix = ".tmp"
)

// TempName returns a fresh name for an in-flight upload.
func TempName() string {
	return tempPrefix + uuid.NewString() + tempSuffix
}

// IsTempName reports whether the base name of p belongs to an in-flight upload.
func IsTempName(p string) bool {
	base := path.Base(p)
	return strings.HasPrefix(base, tempPrefix) && strings.HasSuffix(base, tempSuffix)
}

// ===================================================================================================

func (c *FSClient) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	key := CleanKey(params.Key)
	if key == "" {
		return nil, newError("put", params.Key, ErrInvalidKey)
	}
	if err := ctx.Err(); err != nil {
		return nil, newError("put", key, err)
	}

	body, err := openBody(params)
	if err != nil {
		return nil, newError("put", key, err)
	}
	defer body.Close()

	if err := c.fs.MkdirAll(path.Dir(key), 0o755); err != nil {
		return nil, newError("put", key, err)
	}

	// write to a temp sibling and rename so a failed upload never leaves a partial object
	tmp := path.Join(path.Dir(key), TempName())
	file, err := c.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, newError("put", key, err)
	}

	digest := hasher.NewWriter()
	n, err := io.Copy(file, io.TeeReader(body.reader, digest))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = c.fs.Remove(tmp)
		return nil, newError("put", key, err)
	}

	checksum := digest.Sum()
	if params.Checksum != "" && !hasher.Equal(params.Checksum, checksum) {
		_ = c.fs.Remove(tmp)
		return nil, newError("put", key, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, params.Checksum, checksum))
	}

	if err := c.fs.Rename(tmp, key); err != nil {
		_ = c.fs.Remove(tmp)
		return nil, newError("put", key, err)
	}

	info, err := c.fs.Stat(key)
	if err != nil {
		return nil, newError("put", key, err)
	}

	return &PutObjectResponse{
		Key:          key,
		Size:         n,
		Checksum:     checksum,
		LastModified: info.ModTime().UTC(),
	}, nil
}

// ===================================================================================================

func (c *FSClient) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	key = CleanKey(key)
	if key == "" {
		return nil, newError("get", key, ErrInvalidKey)
	}
	if err := ctx.Err(); err != nil {
		return nil, newError("get", key, err)
	}

	file, err := c.fs.Open(key)
	if err != nil {
		return nil, newError("get", key, fsError(err))
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, newError("get", key, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, newError("get", key, ErrNotFound)
	}

	return &GetObjectResponse{
		Body:         file,
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}, nil
}

// ===================================================================================================

func (c *FSClient) DeleteObject(ctx context.Context, key string) error {
	key = CleanKey(key)
	if key == "" {
		return newError("delete", key, ErrInvalidKey)
	}
	if err := ctx.Err(); err != nil {
		return newError("delete", key, err)
	}

	if err := c.fs.Remove(key); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return newError("delete", key, err)
	}

	c.cleanupEmptyParentDirs(key)
	return nil
}

// cleanupEmptyParentDirs removes empty parent directories up to, but not including, the zone directory.
func (c *FSClient) cleanupEmptyParentDirs(key string) {
	zone, _ := SplitKey(key)
	dir := path.Dir(key)

	for dir != "." && dir != "/" && dir != zone {
		empty, err := afero.IsEmpty(c.fs, dir)
		if err != nil || !empty {
			return
		}
		if err := c.fs.Remove(dir); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

func fsError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	return err
}

var _ IBlobClient = (*FSClient)(nil)
