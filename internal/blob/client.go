package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// IBlobClient is the storage collaborator used by the sync engine.
// Keys are zone-rooted destination paths as built by DestinationPath.
// Implementations must be safe for concurrent use.
type IBlobClient interface {
	PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error)
	GetObject(ctx context.Context, key string) (*GetObjectResponse, error)
	DeleteObject(ctx context.Context, key string) error
}

// ===================================================================================================

// PutObjectParams describes an upload. Exactly one of FilePath or Body is used,
// FilePath taking precedence.
type PutObjectParams struct {
	Key      string
	FilePath string
	Body     io.Reader
	Size     int64
	// Checksum is the expected fingerprint of the content.
	Checksum string
}

type PutObjectResponse struct {
	Key          string
	Size         int64
	Checksum     string
	LastModified time.Time
}

// ===================================================================================================

type GetObjectResponse struct {
	Body         io.ReadCloser
	Size         int64
	LastModified time.Time
}

// ===================================================================================================

// objectBody is the opened content of a PutObjectParams.
type objectBody struct {
	reader io.Reader
	size   int64
	close  func() error
}

func (b *objectBody) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func openBody(params *PutObjectParams) (*objectBody, error) {
	if params == nil {
		return nil, errors.New("nil put params")
	}

	if params.FilePath != "" {
		file, err := os.Open(params.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("stat source: %w", err)
		}
		return &objectBody{reader: file, size: info.Size(), close: file.Close}, nil
	}

	if params.Body == nil {
		return nil, errors.New("no file path or body to upload")
	}

	size := params.Size
	switch r := params.Body.(type) {
	case *bytes.Reader:
		size = int64(r.Len())
	case *bytes.Buffer:
		size = int64(r.Len())
	}
	return &objectBody{reader: params.Body, size: size}, nil
}
