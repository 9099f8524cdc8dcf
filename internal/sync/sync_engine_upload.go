package sync

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lostsignal/bunnysync/internal/blob"
)

func (se *SyncEngine) handleUpload(ctx context.Context, result *SyncResult, op *SyncOperation) (int64, error) {
	localPath := filepath.Join(se.scanner.Root(), filepath.FromSlash(op.RelPath))
	key := se.dest.Path(op.RelPath)
	se.report(result, &SyncEvent{Type: EventUpload, Path: op.RelPath, Key: key})

	resp, err := se.client.PutObject(ctx, &blob.PutObjectParams{
		Key:      key,
		FilePath: localPath,
		Checksum: op.Fingerprint,
	})
	if err != nil {
		return 0, fmt.Errorf("upload '%s': %w", op.RelPath, err)
	}

	se.report(result, &SyncEvent{Type: EventUploaded, Path: op.RelPath, Key: key, Size: resp.Size})
	return resp.Size, nil
}
