package sync

import (
	"context"
	"fmt"
)

func (se *SyncEngine) handleDelete(ctx context.Context, result *SyncResult, op *SyncOperation) error {
	key := se.dest.Path(op.RelPath)
	se.report(result, &SyncEvent{Type: EventDelete, Path: op.RelPath, Key: key})

	if err := se.client.DeleteObject(ctx, key); err != nil {
		return fmt.Errorf("delete '%s': %w", op.RelPath, err)
	}

	se.report(result, &SyncEvent{Type: EventDeleted, Path: op.RelPath, Key: key})
	return nil
}
