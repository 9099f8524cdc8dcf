package sync

import (
	"maps"
	"slices"
)

// BatchUpload holds local files that are new or changed since the last sync.
type BatchUpload map[string]*SyncOperation

// BatchDelete holds remote files that no longer exist locally.
type BatchDelete map[string]*SyncOperation

// BatchUnchanged holds paths whose fingerprints match on both sides.
type BatchUnchanged map[string]struct{}

// ReconcileOperations is the outcome of comparing the local and remote manifests.
type ReconcileOperations struct {
	Uploads   BatchUpload
	Deletes   BatchDelete
	Unchanged BatchUnchanged
}

func NewReconcileOperations() *ReconcileOperations {
	return &ReconcileOperations{
		Uploads:   make(BatchUpload),
		Deletes:   make(BatchDelete),
		Unchanged: make(BatchUnchanged),
	}
}

// HasChanges reports whether at least one upload or delete is pending.
func (r *ReconcileOperations) HasChanges() bool {
	return len(r.Uploads) > 0 || len(r.Deletes) > 0
}

// Actions returns uploads sorted by path followed by deletes sorted by path.
func (r *ReconcileOperations) Actions() []*SyncOperation {
	actions := make([]*SyncOperation, 0, len(r.Uploads)+len(r.Deletes))
	for _, p := range slices.Sorted(maps.Keys(r.Uploads)) {
		actions = append(actions, r.Uploads[p])
	}
	for _, p := range slices.Sorted(maps.Keys(r.Deletes)) {
		actions = append(actions, r.Deletes[p])
	}
	return actions
}
