package sync

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/lostsignal/bunnysync/internal/hasher"
	"github.com/lostsignal/bunnysync/internal/manifest"
)

// Reconcile diffs the local manifest against the remote one.
//
//   - present locally, absent remotely or with another fingerprint: upload
//   - present remotely, absent locally: delete
//   - same fingerprint on both sides: unchanged
func Reconcile(local, remote manifest.Manifest) *ReconcileOperations {
	ops := NewReconcileOperations()

	localPaths := mapset.NewThreadUnsafeSetWithSize[string](len(local))
	for p := range local {
		localPaths.Add(p)
	}
	remotePaths := mapset.NewThreadUnsafeSetWithSize[string](len(remote))
	for p := range remote {
		remotePaths.Add(p)
	}

	for p := range localPaths.Difference(remotePaths).Iter() {
		ops.Uploads[p] = &SyncOperation{Type: OpUpload, RelPath: p, Fingerprint: local[p]}
	}

	for p := range remotePaths.Difference(localPaths).Iter() {
		ops.Deletes[p] = &SyncOperation{Type: OpDelete, RelPath: p, Fingerprint: remote[p]}
	}

	for p := range localPaths.Intersect(remotePaths).Iter() {
		if hasher.Equal(local[p], remote[p]) {
			ops.Unchanged[p] = struct{}{}
		} else {
			ops.Uploads[p] = &SyncOperation{Type: OpUpload, RelPath: p, Fingerprint: local[p]}
		}
	}

	return ops
}
