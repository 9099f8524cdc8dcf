package sync

type OpType string

const (
	OpUpload OpType = "Upload"
	OpDelete OpType = "Delete"
)

// SyncOperation is one remote mutation decided by Reconcile.
type SyncOperation struct {
	Type    OpType
	RelPath string
	// Fingerprint is the local fingerprint for uploads and the last known remote one for deletes.
	Fingerprint string
}
