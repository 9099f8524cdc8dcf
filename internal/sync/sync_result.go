package sync

import (
	"time"

	"github.com/google/uuid"
)

// SyncResult summarizes a sync run.
type SyncResult struct {
	RunID         uuid.UUID
	Destination   string
	Uploaded      []string
	Deleted       []string
	Unchanged     int
	BytesUploaded int64
	ManifestSaved bool
	Duration      time.Duration
}

// Changed reports whether the run mutated the remote.
func (r *SyncResult) Changed() bool {
	return len(r.Uploaded) > 0 || len(r.Deleted) > 0
}
