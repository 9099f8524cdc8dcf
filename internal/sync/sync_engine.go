// Package sync mirrors a local directory into a storage destination by diffing
// content fingerprints against the manifest saved by the previous run.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lostsignal/bunnysync/internal/blob"
	"github.com/lostsignal/bunnysync/internal/manifest"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

var (
	ErrSyncAlreadyRunning = errors.New("sync already running")
)

type EngineOption func(*SyncEngine)

// WithConcurrency bounds the number of uploads and deletes in flight. 1 runs them in order.
func WithConcurrency(n int) EngineOption {
	return func(se *SyncEngine) {
		if n > 0 {
			se.concurrency = n
		}
	}
}

func WithReporter(r Reporter) EngineOption {
	return func(se *SyncEngine) {
		if r != nil {
			se.reporter = r
		}
	}
}

type SyncEngine struct {
	client      blob.IBlobClient
	store       *manifest.Store
	scanner     *LocalScanner
	dest        blob.Destination
	reporter    Reporter
	concurrency int
	muSync      sync.Mutex
}

func NewSyncEngine(client blob.IBlobClient, scanner *LocalScanner, dest blob.Destination, opts ...EngineOption) *SyncEngine {
	se := &SyncEngine{
		client:      client,
		store:       manifest.NewStore(client),
		scanner:     scanner,
		dest:        dest,
		reporter:    NewLogReporter(nil),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(se)
	}
	return se
}

// RunSync performs one full pass: scan, fetch the remote manifest, reconcile,
// apply the actions and save the new manifest if anything changed.
// The returned result is never nil and describes what was done before any failure.
// The manifest is only written when every action succeeded.
func (se *SyncEngine) RunSync(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{
		RunID:       uuid.New(),
		Destination: se.dest.String(),
	}

	if !se.muSync.TryLock() {
		return result, ErrSyncAlreadyRunning
	}
	defer se.muSync.Unlock()

	tStart := time.Now()
	defer func() {
		result.Duration = time.Since(tStart)
	}()

	se.report(result, &SyncEvent{Type: EventScanStarted, Path: se.scanner.Root()})
	local, err := se.scanner.Scan(ctx)
	if err != nil {
		return result, fmt.Errorf("local scan: %w", err)
	}
	se.report(result, &SyncEvent{Type: EventScanCompleted, Count: len(local)})

	remote := se.store.FetchRemote(ctx, se.dest)
	// an entry for the manifest itself would delete the object about to be written
	delete(remote, manifest.FileName)
	se.report(result, &SyncEvent{Type: EventManifestFetched, Key: manifest.Key(se.dest), Count: len(remote)})

	ops := Reconcile(local, remote)
	result.Unchanged = len(ops.Unchanged)

	if !ops.HasChanges() {
		se.report(result, &SyncEvent{Type: EventNoChanges, Count: result.Unchanged})
		return result, nil
	}

	if err := se.executeOperations(ctx, ops, result); err != nil {
		return result, err
	}

	se.report(result, &SyncEvent{Type: EventManifestSaving, Key: manifest.Key(se.dest), Count: len(local)})
	if err := se.store.Persist(ctx, se.dest, local); err != nil {
		return result, err
	}
	result.ManifestSaved = true
	se.report(result, &SyncEvent{Type: EventManifestSaved, Key: manifest.Key(se.dest)})

	return result, nil
}

// executeOperations applies every action with bounded concurrency. The first
// failure cancels the rest; actions not yet started are skipped.
func (se *SyncEngine) executeOperations(ctx context.Context, ops *ReconcileOperations, result *SyncResult) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(se.concurrency)

	for _, op := range ops.Actions() {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			var size int64
			var err error
			switch op.Type {
			case OpUpload:
				size, err = se.handleUpload(gctx, result, op)
			case OpDelete:
				err = se.handleDelete(gctx, result, op)
			default:
				err = fmt.Errorf("unknown operation %q for '%s'", op.Type, op.RelPath)
			}
			if err != nil {
				se.report(result, &SyncEvent{Type: EventActionFailed, Path: op.RelPath, Key: se.dest.Path(op.RelPath), Err: err})
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if op.Type == OpUpload {
				result.Uploaded = append(result.Uploaded, op.RelPath)
				result.BytesUploaded += size
			} else {
				result.Deleted = append(result.Deleted, op.RelPath)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// cancellation that arrived before anything failed still aborts the run
	return ctx.Err()
}

func (se *SyncEngine) report(result *SyncResult, ev *SyncEvent) {
	ev.RunID = result.RunID
	ev.Time = time.Now()
	se.reporter.Report(ev)
}
