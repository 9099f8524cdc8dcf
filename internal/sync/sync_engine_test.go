package sync

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lostsignal/bunnysync/internal/blob"
	"github.com/lostsignal/bunnysync/internal/hasher"
	"github.com/lostsignal/bunnysync/internal/manifest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient wraps an in-memory FSClient and records every call.
type recordingClient struct {
	inner *blob.FSClient
	fs    afero.Fs

	mu      gosync.Mutex
	puts    []string
	gets    []string
	deletes []string

	failPut     func(key string) error
	failGet     error
	putDelay    time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newRecordingClient() *recordingClient {
	mem := afero.NewMemMapFs()
	return &recordingClient{inner: blob.NewFSClient(mem), fs: mem}
}

func (c *recordingClient) PutObject(ctx context.Context, params *blob.PutObjectParams) (*blob.PutObjectResponse, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.maxInFlight.Load()
		if n <= peak || c.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	c.mu.Lock()
	c.puts = append(c.puts, params.Key)
	c.mu.Unlock()

	if c.putDelay > 0 {
		select {
		case <-time.After(c.putDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.failPut != nil {
		if err := c.failPut(params.Key); err != nil {
			return nil, err
		}
	}
	return c.inner.PutObject(ctx, params)
}

func (c *recordingClient) GetObject(ctx context.Context, key string) (*blob.GetObjectResponse, error) {
	c.mu.Lock()
	c.gets = append(c.gets, key)
	c.mu.Unlock()

	if c.failGet != nil {
		return nil, c.failGet
	}
	return c.inner.GetObject(ctx, key)
}

func (c *recordingClient) DeleteObject(ctx context.Context, key string) error {
	c.mu.Lock()
	c.deletes = append(c.deletes, key)
	c.mu.Unlock()
	return c.inner.DeleteObject(ctx, key)
}

func (c *recordingClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts, c.gets, c.deletes = nil, nil, nil
}

func (c *recordingClient) putKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := append([]string(nil), c.puts...)
	sort.Strings(keys)
	return keys
}

func (c *recordingClient) deleteKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := append([]string(nil), c.deletes...)
	sort.Strings(keys)
	return keys
}

func (c *recordingClient) remoteFile(t *testing.T, key string) []byte {
	t.Helper()
	data, err := afero.ReadFile(c.fs, key)
	require.NoError(t, err)
	return data
}

func (c *recordingClient) remoteExists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := afero.Exists(c.fs, key)
	require.NoError(t, err)
	return ok
}

func (c *recordingClient) seedManifest(t *testing.T, dest blob.Destination, m manifest.Manifest) {
	t.Helper()
	data, err := manifest.Encode(m)
	require.NoError(t, err)
	c.seedRaw(t, manifest.Key(dest), data)
}

func (c *recordingClient) seedRaw(t *testing.T, key string, data []byte) {
	t.Helper()
	_, err := c.inner.PutObject(context.Background(), &blob.PutObjectParams{Key: key, Body: bytes.NewReader(data)})
	require.NoError(t, err)
}

func (c *recordingClient) remoteManifest(t *testing.T, dest blob.Destination) manifest.Manifest {
	t.Helper()
	m, err := manifest.NewStore(c.inner).Fetch(context.Background(), dest)
	require.NoError(t, err)
	return m
}

// eventRecorder is a Reporter that keeps every event.
type eventRecorder struct {
	mu     gosync.Mutex
	events []*SyncEvent
}

func (r *eventRecorder) Report(ev *SyncEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}

func (r *eventRecorder) count(t EventType) int {
	n := 0
	for _, et := range r.types() {
		if et == t {
			n++
		}
	}
	return n
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestEngine(t *testing.T, client blob.IBlobClient, root string, dest blob.Destination, opts ...EngineOption) (*SyncEngine, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	opts = append([]EngineOption{WithReporter(rec)}, opts...)
	return NewSyncEngine(client, NewLocalScanner(root), dest, opts...), rec
}

var testDest = blob.Destination{Zone: "zone", Folder: "site"}

func TestRunSync_EmptyRemoteUploadsEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "sub/b.txt", "bravo")

	client := newRecordingClient()
	engine, rec := newTestEngine(t, client, root, testDest)

	result, err := engine.RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"zone/site/a.txt", "zone/site/manifest.json", "zone/site/sub/b.txt"}, client.putKeys())
	assert.Empty(t, client.deleteKeys())
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, result.Uploaded)
	assert.Equal(t, int64(len("alpha")+len("bravo")), result.BytesUploaded)
	assert.True(t, result.ManifestSaved)
	assert.NotEmpty(t, result.RunID)

	assert.Equal(t, []byte("alpha"), client.remoteFile(t, "zone/site/a.txt"))
	assert.Equal(t, manifest.Manifest{
		"a.txt":     hasher.Sum([]byte("alpha")),
		"sub/b.txt": hasher.Sum([]byte("bravo")),
	}, client.remoteManifest(t, testDest))

	assert.Equal(t, 2, rec.count(EventUpload))
	assert.Equal(t, 2, rec.count(EventUploaded))
	assert.Equal(t, 1, rec.count(EventManifestSaved))
	assert.Equal(t, 0, rec.count(EventNoChanges))
}

func TestRunSync_UnchangedDoesNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")

	client := newRecordingClient()
	client.seedManifest(t, testDest, manifest.Manifest{"a.txt": hasher.Sum([]byte("alpha"))})
	engine, rec := newTestEngine(t, client, root, testDest)

	result, err := engine.RunSync(context.Background())
	require.NoError(t, err)

	assert.Empty(t, client.putKeys(), "no upload and no manifest write")
	assert.Empty(t, client.deleteKeys())
	assert.False(t, result.ManifestSaved)
	assert.False(t, result.Changed())
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 1, rec.count(EventNoChanges))
}

func TestRunSync_ChangedAndRemoved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha v2")

	client := newRecordingClient()
	client.seedManifest(t, testDest, manifest.Manifest{
		"a.txt":   hasher.Sum([]byte("alpha")),
		"old.txt": hasher.Sum([]byte("old")),
	})
	client.seedRaw(t, "zone/site/old.txt", []byte("old"))
	engine, rec := newTestEngine(t, client, root, testDest)

	result, err := engine.RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"zone/site/a.txt", "zone/site/manifest.json"}, client.putKeys())
	assert.Equal(t, []string{"zone/site/old.txt"}, client.deleteKeys())
	assert.Equal(t, []string{"a.txt"}, result.Uploaded)
	assert.Equal(t, []string{"old.txt"}, result.Deleted)
	assert.False(t, client.remoteExists(t, "zone/site/old.txt"))
	assert.Equal(t, manifest.Manifest{"a.txt": hasher.Sum([]byte("alpha v2"))}, client.remoteManifest(t, testDest))
	assert.Equal(t, 1, rec.count(EventDelete))
	assert.Equal(t, 1, rec.count(EventDeleted))
}

func TestRunSync_BrokenRemoteManifestActsLikeEmpty(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, c *recordingClient)
	}{
		{"malformed bytes", func(t *testing.T, c *recordingClient) {
			c.seedRaw(t, manifest.Key(testDest), []byte("{{{ definitely not json"))
		}},
		{"fetch error", func(t *testing.T, c *recordingClient) {
			c.failGet = errors.New("connection reset by peer")
		}},
		{"wrong json shape", func(t *testing.T, c *recordingClient) {
			c.seedRaw(t, manifest.Key(testDest), []byte(`["a.txt"]`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, "a.txt", "alpha")
			writeFile(t, root, "sub/b.txt", "bravo")

			client := newRecordingClient()
			tt.setup(t, client)
			engine, _ := newTestEngine(t, client, root, testDest)

			result, err := engine.RunSync(context.Background())
			require.NoError(t, err)

			assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, result.Uploaded)
			assert.Empty(t, result.Deleted)
			assert.True(t, result.ManifestSaved)
			assert.Equal(t, []string{"zone/site/a.txt", "zone/site/manifest.json", "zone/site/sub/b.txt"}, client.putKeys())
		})
	}
}

func TestRunSync_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html></html>")
	writeFile(t, root, "css/site.css", "body{}")
	writeFile(t, root, "img/deep/logo.svg", "<svg/>")

	client := newRecordingClient()
	engine, _ := newTestEngine(t, client, root, testDest)

	first, err := engine.RunSync(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Uploaded, 3)

	client.reset()
	second, err := engine.RunSync(context.Background())
	require.NoError(t, err)

	assert.False(t, second.Changed())
	assert.False(t, second.ManifestSaved)
	assert.Equal(t, 3, second.Unchanged)
	assert.Empty(t, client.putKeys())
	assert.Empty(t, client.deleteKeys())
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunSync_UnusualFileNames(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("backslash is a separator on windows")
	}

	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "old.txt", "old")
	writeFile(t, root, `back\slash.txt`, "backslash")
	writeFile(t, root, "back/slash.txt", "nested")
	writeFile(t, root, "trailing.txt ", "blank")

	client := newRecordingClient()
	engine, _ := newTestEngine(t, client, root, testDest)

	first, err := engine.RunSync(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Uploaded, 5)
	assert.Equal(t, []byte("backslash"), client.remoteFile(t, `zone/site/back\slash.txt`))
	assert.Equal(t, []byte("nested"), client.remoteFile(t, "zone/site/back/slash.txt"))
	assert.Equal(t, []byte("blank"), client.remoteFile(t, "zone/site/trailing.txt "))
	assert.Len(t, client.remoteManifest(t, testDest), 5)

	require.NoError(t, os.Remove(filepath.Join(root, "old.txt")))
	client.reset()
	second, err := engine.RunSync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Uploaded)
	assert.Equal(t, []string{"old.txt"}, second.Deleted)
	assert.False(t, client.remoteExists(t, "zone/site/old.txt"))

	client.reset()
	third, err := engine.RunSync(context.Background())
	require.NoError(t, err)
	assert.False(t, third.Changed())
	assert.Equal(t, 4, third.Unchanged)
	assert.Empty(t, client.putKeys())
}

func TestRunSync_FailureAbortsAndKeepsManifest(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		writeFile(t, root, name, "content of "+name)
	}

	previous := manifest.Manifest{"gone.txt": hasher.Sum([]byte("gone"))}
	client := newRecordingClient()
	client.seedManifest(t, testDest, previous)

	storageErr := &blob.Error{Op: "put", Key: "zone/site/b.txt", Err: blob.ErrAccessDenied}
	client.failPut = func(key string) error {
		if key == "zone/site/b.txt" {
			return storageErr
		}
		return nil
	}

	engine, rec := newTestEngine(t, client, root, testDest, WithConcurrency(1))
	result, err := engine.RunSync(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, blob.ErrAccessDenied)

	var blobErr *blob.Error
	require.ErrorAs(t, err, &blobErr)
	assert.Equal(t, "zone/site/b.txt", blobErr.Key)

	// sequential order: a.txt succeeded, b.txt failed, the rest never started
	assert.Equal(t, []string{"a.txt"}, result.Uploaded)
	assert.Equal(t, []string{"zone/site/a.txt", "zone/site/b.txt"}, client.putKeys())
	assert.Empty(t, client.deleteKeys())
	assert.False(t, result.ManifestSaved)
	assert.Equal(t, previous, client.remoteManifest(t, testDest))
	assert.Equal(t, 1, rec.count(EventActionFailed))
	assert.Equal(t, 0, rec.count(EventManifestSaving))

	// the failed upload was announced before it was attempted
	assert.Equal(t, 2, rec.count(EventUpload))
	assert.Equal(t, 1, rec.count(EventUploaded))
	rec.mu.Lock()
	var announced []string
	for _, ev := range rec.events {
		if ev.Type == EventUpload {
			announced = append(announced, ev.Key)
		}
	}
	rec.mu.Unlock()
	assert.Equal(t, []string{"zone/site/a.txt", "zone/site/b.txt"}, announced)

	// a later run after the failure clears converges
	client.failPut = nil
	client.reset()
	result, err = engine.RunSync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.ManifestSaved)
	assert.Equal(t, []string{"gone.txt"}, result.Deleted)
	assert.Len(t, client.remoteManifest(t, testDest), 4)
}

func TestRunSync_BoundedConcurrency(t *testing.T) {
	root := t.TempDir()
	for i := range 12 {
		writeFile(t, root, filepath.Join("files", string(rune('a'+i))+".txt"), "x")
	}

	client := newRecordingClient()
	client.putDelay = 20 * time.Millisecond
	engine, _ := newTestEngine(t, client, root, testDest, WithConcurrency(3))

	result, err := engine.RunSync(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Uploaded, 12)
	assert.True(t, result.ManifestSaved)
	assert.LessOrEqual(t, client.maxInFlight.Load(), int32(3))
	assert.Greater(t, client.maxInFlight.Load(), int32(1))
}

func TestRunSync_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")

	client := newRecordingClient()
	engine, _ := newTestEngine(t, client, root, testDest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.RunSync(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.ManifestSaved)
	assert.False(t, client.remoteExists(t, manifest.Key(testDest)))
}

func TestRunSync_ScanErrorBeforeNetwork(t *testing.T) {
	client := newRecordingClient()
	engine, _ := newTestEngine(t, client, filepath.Join(t.TempDir(), "missing"), testDest)

	_, err := engine.RunSync(context.Background())
	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.ErrorIs(t, err, os.ErrNotExist)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Empty(t, client.gets)
	assert.Empty(t, client.puts)
}

func TestRunSync_AlreadyRunning(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")

	client := newRecordingClient()
	client.putDelay = 200 * time.Millisecond
	engine, _ := newTestEngine(t, client, root, testDest)

	done := make(chan error, 1)
	go func() {
		_, err := engine.RunSync(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return client.inFlight.Load() > 0
	}, 2*time.Second, 5*time.Millisecond)

	_, err := engine.RunSync(context.Background())
	assert.ErrorIs(t, err, ErrSyncAlreadyRunning)
	require.NoError(t, <-done)
}

func TestRunSync_NoFolder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "manifest.json", `{"user":"data"}`)
	writeFile(t, root, "nested/manifest.json", `{"nested":"ok"}`)

	client := newRecordingClient()
	dest := blob.Destination{Zone: "zone"}
	engine, _ := newTestEngine(t, client, root, dest)

	result, err := engine.RunSync(context.Background())
	require.NoError(t, err)

	// the root manifest.json is reserved, the nested one is ordinary content
	assert.ElementsMatch(t, []string{"a.txt", "nested/manifest.json"}, result.Uploaded)
	m := client.remoteManifest(t, dest)
	assert.Contains(t, m, "nested/manifest.json")
	assert.NotContains(t, m, "manifest.json")
}

func TestRunSync_RemoteManifestListingItself(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")

	client := newRecordingClient()
	client.seedManifest(t, testDest, manifest.Manifest{
		"a.txt":         hasher.Sum([]byte("alpha")),
		"manifest.json": hasher.Sum([]byte("whatever")),
	})
	engine, _ := newTestEngine(t, client, root, testDest)

	result, err := engine.RunSync(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Empty(t, client.deleteKeys())
}

func TestRunSync_EventsOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")

	client := newRecordingClient()
	engine, rec := newTestEngine(t, client, root, testDest, WithConcurrency(1))

	_, err := engine.RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventScanStarted,
		EventScanCompleted,
		EventManifestFetched,
		EventUpload,
		EventUploaded,
		EventManifestSaving,
		EventManifestSaved,
	}, rec.types())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	runID := rec.events[0].RunID
	for _, ev := range rec.events {
		assert.Equal(t, runID, ev.RunID)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestSyncResult_Changed(t *testing.T) {
	assert.False(t, (&SyncResult{}).Changed())
	assert.True(t, (&SyncResult{Uploaded: []string{"a"}}).Changed())
	assert.True(t, (&SyncResult{Deleted: []string{"a"}}).Changed())
}
