package sync

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventScanStarted     EventType = "ScanStarted"
	EventScanCompleted   EventType = "ScanCompleted"
	EventManifestFetched EventType = "ManifestFetched"
	EventUpload          EventType = "Upload"
	EventUploaded        EventType = "Uploaded"
	EventDelete          EventType = "Delete"
	EventDeleted         EventType = "Deleted"
	EventNoChanges       EventType = "NoChanges"
	EventManifestSaving  EventType = "ManifestSaving"
	EventManifestSaved   EventType = "ManifestSaved"
	EventActionFailed    EventType = "ActionFailed"
)

// SyncEvent describes a step of a sync run. Only the fields relevant to Type are set.
type SyncEvent struct {
	Type  EventType
	RunID uuid.UUID
	Time  time.Time
	// Path is the root-relative path the event is about.
	Path string
	// Key is the destination key the event is about.
	Key   string
	Size  int64
	Count int
	Err   error
}

// Reporter receives progress events. Report may be called from several goroutines at once.
type Reporter interface {
	Report(ev *SyncEvent)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(ev *SyncEvent)

func (f ReporterFunc) Report(ev *SyncEvent) {
	f(ev)
}

// LogReporter writes events to a slog.Logger.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(ev *SyncEvent) {
	log := r.logger.With("run", ev.RunID.String())

	switch ev.Type {
	case EventScanStarted:
		log.Info("Generating Local Manifest...", "dir", ev.Path)
	case EventScanCompleted:
		log.Debug("local manifest ready", "files", ev.Count)
	case EventManifestFetched:
		log.Info("Downloading Remote Manifest...", "key", ev.Key, "files", ev.Count)
	case EventUpload:
		log.Info("Uploading: "+ev.Key, "op", OpUpload, "path", ev.Path)
	case EventUploaded:
		log.Debug("uploaded", "key", ev.Key, "size", ev.Size)
	case EventDelete:
		log.Info("Deleting: "+ev.Key, "op", OpDelete, "path", ev.Path)
	case EventDeleted:
		log.Debug("deleted", "key", ev.Key)
	case EventNoChanges:
		log.Info("No Changes Detected...", "unchanged", ev.Count)
	case EventManifestSaving:
		log.Info("Saving Manifest...", "key", ev.Key, "files", ev.Count)
	case EventManifestSaved:
		log.Debug("manifest saved", "key", ev.Key)
	case EventActionFailed:
		log.Error("sync action failed", "path", ev.Path, "key", ev.Key, "error", ev.Err)
	default:
		log.Debug("sync", "event", ev.Type)
	}
}

var (
	_ Reporter = (*LogReporter)(nil)
	_ Reporter = ReporterFunc(nil)
)
