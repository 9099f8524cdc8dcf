package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/lostsignal/bunnysync/internal/blob"
	"github.com/lostsignal/bunnysync/internal/config"
	"github.com/lostsignal/bunnysync/internal/sync"
	"github.com/lostsignal/bunnysync/internal/workspace"
)

type runOptions struct {
	watch    bool
	debounce time.Duration
	out      io.Writer
}

// runSync syncs cfg.Directory once, or keeps syncing it on every change in
// watch mode, while holding the workspace lock.
func runSync(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, opts runOptions) error {
	if err := ws.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := ws.Unlock(); err != nil {
			slog.Warn("workspace unlock", "error", err)
		}
	}()

	var scanOpts []sync.ScanOption

	var ignore *sync.SyncIgnoreList
	if cfg.IgnoreFile != "" {
		var err error
		if ignore, err = sync.LoadSyncIgnoreList(cfg.IgnoreFile); err != nil {
			return err
		}
		scanOpts = append(scanOpts, sync.WithIgnoreList(ignore))
	}

	if cfg.HashCache {
		cache, err := sync.NewHashCache(ws.HashCachePath())
		if err != nil {
			return err
		}
		defer cache.Close()
		scanOpts = append(scanOpts, sync.WithHashCache(cache))
	}

	client, err := blob.NewClient(ctx, cfg.BlobConfig())
	if err != nil {
		return err
	}

	engine := sync.NewSyncEngine(
		client,
		sync.NewLocalScanner(cfg.Directory, scanOpts...),
		cfg.Destination(),
		sync.WithConcurrency(cfg.Concurrency),
		sync.WithReporter(sync.NewLogReporter(slog.Default())),
	)

	if !opts.watch {
		result, err := engine.RunSync(ctx)
		printSummary(opts.out, result, err)
		return err
	}

	watcher := sync.NewFileWatcher(cfg.Directory)
	watcher.SetDebounceTimeout(opts.debounce)
	watcher.FilterPaths(ignore.ShouldIgnore)
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	return engine.Watch(ctx, watcher.Changes(), func(result *sync.SyncResult, err error) {
		printSummary(opts.out, result, err)
	})
}
