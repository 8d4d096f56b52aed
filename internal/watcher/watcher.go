// Package watcher follows the offline directory and broadcasts data-sync when
// another process rewrites an entry this process did not write itself.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/synka/internal/cache"
	"github.com/starford/synka/internal/checksum"
	"github.com/starford/synka/internal/storage"
	"github.com/starford/synka/internal/syncbus"
)

// Debounce is how long the watcher waits after the last external change
// before it broadcasts data-sync.
const Debounce = 200 * time.Millisecond

// Change kinds.
const (
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Change is the payload of offline.changed events.
type Change struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// Watch processes change events under the offline root until ctx is
// cancelled. External writes publish offline.changed and, once they settle,
// a single data-sync.
func Watch(ctx context.Context, offline *cache.Offline, store storage.Provider, bus *syncbus.Bus, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := offline.Root()
	if err := w.Add(root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var syncTimer *time.Timer
	var syncCh <-chan time.Time

	scheduleSync := func() {
		if syncTimer == nil {
			syncTimer = time.NewTimer(Debounce)
			syncCh = syncTimer.C
		} else {
			syncTimer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if syncTimer != nil {
				syncTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-syncCh:
			logger.Debug("watcher: external change, syncing")
			bus.SyncNow()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || !isEntry(rel) {
				continue
			}
			key := strings.TrimSuffix(rel, ".json")

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Debug("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if offline.OwnWrite(rel, checksum.Sum(data)) {
					continue
				}
				logger.Debug("watcher: external write", slog.String("key", key))
				bus.Publish(syncbus.TopicOfflineChanged, Change{Kind: KindUpdated, Key: key})
				scheduleSync()

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				logger.Debug("watcher: entry removed", slog.String("key", key))
				bus.Publish(syncbus.TopicOfflineChanged, Change{Kind: KindDeleted, Key: key})
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// isEntry reports whether rel names an offline entry rather than a temp file
// or a nested path.
func isEntry(rel string) bool {
	if strings.ContainsRune(rel, filepath.Separator) || strings.HasPrefix(rel, ".") {
		return false
	}
	return strings.HasSuffix(rel, ".json")
}
