package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/synka/internal/checksum"
	"github.com/starford/synka/internal/storage"
)

const offlineSuffix = ".json"

// Offline is the fallback tier, one JSON file per domain and user.
type Offline struct {
	store storage.Provider
	options
	mu    sync.Mutex
	// written maps a path to the checksum of the last payload this process wrote.
	written map[string]string
}

// NewOffline creates an offline store over the given provider.
func NewOffline(store storage.Provider, opts ...Option) *Offline {
	return &Offline{store: store, options: buildOptions(opts), written: make(map[string]string)}
}

// OfflineKey is the key of a domain's offline entry for a user.
func OfflineKey(domain, userID string) string {
	return domain + "_" + userID
}

// OfflinePath is the file path, relative to the offline root, of key.
func OfflinePath(key string) string {
	return key + offlineSuffix
}

// Root returns the directory holding offline entries.
func (o *Offline) Root() string {
	return o.store.Root()
}

// OwnWrite reports whether the file at path holds exactly what this process
// last wrote there.
func (o *Offline) OwnWrite(path, sum string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.written[path] == sum
}

func (o *Offline) read(key string) ([]byte, bool) {
	raw, err := o.store.Read(OfflinePath(key))
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (o *Offline) write(key string, raw []byte) error {
	path := OfflinePath(key)
	// Recorded before the write so a watcher event racing the rename is recognized.
	o.mu.Lock()
	o.written[path] = checksum.Sum(raw)
	o.mu.Unlock()
	return o.store.Write(path, raw)
}

// Cleanup removes offline entries that are past OfflineTTL or unreadable and
// returns how many were removed.
func (o *Offline) Cleanup(_ context.Context) (int, error) {
	files, err := o.store.List("", offlineSuffix)
	if err != nil {
		return 0, err
	}
	now := o.now()
	removed := 0
	for _, f := range files {
		raw, err := o.store.Read(f.Path)
		if err != nil {
			continue
		}
		e, ok := decode[any](raw)
		if ok && e.Fresh(now, OfflineTTL) {
			continue
		}
		if err := o.store.Delete(f.Path); err != nil {
			o.logger.Warn("cache: offline cleanup failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		removed++
		o.logger.Debug("cache: offline entry expired", slog.String("key", strings.TrimSuffix(f.Path, offlineSuffix)))
	}
	return removed, nil
}
