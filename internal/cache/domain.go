package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/synka/internal/metrics"
)

// Source tells where hydrated data came from.
type Source string

// Hydration sources.
const (
	SourceNone    Source = ""
	SourceCache   Source = "cache"
	SourceOffline Source = "offline"
)

// Domain is a typed view of both cache tiers for one data domain.
// All methods are best-effort: failures are logged and treated as absent.
type Domain[T any] struct {
	name    string
	ttl     time.Duration
	local   *Local
	offline *Offline
}

// NewDomain binds a domain name and its local TTL to the two tiers.
// offline may be nil to disable the fallback tier.
func NewDomain[T any](name string, ttl time.Duration, local *Local, offline *Offline) *Domain[T] {
	return &Domain[T]{name: name, ttl: ttl, local: local, offline: offline}
}

// Name returns the domain name.
func (d *Domain[T]) Name() string { return d.name }

// TTL returns the local cache TTL.
func (d *Domain[T]) TTL() time.Duration { return d.ttl }

// Get returns the local entry for userID if it is younger than the domain TTL.
// Stale entries are left in place.
func (d *Domain[T]) Get(ctx context.Context, userID string) (T, bool) {
	var zero T
	raw, ok := d.local.read(ctx, LocalKey(d.name, userID))
	if !ok {
		metrics.CacheLookups.WithLabelValues("local", d.name, "miss").Inc()
		return zero, false
	}
	e, ok := decode[T](raw)
	if !ok {
		metrics.CacheLookups.WithLabelValues("local", d.name, "miss").Inc()
		return zero, false
	}
	if !e.Fresh(d.local.now(), d.ttl) {
		metrics.CacheLookups.WithLabelValues("local", d.name, "stale").Inc()
		return zero, false
	}
	metrics.CacheLookups.WithLabelValues("local", d.name, "hit").Inc()
	return e.Data, true
}

// Set overwrites the local entry with data stamped at the current time.
func (d *Domain[T]) Set(ctx context.Context, userID string, data T) {
	key := LocalKey(d.name, userID)
	raw, err := encode(data, d.local.now())
	if err == nil {
		err = d.local.write(ctx, key, raw)
	}
	if err != nil {
		metrics.CacheWriteErrors.WithLabelValues("local", d.name).Inc()
		d.local.logger.Debug("cache: local write discarded", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// GetOffline returns the offline entry for userID if it is younger than OfflineTTL.
func (d *Domain[T]) GetOffline(_ context.Context, userID string) (T, bool) {
	var zero T
	if d.offline == nil {
		return zero, false
	}
	raw, ok := d.offline.read(OfflineKey(d.name, userID))
	if !ok {
		metrics.CacheLookups.WithLabelValues("offline", d.name, "miss").Inc()
		return zero, false
	}
	e, ok := decode[T](raw)
	if !ok {
		metrics.CacheLookups.WithLabelValues("offline", d.name, "miss").Inc()
		return zero, false
	}
	if !e.Fresh(d.offline.now(), OfflineTTL) {
		metrics.CacheLookups.WithLabelValues("offline", d.name, "stale").Inc()
		return zero, false
	}
	metrics.CacheLookups.WithLabelValues("offline", d.name, "hit").Inc()
	return e.Data, true
}

// SetOffline overwrites the offline entry for userID.
func (d *Domain[T]) SetOffline(_ context.Context, userID string, data T) {
	if d.offline == nil {
		return
	}
	key := OfflineKey(d.name, userID)
	raw, err := encode(data, d.offline.now())
	if err == nil {
		err = d.offline.write(key, raw)
	}
	if err != nil {
		metrics.CacheWriteErrors.WithLabelValues("offline", d.name).Inc()
		d.offline.logger.Debug("cache: offline write discarded", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Hydrate reads the local tier first and falls back to the offline tier.
func (d *Domain[T]) Hydrate(ctx context.Context, userID string) (T, Source, bool) {
	if data, ok := d.Get(ctx, userID); ok {
		return data, SourceCache, true
	}
	if data, ok := d.GetOffline(ctx, userID); ok {
		return data, SourceOffline, true
	}
	var zero T
	return zero, SourceNone, false
}

// Persist writes data to both tiers.
func (d *Domain[T]) Persist(ctx context.Context, userID string, data T) {
	d.Set(ctx, userID, data)
	d.SetOffline(ctx, userID, data)
}
