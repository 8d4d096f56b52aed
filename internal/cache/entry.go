// Package cache implements the two-tier client cache: a short-lived local
// cache in the key/value store and a long-lived offline fallback on disk.
package cache

import (
	"encoding/json"
	"log/slog"
	"time"
)

// OfflineTTL is how long an offline entry remains usable.
const OfflineTTL = 7 * 24 * time.Hour

// Entry is the persisted envelope shared by both tiers.
type Entry[T any] struct {
	Data T `json:"data"`
	// Timestamp is the write time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e Entry[T]) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(time.UnixMilli(e.Timestamp)) < ttl
}

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Local or Offline store.
type Option func(*options)

type options struct {
	now    Clock
	logger *slog.Logger
}

// WithClock overrides the time source.
func WithClock(now Clock) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for swallowed errors.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func encode[T any](data T, now time.Time) ([]byte, error) {
	return json.Marshal(Entry[T]{Data: data, Timestamp: now.UnixMilli()})
}

// decode returns the entry and whether it parsed. Freshness is checked by the caller.
func decode[T any](raw []byte) (Entry[T], bool) {
	var e Entry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, false
	}
	return e, true
}
