package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/kvstore"
)

// Local is the primary cache tier, kept in a kvstore.Store.
type Local struct {
	kv kvstore.Store
	options
}

// NewLocal creates a local cache over kv.
func NewLocal(kv kvstore.Store, opts ...Option) *Local {
	return &Local{kv: kv, options: buildOptions(opts)}
}

// LocalKey is the key of a domain's cache entry for a user.
func LocalKey(domain, userID string) string {
	return domain + "_cache_" + userID
}

func (l *Local) read(ctx context.Context, key string) ([]byte, bool) {
	raw, err := l.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			l.logger.Debug("cache: local read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	return raw, true
}

func (l *Local) write(ctx context.Context, key string, raw []byte) error {
	return l.kv.Set(ctx, key, raw)
}
