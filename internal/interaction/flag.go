package interaction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/kvstore"
)

// Persisted keys.
const (
	PendingKey   = "pending_crm_interaction"
	ReturningKey = "crm_returning_from_interaction"
)

// ReturningFlag is the one-shot marker set when the user leaves for an
// external app. The first contacts refresh after return consumes it and is
// discarded, so it cannot overwrite a note written right after returning.
type ReturningFlag struct {
	kv     kvstore.Store
	logger *slog.Logger
}

// NewReturningFlag creates a flag stored in kv.
func NewReturningFlag(kv kvstore.Store, logger *slog.Logger) *ReturningFlag {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReturningFlag{kv: kv, logger: logger}
}

// Set raises the flag.
func (f *ReturningFlag) Set(ctx context.Context) {
	if err := f.kv.Set(ctx, ReturningKey, []byte("1")); err != nil {
		f.logger.Warn("interaction: set returning flag", slog.String("error", err.Error()))
	}
}

// Consume reports whether the flag was raised and lowers it.
func (f *ReturningFlag) Consume(ctx context.Context) bool {
	raw, err := f.kv.Get(ctx, ReturningKey)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			f.logger.Warn("interaction: read returning flag", slog.String("error", err.Error()))
		}
		return false
	}
	if string(raw) != "1" {
		return false
	}
	if err := f.kv.Delete(ctx, ReturningKey); err != nil {
		f.logger.Warn("interaction: clear returning flag", slog.String("error", err.Error()))
	}
	return true
}
