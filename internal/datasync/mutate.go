package datasync

import (
	"context"
	"log/slog"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/metrics"
	"github.com/starford/synka/internal/syncbus"
)

// Change derives the next value from the current one. It must not modify its
// argument and must not call back into the hook.
type Change[T any] func(T) T

// Optimistic applies change locally, then runs remote. When remote fails the
// previous value is restored and a notice is published. On success both cache
// tiers are refreshed.
func (h *Hook[T]) Optimistic(ctx context.Context, action string, change Change[T], remote func(ctx context.Context) error) error {
	h.mu.Lock()
	if h.unmounted {
		h.mu.Unlock()
		return apperr.ErrUnmounted
	}
	prev := h.state.Data
	h.state.Data = change(prev)
	h.stamp()
	h.mu.Unlock()
	h.publishState()

	if err := remote(ctx); err != nil {
		h.mu.Lock()
		h.state.Data = prev
		h.stamp()
		h.mu.Unlock()
		metrics.Mutations.WithLabelValues(h.cfg.Domain, "optimistic", "rolled_back").Inc()
		h.logger.Warn("datasync: optimistic update rolled back",
			slog.String("action", action),
			slog.String("error", err.Error()))
		h.publishState()
		h.notify(action, err)
		return err
	}

	metrics.Mutations.WithLabelValues(h.cfg.Domain, "optimistic", "ok").Inc()
	h.persist(ctx)
	return nil
}

// Authoritative runs remote first and applies change only after it succeeds.
// Failures publish a notice and leave the state untouched.
func (h *Hook[T]) Authoritative(ctx context.Context, action string, remote func(ctx context.Context) error, change Change[T]) error {
	h.mu.Lock()
	unmounted := h.unmounted
	h.mu.Unlock()
	if unmounted {
		return apperr.ErrUnmounted
	}

	if err := remote(ctx); err != nil {
		metrics.Mutations.WithLabelValues(h.cfg.Domain, "authoritative", "error").Inc()
		h.logger.Warn("datasync: mutation failed",
			slog.String("action", action),
			slog.String("error", err.Error()))
		h.notify(action, err)
		return err
	}

	h.mu.Lock()
	if change != nil {
		h.state.Data = change(h.state.Data)
	}
	h.stamp()
	h.mu.Unlock()
	metrics.Mutations.WithLabelValues(h.cfg.Domain, "authoritative", "ok").Inc()
	h.publishState()
	h.persist(ctx)
	return nil
}

// stamp marks a local write so older in-flight fetches are discarded when
// sequencing is on. Callers hold h.mu.
func (h *Hook[T]) stamp() {
	h.clock++
	h.applied = h.clock
}

func (h *Hook[T]) persist(ctx context.Context) {
	h.mu.Lock()
	data := h.state.Data
	h.mu.Unlock()
	h.cfg.Cache.Persist(ctx, h.cfg.UserID, data)
}

func (h *Hook[T]) notify(action string, err error) {
	if h.cfg.Bus == nil {
		return
	}
	h.cfg.Bus.Publish(syncbus.TopicNotice, Notice{
		Domain:  h.cfg.Domain,
		Action:  action,
		Message: err.Error(),
	})
}
