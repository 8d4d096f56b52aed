// Package datasync implements the stale-while-revalidate state holder shared
// by every synchronized domain.
//
// A Hook hydrates from the cache tiers synchronously on Mount, revalidates
// against the remote service in the background, seeds default records for
// first-time users and refetches whenever the bus carries the data-sync signal.
package datasync

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"

	"github.com/starford/synka/internal/cache"
	"github.com/starford/synka/internal/metrics"
	"github.com/starford/synka/internal/seed"
	"github.com/starford/synka/internal/syncbus"
)

// State is the observable snapshot of a domain.
type State[T any] struct {
	Data    T    `json:"data"`
	Loading bool `json:"loading"`
}

// StateChange is published on syncbus.TopicState after every state update.
type StateChange struct {
	Domain  string `json:"domain"`
	Loading bool   `json:"loading"`
}

// Notice is published on syncbus.TopicNotice when a mutation fails.
type Notice struct {
	Domain  string `json:"domain"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

// Config wires a Hook to its collaborators.
type Config[T any] struct {
	Domain string
	UserID string
	Cache  *cache.Domain[T]

	// Fetch reads the authoritative value from the remote service.
	Fetch func(ctx context.Context) (T, error)
	// IsEmpty decides whether a value counts as "no data". Defaults to a
	// nil/zero-length check.
	IsEmpty func(T) bool

	// Seed inserts default records when Fetch returns an empty value and
	// returns what was inserted. Nil disables seeding.
	Seed  func(ctx context.Context) (T, error)
	Guard *seed.Guard

	Bus *syncbus.Bus
	// Suppress is consulted on every refresh result that would replace shown
	// data; true discards it.
	Suppress func(ctx context.Context) bool
	// Sequencing discards fetch results older than the last applied state.
	Sequencing bool

	Logger *slog.Logger
}

// ErrMisconfigured is returned by New when a required collaborator is missing.
var ErrMisconfigured = errors.New("datasync: hook misconfigured")

// Hook owns the state of one domain for one user.
type Hook[T any] struct {
	cfg    Config[T]
	logger *slog.Logger

	mu        sync.Mutex
	state     State[T]
	clock     uint64
	applied   uint64
	mounted   bool
	unmounted bool
	sub       *syncbus.Subscription
	bg        context.Context
	done      chan struct{}

	wg sync.WaitGroup
}

// New validates cfg and returns an unmounted hook.
func New[T any](cfg Config[T]) (*Hook[T], error) {
	switch {
	case cfg.Domain == "":
		return nil, errors.Join(ErrMisconfigured, errors.New("domain is required"))
	case cfg.Cache == nil:
		return nil, errors.Join(ErrMisconfigured, errors.New("cache is required"))
	case cfg.Fetch == nil:
		return nil, errors.Join(ErrMisconfigured, errors.New("fetch is required"))
	case cfg.Seed != nil && cfg.Guard == nil:
		return nil, errors.Join(ErrMisconfigured, errors.New("seeding requires a guard"))
	}
	if cfg.IsEmpty == nil {
		cfg.IsEmpty = isEmpty[T]
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook[T]{
		cfg:    cfg,
		logger: logger.With(slog.String("domain", cfg.Domain)),
		done:   make(chan struct{}),
	}, nil
}

// Domain returns the domain name.
func (h *Hook[T]) Domain() string { return h.cfg.Domain }

// Mount hydrates the state from the cache tiers before returning, then starts
// the background revalidation and the data-sync listener. Hydration makes no
// remote calls. Mount is a no-op after the first call.
func (h *Hook[T]) Mount(ctx context.Context) {
	h.mu.Lock()
	if h.mounted {
		h.mu.Unlock()
		return
	}
	h.mounted = true
	h.bg = context.WithoutCancel(ctx)
	h.mu.Unlock()

	data, src, ok := h.cfg.Cache.Hydrate(ctx, h.cfg.UserID)
	warm := ok && !h.cfg.IsEmpty(data)

	h.mu.Lock()
	if warm {
		h.state = State[T]{Data: data}
	} else {
		h.state = State[T]{Loading: true}
	}
	h.mu.Unlock()
	h.logger.Debug("datasync: mounted", slog.Bool("warm", warm), slog.String("source", string(src)))
	h.publishState()

	if h.cfg.Bus != nil {
		sub := h.cfg.Bus.Subscribe(syncbus.TopicDataSync)
		h.mu.Lock()
		h.sub = sub
		h.mu.Unlock()
		go h.listen(sub)
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		// Warm hydration revalidates silently; loading stays false.
		_ = h.fetch(h.bg, !warm)
	}()
}

// Unmount stops the data-sync listener. In-flight fetches are not cancelled
// but their results are ignored.
func (h *Hook[T]) Unmount() {
	h.mu.Lock()
	if h.unmounted {
		h.mu.Unlock()
		return
	}
	h.unmounted = true
	sub := h.sub
	h.mu.Unlock()

	close(h.done)
	if sub != nil && h.cfg.Bus != nil {
		h.cfg.Bus.Unsubscribe(sub)
	}
}

// Wait blocks until the revalidation started by Mount has finished.
func (h *Hook[T]) Wait() {
	h.wg.Wait()
}

// State returns the current snapshot.
func (h *Hook[T]) State() State[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Refetch runs the foreground fetch path and returns when it completes.
func (h *Hook[T]) Refetch(ctx context.Context) error {
	return h.fetch(ctx, true)
}

func (h *Hook[T]) listen(sub *syncbus.Subscription) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			h.logger.Debug("datasync: data-sync signal, refetching")
			_ = h.fetch(h.bg, true)
		}
	}
}

// fetch is the single refresh path. foreground marks the state as loading
// while the remote call is in flight.
func (h *Hook[T]) fetch(ctx context.Context, foreground bool) error {
	h.mu.Lock()
	if h.unmounted {
		h.mu.Unlock()
		return nil
	}
	h.clock++
	seq := h.clock
	changed := foreground && !h.state.Loading
	if foreground {
		h.state.Loading = true
	}
	h.mu.Unlock()
	if changed {
		h.publishState()
	}

	data, err := h.cfg.Fetch(ctx)
	if err != nil {
		metrics.Fetches.WithLabelValues(h.cfg.Domain, "error").Inc()
		h.logger.Warn("datasync: fetch failed", slog.String("error", err.Error()))
		var zero T
		h.apply(seq, zero, true)
		return err
	}

	if h.suppressed(ctx) {
		// Shown data is kept; the stores still take the fresh result.
		metrics.Fetches.WithLabelValues(h.cfg.Domain, "suppressed").Inc()
		h.logger.Debug("datasync: refresh suppressed")
		h.cfg.Cache.Persist(ctx, h.cfg.UserID, data)
		h.settle()
		return nil
	}

	if h.cfg.IsEmpty(data) && h.cfg.Seed != nil {
		seeded, ok := h.seed(ctx)
		if !ok {
			// Contention or seeding failure: leave the state empty and uncached.
			h.apply(seq, data, false)
			return nil
		}
		data = seeded
	}

	metrics.Fetches.WithLabelValues(h.cfg.Domain, "ok").Inc()
	if h.apply(seq, data, false) {
		h.cfg.Cache.Persist(ctx, h.cfg.UserID, data)
	}
	return nil
}

// seed runs the seeding sequence under the guard. ok is false when another
// sequence holds the guard or seeding failed.
func (h *Hook[T]) seed(ctx context.Context) (T, bool) {
	var seeded T
	ran, err := h.cfg.Guard.Run(ctx, h.cfg.Domain, func(ctx context.Context) error {
		var err error
		seeded, err = h.cfg.Seed(ctx)
		return err
	})
	switch {
	case !ran:
		metrics.Seeds.WithLabelValues(h.cfg.Domain, "skipped").Inc()
		h.logger.Debug("datasync: seeding already in flight, skipped")
		return seeded, false
	case err != nil:
		metrics.Seeds.WithLabelValues(h.cfg.Domain, "error").Inc()
		h.logger.Warn("datasync: seeding failed", slog.String("error", err.Error()))
		return seeded, false
	}
	metrics.Seeds.WithLabelValues(h.cfg.Domain, "ok").Inc()
	h.logger.Info("datasync: seeded default records")
	return seeded, true
}

// suppressed reports whether a successful fetch result should be dropped.
// Suppress is only consulted while data is shown, so a cold load always
// applies and caches its first result and leaves the flag for a later refresh.
func (h *Hook[T]) suppressed(ctx context.Context) bool {
	if h.cfg.Suppress == nil {
		return false
	}
	h.mu.Lock()
	shown := !h.cfg.IsEmpty(h.state.Data)
	h.mu.Unlock()
	return shown && h.cfg.Suppress(ctx)
}

// apply installs a fetch result. It reports false when the result was
// discarded because the hook is unmounted or, with sequencing on, a newer
// state was already applied.
func (h *Hook[T]) apply(seq uint64, data T, failed bool) bool {
	h.mu.Lock()
	if h.unmounted {
		h.mu.Unlock()
		return false
	}
	if h.cfg.Sequencing && seq < h.applied {
		h.state.Loading = false
		h.mu.Unlock()
		metrics.Fetches.WithLabelValues(h.cfg.Domain, "stale").Inc()
		h.logger.Debug("datasync: stale fetch result discarded")
		h.publishState()
		return false
	}
	h.applied = seq
	h.state = State[T]{Data: data}
	h.mu.Unlock()
	if failed {
		h.logger.Debug("datasync: state reset to empty")
	}
	h.publishState()
	return true
}

// settle clears the loading flag without touching data.
func (h *Hook[T]) settle() {
	h.mu.Lock()
	if h.unmounted || !h.state.Loading {
		h.mu.Unlock()
		return
	}
	h.state.Loading = false
	h.mu.Unlock()
	h.publishState()
}

func (h *Hook[T]) publishState() {
	if h.cfg.Bus == nil {
		return
	}
	st := h.State()
	h.cfg.Bus.Publish(syncbus.TopicState, StateChange{Domain: h.cfg.Domain, Loading: st.Loading})
}

func isEmpty[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return rv.IsZero()
}
