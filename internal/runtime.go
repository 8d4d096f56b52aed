package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/synka/internal/cache"
	"github.com/starford/synka/internal/connectivity"
	"github.com/starford/synka/internal/domains"
	"github.com/starford/synka/internal/interaction"
	"github.com/starford/synka/internal/kvstore"
	"github.com/starford/synka/internal/remote"
	"github.com/starford/synka/internal/seed"
	"github.com/starford/synka/internal/storage"
	"github.com/starford/synka/internal/syncbus"
)

// runtime is the set of long-lived services shared by the HTTP server and
// the MCP server.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	kv      kvstore.Store
	state   *kvstore.File
	offline *cache.Offline
	store   *storage.FS
	bus     *syncbus.Bus
	remote  *remote.Service
	session *domains.Session
	tracker *interaction.Tracker
	monitor *connectivity.Monitor
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger initializes the structured JSON logger and makes it the default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// stateDir holds the pending interaction slot and the returning flag,
// relative to the offline directory.
const stateDir = "state"

// start opens every store, builds the session and mounts it.
func start(ctx context.Context, cfg *Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	// Ensure offline directory exists.
	if err := os.MkdirAll(cfg.Offline.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create offline dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Offline.Path)
	if err != nil {
		return nil, fmt.Errorf("init offline storage: %w", err)
	}
	rt.store = store
	// Interaction state stays on disk whatever cache backend is configured.
	rt.state = kvstore.NewFile(store, stateDir)

	kv, err := kvstore.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("init cache store: %w", err)
	}
	rt.kv = kv

	local := cache.NewLocal(kv, cache.WithLogger(logger))
	rt.offline = cache.NewOffline(store, cache.WithLogger(logger))
	if cfg.Offline.Cleanup {
		n, err := rt.offline.Cleanup(ctx)
		if err != nil {
			logger.Warn("offline cleanup failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Info("offline cleanup", slog.Int("removed", n))
		}
	}

	svc, err := newRemote(cfg.Remote, logger)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.remote = svc
	rt.bus = syncbus.New()

	returning := interaction.NewReturningFlag(rt.state, logger)
	sess, err := domains.NewSession(domains.Deps{
		User:             cfg.Session.User(),
		Remote:           svc,
		Local:            local,
		Offline:          rt.offline,
		Guard:            seed.NewGuard(),
		Bus:              rt.bus,
		TTL:              cfg.TTL,
		SuppressContacts: returning.Consume,
		Sequencing:       cfg.Sync.Sequencing,
		CardBaseURL:      cfg.Card.BaseURL,
		Logger:           logger,
	})
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("init session: %w", err)
	}
	rt.session = sess
	rt.tracker = interaction.New(rt.state, sess.Contacts,
		interaction.WithBus(rt.bus),
		interaction.WithLogger(logger))
	rt.monitor = connectivity.New(svc.Ping, rt.bus, connectivity.Options{
		Interval: cfg.Connectivity.Interval,
		Timeout:  cfg.Connectivity.Timeout,
		Logger:   logger,
	})

	sess.Mount(ctx)
	logger.Info("session mounted",
		slog.String("user_id", cfg.Session.UserID),
		slog.Any("loading", sess.Loading()))
	return rt, nil
}

func newRemote(cfg RemoteConfig, logger *slog.Logger) (*remote.Service, error) {
	switch cfg.Mode {
	case RemoteModeMemory:
		logger.Warn("remote: using in-memory service, data is not persisted upstream")
		return remote.NewMemoryService(time.Now).Service, nil
	case RemoteModeHTTP, "":
		client, err := remote.NewClient(remote.ClientOptions{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			AccessToken: cfg.AccessToken,
			Timeout:     cfg.Timeout,
			Retry:       cfg.Retry.Policy(),
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init remote: %w", err)
		}
		return remote.NewHTTPService(client), nil
	}
	return nil, fmt.Errorf("remote: unsupported mode %q", cfg.Mode)
}

// ready reports whether the cache store and the interaction state answer.
func (rt *runtime) ready(ctx context.Context) error {
	for _, s := range []kvstore.Store{rt.kv, rt.state} {
		st, err := s.Status(ctx)
		if err != nil {
			return err
		}
		if !st.Connected {
			return fmt.Errorf("%s store disconnected", st.Backend)
		}
	}
	return nil
}

// close unmounts the session and releases every store.
func (rt *runtime) close() {
	if rt.session != nil {
		rt.session.Unmount()
	}
	if rt.bus != nil {
		rt.bus.Close()
	}
	if rt.kv != nil {
		if err := rt.kv.Close(); err != nil {
			rt.logger.Warn("cache store close failed", slog.String("error", err.Error()))
		}
	}
}
