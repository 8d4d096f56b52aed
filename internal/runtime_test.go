package internal

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/synka/internal/domains"
	"github.com/starford/synka/internal/interaction"
	"github.com/starford/synka/internal/kvstore"
	"github.com/starford/synka/internal/models"
)

func runtimeConfig(t *testing.T, backend kvstore.Backend) *Config {
	t.Helper()
	cfg := validConfig()
	cfg.Cache.Backend = backend
	cfg.Remote.Mode = RemoteModeMemory
	cfg.Offline.Path = t.TempDir()
	cfg.Connectivity.Enabled = false
	return cfg
}

func startRuntime(t *testing.T, cfg *Config) *runtime {
	t.Helper()
	rt, err := start(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	rt.session.Wait()
	return rt
}

func TestRuntime_InteractionStateOutlivesCacheBackend(t *testing.T) {
	for _, backend := range []kvstore.Backend{kvstore.NoneBackend, kvstore.MemoryBackend} {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			cfg := runtimeConfig(t, backend)

			rt := startRuntime(t, cfg)
			c, err := rt.session.Contacts.Create(ctx, domains.ContactInput{Name: "Asha", Phone: "98765 43210"})
			if err != nil {
				t.Fatalf("create contact: %v", err)
			}
			if _, err := rt.tracker.Start(ctx, c, models.InteractionCall, interaction.Message{}); err != nil {
				t.Fatalf("start interaction: %v", err)
			}
			if _, ok := rt.tracker.Pending(ctx); !ok {
				t.Fatal("pending slot lost before restart")
			}
			rt.close()

			restarted := startRuntime(t, cfg)
			defer restarted.close()
			p, ok := restarted.tracker.Pending(ctx)
			if !ok {
				t.Fatal("pending slot lost across restart")
			}
			if p.ContactID != c.ID {
				t.Errorf("pending contact = %q, want %q", p.ContactID, c.ID)
			}
			if !restarted.tracker.ConsumeReturning(ctx) {
				t.Error("returning flag lost across restart")
			}
		})
	}
}

func TestRuntime_ReadyWithoutCache(t *testing.T) {
	rt := startRuntime(t, runtimeConfig(t, kvstore.NoneBackend))
	defer rt.close()

	if err := rt.ready(context.Background()); err != nil {
		t.Fatalf("ready: %v", err)
	}
}
