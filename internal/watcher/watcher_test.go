package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/synka/internal/cache"
	"github.com/starford/synka/internal/storage"
	"github.com/starford/synka/internal/syncbus"
	"github.com/starford/synka/internal/testutil"
)

type env struct {
	dir     string
	store   *storage.FS
	offline *cache.Offline
	bus     *syncbus.Bus

	mu     sync.Mutex
	events []syncbus.Event
}

func (e *env) seen(topic syncbus.Topic) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.Topic == topic {
			n++
		}
	}
	return n
}

// startWatcher runs Watch on a temp offline directory and records bus events.
func startWatcher(t *testing.T) *env {
	t.Helper()
	dir, store := testutil.TestOffline(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	e := &env{dir: dir, store: store, offline: cache.NewOffline(store, cache.WithLogger(logger)), bus: syncbus.New()}

	sub := e.bus.Subscribe(syncbus.TopicDataSync, syncbus.TopicOfflineChanged)
	go func() {
		for ev := range sub.C {
			e.mu.Lock()
			e.events = append(e.events, ev)
			e.mu.Unlock()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, e.offline, store, e.bus, logger)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		e.bus.Close()
	})

	time.Sleep(100 * time.Millisecond)
	return e
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_ExternalWriteSyncs(t *testing.T) {
	e := startWatcher(t)

	payload := []byte(`{"data":[],"timestamp":1}`)
	if err := os.WriteFile(filepath.Join(e.dir, "contacts_u1.json"), payload, 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return e.seen(syncbus.TopicDataSync) == 1
	}, "external write did not trigger data-sync")

	e.mu.Lock()
	defer e.mu.Unlock()
	var change Change
	for _, ev := range e.events {
		if c, ok := ev.Data.(Change); ok {
			change = c
			break
		}
	}
	if change.Key != "contacts_u1" || change.Kind != KindUpdated {
		t.Errorf("change = %+v", change)
	}
}

func TestWatcher_BurstIsDebounced(t *testing.T) {
	e := startWatcher(t)

	for i := range 5 {
		name := filepath.Join(e.dir, "tags_u1.json")
		if err := os.WriteFile(name, []byte{byte('0' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return e.seen(syncbus.TopicDataSync) >= 1
	}, "burst did not trigger data-sync")
	time.Sleep(3 * Debounce)
	if n := e.seen(syncbus.TopicDataSync); n != 1 {
		t.Errorf("data-sync count = %d, want 1", n)
	}
}

func TestWatcher_OwnWriteIgnored(t *testing.T) {
	e := startWatcher(t)

	d := cache.NewDomain[[]string]("tags", time.Hour, nil, e.offline)
	d.SetOffline(context.Background(), "u1", []string{"Hot"})

	time.Sleep(5 * Debounce)
	if n := e.seen(syncbus.TopicDataSync); n != 0 {
		t.Errorf("own write triggered %d data-sync events", n)
	}
	if n := e.seen(syncbus.TopicOfflineChanged); n != 0 {
		t.Errorf("own write published %d change events", n)
	}
}

func TestWatcher_RemovalPublishesChange(t *testing.T) {
	e := startWatcher(t)

	d := cache.NewDomain[[]string]("tags", time.Hour, nil, e.offline)
	d.SetOffline(context.Background(), "u1", []string{"Hot"})
	time.Sleep(2 * Debounce)

	if err := os.Remove(filepath.Join(e.dir, "tags_u1.json")); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return e.seen(syncbus.TopicOfflineChanged) == 1
	}, "removal not published")
	if n := e.seen(syncbus.TopicDataSync); n != 0 {
		t.Errorf("removal triggered %d data-sync events", n)
	}
}

func TestIsEntry(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"contacts_u1.json", true},
		{".synka-tmp-123", false},
		{"notes.txt", false},
		{filepath.Join("a", "b.json"), false},
	}
	for _, tt := range tests {
		if got := isEntry(tt.in); got != tt.want {
			t.Errorf("isEntry(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
