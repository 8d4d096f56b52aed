// Package connectivity watches reachability of the remote service and turns
// a restored connection into a data-sync broadcast.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/synka/internal/syncbus"
)

// DefaultInterval is the probe period when none is configured.
const DefaultInterval = 30 * time.Second

// Status is the payload of network.online and network.offline events.
type Status struct {
	Online bool      `json:"online"`
	Since  time.Time `json:"since"`
}

// Monitor probes the remote service and publishes connectivity transitions.
// Going from offline to online also publishes data-sync.
type Monitor struct {
	probe    func(ctx context.Context) error
	bus      *syncbus.Bus
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	online bool
	known  bool
	since  time.Time
}

// Options configures a Monitor.
type Options struct {
	Interval time.Duration
	// Timeout bounds a single probe. Zero means the probe's own behaviour.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// New creates a monitor. The connection is assumed online until a probe or
// Set says otherwise.
func New(probe func(ctx context.Context) error, bus *syncbus.Bus, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Monitor{
		probe:    probe,
		bus:      bus,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		now:      opts.Now,
		logger:   opts.Logger,
		online:   true,
		since:    opts.Now(),
	}
}

// Run probes immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("connectivity: monitor started", slog.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("connectivity: monitor stopped")
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.probe == nil {
		return m.Status().Online
	}
	pctx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	err := m.probe(pctx)
	if err != nil && ctx.Err() != nil {
		return m.Status().Online
	}
	if err != nil {
		m.logger.Debug("connectivity: probe failed", slog.String("error", err.Error()))
	}
	m.Set(err == nil)
	return err == nil
}

// Set records the connection state reported by the platform or a probe.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	changed := !m.known || m.online != online
	wasOnline := m.online
	m.known = true
	if m.online != online {
		m.since = m.now()
	}
	m.online = online
	st := Status{Online: online, Since: m.since}
	m.mu.Unlock()

	if !changed {
		return
	}
	if online {
		m.bus.Publish(syncbus.TopicNetworkOnline, st)
		if !wasOnline {
			m.logger.Info("connectivity: back online, syncing")
			m.bus.SyncNow()
		}
		return
	}
	m.logger.Warn("connectivity: offline")
	m.bus.Publish(syncbus.TopicNetworkOffline, st)
}

// Status returns the last known connection state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Online: m.online, Since: m.since}
}
