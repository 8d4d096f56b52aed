// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheLookups counts cache reads by store ("local", "offline"), domain and
	// result ("hit", "miss", "stale").
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synka",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by store, domain and result.",
	}, []string{"store", "domain", "result"})

	// CacheWriteErrors counts swallowed cache write failures.
	CacheWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synka",
		Subsystem: "cache",
		Name:      "write_errors_total",
		Help:      "Cache writes that failed and were discarded.",
	}, []string{"store", "domain"})

	// Fetches counts remote list fetches by domain and outcome.
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synka",
		Subsystem: "sync",
		Name:      "fetches_total",
		Help:      "Remote fetches by domain and outcome.",
	}, []string{"domain", "outcome"})

	// Seeds counts default-record seeding attempts by domain and outcome.
	Seeds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synka",
		Subsystem: "sync",
		Name:      "seeds_total",
		Help:      "Default-record seeding attempts by domain and outcome.",
	}, []string{"domain", "outcome"})

	// Mutations counts mutations by domain, kind and outcome.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synka",
		Subsystem: "sync",
		Name:      "mutations_total",
		Help:      "Mutations by domain, kind (optimistic, authoritative) and outcome.",
	}, []string{"domain", "kind", "outcome"})

	// BusDropped counts events dropped because a subscriber buffer was full.
	BusDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "synka",
		Subsystem: "bus",
		Name:      "dropped_total",
		Help:      "Events dropped on full subscriber buffers.",
	})

	// Interactions counts pending-interaction transitions by target state.
	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synka",
		Subsystem: "interaction",
		Name:      "transitions_total",
		Help:      "Pending-interaction state transitions by target state.",
	}, []string{"state"})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
