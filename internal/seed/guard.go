// Package seed guards first-run default-record insertion so concurrent
// consumers of the same domain never seed twice.
package seed

import (
	"context"
	"sync"
)

// Guard holds one flag per domain. It is process-wide and not persisted.
type Guard struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewGuard returns a guard with every domain released.
func NewGuard() *Guard {
	return &Guard{held: make(map[string]bool)}
}

// TryAcquire takes the flag for domain. It never waits: false means another
// seeding sequence is in flight.
func (g *Guard) TryAcquire(domain string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[domain] {
		return false
	}
	g.held[domain] = true
	return true
}

// Release clears the flag for domain.
func (g *Guard) Release(domain string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, domain)
}

// Held reports whether a seeding sequence is in flight for domain.
func (g *Guard) Held(domain string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held[domain]
}

// Run executes fn while holding the flag for domain. When the flag is already
// held it returns immediately with ran=false. The flag is released even if fn
// fails or panics.
func (g *Guard) Run(ctx context.Context, domain string, fn func(ctx context.Context) error) (ran bool, err error) {
	if !g.TryAcquire(domain) {
		return false, nil
	}
	defer g.Release(domain)
	return true, fn(ctx)
}
