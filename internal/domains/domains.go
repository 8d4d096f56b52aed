// Package domains binds each synchronized data domain (contacts, profile,
// events, tags, templates, signatures) to a datasync.Hook and adds the
// domain-specific mutators.
package domains

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/cache"
	"github.com/starford/synka/internal/datasync"
	"github.com/starford/synka/internal/models"
	"github.com/starford/synka/internal/remote"
	"github.com/starford/synka/internal/seed"
	"github.com/starford/synka/internal/syncbus"
)

// Domain names. They double as cache key prefixes.
const (
	ContactsDomain   = "contacts"
	ProfileDomain    = "profile"
	EventsDomain     = "events"
	TagsDomain       = "tags"
	TemplatesDomain  = "templates"
	SignaturesDomain = "signatures"
)

// Names lists every domain in mount order.
var Names = []string{ContactsDomain, ProfileDomain, EventsDomain, TagsDomain, TemplatesDomain, SignaturesDomain}

// TTLs holds the local cache TTL per domain.
type TTLs struct {
	Contacts   time.Duration `yaml:"contacts"`
	Profile    time.Duration `yaml:"profile"`
	Events     time.Duration `yaml:"events"`
	Tags       time.Duration `yaml:"tags"`
	Templates  time.Duration `yaml:"templates"`
	Signatures time.Duration `yaml:"signatures"`
}

// DefaultTTLs returns one hour for contacts and profile and thirty minutes
// for the rest.
func DefaultTTLs() TTLs {
	return TTLs{
		Contacts:   time.Hour,
		Profile:    time.Hour,
		Events:     30 * time.Minute,
		Tags:       30 * time.Minute,
		Templates:  30 * time.Minute,
		Signatures: 30 * time.Minute,
	}
}

// User identifies the signed-in account.
type User struct {
	ID    string
	Email string
	Name  string
	Phone string
}

// Deps are the collaborators shared by every domain of a session.
type Deps struct {
	User    User
	Remote  *remote.Service
	Local   *cache.Local
	Offline *cache.Offline
	Guard   *seed.Guard
	Bus     *syncbus.Bus
	TTL     TTLs

	// SuppressContacts is consulted on every contacts refresh result.
	SuppressContacts func(ctx context.Context) bool
	Sequencing       bool
	// CardBaseURL prefixes public card links, e.g. https://synka.in.
	CardBaseURL string

	Now    func() time.Time
	Logger *slog.Logger
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// hookConfig returns the datasync config for a domain built from the shared deps.
func hookConfig[T any](d Deps, domain string, ttl time.Duration, fetch func(context.Context) (T, error)) datasync.Config[T] {
	return datasync.Config[T]{
		Domain:     domain,
		UserID:     d.User.ID,
		Cache:      cache.NewDomain[T](domain, ttl, d.Local, d.Offline),
		Fetch:      fetch,
		Guard:      d.Guard,
		Bus:        d.Bus,
		Sequencing: d.Sequencing,
		Logger:     d.logger(),
	}
}

var errNoRows = errors.New("insert returned no rows")

// list is the shared implementation of the list-shaped domains.
type list[T any] struct {
	*datasync.Hook[[]T]
	table remote.Table[T]
	id    func(T) string
}

// Rows returns the current data.
func (l *list[T]) Rows() []T {
	return l.State().Data
}

// Find returns the row with id from the current state.
func (l *list[T]) Find(id string) (T, bool) {
	for _, row := range l.Rows() {
		if l.id(row) == id {
			return row, true
		}
	}
	var zero T
	return zero, false
}

// Update applies patch locally, then remotely; a remote failure rolls back.
func (l *list[T]) Update(ctx context.Context, id string, patch models.Patch) error {
	return l.update(ctx, "update", id, patch, patch)
}

// update patches the local row with local and sends remotePatch upstream.
func (l *list[T]) update(ctx context.Context, action, id string, local, remotePatch models.Patch) error {
	if _, ok := l.Find(id); !ok {
		return fmt.Errorf("%s %s: %w", l.Domain(), id, apperr.ErrNotFound)
	}
	var applyErr error
	err := l.Optimistic(ctx, action, func(rows []T) []T {
		out := slices.Clone(rows)
		for i, row := range out {
			if l.id(row) != id {
				continue
			}
			patched, err := models.Apply(row, local)
			if err != nil {
				applyErr = err
				return rows
			}
			out[i] = patched
		}
		return out
	}, func(ctx context.Context) error {
		if applyErr != nil {
			return applyErr
		}
		return l.table.Update(ctx, id, remotePatch)
	})
	if err != nil {
		return fmt.Errorf("%s: update %s: %w", l.Domain(), id, err)
	}
	return nil
}

// Delete removes the row remotely, then locally.
func (l *list[T]) Delete(ctx context.Context, id string) error {
	err := l.Authoritative(ctx, "delete", func(ctx context.Context) error {
		return l.table.Delete(ctx, id)
	}, func(rows []T) []T {
		return slices.DeleteFunc(slices.Clone(rows), func(row T) bool { return l.id(row) == id })
	})
	if err != nil {
		return fmt.Errorf("%s: delete %s: %w", l.Domain(), id, err)
	}
	return nil
}

// create inserts row remotely and places the stored row into the local list.
func (l *list[T]) create(ctx context.Context, row T, place func([]T, T) []T) (T, error) {
	var created T
	err := l.Authoritative(ctx, "create", func(ctx context.Context) error {
		out, err := l.table.Insert(ctx, row)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return errNoRows
		}
		created = out[0]
		return nil
	}, func(rows []T) []T {
		return place(slices.Clone(rows), created)
	})
	if err != nil {
		return created, fmt.Errorf("%s: create: %w", l.Domain(), err)
	}
	return created, nil
}

func appendRow[T any](rows []T, row T) []T  { return append(rows, row) }
func prependRow[T any](rows []T, row T) []T { return append([]T{row}, rows...) }
