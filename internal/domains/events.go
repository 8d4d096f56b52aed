package domains

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/datasync"
	"github.com/starford/synka/internal/models"
)

// EventInput is the writable subset of an event. A zero start defaults to now.
type EventInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

// DefaultEvents returns the example event seeded for new users.
func DefaultEvents(userID string) []models.Event {
	ist := time.FixedZone("IST", 5*60*60+30*60)
	end := time.Date(2026, 1, 1, 17, 0, 0, 0, ist).UTC()
	return []models.Event{{
		UserID:      userID,
		Title:       "Networking Meetup",
		Description: "Local business networking event",
		StartTime:   time.Date(2026, 1, 1, 10, 0, 0, 0, ist).UTC(),
		EndTime:     &end,
	}}
}

// Events are the user's networking events, newest start first.
type Events struct {
	list[models.Event]
	user string
	now  func() time.Time
}

func newEvents(d Deps) (*Events, error) {
	e := &Events{user: d.User.ID, now: d.now}
	table := d.Remote.Events
	cfg := hookConfig(d, EventsDomain, d.TTL.Events, func(ctx context.Context) ([]models.Event, error) {
		return table.List(ctx, e.user)
	})
	cfg.Seed = func(ctx context.Context) ([]models.Event, error) {
		return table.Insert(ctx, DefaultEvents(e.user)...)
	}
	hook, err := datasync.New(cfg)
	if err != nil {
		return nil, err
	}
	e.list = list[models.Event]{Hook: hook, table: table, id: func(e models.Event) string { return e.ID }}
	return e, nil
}

// Create inserts an event and keeps the list ordered by start time.
func (e *Events) Create(ctx context.Context, in EventInput) (models.Event, error) {
	if in.Title == "" {
		return models.Event{}, fmt.Errorf("events: title is required: %w", apperr.ErrInvalidInput)
	}
	if in.StartTime.IsZero() {
		in.StartTime = e.now()
	}
	if in.EndTime != nil && in.EndTime.Before(in.StartTime) {
		return models.Event{}, fmt.Errorf("events: end before start: %w", apperr.ErrInvalidInput)
	}
	row := models.Event{
		UserID:      e.user,
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	}
	return e.create(ctx, row, func(rows []models.Event, created models.Event) []models.Event {
		rows = append(rows, created)
		slices.SortStableFunc(rows, func(a, b models.Event) int { return cmp.Compare(b.StartTime.UnixNano(), a.StartTime.UnixNano()) })
		return rows
	})
}

// ActiveAt returns the events in progress at t.
func (e *Events) ActiveAt(t time.Time) []models.Event {
	var out []models.Event
	for _, ev := range e.Rows() {
		if ev.ActiveAt(t) {
			out = append(out, ev)
		}
	}
	return out
}

// Ref returns the display projection of the event with id.
func (e *Events) Ref(id string) (models.EventRef, bool) {
	ev, ok := e.Find(id)
	if !ok {
		return models.EventRef{}, false
	}
	return ev.Ref(), true
}
