// Package interaction tracks outbound calls, emails and chats started from a
// contact and asks the user to confirm them once the application is back in
// focus. The pending action survives restarts in a single kvstore slot.
package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/kvstore"
	"github.com/starford/synka/internal/metrics"
	"github.com/starford/synka/internal/models"
	"github.com/starford/synka/internal/syncbus"
)

// PendingTTL is how long a pending interaction may wait for confirmation.
const PendingTTL = 24 * time.Hour

// State is a tracker state.
type State string

// Tracker states.
const (
	StateIdle              State = "idle"
	StatePending           State = "pending"
	StateAwaitingReturn    State = "awaiting_return"
	StateConfirming        State = "confirming"
	StateConfirmedNoteEdit State = "confirmed_note_edit"
	StateDeclinedNoteEdit  State = "declined_note_edit"
)

// ContactNotes is the slice of the contacts domain the tracker writes through.
type ContactNotes interface {
	Find(id string) (models.Contact, bool)
	SetNotesHistory(ctx context.Context, id string, history []models.NoteEntry) error
}

// Prompt is the confirmation question shown on return.
type Prompt struct {
	Pending  models.PendingInteraction `json:"pending"`
	Question string                    `json:"question"`
}

// Editor is the note editor opened after the user answers the prompt.
// Confirmed editors carry the system text already written to the history.
type Editor struct {
	ContactID   string `json:"contactId"`
	ContactName string `json:"contactName"`
	SystemText  string `json:"systemText,omitempty"`
	Text        string `json:"text"`
	Confirmed   bool   `json:"confirmed"`
}

// Snapshot is the observable tracker state.
type Snapshot struct {
	State  State   `json:"state"`
	Prompt *Prompt `json:"prompt,omitempty"`
	Editor *Editor `json:"editor,omitempty"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithBus publishes every transition on syncbus.TopicInteraction.
func WithBus(b *syncbus.Bus) Option {
	return func(t *Tracker) { t.bus = b }
}

// Tracker is the pending-interaction state machine.
type Tracker struct {
	kv        kvstore.Store
	contacts  ContactNotes
	returning *ReturningFlag
	bus       *syncbus.Bus
	now       func() time.Time
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	focusSeen bool
	prompt    *Prompt
	editor    *Editor
}

// New creates a tracker in the idle state.
func New(kv kvstore.Store, contacts ContactNotes, opts ...Option) *Tracker {
	t := &Tracker{
		kv:       kv,
		contacts: contacts,
		now:      time.Now,
		logger:   slog.Default(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.returning = NewReturningFlag(kv, t.logger)
	return t
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Tracker) snapshot() Snapshot {
	s := Snapshot{State: t.state}
	if t.prompt != nil {
		p := *t.prompt
		s.Prompt = &p
	}
	if t.editor != nil {
		e := *t.editor
		s.Editor = &e
	}
	return s
}

// Start records an outbound action on c and returns the URL that launches it.
// Any earlier pending action is replaced.
func (t *Tracker) Start(ctx context.Context, c models.Contact, typ models.InteractionType, msg Message) (string, error) {
	link, err := LaunchURL(c, typ, msg)
	if err != nil {
		return "", err
	}

	p := models.PendingInteraction{
		ContactID:       c.ID,
		ContactName:     c.Name,
		InteractionType: typ,
		Timestamp:       t.now(),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("interaction: encode pending: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.kv.Set(ctx, PendingKey, raw); err != nil {
		return "", fmt.Errorf("interaction: store pending: %w", err)
	}
	t.returning.Set(ctx)
	t.prompt, t.editor = nil, nil
	t.transition(StatePending)
	t.logger.Info("interaction: started",
		slog.String("contact_id", c.ID),
		slog.String("type", string(typ)))
	return link, nil
}

// FocusLost marks that the external app took over.
func (t *Tracker) FocusLost(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StatePending {
		t.transition(StateAwaitingReturn)
	}
}

// FocusGained checks the slot and returns the confirmation prompt when a
// fresh pending action exists. The first call after construction is the
// cold-load focus event and is ignored.
func (t *Tracker) FocusGained(ctx context.Context) *Prompt {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.focusSeen {
		t.focusSeen = true
		return nil
	}
	switch t.state {
	case StateConfirming:
		p := *t.prompt
		return &p
	case StateConfirmedNoteEdit, StateDeclinedNoteEdit:
		return nil
	}

	p, ok := t.load(ctx)
	if !ok {
		if t.state != StateIdle {
			t.reset(ctx)
		}
		return nil
	}
	if t.now().Sub(p.Timestamp) >= PendingTTL {
		t.logger.Info("interaction: pending expired", slog.String("contact_id", p.ContactID))
		t.reset(ctx)
		return nil
	}

	t.prompt = &Prompt{Pending: p, Question: Question(p)}
	t.transition(StateConfirming)
	prompt := *t.prompt
	return &prompt
}

// Confirm answers the prompt with yes: the system note is written to the
// contact and a note editor opens for extra detail.
func (t *Tracker) Confirm(ctx context.Context) (*Editor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateConfirming {
		return nil, fmt.Errorf("interaction: confirm in state %s: %w", t.state, apperr.ErrInvalidTransition)
	}
	p := t.prompt.Pending
	t.clearSlot(ctx)

	c, ok := t.contacts.Find(p.ContactID)
	if !ok {
		t.reset(ctx)
		return nil, fmt.Errorf("interaction: contact %s: %w", p.ContactID, apperr.ErrNotFound)
	}
	system := SystemText(p.InteractionType)
	history := append([]models.NoteEntry{{Text: system, Timestamp: t.now()}}, c.NotesHistory...)
	if err := t.contacts.SetNotesHistory(ctx, c.ID, history); err != nil {
		t.reset(ctx)
		return nil, fmt.Errorf("interaction: record %s: %w", system, err)
	}

	t.prompt = nil
	t.editor = &Editor{ContactID: c.ID, ContactName: c.Name, SystemText: system, Confirmed: true}
	t.transition(StateConfirmedNoteEdit)
	e := *t.editor
	return &e, nil
}

// Decline answers the prompt with no and opens an empty note editor.
func (t *Tracker) Decline(ctx context.Context) (*Editor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateConfirming {
		return nil, fmt.Errorf("interaction: decline in state %s: %w", t.state, apperr.ErrInvalidTransition)
	}
	p := t.prompt.Pending
	t.clearSlot(ctx)

	t.prompt = nil
	t.editor = &Editor{ContactID: p.ContactID, ContactName: p.ContactName}
	t.transition(StateDeclinedNoteEdit)
	e := *t.editor
	return &e, nil
}

// SetNoteText replaces the editor's free text.
func (t *Tracker) SetNoteText(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.editor == nil {
		return fmt.Errorf("interaction: no open editor: %w", apperr.ErrInvalidTransition)
	}
	t.editor.Text = text
	return nil
}

// Save writes the editor's note and returns to idle. On the confirmed path
// the system note becomes "{system} - {text}"; on the declined path a note is
// added only when text is not blank.
func (t *Tracker) Save(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.editor == nil {
		return fmt.Errorf("interaction: save in state %s: %w", t.state, apperr.ErrInvalidTransition)
	}
	e := *t.editor
	defer t.reset(ctx)

	c, ok := t.contacts.Find(e.ContactID)
	if !ok {
		return fmt.Errorf("interaction: contact %s: %w", e.ContactID, apperr.ErrNotFound)
	}

	var history []models.NoteEntry
	switch {
	case e.Confirmed:
		if len(c.NotesHistory) == 0 {
			return nil
		}
		history = append([]models.NoteEntry(nil), c.NotesHistory...)
		history[0].Text = ComposeNote(e.SystemText, e.Text)
	default:
		text := strings.TrimSpace(e.Text)
		if text == "" {
			return nil
		}
		history = append([]models.NoteEntry{{Text: text, Timestamp: t.now()}}, c.NotesHistory...)
	}
	if err := t.contacts.SetNotesHistory(ctx, c.ID, history); err != nil {
		return fmt.Errorf("interaction: save note: %w", err)
	}
	return nil
}

// Dismiss closes any prompt or editor without saving.
func (t *Tracker) Dismiss(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset(ctx)
}

// Pending returns the persisted pending action, if any.
func (t *Tracker) Pending(ctx context.Context) (models.PendingInteraction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

// ConsumeReturning reports and lowers the returning flag.
func (t *Tracker) ConsumeReturning(ctx context.Context) bool {
	return t.returning.Consume(ctx)
}

// load reads the slot. A malformed slot is removed.
func (t *Tracker) load(ctx context.Context) (models.PendingInteraction, bool) {
	var p models.PendingInteraction
	raw, err := t.kv.Get(ctx, PendingKey)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			t.logger.Warn("interaction: read pending", slog.String("error", err.Error()))
		}
		return p, false
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.ContactID == "" {
		t.logger.Warn("interaction: discarding malformed pending slot")
		t.clearSlot(ctx)
		return models.PendingInteraction{}, false
	}
	return p, true
}

func (t *Tracker) clearSlot(ctx context.Context) {
	if err := t.kv.Delete(ctx, PendingKey); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		t.logger.Warn("interaction: clear pending", slog.String("error", err.Error()))
	}
}

// reset returns to idle, clearing the slot and every transient field.
func (t *Tracker) reset(ctx context.Context) {
	t.clearSlot(ctx)
	t.prompt, t.editor = nil, nil
	t.transition(StateIdle)
}

func (t *Tracker) transition(to State) {
	t.state = to
	metrics.Interactions.WithLabelValues(string(to)).Inc()
	if t.bus != nil {
		t.bus.Publish(syncbus.TopicInteraction, t.snapshot())
	}
}
