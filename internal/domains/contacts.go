package domains

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/datasync"
	"github.com/starford/synka/internal/models"
	"github.com/starford/synka/internal/remote"
)

// Contact sources.
const (
	SourceManual     = "manual"
	SourcePublicForm = "public_form"
)

// ContactInput is the writable subset of a contact.
type ContactInput struct {
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	Designation string `json:"designation,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	WhatsApp    string `json:"whatsapp,omitempty"`
	LinkedIn    string `json:"linkedin,omitempty"`
	Website     string `json:"website,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Source      string `json:"source,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	About       string `json:"about,omitempty"`
}

func (in ContactInput) row(ownerID string, now time.Time) models.Contact {
	c := models.Contact{
		OwnerID:      ownerID,
		Name:         in.Name,
		Company:      in.Company,
		Designation:  in.Designation,
		Email:        in.Email,
		Phone:        in.Phone,
		WhatsApp:     in.WhatsApp,
		LinkedIn:     in.LinkedIn,
		Website:      in.Website,
		Source:       in.Source,
		PhotoURL:     in.PhotoURL,
		About:        in.About,
		NotesHistory: []models.NoteEntry{},
	}
	if c.Source == "" {
		c.Source = SourceManual
	}
	if in.Notes != "" {
		c.NotesHistory = []models.NoteEntry{{Text: in.Notes, Timestamp: now}}
	}
	return c
}

// Contacts is the contact list with denormalized tags and events.
type Contacts struct {
	list[models.Contact]
	svc    *remote.Service
	user   string
	now    func() time.Time
	logger *slog.Logger
}

func newContacts(d Deps) (*Contacts, error) {
	c := &Contacts{svc: d.Remote, user: d.User.ID, now: d.now, logger: d.logger()}
	cfg := hookConfig(d, ContactsDomain, d.TTL.Contacts, c.fetch)
	cfg.Suppress = d.SuppressContacts
	hook, err := datasync.New(cfg)
	if err != nil {
		return nil, err
	}
	c.list = list[models.Contact]{Hook: hook, table: d.Remote.Contacts, id: func(c models.Contact) string { return c.ID }}
	return c, nil
}

// fetch lists contacts and resolves their tag and event links in parallel.
// Link failures degrade to contacts without relations.
func (c *Contacts) fetch(ctx context.Context) ([]models.Contact, error) {
	contacts, err := c.svc.Contacts.List(ctx, c.user)
	if err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}
	if len(contacts) == 0 {
		return []models.Contact{}, nil
	}
	ids := make([]string, 0, len(contacts))
	for _, ct := range contacts {
		ids = append(ids, ct.ID)
	}

	var (
		tagLinks, eventLinks []models.Link
		tags                 []models.Tag
		events               []models.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tagLinks = c.tolerate(gctx, "contact_tags", func(ctx context.Context) ([]models.Link, error) {
			return c.svc.ContactTags.Links(ctx, ids)
		})
		return nil
	})
	g.Go(func() error {
		eventLinks = c.tolerate(gctx, "contact_events", func(ctx context.Context) ([]models.Link, error) {
			return c.svc.ContactEvents.Links(ctx, ids)
		})
		return nil
	})
	g.Go(func() error {
		var err error
		if tags, err = c.svc.Tags.List(gctx, c.user); err != nil {
			c.logger.Warn("contacts: tag lookup failed", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if events, err = c.svc.Events.List(gctx, c.user); err != nil {
			c.logger.Warn("contacts: event lookup failed", slog.String("error", err.Error()))
		}
		return nil
	})
	_ = g.Wait()

	return denormalize(contacts, tagLinks, eventLinks, tags, events), nil
}

func (c *Contacts) tolerate(ctx context.Context, rel string, fn func(context.Context) ([]models.Link, error)) []models.Link {
	links, err := fn(ctx)
	if err != nil {
		c.logger.Warn("contacts: relation lookup failed", slog.String("relation", rel), slog.String("error", err.Error()))
		return nil
	}
	return links
}

// denormalize attaches tag and event projections to each contact.
func denormalize(contacts []models.Contact, tagLinks, eventLinks []models.Link, tags []models.Tag, events []models.Event) []models.Contact {
	tagByID := make(map[string]models.Tag, len(tags))
	for _, t := range tags {
		tagByID[t.ID] = t
	}
	eventByID := make(map[string]models.Event, len(events))
	for _, e := range events {
		eventByID[e.ID] = e
	}
	tagsOf := map[string][]models.TagRef{}
	for _, l := range tagLinks {
		if t, ok := tagByID[l.RightID]; ok {
			tagsOf[l.LeftID] = append(tagsOf[l.LeftID], t.Ref())
		}
	}
	eventsOf := map[string][]models.EventRef{}
	for _, l := range eventLinks {
		if e, ok := eventByID[l.RightID]; ok {
			eventsOf[l.LeftID] = append(eventsOf[l.LeftID], e.Ref())
		}
	}

	out := make([]models.Contact, len(contacts))
	for i, ct := range contacts {
		ct.Tags = tagsOf[ct.ID]
		ct.Events = eventsOf[ct.ID]
		if ct.Tags == nil {
			ct.Tags = []models.TagRef{}
		}
		if ct.Events == nil {
			ct.Events = []models.EventRef{}
		}
		out[i] = ct
	}
	return out
}

// Create inserts a contact, links eventIDs and places the new row, with the
// events that were linked, at the head of the local list. No refetch runs.
func (c *Contacts) Create(ctx context.Context, in ContactInput, eventIDs ...string) (models.Contact, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Contact{}, fmt.Errorf("contacts: name is required: %w", apperr.ErrInvalidInput)
	}
	row := in.row(c.user, c.now())
	var created models.Contact
	err := c.Authoritative(ctx, "create", func(ctx context.Context) error {
		out, err := c.svc.Contacts.Insert(ctx, row)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return errNoRows
		}
		created = out[0]
		if linked := c.linkEvents(ctx, created.ID, eventIDs); len(linked) > 0 {
			created.Events = append(slices.Clone(created.Events), linked...)
		}
		return nil
	}, func(rows []models.Contact) []models.Contact {
		return prependRow(slices.Clone(rows), created)
	})
	if err != nil {
		return created, fmt.Errorf("contacts: create: %w", err)
	}
	return created, nil
}

// linkEvents links eventIDs to a contact and returns the refs of the events
// that were linked. Failures are logged and skipped.
func (c *Contacts) linkEvents(ctx context.Context, contactID string, eventIDs []string) []models.EventRef {
	if len(eventIDs) == 0 {
		return nil
	}
	events, err := c.svc.Events.List(ctx, c.user)
	if err != nil {
		c.logger.Warn("contacts: event lookup failed", slog.String("error", err.Error()))
	}
	byID := make(map[string]models.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}

	var refs []models.EventRef
	for _, eventID := range eventIDs {
		if err := c.svc.ContactEvents.Link(ctx, contactID, eventID); err != nil {
			c.logger.Warn("contacts: event link failed",
				slog.String("contact_id", contactID),
				slog.String("event_id", eventID),
				slog.String("error", err.Error()))
			continue
		}
		if e, ok := byID[eventID]; ok {
			refs = append(refs, e.Ref())
		} else {
			refs = append(refs, models.EventRef{ID: eventID})
		}
	}
	return refs
}

// SubmitPublic records a contact left through the owner's public card form
// and links it to every owner event active at submission time. Event links
// are best-effort. No local state is touched: the submitter is not the owner.
func SubmitPublic(ctx context.Context, svc *remote.Service, ownerID string, in ContactInput, now time.Time) (models.Contact, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Contact{}, fmt.Errorf("contacts: name is required: %w", apperr.ErrInvalidInput)
	}
	if in.Phone == "" {
		in.Phone = in.WhatsApp
	}
	if in.WhatsApp == "" {
		in.WhatsApp = in.Phone
	}
	in.Source = SourcePublicForm
	out, err := svc.Contacts.Insert(ctx, in.row(ownerID, now))
	if err != nil {
		return models.Contact{}, fmt.Errorf("contacts: public submit: %w", err)
	}
	if len(out) == 0 {
		return models.Contact{}, fmt.Errorf("contacts: public submit: %w", errNoRows)
	}
	contact := out[0]

	events, err := svc.Events.List(ctx, ownerID)
	if err != nil {
		return contact, nil
	}
	for _, e := range events {
		if !e.ActiveAt(now) {
			continue
		}
		if err := svc.ContactEvents.Link(ctx, contact.ID, e.ID); err != nil {
			continue
		}
		contact.Events = append(contact.Events, e.Ref())
	}
	return contact, nil
}

// Update patches contact fields. Relation and free-text notes fields are
// applied locally only.
func (c *Contacts) Update(ctx context.Context, id string, patch models.Patch) error {
	remotePatch := make(models.Patch, len(patch))
	for k, v := range patch {
		switch k {
		case "notes", "tags", "events", "id":
			continue
		}
		remotePatch[k] = v
	}
	return c.update(ctx, "update", id, patch, remotePatch)
}

// SetNotesHistory replaces the note history of a contact.
func (c *Contacts) SetNotesHistory(ctx context.Context, id string, history []models.NoteEntry) error {
	p := models.Patch{"notes_history": history}
	return c.update(ctx, "notes", id, p, p)
}

// AppendNote prepends a note stamped now.
func (c *Contacts) AppendNote(ctx context.Context, id, text string) (models.NoteEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.NoteEntry{}, fmt.Errorf("contacts: empty note: %w", apperr.ErrInvalidInput)
	}
	ct, ok := c.Find(id)
	if !ok {
		return models.NoteEntry{}, fmt.Errorf("contacts %s: %w", id, apperr.ErrNotFound)
	}
	entry := models.NoteEntry{Text: text, Timestamp: c.now()}
	history := append([]models.NoteEntry{entry}, ct.NotesHistory...)
	return entry, c.SetNotesHistory(ctx, id, history)
}

// AddTag links a tag to a contact optimistically.
func (c *Contacts) AddTag(ctx context.Context, contactID string, tag models.TagRef) error {
	return c.relate(ctx, "tag.add", contactID,
		func(ct models.Contact) models.Contact {
			if !ct.HasTag(tag.ID) {
				ct.Tags = append(slices.Clone(ct.Tags), tag)
			}
			return ct
		},
		func(ctx context.Context) error { return c.svc.ContactTags.Link(ctx, contactID, tag.ID) })
}

// RemoveTag unlinks a tag from a contact optimistically.
func (c *Contacts) RemoveTag(ctx context.Context, contactID, tagID string) error {
	return c.relate(ctx, "tag.remove", contactID,
		func(ct models.Contact) models.Contact {
			ct.Tags = slices.DeleteFunc(slices.Clone(ct.Tags), func(t models.TagRef) bool { return t.ID == tagID })
			return ct
		},
		func(ctx context.Context) error { return c.svc.ContactTags.Unlink(ctx, contactID, tagID) })
}

// AddEvent links an event to a contact optimistically.
func (c *Contacts) AddEvent(ctx context.Context, contactID string, event models.EventRef) error {
	return c.relate(ctx, "event.add", contactID,
		func(ct models.Contact) models.Contact {
			if !ct.HasEvent(event.ID) {
				ct.Events = append(slices.Clone(ct.Events), event)
			}
			return ct
		},
		func(ctx context.Context) error { return c.svc.ContactEvents.Link(ctx, contactID, event.ID) })
}

// RemoveEvent unlinks an event from a contact optimistically.
func (c *Contacts) RemoveEvent(ctx context.Context, contactID, eventID string) error {
	return c.relate(ctx, "event.remove", contactID,
		func(ct models.Contact) models.Contact {
			ct.Events = slices.DeleteFunc(slices.Clone(ct.Events), func(e models.EventRef) bool { return e.ID == eventID })
			return ct
		},
		func(ctx context.Context) error { return c.svc.ContactEvents.Unlink(ctx, contactID, eventID) })
}

func (c *Contacts) relate(ctx context.Context, action, contactID string, change func(models.Contact) models.Contact, remoteCall func(context.Context) error) error {
	if _, ok := c.Find(contactID); !ok {
		return fmt.Errorf("contacts %s: %w", contactID, apperr.ErrNotFound)
	}
	err := c.Optimistic(ctx, action, func(rows []models.Contact) []models.Contact {
		out := slices.Clone(rows)
		for i := range out {
			if out[i].ID == contactID {
				out[i] = change(out[i])
			}
		}
		return out
	}, remoteCall)
	if err != nil {
		return fmt.Errorf("contacts: %s %s: %w", action, contactID, err)
	}
	return nil
}

// Search returns contacts whose name, company, designation, email or phone
// contain q, case-insensitively. An empty query returns everything.
func (c *Contacts) Search(q string) []models.Contact {
	rows := c.Rows()
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return rows
	}
	var out []models.Contact
	for _, ct := range rows {
		for _, field := range []string{ct.Name, ct.Company, ct.Designation, ct.Email, ct.Phone} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, ct)
				break
			}
		}
	}
	return out
}

// WithTag returns contacts carrying tagID.
func (c *Contacts) WithTag(tagID string) []models.Contact {
	var out []models.Contact
	for _, ct := range c.Rows() {
		if ct.HasTag(tagID) {
			out = append(out, ct)
		}
	}
	return out
}
