package domains

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/models"
)

// ErrUnknownDomain is returned for a domain name outside Names.
var ErrUnknownDomain = errors.New("unknown domain")

// Session owns every domain of one signed-in user.
type Session struct {
	Contacts   *Contacts
	Profile    *Profile
	Events     *Events
	Tags       *Tags
	Templates  *Templates
	Signatures *Signatures

	deps Deps
}

// NewSession builds every domain. Nothing is read until Mount.
func NewSession(d Deps) (*Session, error) {
	if d.User.ID == "" {
		return nil, fmt.Errorf("domains: user id is required: %w", apperr.ErrInvalidInput)
	}
	if d.Remote == nil || d.Local == nil || d.Guard == nil {
		return nil, fmt.Errorf("domains: remote, local cache and guard are required: %w", apperr.ErrInvalidInput)
	}
	s := &Session{deps: d}
	var err error
	if s.Contacts, err = newContacts(d); err != nil {
		return nil, err
	}
	if s.Profile, err = newProfile(d); err != nil {
		return nil, err
	}
	if s.Events, err = newEvents(d); err != nil {
		return nil, err
	}
	if s.Tags, err = newTags(d); err != nil {
		return nil, err
	}
	if s.Templates, err = newTemplates(d); err != nil {
		return nil, err
	}
	if s.Signatures, err = newSignatures(d); err != nil {
		return nil, err
	}
	return s, nil
}

// UserID returns the signed-in user's id.
func (s *Session) UserID() string { return s.deps.User.ID }

type mountable interface {
	Mount(ctx context.Context)
	Unmount()
	Wait()
	Refetch(ctx context.Context) error
}

func (s *Session) hooks() map[string]mountable {
	return map[string]mountable{
		ContactsDomain:   s.Contacts,
		ProfileDomain:    s.Profile,
		EventsDomain:     s.Events,
		TagsDomain:       s.Tags,
		TemplatesDomain:  s.Templates,
		SignaturesDomain: s.Signatures,
	}
}

// Mount hydrates every domain and starts background revalidation.
func (s *Session) Mount(ctx context.Context) {
	hooks := s.hooks()
	for _, name := range Names {
		hooks[name].Mount(ctx)
	}
}

// Unmount detaches every domain from the bus.
func (s *Session) Unmount() {
	for _, h := range s.hooks() {
		h.Unmount()
	}
}

// Wait blocks until every domain has finished its mount revalidation.
func (s *Session) Wait() {
	var wg sync.WaitGroup
	for _, h := range s.hooks() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Wait()
		}()
	}
	wg.Wait()
}

// Refetch runs the foreground fetch of one domain.
func (s *Session) Refetch(ctx context.Context, domain string) error {
	h, ok := s.hooks()[domain]
	if !ok {
		return fmt.Errorf("domains: %q: %w", domain, ErrUnknownDomain)
	}
	return h.Refetch(ctx)
}

// State returns the snapshot of one domain as an untyped value for encoding.
func (s *Session) State(domain string) (any, error) {
	switch domain {
	case ContactsDomain:
		return s.Contacts.State(), nil
	case ProfileDomain:
		return s.Profile.State(), nil
	case EventsDomain:
		return s.Events.State(), nil
	case TagsDomain:
		return s.Tags.State(), nil
	case TemplatesDomain:
		return s.Templates.State(), nil
	case SignaturesDomain:
		return s.Signatures.State(), nil
	}
	return nil, fmt.Errorf("domains: %q: %w", domain, ErrUnknownDomain)
}

// Loading returns the loading flag of every domain.
func (s *Session) Loading() map[string]bool {
	return map[string]bool{
		ContactsDomain:   s.Contacts.State().Loading,
		ProfileDomain:    s.Profile.State().Loading,
		EventsDomain:     s.Events.State().Loading,
		TagsDomain:       s.Tags.State().Loading,
		TemplatesDomain:  s.Templates.State().Loading,
		SignaturesDomain: s.Signatures.State().Loading,
	}
}

// AttachTag links a known tag to a contact.
func (s *Session) AttachTag(ctx context.Context, contactID, tagID string) error {
	ref, ok := s.Tags.Ref(tagID)
	if !ok {
		return fmt.Errorf("tags %s: %w", tagID, apperr.ErrNotFound)
	}
	return s.Contacts.AddTag(ctx, contactID, ref)
}

// AttachEvent links a known event to a contact.
func (s *Session) AttachEvent(ctx context.Context, contactID, eventID string) error {
	ref, ok := s.Events.Ref(eventID)
	if !ok {
		return fmt.Errorf("events %s: %w", eventID, apperr.ErrNotFound)
	}
	return s.Contacts.AddEvent(ctx, contactID, ref)
}

// Compose renders the message for contactID. An empty templateID produces an
// empty body with the default subject. Email bodies carry the selected
// signature as plain text.
func (s *Session) Compose(contactID, templateID, channel string) (Message, error) {
	contact, ok := s.Contacts.Find(contactID)
	if !ok {
		return Message{}, fmt.Errorf("contacts %s: %w", contactID, apperr.ErrNotFound)
	}
	msg := Message{Subject: "Hello " + contact.Name}
	if templateID != "" {
		tpl, ok := s.Templates.Find(templateID)
		if !ok {
			return Message{}, fmt.Errorf("templates %s: %w", templateID, apperr.ErrNotFound)
		}
		msg = Render(tpl, s.renderData(contact))
	}
	if channel == models.ChannelEmail {
		if sig, ok := s.Signatures.Selected(); ok && sig.HTML != "" {
			msg.Body = msg.Body + "\n\n---\n" + PlainText(sig.HTML)
		}
	}
	if channel == models.ChannelWhatsApp {
		msg.Subject = ""
	}
	return msg, nil
}

func (s *Session) renderData(c models.Contact) RenderData {
	d := RenderData{
		Name:        c.Name,
		Company:     c.Company,
		Designation: c.Designation,
		MyCardLink:  s.Profile.CardLink(),
	}
	if p := s.Profile.Current(); p != nil {
		d.MyName = p.FullName
		d.MyCompany = p.Company
	}
	return d
}
