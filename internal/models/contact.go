// Package models defines the domain types synchronized by synka.
package models

import "time"

// Contact is a person captured in the CRM together with its resolved relations.
type Contact struct {
	ID           string      `json:"id"`
	OwnerID      string      `json:"owner_id"`
	Name         string      `json:"name"`
	Company      string      `json:"company,omitempty"`
	Designation  string      `json:"designation,omitempty"`
	Email        string      `json:"email,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	WhatsApp     string      `json:"whatsapp,omitempty"`
	LinkedIn     string      `json:"linkedin,omitempty"`
	Website      string      `json:"website,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	NotesHistory []NoteEntry `json:"notes_history"`
	Source       string      `json:"source,omitempty"`
	EventID      string      `json:"event_id,omitempty"`
	PhotoURL     string      `json:"photo_url,omitempty"`
	About        string      `json:"about,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`

	// Tags and Events are denormalized from the relation tables for display
	// and are never written back as columns.
	Tags   []TagRef   `json:"tags,omitempty"`
	Events []EventRef `json:"events,omitempty"`
}

// NoteEntry is a single item of a contact's note history. Newest entries come first.
type NoteEntry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TagRef is the display projection of a Tag attached to a contact.
type TagRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// EventRef is the display projection of an Event attached to a contact.
type EventRef struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// HasTag reports whether the contact carries the tag with the given id.
func (c Contact) HasTag(tagID string) bool {
	for _, t := range c.Tags {
		if t.ID == tagID {
			return true
		}
	}
	return false
}

// HasEvent reports whether the contact is linked to the event with the given id.
func (c Contact) HasEvent(eventID string) bool {
	for _, e := range c.Events {
		if e.ID == eventID {
			return true
		}
	}
	return false
}

// Link is one row of a many-to-many relation table such as contact_tags.
type Link struct {
	LeftID  string `json:"left_id"`
	RightID string `json:"right_id"`
}
