package models

import "time"

// Event is a networking event contacts can be attached to.
type Event struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ActiveAt reports whether t falls within the event. An event without an end
// time is only active at its exact start.
func (e Event) ActiveAt(t time.Time) bool {
	end := e.StartTime
	if e.EndTime != nil {
		end = *e.EndTime
	}
	return !t.Before(e.StartTime) && !t.After(end)
}

// Ref returns the display projection stored on contacts.
func (e Event) Ref() EventRef {
	return EventRef{ID: e.ID, Title: e.Title, StartTime: e.StartTime, EndTime: e.EndTime}
}

// Tag is a user-defined colored label.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Ref returns the display projection stored on contacts.
func (t Tag) Ref() TagRef {
	return TagRef{ID: t.ID, Name: t.Name, Color: t.Color}
}

// Template channels.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelBoth     = "both"
)

// Template is a reusable outbound message with {{placeholder}} substitution.
type Template struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	Name                  string    `json:"name"`
	Channel               string    `json:"channel"`
	Subject               string    `json:"subject,omitempty"`
	Body                  string    `json:"body"`
	IsSelectedForEmail    bool      `json:"is_selected_for_email"`
	IsSelectedForWhatsApp bool      `json:"is_selected_for_whatsapp"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ForEmail reports whether the template can be used for email.
func (t Template) ForEmail() bool {
	return t.Channel == ChannelEmail || t.Channel == ChannelBoth
}

// ForWhatsApp reports whether the template can be used for WhatsApp.
func (t Template) ForWhatsApp() bool {
	return t.Channel == ChannelWhatsApp || t.Channel == ChannelBoth
}

// Signature is an HTML email signature.
type Signature struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	HTML       string    `json:"html"`
	IsSelected bool      `json:"is_selected"`
	CreatedAt  time.Time `json:"created_at"`
}
