package api

import (
	"time"

	"github.com/starford/synka/internal/datasync"
	"github.com/starford/synka/internal/domains"
	"github.com/starford/synka/internal/models"
)

// CreateContactRequest is the request body for creating a contact.
type CreateContactRequest struct {
	domains.ContactInput
	EventIDs []string `json:"event_ids,omitempty"`
}

// PublicContactRequest is the request body for the public card form.
type PublicContactRequest struct {
	OwnerID string `json:"owner_id" example:"9b1d..." validate:"required"`
	domains.ContactInput
}

// NoteRequest carries free note text.
type NoteRequest struct {
	Text string `json:"text" example:"Met at the expo" validate:"required"`
}

// TagRequest is the request body for creating a tag.
type TagRequest struct {
	Name  string `json:"name" example:"Investor" validate:"required"`
	Color string `json:"color,omitempty" example:"#6366f1"`
}

// SignatureRequest is the request body for creating a signature.
type SignatureRequest struct {
	Name       string `json:"name" validate:"required"`
	HTML       string `json:"html"`
	IsSelected bool   `json:"is_selected"`
}

// RenderRequest selects the recipient and channel of a rendered template.
type RenderRequest struct {
	ContactID string `json:"contact_id" validate:"required"`
	Channel   string `json:"channel" example:"email" validate:"required"`
}

// StartInteractionRequest starts an outbound interaction.
type StartInteractionRequest struct {
	ContactID string                 `json:"contact_id" validate:"required"`
	Type      models.InteractionType `json:"type" example:"call" validate:"required"`
	Subject   string                 `json:"subject,omitempty"`
	Body      string                 `json:"body,omitempty"`
}

// StartInteractionResponse carries the URL that launches the interaction.
type StartInteractionResponse struct {
	URL string `json:"url" example:"tel:+919876543210" validate:"required"`
}

// ConnectivityRequest reports the platform's connection state.
type ConnectivityRequest struct {
	Online bool `json:"online"`
}

// ContactsState is the state of the contacts domain.
type ContactsState = datasync.State[[]models.Contact]

// StatusResponse summarises the session.
type StatusResponse struct {
	UserID  string          `json:"user_id"`
	Online  bool            `json:"online"`
	Since   time.Time       `json:"since"`
	Loading map[string]bool `json:"loading"`
}
