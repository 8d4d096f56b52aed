package models

import "time"

// InteractionType is the kind of outbound action a user started on a contact.
type InteractionType string

// Interaction types.
const (
	InteractionCall  InteractionType = "call"
	InteractionEmail InteractionType = "email"
	InteractionChat  InteractionType = "chat"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionCall, InteractionEmail, InteractionChat:
		return true
	}
	return false
}

// PendingInteraction is an outbound action awaiting confirmation after the
// user returns to the application.
type PendingInteraction struct {
	ContactID       string          `json:"contactId"`
	ContactName     string          `json:"contactName"`
	InteractionType InteractionType `json:"interactionType"`
	Timestamp       time.Time       `json:"timestamp"`
}
