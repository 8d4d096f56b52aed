package interaction

import (
	"strings"
	"time"

	"github.com/starford/synka/internal/models"
)

// System note texts written when an interaction is confirmed.
const (
	CallMade     = "Call Made"
	EmailSent    = "Email Sent"
	WhatsAppSent = "WhatsApp Sent"
)

var systemPrefixes = []string{WhatsAppSent, EmailSent, CallMade}

const noteSeparator = " - "

// SystemText returns the note text recorded for a confirmed interaction.
func SystemText(t models.InteractionType) string {
	switch t {
	case models.InteractionChat:
		return WhatsAppSent
	case models.InteractionEmail:
		return EmailSent
	}
	return CallMade
}

// Question returns the confirmation prompt shown on return.
func Question(p models.PendingInteraction) string {
	switch p.InteractionType {
	case models.InteractionChat:
		return "WhatsApp sent to " + p.ContactName + "?"
	case models.InteractionEmail:
		return "Email sent to " + p.ContactName + "?"
	}
	return "Call made to " + p.ContactName + "?"
}

// ComposeNote joins system and user text the way confirmed notes are stored.
func ComposeNote(system, user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return system
	}
	return system + noteSeparator + user
}

// ParseNote splits a stored note into its system prefix and user text.
// Notes without a known prefix are entirely user text.
func ParseNote(text string) (system, user string) {
	for _, prefix := range systemPrefixes {
		if rest, ok := strings.CutPrefix(text, prefix); ok {
			if after, ok := strings.CutPrefix(rest, noteSeparator); ok {
				return prefix, after
			}
			return prefix, ""
		}
	}
	return "", text
}

// LastInteraction returns the later of the contact's newest note and its
// last update.
func LastInteraction(c models.Contact) time.Time {
	if len(c.NotesHistory) > 0 && c.NotesHistory[0].Timestamp.After(c.UpdatedAt) {
		return c.NotesHistory[0].Timestamp
	}
	return c.UpdatedAt
}
