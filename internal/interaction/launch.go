package interaction

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/models"
)

// Message is the optional subject and body carried by email and chat launches.
type Message struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// LaunchURL builds the URL that hands the interaction to the platform:
// tel: for calls, mailto: for email and the WhatsApp click-to-chat link for chat.
func LaunchURL(c models.Contact, typ models.InteractionType, msg Message) (string, error) {
	switch typ {
	case models.InteractionCall:
		if c.Phone == "" {
			return "", fmt.Errorf("interaction: %s has no phone number: %w", c.Name, apperr.ErrInvalidInput)
		}
		return "tel:" + c.Phone, nil

	case models.InteractionEmail:
		if c.Email == "" {
			return "", fmt.Errorf("interaction: %s has no email address: %w", c.Name, apperr.ErrInvalidInput)
		}
		return "mailto:" + c.Email + "?subject=" + encodeComponent(msg.Subject) + "&body=" + encodeComponent(msg.Body), nil

	case models.InteractionChat:
		number := c.WhatsApp
		if number == "" {
			number = c.Phone
		}
		if number == "" {
			return "", fmt.Errorf("interaction: %s has no WhatsApp number: %w", c.Name, apperr.ErrInvalidInput)
		}
		return WhatsAppLink(number, msg.Body), nil
	}
	return "", fmt.Errorf("interaction: unknown type %q: %w", typ, apperr.ErrInvalidInput)
}

// WhatsAppLink returns the click-to-chat URL for rawNumber. Ten-digit numbers
// are assumed to be Indian and get the 91 country code.
func WhatsAppLink(rawNumber, text string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, rawNumber)
	if len(digits) == 10 {
		digits = "91" + digits
	}
	link := "https://api.whatsapp.com/send?phone=" + digits
	if text != "" {
		link += "&text=" + encodeComponent(text)
	}
	return link
}

// encodeComponent escapes s like encodeURIComponent: spaces become %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
