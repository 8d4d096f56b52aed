package domains

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/datasync"
	"github.com/starford/synka/internal/models"
)

// TemplateInput is the writable subset of a template.
type TemplateInput struct {
	Name                  string `json:"name"`
	Channel               string `json:"channel"`
	Subject               string `json:"subject,omitempty"`
	Body                  string `json:"body"`
	IsSelectedForEmail    bool   `json:"is_selected_for_email"`
	IsSelectedForWhatsApp bool   `json:"is_selected_for_whatsapp"`
}

// DefaultTemplates returns the templates seeded for new users. None is
// preselected.
func DefaultTemplates(userID string) []models.Template {
	return []models.Template{
		{
			UserID:  userID,
			Name:    "Introduction",
			Channel: models.ChannelWhatsApp,
			Body: "Hi {{name}}, It was nice connecting with you.\n" +
				"Sharing my details here: My Digital Card {{myCardLink}}\n" +
				"Happy to stay in touch.\n\n" +
				"{{myName}}\n{{myCompany}}",
		},
		{
			UserID:  userID,
			Name:    "Follow-up",
			Channel: models.ChannelWhatsApp,
			Body: "Hello {{name}}, I hope you are keeping well.\n" +
				"Would be glad to connect at a time convenient for you.\n\n" +
				"{{myName}}\nMy Digital Card {{myCardLink}}",
		},
		{
			UserID:  userID,
			Name:    "Introduction",
			Channel: models.ChannelEmail,
			Subject: "Connecting after our introduction",
			Body: "Hello {{name}},\n\n" +
				"It was a pleasure connecting with you.\n\n" +
				"Please find my contact details below.\n" +
				"My Digital Card {{myCardLink}}\n\n" +
				"I look forward to continuing the conversation.\n\n" +
				"Warm regards,\n{{myName}}\n{{myCompany}}",
		},
		{
			UserID:  userID,
			Name:    "Follow-up",
			Channel: models.ChannelEmail,
			Subject: "Connecting further",
			Body: "Hello {{name}},\n\n" +
				"I hope you are keeping well.\n" +
				"I thought this might be a good moment to reconnect.\n" +
				"Would be glad to connect at a time convenient for you.\n\n" +
				"My Digital Card {{myCardLink}}\n\n" +
				"Kind regards,\n{{myName}}\n{{myCompany}}",
		},
	}
}

var placeholderPatterns = []struct {
	re          *regexp.Regexp
	placeholder string
}{
	{regexp.MustCompile(`(?i)\b(their|the|recipient's?)\s*(name|first\s*name)\b`), "{{name}}"},
	{regexp.MustCompile(`(?i)\b(their|the|recipient's?)\s*(company|organization|firm)\b`), "{{company}}"},
	{regexp.MustCompile(`(?i)\b(their|the|recipient's?)\s*(title|designation|role|position)\b`), "{{designation}}"},
	{regexp.MustCompile(`(?i)\b(my|your|sender's?)\s*(name|first\s*name)\b`), "{{myName}}"},
	{regexp.MustCompile(`(?i)\b(my|your|sender's?)\s*(company|organization|firm)\b`), "{{myCompany}}"},
}

// ConvertToPlaceholders rewrites phrases such as "their name" or "my company"
// into the matching {{placeholder}}.
func ConvertToPlaceholders(text string) string {
	for _, p := range placeholderPatterns {
		text = p.re.ReplaceAllLiteralString(text, p.placeholder)
	}
	return text
}

// Message is a rendered template.
type Message struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// RenderData holds the recipient and sender values substituted into a template.
type RenderData struct {
	Name        string
	Company     string
	Designation string
	MyName      string
	MyCompany   string
	MyCardLink  string
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Render substitutes placeholders into tpl and collapses runs of blank lines.
// A template without a subject gets "Hello {name}".
func Render(tpl models.Template, data RenderData) Message {
	r := strings.NewReplacer(
		"{{name}}", data.Name,
		"{{company}}", data.Company,
		"{{designation}}", data.Designation,
		"{{myName}}", data.MyName,
		"{{myCompany}}", data.MyCompany,
		"{{myCardLink}}", data.MyCardLink,
	)
	fill := func(s string) string {
		return blankRuns.ReplaceAllString(r.Replace(s), "\n\n")
	}
	msg := Message{Body: fill(tpl.Body), Subject: "Hello " + data.Name}
	if tpl.Subject != "" {
		msg.Subject = fill(tpl.Subject)
	}
	return msg
}

// Templates are the user's outbound message templates.
type Templates struct {
	list[models.Template]
	user string
}

func newTemplates(d Deps) (*Templates, error) {
	t := &Templates{user: d.User.ID}
	table := d.Remote.Templates
	cfg := hookConfig(d, TemplatesDomain, d.TTL.Templates, func(ctx context.Context) ([]models.Template, error) {
		return table.List(ctx, t.user)
	})
	cfg.Seed = func(ctx context.Context) ([]models.Template, error) {
		return table.Insert(ctx, DefaultTemplates(t.user)...)
	}
	hook, err := datasync.New(cfg)
	if err != nil {
		return nil, err
	}
	t.list = list[models.Template]{Hook: hook, table: table, id: func(t models.Template) string { return t.ID }}
	return t, nil
}

func validChannel(ch string) bool {
	switch ch {
	case models.ChannelEmail, models.ChannelWhatsApp, models.ChannelBoth:
		return true
	}
	return false
}

// Create adds a template after converting natural-language references into
// placeholders.
func (t *Templates) Create(ctx context.Context, in TemplateInput) (models.Template, error) {
	if in.Name == "" || in.Body == "" {
		return models.Template{}, fmt.Errorf("templates: name and body are required: %w", apperr.ErrInvalidInput)
	}
	if !validChannel(in.Channel) {
		return models.Template{}, fmt.Errorf("templates: unknown channel %q: %w", in.Channel, apperr.ErrInvalidInput)
	}
	row := models.Template{
		UserID:                t.user,
		Name:                  in.Name,
		Channel:               in.Channel,
		Subject:               ConvertToPlaceholders(in.Subject),
		Body:                  ConvertToPlaceholders(in.Body),
		IsSelectedForEmail:    in.IsSelectedForEmail,
		IsSelectedForWhatsApp: in.IsSelectedForWhatsApp,
	}
	return t.create(ctx, row, appendRow[models.Template])
}

// ForEmail returns templates usable for email.
func (t *Templates) ForEmail() []models.Template {
	return t.filter(models.Template.ForEmail)
}

// ForWhatsApp returns templates usable for WhatsApp.
func (t *Templates) ForWhatsApp() []models.Template {
	return t.filter(models.Template.ForWhatsApp)
}

// SelectedForEmail returns the template preselected for email, if any.
func (t *Templates) SelectedForEmail() (models.Template, bool) {
	return t.first(func(tpl models.Template) bool { return tpl.IsSelectedForEmail })
}

// SelectedForWhatsApp returns the template preselected for WhatsApp, if any.
func (t *Templates) SelectedForWhatsApp() (models.Template, bool) {
	return t.first(func(tpl models.Template) bool { return tpl.IsSelectedForWhatsApp })
}

func (t *Templates) filter(keep func(models.Template) bool) []models.Template {
	var out []models.Template
	for _, tpl := range t.Rows() {
		if keep(tpl) {
			out = append(out, tpl)
		}
	}
	return out
}

func (t *Templates) first(match func(models.Template) bool) (models.Template, bool) {
	for _, tpl := range t.Rows() {
		if match(tpl) {
			return tpl, true
		}
	}
	return models.Template{}, false
}
