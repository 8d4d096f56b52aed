package domains

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/datasync"
	"github.com/starford/synka/internal/models"
)

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#6366f1"

// DefaultTags returns the tags seeded for new users.
func DefaultTags(userID string) []models.Tag {
	return []models.Tag{
		{UserID: userID, Name: "Hot", Color: "#ef4444"},
		{UserID: userID, Name: "Warm", Color: "#f97316"},
		{UserID: userID, Name: "Cold", Color: "#3b82f6"},
		{UserID: userID, Name: "Client", Color: "#22c55e"},
		{UserID: userID, Name: "Follow-up", Color: "#a855f7"},
	}
}

// Tags are the user's colored labels.
type Tags struct {
	list[models.Tag]
	user string
}

func newTags(d Deps) (*Tags, error) {
	t := &Tags{user: d.User.ID}
	table := d.Remote.Tags
	cfg := hookConfig(d, TagsDomain, d.TTL.Tags, func(ctx context.Context) ([]models.Tag, error) {
		return table.List(ctx, t.user)
	})
	cfg.Seed = func(ctx context.Context) ([]models.Tag, error) {
		return table.Insert(ctx, DefaultTags(t.user)...)
	}
	hook, err := datasync.New(cfg)
	if err != nil {
		return nil, err
	}
	t.list = list[models.Tag]{Hook: hook, table: table, id: func(t models.Tag) string { return t.ID }}
	return t, nil
}

// Create adds a tag. An empty color falls back to DefaultTagColor.
func (t *Tags) Create(ctx context.Context, name, color string) (models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Tag{}, fmt.Errorf("tags: name is required: %w", apperr.ErrInvalidInput)
	}
	if color == "" {
		color = DefaultTagColor
	}
	return t.create(ctx, models.Tag{UserID: t.user, Name: name, Color: color}, appendRow[models.Tag])
}

// Ref returns the display projection of the tag with id.
func (t *Tags) Ref(id string) (models.TagRef, bool) {
	tag, ok := t.Find(id)
	if !ok {
		return models.TagRef{}, false
	}
	return tag.Ref(), true
}
