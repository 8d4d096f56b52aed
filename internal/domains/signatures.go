package domains

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/datasync"
	"github.com/starford/synka/internal/models"
)

// Signatures are the user's HTML email signatures, newest first. At most one
// is selected.
type Signatures struct {
	list[models.Signature]
	user string
}

func newSignatures(d Deps) (*Signatures, error) {
	s := &Signatures{user: d.User.ID}
	table := d.Remote.Signatures
	cfg := hookConfig(d, SignaturesDomain, d.TTL.Signatures, func(ctx context.Context) ([]models.Signature, error) {
		return table.List(ctx, s.user)
	})
	hook, err := datasync.New(cfg)
	if err != nil {
		return nil, err
	}
	s.list = list[models.Signature]{Hook: hook, table: table, id: func(s models.Signature) string { return s.ID }}
	return s, nil
}

// Create adds a signature at the top of the list.
func (s *Signatures) Create(ctx context.Context, name, html string, selected bool) (models.Signature, error) {
	if strings.TrimSpace(name) == "" {
		return models.Signature{}, fmt.Errorf("signatures: name is required: %w", apperr.ErrInvalidInput)
	}
	row := models.Signature{UserID: s.user, Name: name, HTML: html, IsSelected: selected}
	return s.create(ctx, row, prependRow[models.Signature])
}

// Select marks id as the only selected signature. Every other selected
// signature is cleared first.
func (s *Signatures) Select(ctx context.Context, id string) error {
	if _, ok := s.Find(id); !ok {
		return fmt.Errorf("signatures %s: %w", id, apperr.ErrNotFound)
	}
	var others []string
	for _, sig := range s.Rows() {
		if sig.IsSelected && sig.ID != id {
			others = append(others, sig.ID)
		}
	}
	err := s.Optimistic(ctx, "select", func(rows []models.Signature) []models.Signature {
		out := slices.Clone(rows)
		for i := range out {
			out[i].IsSelected = out[i].ID == id
		}
		return out
	}, func(ctx context.Context) error {
		for _, other := range others {
			if err := s.table.Update(ctx, other, models.Patch{"is_selected": false}); err != nil {
				return err
			}
		}
		return s.table.Update(ctx, id, models.Patch{"is_selected": true})
	})
	if err != nil {
		return fmt.Errorf("signatures: select %s: %w", id, err)
	}
	return nil
}

// Selected returns the selected signature, if any.
func (s *Signatures) Selected() (models.Signature, bool) {
	for _, sig := range s.Rows() {
		if sig.IsSelected {
			return sig, true
		}
	}
	return models.Signature{}, false
}

var (
	htmlBreak  = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlBlock  = regexp.MustCompile(`(?i)</?(div|p|td|tr|table)[^>]*>`)
	htmlTag    = regexp.MustCompile(`<[^>]+>`)
	blankLines = regexp.MustCompile(`\n\s*\n`)
)

// PlainText converts an HTML signature into the plain text appended to
// mailto bodies.
func PlainText(html string) string {
	s := htmlBreak.ReplaceAllString(html, "\n")
	s = htmlBlock.ReplaceAllString(s, "\n")
	s = htmlTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
