package domains

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/datasync"
	"github.com/starford/synka/internal/models"
	"github.com/starford/synka/internal/remote"
)

// DefaultCardDesign is reported when a profile has no design chosen.
const DefaultCardDesign = "minimal"

// Profile is the signed-in user's own card. The profile is created on first
// fetch when the account has none.
type Profile struct {
	*datasync.Hook[*models.Profile]
	table   remote.Table[models.Profile]
	user    User
	now     func() time.Time
	baseURL string
	logger  *slog.Logger
}

func newProfile(d Deps) (*Profile, error) {
	p := &Profile{table: d.Remote.Profiles, user: d.User, now: d.now, baseURL: d.CardBaseURL, logger: d.logger()}
	cfg := hookConfig(d, ProfileDomain, d.TTL.Profile, p.fetch)
	cfg.Seed = p.create
	hook, err := datasync.New(cfg)
	if err != nil {
		return nil, err
	}
	p.Hook = hook
	return p, nil
}

func (p *Profile) fetch(ctx context.Context) (*models.Profile, error) {
	rows, err := p.table.List(ctx, p.user.ID)
	if err != nil {
		return nil, fmt.Errorf("profile: get: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// create inserts the initial profile. A failed insert usually means another
// device created it first, so the profile is read back once.
func (p *Profile) create(ctx context.Context) (*models.Profile, error) {
	row := models.Profile{
		UserID:   p.user.ID,
		Email:    p.user.Email,
		FullName: p.user.Name,
		Phone:    p.user.Phone,
		Slug:     Slug(p.user.Email, p.now()),
	}
	out, err := p.table.Insert(ctx, row)
	if err == nil && len(out) > 0 {
		return &out[0], nil
	}
	if err != nil {
		p.logger.Warn("profile: create failed, re-reading", slog.String("error", err.Error()))
	}
	existing, rerr := p.fetch(ctx)
	if rerr != nil {
		return nil, rerr
	}
	if existing == nil {
		return nil, fmt.Errorf("profile: create: %w", errNoRows)
	}
	return existing, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]`)

// Slug derives a public card slug from the local part of an email address
// plus a random three-digit suffix.
func Slug(email string, now time.Time) string {
	base, _, _ := strings.Cut(email, "@")
	base = nonSlug.ReplaceAllString(strings.ToLower(base), "")
	if base == "" {
		base = "user" + strconv.FormatInt(now.UnixMilli(), 10)
	}
	return base + strconv.Itoa(rand.IntN(1000))
}

// Current returns the profile, or nil before it has loaded.
func (p *Profile) Current() *models.Profile {
	return p.State().Data
}

// Update patches the profile optimistically.
func (p *Profile) Update(ctx context.Context, patch models.Patch) error {
	cur := p.Current()
	if cur == nil {
		return fmt.Errorf("profile: %w", apperr.ErrNotFound)
	}
	next, err := models.Apply(*cur, patch)
	if err != nil {
		return fmt.Errorf("profile: %w: %w", apperr.ErrInvalidInput, err)
	}
	err = p.Optimistic(ctx, "update", func(*models.Profile) *models.Profile {
		return &next
	}, func(ctx context.Context) error {
		return p.table.Update(ctx, cur.ID, patch)
	})
	if err != nil {
		return fmt.Errorf("profile: update: %w", err)
	}
	return nil
}

// CardLink returns the public URL of the user's card, or "" without a slug.
func (p *Profile) CardLink() string {
	cur := p.Current()
	if cur == nil || cur.Slug == "" {
		return ""
	}
	return strings.TrimRight(p.baseURL, "/") + "/u/" + cur.Slug
}

// DisplayName returns the full name of the profile, or "".
func (p *Profile) DisplayName() string {
	if cur := p.Current(); cur != nil {
		return cur.FullName
	}
	return ""
}
