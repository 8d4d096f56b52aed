package domains

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/cache"
	"github.com/starford/synka/internal/datasync"
	"github.com/starford/synka/internal/kvstore"
	"github.com/starford/synka/internal/models"
	"github.com/starford/synka/internal/remote"
	"github.com/starford/synka/internal/seed"
	"github.com/starford/synka/internal/storage"
	"github.com/starford/synka/internal/syncbus"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type env struct {
	mem  *remote.MemoryService
	sess *Session
	bus  *syncbus.Bus
}

func newEnv(t *testing.T, mutate ...func(*Deps)) *env {
	t.Helper()
	clock := func() time.Time { return testNow }
	mem := remote.NewMemoryService(clock)
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	bus := syncbus.New()
	t.Cleanup(bus.Close)

	deps := Deps{
		User:        User{ID: "u1", Email: "asha.k@example.com", Name: "Asha Kumar"},
		Remote:      mem.Service,
		Local:       cache.NewLocal(kvstore.NewMemory(), cache.WithClock(clock)),
		Offline:     cache.NewOffline(fs, cache.WithClock(clock)),
		Guard:       seed.NewGuard(),
		Bus:         bus,
		TTL:         DefaultTTLs(),
		CardBaseURL: "https://synka.in/",
		Now:         clock,
	}
	for _, m := range mutate {
		m(&deps)
	}
	sess, err := NewSession(deps)
	require.NoError(t, err)
	t.Cleanup(sess.Unmount)
	return &env{mem: mem, sess: sess, bus: bus}
}

func (e *env) contact(t *testing.T, c models.Contact) models.Contact {
	t.Helper()
	c.OwnerID = "u1"
	out, err := e.mem.Contacts.Insert(context.Background(), c)
	require.NoError(t, err)
	require.NoError(t, e.sess.Contacts.Refetch(context.Background()))
	return out[0]
}

// stateChanges collects state events until the bus has been quiet for a moment.
func stateChanges(sub *syncbus.Subscription) []datasync.StateChange {
	var out []datasync.StateChange
	for {
		select {
		case ev := <-sub.C:
			if sc, ok := ev.Data.(datasync.StateChange); ok {
				out = append(out, sc)
			}
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestNewSession_Validates(t *testing.T) {
	_, err := NewSession(Deps{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSession_MountSeedsDefaults(t *testing.T) {
	e := newEnv(t)
	e.sess.Mount(context.Background())
	e.sess.Wait()

	assert.Equal(t, 5, e.mem.Tags.Len())
	assert.Equal(t, 4, e.mem.Templates.Len())
	assert.Equal(t, 1, e.mem.Events.Len())
	assert.Equal(t, 0, e.mem.Signatures.Len(), "signatures are never seeded")
	assert.Equal(t, 1, e.mem.Profiles.Len())

	assert.Len(t, e.sess.Tags.Rows(), 5)
	assert.Len(t, e.sess.Templates.Rows(), 4)
	for domain, loading := range e.sess.Loading() {
		assert.False(t, loading, domain)
	}

	p := e.sess.Profile.Current()
	require.NotNil(t, p)
	assert.Equal(t, "Asha Kumar", p.FullName)
	assert.Regexp(t, regexp.MustCompile(`^ashak\d{1,3}$`), p.Slug)
	assert.Equal(t, "https://synka.in/u/"+p.Slug, e.sess.Profile.CardLink())
}

func TestSession_SecondMountHydratesFromCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.sess.Tags.Refetch(ctx))

	release := e.mem.Tags.Block(remote.OpList)
	e.sess.Tags.Mount(ctx)

	st := e.sess.Tags.State()
	assert.False(t, st.Loading)
	assert.Len(t, st.Data, 5)

	release()
	e.sess.Tags.Wait()
}

func TestSession_RefetchUnknownDomain(t *testing.T) {
	e := newEnv(t)
	assert.ErrorIs(t, e.sess.Refetch(context.Background(), "nope"), ErrUnknownDomain)
	_, err := e.sess.State("nope")
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestContacts_FetchDenormalizes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tags, err := e.mem.Tags.Insert(ctx, models.Tag{UserID: "u1", Name: "VIP", Color: "#000"})
	require.NoError(t, err)
	events, err := e.mem.Events.Insert(ctx, models.Event{UserID: "u1", Title: "Expo", StartTime: testNow})
	require.NoError(t, err)
	c := e.contact(t, models.Contact{Name: "Asha"})
	other := e.contact(t, models.Contact{Name: "Ravi"})

	require.NoError(t, e.mem.ContactTags.Link(ctx, c.ID, tags[0].ID))
	require.NoError(t, e.mem.ContactEvents.Link(ctx, c.ID, events[0].ID))
	require.NoError(t, e.sess.Contacts.Refetch(ctx))

	got, ok := e.sess.Contacts.Find(c.ID)
	require.True(t, ok)
	assert.Equal(t, []models.TagRef{{ID: tags[0].ID, Name: "VIP", Color: "#000"}}, got.Tags)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "Expo", got.Events[0].Title)

	plain, ok := e.sess.Contacts.Find(other.ID)
	require.True(t, ok)
	assert.NotNil(t, plain.Tags)
	assert.Empty(t, plain.Tags)

	assert.Len(t, e.sess.Contacts.WithTag(tags[0].ID), 1)
}

func TestContacts_RelationFailureDegrades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.contact(t, models.Contact{Name: "Asha"})

	e.mem.ContactTags.FailNext(remote.OpLinks, errors.New("timeout"))
	require.NoError(t, e.sess.Contacts.Refetch(ctx))
	assert.Len(t, e.sess.Contacts.Rows(), 1)
}

func TestContacts_CreateLinksEvents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	events, err := e.mem.Events.Insert(ctx, models.Event{UserID: "u1", Title: "Expo", StartTime: testNow})
	require.NoError(t, err)

	created, err := e.sess.Contacts.Create(ctx, ContactInput{Name: "Asha", Notes: "Met at booth"}, events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, SourceManual, created.Source)
	require.Len(t, created.NotesHistory, 1)
	assert.Equal(t, "Met at booth", created.NotesHistory[0].Text)

	got, ok := e.sess.Contacts.Find(created.ID)
	require.True(t, ok)
	require.Len(t, got.Events, 1)
	assert.Equal(t, events[0].ID, got.Events[0].ID)
	assert.Equal(t, "Expo", got.Events[0].Title)
}

func TestContacts_CreateKeepsWarmListQuiet(t *testing.T) {
	var mu sync.Mutex
	returning := false
	e := newEnv(t, func(d *Deps) {
		d.SuppressContacts = func(context.Context) bool {
			mu.Lock()
			defer mu.Unlock()
			was := returning
			returning = false
			return was
		}
	})
	ctx := context.Background()
	e.contact(t, models.Contact{Name: "Ravi"})

	mu.Lock()
	returning = true
	mu.Unlock()
	sub := e.bus.Subscribe(syncbus.TopicState)
	defer e.bus.Unsubscribe(sub)
	// A refetch would hit this failure and empty the list.
	e.mem.Contacts.FailNext(remote.OpList, errors.New("unexpected refetch"))

	created, err := e.sess.Contacts.Create(ctx, ContactInput{Name: "Asha"})
	require.NoError(t, err)

	rows := e.sess.Contacts.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, created.ID, rows[0].ID)
	assert.False(t, e.sess.Contacts.State().Loading)

	for _, sc := range stateChanges(sub) {
		if sc.Domain == ContactsDomain {
			assert.False(t, sc.Loading, "create raised the loading flag")
		}
	}
	mu.Lock()
	assert.True(t, returning, "create consumed the returning flag")
	mu.Unlock()
}

func TestContacts_CreateFailureLeavesState(t *testing.T) {
	e := newEnv(t)
	e.mem.Contacts.FailNext(remote.OpInsert, errors.New("rejected"))

	_, err := e.sess.Contacts.Create(context.Background(), ContactInput{Name: "Asha"})
	require.Error(t, err)
	assert.Empty(t, e.sess.Contacts.Rows())
}

func TestSubmitPublic_LinksActiveEvents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	end := testNow.Add(time.Hour)
	active, err := e.mem.Events.Insert(ctx, models.Event{UserID: "owner", Title: "Live", StartTime: testNow.Add(-time.Hour), EndTime: &end})
	require.NoError(t, err)
	_, err = e.mem.Events.Insert(ctx, DefaultEvents("owner")...)
	require.NoError(t, err)

	c, err := SubmitPublic(ctx, e.mem.Service, "owner", ContactInput{Name: "Visitor", WhatsApp: "9876543210"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, SourcePublicForm, c.Source)
	assert.Equal(t, "9876543210", c.Phone, "phone falls back to whatsapp")
	require.Len(t, c.Events, 1)
	assert.Equal(t, active[0].ID, c.Events[0].ID)

	links, err := e.mem.ContactEvents.Links(ctx, []string{c.ID})
	require.NoError(t, err)
	assert.Equal(t, []models.Link{{LeftID: c.ID, RightID: active[0].ID}}, links)
}

func TestContacts_UpdateKeepsLocalOnlyFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.contact(t, models.Contact{Name: "Asha"})

	require.NoError(t, e.sess.Contacts.Update(ctx, c.ID, models.Patch{"company": "Acme", "notes": "draft"}))
	got, _ := e.sess.Contacts.Find(c.ID)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, "draft", got.Notes)

	rows, err := e.mem.Contacts.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", rows[0].Company)
	assert.Empty(t, rows[0].Notes)

	err = e.sess.Contacts.Update(ctx, "missing", models.Patch{"company": "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestContacts_AttachTagRollsBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.sess.Tags.Refetch(ctx))
	tag := e.sess.Tags.Rows()[0]
	c := e.contact(t, models.Contact{Name: "Asha"})

	e.mem.ContactTags.FailNext(remote.OpLink, errors.New("offline"))
	err := e.sess.AttachTag(ctx, c.ID, tag.ID)
	require.Error(t, err)
	got, _ := e.sess.Contacts.Find(c.ID)
	assert.Empty(t, got.Tags)

	require.NoError(t, e.sess.AttachTag(ctx, c.ID, tag.ID))
	got, _ = e.sess.Contacts.Find(c.ID)
	assert.Equal(t, []models.TagRef{tag.Ref()}, got.Tags)

	require.NoError(t, e.sess.Contacts.RemoveTag(ctx, c.ID, tag.ID))
	got, _ = e.sess.Contacts.Find(c.ID)
	assert.Empty(t, got.Tags)

	assert.ErrorIs(t, e.sess.AttachTag(ctx, c.ID, "missing"), apperr.ErrNotFound)
}

func TestContacts_AttachEvent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.sess.Events.Refetch(ctx))
	ev := e.sess.Events.Rows()[0]
	c := e.contact(t, models.Contact{Name: "Asha"})

	require.NoError(t, e.sess.AttachEvent(ctx, c.ID, ev.ID))
	got, _ := e.sess.Contacts.Find(c.ID)
	assert.True(t, got.HasEvent(ev.ID))

	require.NoError(t, e.sess.Contacts.RemoveEvent(ctx, c.ID, ev.ID))
	got, _ = e.sess.Contacts.Find(c.ID)
	assert.False(t, got.HasEvent(ev.ID))
}

func TestContacts_AppendNote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.contact(t, models.Contact{Name: "Asha", NotesHistory: []models.NoteEntry{{Text: "older", Timestamp: testNow.Add(-time.Hour)}}})

	entry, err := e.sess.Contacts.AppendNote(ctx, c.ID, "  follow up  ")
	require.NoError(t, err)
	assert.Equal(t, "follow up", entry.Text)

	got, _ := e.sess.Contacts.Find(c.ID)
	require.Len(t, got.NotesHistory, 2)
	assert.Equal(t, "follow up", got.NotesHistory[0].Text)
	assert.Equal(t, "older", got.NotesHistory[1].Text)

	_, err = e.sess.Contacts.AppendNote(ctx, c.ID, " ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestContacts_DeleteRefreshesCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.contact(t, models.Contact{Name: "Asha"})

	require.NoError(t, e.sess.Contacts.Delete(ctx, c.ID))
	assert.Empty(t, e.sess.Contacts.Rows())
	assert.Equal(t, 0, e.mem.Contacts.Len())
}

func TestContacts_Search(t *testing.T) {
	e := newEnv(t)
	e.contact(t, models.Contact{Name: "Asha", Company: "Acme"})
	e.contact(t, models.Contact{Name: "Ravi", Email: "ravi@globex.com"})

	assert.Len(t, e.sess.Contacts.Search(""), 2)
	assert.Len(t, e.sess.Contacts.Search("ACME"), 1)
	assert.Len(t, e.sess.Contacts.Search("globex"), 1)
	assert.Empty(t, e.sess.Contacts.Search("nobody"))
}

func TestProfile_Update(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	assert.ErrorIs(t, e.sess.Profile.Update(ctx, models.Patch{"company": "x"}), apperr.ErrNotFound)

	require.NoError(t, e.sess.Profile.Refetch(ctx))
	require.NoError(t, e.sess.Profile.Update(ctx, models.Patch{"company": "Synka Labs"}))
	assert.Equal(t, "Synka Labs", e.sess.Profile.Current().Company)

	e.mem.Profiles.FailNext(remote.OpUpdate, errors.New("rejected"))
	require.Error(t, e.sess.Profile.Update(ctx, models.Patch{"company": "Other"}))
	assert.Equal(t, "Synka Labs", e.sess.Profile.Current().Company)
}

func TestProfile_CreateRaceReadsBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mem.Profiles.FailNext(remote.OpInsert, errors.New("duplicate key"))

	// The re-read after a failed insert finds nothing, so the state stays empty.
	require.NoError(t, e.sess.Profile.Refetch(ctx))
	assert.Nil(t, e.sess.Profile.Current())

	require.NoError(t, e.sess.Profile.Refetch(ctx))
	assert.NotNil(t, e.sess.Profile.Current())
}

func TestEvents_CreateAndActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.sess.Events.Refetch(ctx))

	end := testNow.Add(2 * time.Hour)
	ev, err := e.sess.Events.Create(ctx, EventInput{Title: "Summit", StartTime: testNow, EndTime: &end})
	require.NoError(t, err)
	rows := e.sess.Events.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, ev.ID, rows[0].ID, "newest start first")

	assert.Len(t, e.sess.Events.ActiveAt(testNow.Add(time.Hour)), 1)
	assert.Empty(t, e.sess.Events.ActiveAt(testNow.Add(3*time.Hour)))

	untimed, err := e.sess.Events.Create(ctx, EventInput{Title: "Pop-up"})
	require.NoError(t, err)
	assert.True(t, untimed.StartTime.Equal(testNow))

	_, err = e.sess.Events.Create(ctx, EventInput{Title: "Bad", StartTime: testNow, EndTime: &testNow})
	assert.NoError(t, err, "end equal to start is allowed")
	before := testNow.Add(-time.Minute)
	_, err = e.sess.Events.Create(ctx, EventInput{Title: "Bad", StartTime: testNow, EndTime: &before})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestTags_Create(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tag, err := e.sess.Tags.Create(ctx, " Partner ", "")
	require.NoError(t, err)
	assert.Equal(t, "Partner", tag.Name)
	assert.Equal(t, DefaultTagColor, tag.Color)

	_, err = e.sess.Tags.Create(ctx, "", "#fff")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	require.NoError(t, e.sess.Tags.Update(ctx, tag.ID, models.Patch{"color": "#111111"}))
	got, ok := e.sess.Tags.Find(tag.ID)
	require.True(t, ok)
	assert.Equal(t, "#111111", got.Color)
}

func TestSignatures_Select(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.sess.Signatures.Create(ctx, "Work", "<p>Asha</p>", true)
	require.NoError(t, err)
	second, err := e.sess.Signatures.Create(ctx, "Personal", "<b>A</b>", false)
	require.NoError(t, err)
	assert.Equal(t, second.ID, e.sess.Signatures.Rows()[0].ID, "newest first")

	require.NoError(t, e.sess.Signatures.Select(ctx, second.ID))
	sel, ok := e.sess.Signatures.Selected()
	require.True(t, ok)
	assert.Equal(t, second.ID, sel.ID)

	rows, err := e.mem.Signatures.List(ctx, "u1")
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, r.ID == second.ID, r.IsSelected, r.Name)
	}

	e.mem.Signatures.FailNext(remote.OpUpdate, errors.New("rejected"))
	require.Error(t, e.sess.Signatures.Select(ctx, first.ID))
	sel, _ = e.sess.Signatures.Selected()
	assert.Equal(t, second.ID, sel.ID, "selection rolled back")
}

func TestSession_Compose(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.sess.Profile.Refetch(ctx))
	require.NoError(t, e.sess.Profile.Update(ctx, models.Patch{"company": "Synka", "slug": "asha"}))
	require.NoError(t, e.sess.Templates.Refetch(ctx))
	c := e.contact(t, models.Contact{Name: "Ravi", Company: "Globex"})

	var intro models.Template
	for _, tpl := range e.sess.Templates.ForEmail() {
		if tpl.Name == "Introduction" {
			intro = tpl
		}
	}
	require.NotEmpty(t, intro.ID)

	sig, err := e.sess.Signatures.Create(ctx, "Work", "<div>Asha Kumar</div><div>Synka</div>", true)
	require.NoError(t, err)
	require.True(t, sig.IsSelected)

	msg, err := e.sess.Compose(c.ID, intro.ID, models.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, "Connecting after our introduction", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Ravi,")
	assert.Contains(t, msg.Body, "My Digital Card https://synka.in/u/asha")
	assert.Contains(t, msg.Body, "Asha Kumar\nSynka")
	assert.Contains(t, msg.Body, "\n\n---\nAsha Kumar")

	plain, err := e.sess.Compose(c.ID, "", models.ChannelWhatsApp)
	require.NoError(t, err)
	assert.Equal(t, Message{}, plain)

	_, err = e.sess.Compose("missing", "", models.ChannelEmail)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
