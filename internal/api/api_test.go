package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/synka/internal/cache"
	"github.com/starford/synka/internal/connectivity"
	"github.com/starford/synka/internal/domains"
	"github.com/starford/synka/internal/interaction"
	"github.com/starford/synka/internal/models"
	"github.com/starford/synka/internal/remote"
	"github.com/starford/synka/internal/seed"
	"github.com/starford/synka/internal/syncbus"
	"github.com/starford/synka/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	router  http.Handler
	mem     *remote.MemoryService
	sess    *domains.Session
	bus     *syncbus.Bus
	monitor *connectivity.Monitor
}

// newTestEnv mounts a session for user u1 over an in-memory remote and
// returns a router. A non-empty token enables auth.
func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	clock := func() time.Time { return testNow }
	mem := remote.NewMemoryService(clock)
	_, fs := testutil.TestOffline(t)
	kv := testutil.TestKV(t)
	bus := syncbus.New()
	t.Cleanup(bus.Close)

	sess, err := domains.NewSession(domains.Deps{
		User:        domains.User{ID: "u1", Email: "asha.k@example.com", Name: "Asha Kumar"},
		Remote:      mem.Service,
		Local:       cache.NewLocal(kv, cache.WithClock(clock)),
		Offline:     cache.NewOffline(fs, cache.WithClock(clock)),
		Guard:       seed.NewGuard(),
		Bus:         bus,
		TTL:         domains.DefaultTTLs(),
		CardBaseURL: "https://synka.in",
		Now:         clock,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	sess.Mount(context.Background())
	sess.Wait()
	t.Cleanup(sess.Unmount)

	tracker := interaction.New(kv, sess.Contacts, interaction.WithClock(clock))
	monitor := connectivity.New(nil, bus, connectivity.Options{Now: clock})

	router := NewRouter(Deps{
		Session: sess,
		Tracker: tracker,
		Monitor: monitor,
		Bus:     bus,
		Remote:  mem.Service,
		Now:     clock,
	}, token != "", token)
	return &testEnv{router: router, mem: mem, sess: sess, bus: bus, monitor: monitor}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createContact(t *testing.T, in domains.ContactInput) models.Contact {
	t.Helper()
	w := e.do(t, http.MethodPost, "/contacts", in)
	if w.Code != http.StatusCreated {
		t.Fatalf("create contact = %d, body = %s", w.Code, w.Body.String())
	}
	var c models.Contact
	if err := json.Unmarshal(w.Body.Bytes(), &c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAuthMiddleware_TokenMode(t *testing.T) {
	e := newTestEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestPublicFormSkipsAuth(t *testing.T) {
	e := newTestEnv(t, "secret")

	w := e.do(t, http.MethodPost, "/contacts/public", map[string]string{
		"owner_id": "owner-1",
		"name":     "Visitor",
		"whatsapp": "9876543210",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("public submit = %d, body = %s", w.Code, w.Body.String())
	}
	var c models.Contact
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if c.Source != domains.SourcePublicForm || c.Phone != "9876543210" {
		t.Errorf("contact = %+v", c)
	}

	w = e.do(t, http.MethodPost, "/contacts/public", map[string]string{"name": "No Owner"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing owner = %d, want 400", w.Code)
	}
}

func TestStateEndpoints(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/state/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("state = %d", w.Code)
	}
	var st struct {
		Data    []models.Tag `json:"data"`
		Loading bool         `json:"loading"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if len(st.Data) != 5 || st.Loading {
		t.Errorf("tags state = %d rows, loading %v", len(st.Data), st.Loading)
	}

	if w := e.do(t, http.MethodGet, "/state/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown domain = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/refetch/events", nil); w.Code != http.StatusOK {
		t.Errorf("refetch = %d", w.Code)
	}
}

func TestSyncBroadcasts(t *testing.T) {
	e := newTestEnv(t, "")
	sub := e.bus.Subscribe(syncbus.TopicDataSync)
	defer e.bus.Unsubscribe(sub)

	if w := e.do(t, http.MethodPost, "/sync", nil); w.Code != http.StatusAccepted {
		t.Fatalf("sync = %d", w.Code)
	}
	select {
	case <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("no data-sync event")
	}
}

func TestConnectivity(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPost, "/connectivity", ConnectivityRequest{Online: false})
	if w.Code != http.StatusOK {
		t.Fatalf("connectivity = %d", w.Code)
	}
	if e.monitor.Status().Online {
		t.Error("monitor still online")
	}

	w = e.do(t, http.MethodGet, "/status", nil)
	var st StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Online || st.UserID != "u1" {
		t.Errorf("status = %+v", st)
	}
}

func TestContactLifecycle(t *testing.T) {
	e := newTestEnv(t, "")

	c := e.createContact(t, domains.ContactInput{Name: "Asha", Phone: "9876543210", Notes: "Met at booth"})
	if len(c.NotesHistory) != 1 || c.NotesHistory[0].Text != "Met at booth" {
		t.Errorf("notes = %+v", c.NotesHistory)
	}

	if w := e.do(t, http.MethodPost, "/contacts", domains.ContactInput{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing name = %d, want 400", w.Code)
	}

	w := e.do(t, http.MethodPatch, "/contacts/"+c.ID, map[string]any{"company": "Acme"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	w = e.do(t, http.MethodGet, "/contacts?q=acme", nil)
	var rows []models.Contact
	_ = json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 1 || rows[0].Company != "Acme" {
		t.Errorf("search = %+v", rows)
	}

	if w := e.do(t, http.MethodPatch, "/contacts/missing", map[string]any{"company": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("patch missing = %d, want 404", w.Code)
	}

	w = e.do(t, http.MethodPost, "/contacts/"+c.ID+"/notes", NoteRequest{Text: "Sent deck"})
	if w.Code != http.StatusCreated {
		t.Errorf("add note = %d", w.Code)
	}

	if w := e.do(t, http.MethodDelete, "/contacts/"+c.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/contacts/"+c.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}

func TestAttachTag(t *testing.T) {
	e := newTestEnv(t, "")
	c := e.createContact(t, domains.ContactInput{Name: "Asha"})
	tag := e.sess.Tags.Rows()[0]

	if w := e.do(t, http.MethodPut, "/contacts/"+c.ID+"/tags/"+tag.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("attach = %d", w.Code)
	}
	got, _ := e.sess.Contacts.Find(c.ID)
	if len(got.Tags) != 1 || got.Tags[0].ID != tag.ID {
		t.Errorf("tags = %+v", got.Tags)
	}
	if w := e.do(t, http.MethodPut, "/contacts/"+c.ID+"/tags/unknown", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown tag = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/contacts/"+c.ID+"/tags/"+tag.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("detach = %d", w.Code)
	}
}

func TestActiveEvents(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/events/active?at=2026-01-01T06:00:00Z", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("active = %d", w.Code)
	}
	var events []models.Event
	_ = json.Unmarshal(w.Body.Bytes(), &events)
	if len(events) != 1 {
		t.Errorf("active events = %d, want the seeded meetup", len(events))
	}

	if w := e.do(t, http.MethodGet, "/events/active?at=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad at = %d, want 400", w.Code)
	}
}

func TestRenderTemplate(t *testing.T) {
	e := newTestEnv(t, "")
	c := e.createContact(t, domains.ContactInput{Name: "Ravi", Company: "Acme"})
	tpl := e.sess.Templates.ForWhatsApp()[0]

	w := e.do(t, http.MethodPost, "/templates/"+tpl.ID+"/render", RenderRequest{ContactID: c.ID, Channel: models.ChannelWhatsApp})
	if w.Code != http.StatusOK {
		t.Fatalf("render = %d, body = %s", w.Code, w.Body.String())
	}
	var msg domains.Message
	_ = json.Unmarshal(w.Body.Bytes(), &msg)
	if msg.Subject != "" || !strings.Contains(msg.Body, "Ravi") || strings.Contains(msg.Body, "{{") {
		t.Errorf("message = %+v", msg)
	}

	w = e.do(t, http.MethodPost, "/templates/missing/render", RenderRequest{ContactID: c.ID, Channel: models.ChannelEmail})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing template = %d, want 404", w.Code)
	}
}

func TestSignatureSelect(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPost, "/signatures", SignatureRequest{Name: "Work", HTML: "<p>Asha</p>"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var sig models.Signature
	_ = json.Unmarshal(w.Body.Bytes(), &sig)

	if w := e.do(t, http.MethodPost, "/signatures/"+sig.ID+"/select", nil); w.Code != http.StatusNoContent {
		t.Fatalf("select = %d", w.Code)
	}
	if got, ok := e.sess.Signatures.Selected(); !ok || got.ID != sig.ID {
		t.Errorf("selected = %+v, %v", got, ok)
	}
}

func TestInteractionFlow(t *testing.T) {
	e := newTestEnv(t, "")
	c := e.createContact(t, domains.ContactInput{Name: "Asha", Phone: "9876543210"})

	// Cold-load focus carries no meaning.
	if w := e.do(t, http.MethodPost, "/focus/gained", nil); w.Code != http.StatusNoContent {
		t.Fatalf("first focus = %d", w.Code)
	}

	w := e.do(t, http.MethodPost, "/interactions", StartInteractionRequest{ContactID: c.ID, Type: models.InteractionCall})
	if w.Code != http.StatusCreated {
		t.Fatalf("start = %d, body = %s", w.Code, w.Body.String())
	}
	var started StartInteractionResponse
	_ = json.Unmarshal(w.Body.Bytes(), &started)
	if started.URL != "tel:9876543210" {
		t.Errorf("url = %q", started.URL)
	}

	e.do(t, http.MethodPost, "/focus/lost", nil)
	w = e.do(t, http.MethodPost, "/focus/gained", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("focus gained = %d", w.Code)
	}
	var prompt interaction.Prompt
	_ = json.Unmarshal(w.Body.Bytes(), &prompt)
	if prompt.Question != "Call made to Asha?" {
		t.Errorf("question = %q", prompt.Question)
	}

	if w := e.do(t, http.MethodPost, "/interactions/confirm", nil); w.Code != http.StatusOK {
		t.Fatalf("confirm = %d, body = %s", w.Code, w.Body.String())
	}
	if w := e.do(t, http.MethodPut, "/interactions/note", NoteRequest{Text: "asked for pricing"}); w.Code != http.StatusNoContent {
		t.Fatalf("note = %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/interactions/save", nil); w.Code != http.StatusNoContent {
		t.Fatalf("save = %d", w.Code)
	}

	got, _ := e.sess.Contacts.Find(c.ID)
	if len(got.NotesHistory) == 0 || got.NotesHistory[0].Text != "Call Made - asked for pricing" {
		t.Errorf("notes = %+v", got.NotesHistory)
	}

	w = e.do(t, http.MethodGet, "/interactions", nil)
	var snap interaction.Snapshot
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.State != interaction.StateIdle {
		t.Errorf("state = %s, want idle", snap.State)
	}
}

func TestInteractionErrors(t *testing.T) {
	e := newTestEnv(t, "")

	if w := e.do(t, http.MethodPost, "/interactions/confirm", nil); w.Code != http.StatusBadRequest {
		t.Errorf("confirm while idle = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/interactions", StartInteractionRequest{ContactID: "missing", Type: models.InteractionCall}); w.Code != http.StatusNotFound {
		t.Errorf("missing contact = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/interactions", StartInteractionRequest{ContactID: "x", Type: "fax"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad type = %d, want 400", w.Code)
	}

	c := e.createContact(t, domains.ContactInput{Name: "No Email"})
	w := e.do(t, http.MethodPost, "/interactions", StartInteractionRequest{ContactID: c.ID, Type: models.InteractionEmail})
	if w.Code != http.StatusBadRequest {
		t.Errorf("no email = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/interactions", nil); w.Code != http.StatusNoContent {
		t.Errorf("dismiss = %d", w.Code)
	}
}

func TestInvalidJSON(t *testing.T) {
	e := newTestEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/tags", strings.NewReader("{"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}
}
