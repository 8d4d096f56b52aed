package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retry RetryPolicy) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientOptions{
		BaseURL:     srv.URL,
		APIKey:      "anon-key",
		AccessToken: "jwt",
		Retry:       retry,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewClient(ClientOptions{BaseURL: "not-a-url"})
	assert.Error(t, err)
}

func TestHTTPTable_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/contacts", r.URL.Path)
		assert.Equal(t, "eq.u1", r.URL.Query().Get("owner_id"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"id":"c1","owner_id":"u1","name":"Asha","notes_history":[]}]`)
	}, nil)

	rows, err := NewHTTPTable[models.Contact](c, ContactsTable).List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Asha", rows[0].Name)
}

func TestHTTPTable_InsertStripsServerFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var body []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.NotContains(t, body[0], "id")
		assert.NotContains(t, body[0], "created_at")
		assert.NotContains(t, body[0], "tags")
		assert.Equal(t, "Asha", body[0]["name"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id":"new","owner_id":"u1","name":"Asha"}]`)
	}, nil)

	out, err := NewHTTPTable[models.Contact](c, ContactsTable).Insert(context.Background(),
		models.Contact{OwnerID: "u1", Name: "Asha", Tags: []models.TagRef{{ID: "t"}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].ID)
}

func TestHTTPTable_UpdateAndDelete(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "eq.c1", r.URL.Query().Get("id"))
		if r.Method == http.MethodPatch {
			var patch map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			assert.Equal(t, map[string]any{"company": "Acme"}, patch)
		}
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	tbl := NewHTTPTable[models.Contact](c, ContactsTable)
	require.NoError(t, tbl.Update(context.Background(), "c1", models.Patch{"company": "Acme", "events": []string{"e"}}))
	require.NoError(t, tbl.Delete(context.Background(), "c1"))
	assert.Equal(t, []string{http.MethodPatch, http.MethodDelete}, methods)
}

func TestHTTPTable_StatusMapping(t *testing.T) {
	code := http.StatusNotFound
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", code)
	}, nil)
	tbl := NewHTTPTable[models.Tag](c, TagsTable)

	err := tbl.Update(context.Background(), "x", models.Patch{"name": "y"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	code = http.StatusConflict
	_, err = tbl.Insert(context.Background(), models.Tag{UserID: "u1", Name: "dup"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	code = http.StatusBadRequest
	_, err = tbl.List(context.Background(), "u1")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "nope", se.Body)
}

func TestHTTPRelation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/contact_tags", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "in.(c1,c2)", r.URL.Query().Get("contact_id"))
			_, _ = io.WriteString(w, `[{"contact_id":"c1","tag_id":"t1"},{"contact_id":"c2","tag_id":"t2"}]`)
		case http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]string{"contact_id": "c1", "tag_id": "t9"}, body)
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			assert.Equal(t, "eq.c1", r.URL.Query().Get("contact_id"))
			assert.Equal(t, "eq.t1", r.URL.Query().Get("tag_id"))
			w.WriteHeader(http.StatusNoContent)
		}
	}, nil)
	rel := NewHTTPRelation(c, ContactTagsRelation)
	ctx := context.Background()

	links, err := rel.Links(ctx, []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, []models.Link{{LeftID: "c1", RightID: "t1"}, {LeftID: "c2", RightID: "t2"}}, links)

	none, err := rel.Links(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, rel.Link(ctx, "c1", "t9"))
	require.NoError(t, rel.Unlink(ctx, "c1", "t1"))
}

func TestClient_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)

	_, err := NewHTTPTable[models.Tag](c, TagsTable).List(context.Background(), "u1")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_BackoffRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}, ExponentialBackoff{MaxAttempts: 5, Base: time.Millisecond, Max: 5 * time.Millisecond})

	rows, err := NewHTTPTable[models.Tag](c, TagsTable).List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff{MaxAttempts: 3, Base: 10 * time.Millisecond, Max: 15 * time.Millisecond}
	transient := &StatusError{Code: 503}

	d, ok := b.Backoff(1, transient)
	assert.True(t, ok)
	assert.LessOrEqual(t, d, 10*time.Millisecond)

	d, ok = b.Backoff(2, transient)
	assert.True(t, ok)
	assert.LessOrEqual(t, d, 15*time.Millisecond)

	_, ok = b.Backoff(3, transient)
	assert.False(t, ok, "attempts exhausted")

	_, ok = b.Backoff(1, &StatusError{Code: 400})
	assert.False(t, ok, "client errors are not retried")
}

func TestClient_Ping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/rest/v1/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}, nil)
	assert.NoError(t, c.Ping(context.Background()))
}
