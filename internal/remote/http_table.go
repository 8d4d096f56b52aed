package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/synka/internal/models"
)

// HTTPTable implements Table over the REST endpoint.
type HTTPTable[T any] struct {
	c    *Client
	spec TableSpec
}

var _ Table[models.Contact] = (*HTTPTable[models.Contact])(nil)

// NewHTTPTable binds a TableSpec to a client.
func NewHTTPTable[T any](c *Client, spec TableSpec) *HTTPTable[T] {
	return &HTTPTable[T]{c: c, spec: spec}
}

// List implements Table.
func (t *HTTPTable[T]) List(ctx context.Context, ownerID string) ([]T, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set(t.spec.OwnerColumn, "eq."+ownerID)
	q.Set("order", t.spec.order())
	var rows []T
	if err := t.c.do(ctx, http.MethodGet, t.spec.Name, q, nil, "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert implements Table.
func (t *HTTPTable[T]) Insert(ctx context.Context, rows ...T) ([]T, error) {
	body := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m, err := t.writable(r)
		if err != nil {
			return nil, err
		}
		body = append(body, m)
	}
	var out []T
	if err := t.c.do(ctx, http.MethodPost, t.spec.Name, nil, body, "return=representation", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update implements Table.
func (t *HTTPTable[T]) Update(ctx context.Context, id string, patch models.Patch) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	clean := make(models.Patch, len(patch))
	for k, v := range patch {
		if !t.virtual(k) {
			clean[k] = v
		}
	}
	return t.c.do(ctx, http.MethodPatch, t.spec.Name, q, clean, "return=minimal", nil)
}

// Delete implements Table.
func (t *HTTPTable[T]) Delete(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	return t.c.do(ctx, http.MethodDelete, t.spec.Name, q, nil, "", nil)
}

func (t *HTTPTable[T]) virtual(field string) bool {
	for _, v := range t.spec.Virtual {
		if v == field {
			return true
		}
	}
	return false
}

// writable converts a row to the column map sent on insert: virtual fields,
// empty ids and zero timestamps are left for the server to fill.
func (t *HTTPTable[T]) writable(row T) (map[string]any, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("remote: encode %s row: %w", t.spec.Name, err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("remote: encode %s row: %w", t.spec.Name, err)
	}
	stripServerFields(m, t.spec.Virtual)
	return m, nil
}

var zeroTime = time.Time{}.Format(time.RFC3339)

func stripServerFields(m map[string]any, virtual []string) {
	for _, v := range virtual {
		delete(m, v)
	}
	if id, _ := m["id"].(string); id == "" {
		delete(m, "id")
	}
	for _, col := range []string{"created_at", "updated_at"} {
		if ts, ok := m[col].(string); ok && (ts == "" || ts == zeroTime) {
			delete(m, col)
		}
	}
}

// HTTPRelation implements Relation over the REST endpoint.
type HTTPRelation struct {
	c    *Client
	spec RelationSpec
}

// NewHTTPRelation binds a RelationSpec to a client.
func NewHTTPRelation(c *Client, spec RelationSpec) *HTTPRelation {
	return &HTTPRelation{c: c, spec: spec}
}

// Links implements Relation.
func (r *HTTPRelation) Links(ctx context.Context, leftIDs []string) ([]models.Link, error) {
	if len(leftIDs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("select", r.spec.LeftColumn+","+r.spec.RightColumn)
	q.Set(r.spec.LeftColumn, "in.("+strings.Join(leftIDs, ",")+")")
	var rows []map[string]string
	if err := r.c.do(ctx, http.MethodGet, r.spec.Name, q, nil, "", &rows); err != nil {
		return nil, err
	}
	links := make([]models.Link, 0, len(rows))
	for _, row := range rows {
		links = append(links, models.Link{LeftID: row[r.spec.LeftColumn], RightID: row[r.spec.RightColumn]})
	}
	return links, nil
}

// Link implements Relation.
func (r *HTTPRelation) Link(ctx context.Context, leftID, rightID string) error {
	body := map[string]string{r.spec.LeftColumn: leftID, r.spec.RightColumn: rightID}
	return r.c.do(ctx, http.MethodPost, r.spec.Name, nil, body, "return=minimal", nil)
}

// Unlink implements Relation.
func (r *HTTPRelation) Unlink(ctx context.Context, leftID, rightID string) error {
	q := url.Values{}
	q.Set(r.spec.LeftColumn, "eq."+leftID)
	q.Set(r.spec.RightColumn, "eq."+rightID)
	return r.c.do(ctx, http.MethodDelete, r.spec.Name, q, nil, "", nil)
}
