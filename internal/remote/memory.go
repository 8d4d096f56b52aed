package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/models"
)

// Op names a remote operation for failure injection and call counting.
type Op string

// Operations tracked by the memory implementation.
const (
	OpList   Op = "list"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpLinks  Op = "links"
	OpLink   Op = "link"
	OpUnlink Op = "unlink"
)

// faults holds injected failures, blocking gates and call counters.
type faults struct {
	mu    sync.Mutex
	calls map[Op]int
	fail  map[Op]error
	once  map[Op]error
	gates map[Op]chan struct{}
}

func newFaults() *faults {
	return &faults{
		calls: map[Op]int{},
		fail:  map[Op]error{},
		once:  map[Op]error{},
		gates: map[Op]chan struct{}{},
	}
}

// enter counts the call, waits on any gate and returns an injected error.
func (f *faults) enter(ctx context.Context, op Op) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.gates[op]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.once[op]; ok {
		delete(f.once, op)
		return err
	}
	return f.fail[op]
}

// Calls returns how many times op was invoked.
func (f *faults) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Fail makes every call to op return err until Heal.
func (f *faults) Fail(op Op, err error) {
	f.mu.Lock()
	f.fail[op] = err
	f.mu.Unlock()
}

// FailNext makes only the next call to op return err.
func (f *faults) FailNext(op Op, err error) {
	f.mu.Lock()
	f.once[op] = err
	f.mu.Unlock()
}

// Heal clears all injected failures.
func (f *faults) Heal() {
	f.mu.Lock()
	f.fail = map[Op]error{}
	f.once = map[Op]error{}
	f.mu.Unlock()
}

// Block makes calls to op wait until the returned release func is called.
func (f *faults) Block(op Op) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[op] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gates[op] == gate {
				delete(f.gates, op)
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// MemoryTable is an in-process Table. Rows are kept as JSON column maps so
// partial updates behave like the hosted service.
type MemoryTable[T any] struct {
	*faults
	spec TableSpec
	now  func() time.Time

	mu   sync.Mutex
	rows []map[string]any
}

var _ Table[models.Tag] = (*MemoryTable[models.Tag])(nil)

// NewMemoryTable returns an empty table. now defaults to time.Now.
func NewMemoryTable[T any](spec TableSpec, now func() time.Time) *MemoryTable[T] {
	if now == nil {
		now = time.Now
	}
	return &MemoryTable[T]{faults: newFaults(), spec: spec, now: now}
}

// List implements Table.
func (t *MemoryTable[T]) List(ctx context.Context, ownerID string) ([]T, error) {
	if err := t.enter(ctx, OpList); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var owned []map[string]any
	for _, row := range t.rows {
		if owner, _ := row[t.spec.OwnerColumn].(string); owner == ownerID {
			owned = append(owned, row)
		}
	}
	col := t.spec.OrderBy
	if col == "" {
		col = "created_at"
	}
	if t.spec.Descending {
		// Reversing first keeps later inserts ahead of earlier ones on ties.
		slices.Reverse(owned)
	}
	slices.SortStableFunc(owned, func(a, b map[string]any) int {
		c := columnTime(a, col).Compare(columnTime(b, col))
		if t.spec.Descending {
			return -c
		}
		return c
	})

	out := make([]T, 0, len(owned))
	for _, row := range owned {
		v, err := fromColumns[T](row)
		if err != nil {
			return nil, fmt.Errorf("remote: %s: %w", t.spec.Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func columnTime(row map[string]any, col string) time.Time {
	s, _ := row[col].(string)
	ts, _ := time.Parse(time.RFC3339Nano, s)
	return ts
}

// Insert implements Table.
func (t *MemoryTable[T]) Insert(ctx context.Context, rows ...T) ([]T, error) {
	if err := t.enter(ctx, OpInsert); err != nil {
		return nil, err
	}
	now := t.now().UTC().Format(time.RFC3339Nano)

	prepared := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m, err := toColumns(r)
		if err != nil {
			return nil, fmt.Errorf("remote: %s: %w", t.spec.Name, err)
		}
		stripServerFields(m, t.spec.Virtual)
		if _, ok := m["id"]; !ok {
			m["id"] = uuid.NewString()
		}
		m["created_at"] = now
		if _, ok := m["updated_at"]; ok || t.hasUpdatedAt() {
			m["updated_at"] = now
		}
		prepared = append(prepared, m)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]T, 0, len(prepared))
	for _, m := range prepared {
		if t.indexOf(m["id"].(string)) >= 0 {
			return nil, fmt.Errorf("remote: %s: duplicate id %v: %w", t.spec.Name, m["id"], apperr.ErrConflict)
		}
	}
	for _, m := range prepared {
		t.rows = append(t.rows, m)
		v, err := fromColumns[T](m)
		if err != nil {
			return nil, fmt.Errorf("remote: %s: %w", t.spec.Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Update implements Table.
func (t *MemoryTable[T]) Update(ctx context.Context, id string, patch models.Patch) error {
	if err := t.enter(ctx, OpUpdate); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("remote: %s %s: %w", t.spec.Name, id, apperr.ErrNotFound)
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("remote: %s: encode patch: %w", t.spec.Name, err)
	}
	var cols map[string]any
	if err := json.Unmarshal(raw, &cols); err != nil {
		return fmt.Errorf("remote: %s: encode patch: %w", t.spec.Name, err)
	}
	row := t.rows[i]
	for k, v := range cols {
		if k == "id" || t.isVirtual(k) {
			continue
		}
		row[k] = v
	}
	if _, ok := row["updated_at"]; ok {
		row["updated_at"] = t.now().UTC().Format(time.RFC3339Nano)
	}
	return nil
}

// Delete implements Table. Deleting a missing row is not an error.
func (t *MemoryTable[T]) Delete(ctx context.Context, id string) error {
	if err := t.enter(ctx, OpDelete); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexOf(id); i >= 0 {
		t.rows = append(t.rows[:i], t.rows[i+1:]...)
	}
	return nil
}

// Len returns the number of stored rows across all owners.
func (t *MemoryTable[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

func (t *MemoryTable[T]) indexOf(id string) int {
	for i, row := range t.rows {
		if row["id"] == id {
			return i
		}
	}
	return -1
}

func (t *MemoryTable[T]) isVirtual(field string) bool {
	for _, v := range t.spec.Virtual {
		if v == field {
			return true
		}
	}
	return false
}

// hasUpdatedAt reports whether T carries an updated_at column.
func (t *MemoryTable[T]) hasUpdatedAt() bool {
	var zero T
	m, err := toColumns(zero)
	if err != nil {
		return false
	}
	_, ok := m["updated_at"]
	return ok
}

func toColumns(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromColumns[T any](m map[string]any) (T, error) {
	var v T
	raw, err := json.Marshal(m)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}

// MemoryRelation is an in-process Relation.
type MemoryRelation struct {
	*faults
	spec RelationSpec

	mu    sync.Mutex
	links []models.Link
}

// NewMemoryRelation returns an empty relation.
func NewMemoryRelation(spec RelationSpec) *MemoryRelation {
	return &MemoryRelation{faults: newFaults(), spec: spec}
}

// Links implements Relation.
func (r *MemoryRelation) Links(ctx context.Context, leftIDs []string) ([]models.Link, error) {
	if err := r.enter(ctx, OpLinks); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(leftIDs))
	for _, id := range leftIDs {
		want[id] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Link
	for _, l := range r.links {
		if want[l.LeftID] {
			out = append(out, l)
		}
	}
	return out, nil
}

// Link implements Relation. A duplicate link is a conflict.
func (r *MemoryRelation) Link(ctx context.Context, leftID, rightID string) error {
	if err := r.enter(ctx, OpLink); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.LeftID == leftID && l.RightID == rightID {
			return fmt.Errorf("remote: %s: %w", r.spec.Name, apperr.ErrConflict)
		}
	}
	r.links = append(r.links, models.Link{LeftID: leftID, RightID: rightID})
	return nil
}

// Unlink implements Relation.
func (r *MemoryRelation) Unlink(ctx context.Context, leftID, rightID string) error {
	if err := r.enter(ctx, OpUnlink); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.links {
		if l.LeftID == leftID && l.RightID == rightID {
			r.links = append(r.links[:i], r.links[i+1:]...)
			return nil
		}
	}
	return nil
}

// MemoryService exposes the concrete memory tables alongside the Service view.
type MemoryService struct {
	*Service

	Contacts      *MemoryTable[models.Contact]
	Profiles      *MemoryTable[models.Profile]
	Events        *MemoryTable[models.Event]
	Tags          *MemoryTable[models.Tag]
	Templates     *MemoryTable[models.Template]
	Signatures    *MemoryTable[models.Signature]
	ContactTags   *MemoryRelation
	ContactEvents *MemoryRelation

	mu      sync.Mutex
	offline bool
}

// NewMemoryService returns a Service backed entirely by memory tables.
func NewMemoryService(now func() time.Time) *MemoryService {
	m := &MemoryService{
		Contacts:      NewMemoryTable[models.Contact](ContactsTable, now),
		Profiles:      NewMemoryTable[models.Profile](ProfilesTable, now),
		Events:        NewMemoryTable[models.Event](EventsTable, now),
		Tags:          NewMemoryTable[models.Tag](TagsTable, now),
		Templates:     NewMemoryTable[models.Template](TemplatesTable, now),
		Signatures:    NewMemoryTable[models.Signature](SignaturesTable, now),
		ContactTags:   NewMemoryRelation(ContactTagsRelation),
		ContactEvents: NewMemoryRelation(ContactEventsRelation),
	}
	m.Service = &Service{
		Contacts:      m.Contacts,
		Profiles:      m.Profiles,
		Events:        m.Events,
		Tags:          m.Tags,
		Templates:     m.Templates,
		Signatures:    m.Signatures,
		ContactTags:   m.ContactTags,
		ContactEvents: m.ContactEvents,
		Ping:          m.ping,
	}
	return m
}

// ErrUnreachable is returned by Ping while the memory service is set offline.
var ErrUnreachable = errors.New("remote: service unreachable")

// SetReachable toggles the result of Ping.
func (m *MemoryService) SetReachable(ok bool) {
	m.mu.Lock()
	m.offline = !ok
	m.mu.Unlock()
}

func (m *MemoryService) ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return ErrUnreachable
	}
	return nil
}
