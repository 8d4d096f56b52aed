// Package remote is the client side of the hosted data service. The service is
// opaque: every domain reads and writes through the small Table and Relation
// contracts defined here.
package remote

import (
	"context"

	"github.com/starford/synka/internal/models"
)

// Table is the remote contract for one entity table.
type Table[T any] interface {
	// List returns every row owned by ownerID in the table's order.
	List(ctx context.Context, ownerID string) ([]T, error)
	// Insert stores rows and returns them as persisted (ids, timestamps).
	Insert(ctx context.Context, rows ...T) ([]T, error)
	// Update applies a partial update to the row with id.
	Update(ctx context.Context, id string, patch models.Patch) error
	// Delete removes the row with id.
	Delete(ctx context.Context, id string) error
}

// Relation is a many-to-many link table such as contact_tags.
type Relation interface {
	Links(ctx context.Context, leftIDs []string) ([]models.Link, error)
	Link(ctx context.Context, leftID, rightID string) error
	Unlink(ctx context.Context, leftID, rightID string) error
}

// TableSpec names a table and the column that scopes rows to a user.
type TableSpec struct {
	Name        string
	OwnerColumn string
	// OrderBy is the timestamp column List sorts on; created_at when empty.
	OrderBy    string
	Descending bool
	// Virtual lists JSON fields that exist only client-side and must not be sent.
	Virtual []string
}

func (s TableSpec) order() string {
	col := s.OrderBy
	if col == "" {
		col = "created_at"
	}
	if s.Descending {
		return col + ".desc"
	}
	return col + ".asc"
}

// RelationSpec names a link table and its two foreign-key columns.
type RelationSpec struct {
	Name        string
	LeftColumn  string
	RightColumn string
}

// Table and relation names of the hosted schema.
var (
	ContactsTable   = TableSpec{Name: "contacts", OwnerColumn: "owner_id", Descending: true, Virtual: []string{"tags", "events"}}
	ProfilesTable   = TableSpec{Name: "profiles", OwnerColumn: "user_id"}
	EventsTable     = TableSpec{Name: "events", OwnerColumn: "user_id", OrderBy: "start_time", Descending: true}
	TagsTable       = TableSpec{Name: "tags", OwnerColumn: "user_id"}
	TemplatesTable  = TableSpec{Name: "contact_templates", OwnerColumn: "user_id"}
	SignaturesTable = TableSpec{Name: "email_signatures", OwnerColumn: "user_id", Descending: true}

	ContactTagsRelation   = RelationSpec{Name: "contact_tags", LeftColumn: "contact_id", RightColumn: "tag_id"}
	ContactEventsRelation = RelationSpec{Name: "contact_events", LeftColumn: "contact_id", RightColumn: "event_id"}
)

// Service bundles every table the client synchronizes.
type Service struct {
	Contacts   Table[models.Contact]
	Profiles   Table[models.Profile]
	Events     Table[models.Event]
	Tags       Table[models.Tag]
	Templates  Table[models.Template]
	Signatures Table[models.Signature]

	ContactTags   Relation
	ContactEvents Relation

	// Ping checks that the service is reachable.
	Ping func(ctx context.Context) error
}
