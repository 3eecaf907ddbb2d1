package catalog

import "context"

// FieldType describes a collection schema field kind, used to auto-discover
// the title and URL fields during dedup index builds
type FieldType string

const (
	FieldTitle       FieldType = "title"
	FieldRichText    FieldType = "rich_text"
	FieldURL         FieldType = "url"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multi_select"
	FieldRelation    FieldType = "relation"
	FieldDate        FieldType = "date"
	FieldNumber      FieldType = "number"
)

// Record is one entry returned by a collection query: the backend id plus
// field values flattened to plain strings
type Record struct {
	ID     string
	Fields map[string]string
}

// Value is one typed field value for create/update calls
type Value struct {
	Type FieldType
	Text string   // title, rich_text, url, select, date
	List []string // multi_select
}

// Fields maps property names to values for create/update calls
type Fields map[string]Value

// convenience constructors for field values

// Title builds a title field value
func Title(s string) Value { return Value{Type: FieldTitle, Text: s} }

// RichText builds a rich text field value
func RichText(s string) Value { return Value{Type: FieldRichText, Text: s} }

// URL builds a url field value
func URL(s string) Value { return Value{Type: FieldURL, Text: s} }

// Select builds a select field value
func Select(s string) Value { return Value{Type: FieldSelect, Text: s} }

// MultiSelect builds a multi-select field value
func MultiSelect(vals []string) Value { return Value{Type: FieldMultiSelect, List: vals} }

// Date builds a date field value from an ISO 8601 string
func Date(s string) Value { return Value{Type: FieldDate, Text: s} }

// Store is the catalog backend. The wire protocol is the backend's own
// business; this core only consumes the operations below.
type Store interface {
	// Collections lists all known collection names
	Collections() []string

	// GetSchema returns field name to field type for one collection
	GetSchema(ctx context.Context, collection string) (map[string]FieldType, error)

	// Query returns every entry in a collection
	Query(ctx context.Context, collection string) ([]Record, error)

	// Create adds an entry and returns its id
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// Update modifies fields on an existing entry
	Update(ctx context.Context, id string, fields Fields) error

	// LinkRelation connects an entry to targets via a relation property
	LinkRelation(ctx context.Context, id, property string, targetIDs []string) error
}
