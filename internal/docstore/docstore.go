// Package docstore defines the hosted document store contract the client is
// built against, plus the Redis-backed implementation used in production and
// an in-memory implementation used in tests.
//
// Documents are addressed by slash-separated paths following the hosted
// schema: users/{id}, chats/{id}, chats/{id}/messages/{id}, typing/{chatId}.
// A document's collection is its path minus the final segment.
package docstore

import (
	"context"
	"strings"
)

// Document is a schemaless document snapshot.
type Document struct {
	Path   string
	Fields map[string]any
}

// Op is a query filter operator.
type Op string

const (
	// OpEqual matches documents whose field equals the filter value.
	OpEqual Op = "=="
	// OpArrayContains matches documents whose array field contains the value.
	OpArrayContains Op = "array-contains"
)

// Filter is a single field predicate applied by Query and SubscribeQuery.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a query filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Matches reports whether the given fields satisfy the filter. Array fields
// may arrive as []string (in-memory) or []any (after a JSON round trip).
func (f Filter) Matches(fields map[string]any) bool {
	v, ok := fields[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return v == f.Value
	case OpArrayContains:
		switch arr := v.(type) {
		case []string:
			want, ok := f.Value.(string)
			if !ok {
				return false
			}
			for _, el := range arr {
				if el == want {
					return true
				}
			}
		case []any:
			for _, el := range arr {
				if el == f.Value {
					return true
				}
			}
		}
	}
	return false
}

// Store is the document store collaborator contract. Every call is a network
// round trip on the Redis implementation; callers must treat all operations
// as suspending and classify failures with errors.Is against the kinds in
// errors.go.
//
// Subscriptions deliver an initial snapshot on registration and then one
// callback per observed change, in arrival order for that subscription.
// There is no ordering guarantee across distinct subscriptions. The returned
// cancel func must be called exactly once when the consumer goes away;
// a leaked subscription keeps delivering to a discarded consumer.
type Store interface {
	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (*Document, error)
	// Set writes fields at path. With merge, existing fields not named are
	// kept (field-level upsert, last write wins); without, the document is
	// replaced. Creates the document if absent.
	Set(ctx context.Context, path string, fields map[string]any, merge bool) error
	// Update overwrites the named fields of an existing document and fails
	// with ErrNotFound if the document is absent.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Query returns the documents of a collection matching all filters.
	Query(ctx context.Context, collection string, filters ...Filter) ([]*Document, error)
	// Subscribe watches a single document. The callback receives nil when
	// the document does not (yet) exist.
	Subscribe(path string, fn func(*Document)) (func(), error)
	// SubscribeQuery watches a collection query and re-delivers the full
	// matching result set on every change.
	SubscribeQuery(collection string, filters []Filter, fn func([]*Document)) (func(), error)
	// Close releases the underlying connection.
	Close() error
}

// CollectionOf returns the collection a document path belongs to.
func CollectionOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}
