// Package docstore is the storage seam of the portal: schemaless
// documents grouped into named collections, with a change feed emitted
// on every mutation. Two implementations exist, a Postgres JSONB store
// for production and an in-memory store for tests and local runs.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Collection names. Collections are created on first write; there is no
// registration step.
const (
	CollectionUsers             = "users"
	CollectionAppointments      = "appointments"
	CollectionWaitlists         = "waitlists"
	CollectionEmergencyRequests = "emergencyRequests"
	CollectionMedicalNotes      = "medicalNotes"
	CollectionScheduleSlots     = "scheduleSlots"
	CollectionAuthTokens        = "authTokens"
)

// ErrNotFound is returned when a document identifier does not resolve.
var ErrNotFound = errors.New("document not found")

// TimeLayout is the stored timestamp format. Millisecond precision is
// fixed-width so string comparison agrees with chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Now returns the current UTC time formatted for storage.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// Document is one stored record: a field-value map carrying its own
// identifier under "id".
type Document map[string]interface{}

// ID returns the document identifier, empty when unset.
func (d Document) ID() string {
	return d.Str("id")
}

// Str returns the named field as a string, empty when absent or not a
// string.
func (d Document) Str(field string) string {
	s, _ := d[field].(string)
	return s
}

// Clone returns a shallow copy so callers can mutate results without
// aliasing store state.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Op identifies the kind of mutation a change event describes.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is one change-feed entry. Doc carries the post-mutation state
// and is nil for deletes.
type Event struct {
	Collection string   `json:"collection"`
	ID         string   `json:"id"`
	Op         Op       `json:"op"`
	Doc        Document `json:"doc,omitempty"`
}

// Store is the document CRUD surface. The only server-side filter is
// FindEquals; richer predicates are applied client-side by the query
// composer.
type Store interface {
	// Create stores fields under a generated identifier and returns the
	// stored document including server-assigned id and timestamps.
	Create(ctx context.Context, collection string, fields Document) (Document, error)

	// Put stores fields under the given identifier, creating or fully
	// replacing the document. createdAt is preserved across replacement.
	Put(ctx context.Context, collection, id string, fields Document) (Document, error)

	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Update merges fields into an existing document and bumps
	// updatedAt. Returns ErrNotFound when the identifier does not
	// resolve.
	Update(ctx context.Context, collection, id string, fields Document) (Document, error)

	// Delete removes the document. Deleting an absent document returns
	// ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	// FindEquals returns every document whose field equals value. Order
	// is unspecified.
	FindEquals(ctx context.Context, collection, field string, value interface{}) ([]Document, error)

	// All returns every document in the collection. Order is
	// unspecified.
	All(ctx context.Context, collection string) ([]Document, error)
}

// Watcher exposes the change feed. The returned stop function ends the
// feed and releases its resources; the channel closes after stop or
// context cancellation.
type Watcher interface {
	Watch(ctx context.Context, collection string) (<-chan Event, func(), error)
}

// StoreWatcher combines the CRUD surface with its change feed.
type StoreWatcher interface {
	Store
	Watcher
}

// Decode unmarshals a document into a typed model via its JSON tags.
func Decode(doc Document, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Encode converts a typed model into a document via its JSON tags.
// Empty id and zero timestamps are stripped so the store assigns them.
func Encode(v interface{}) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if doc.ID() == "" {
		delete(doc, "id")
	}
	for _, field := range []string{"createdAt", "updatedAt"} {
		if s, ok := doc[field].(string); ok && (s == "" || s == "0001-01-01T00:00:00Z") {
			delete(doc, field)
		}
	}
	return doc, nil
}
