// Package memory provides an in-process document store with the same
// semantics as the Postgres implementation, used by tests and local
// development.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/carepoint/portal-api/internal/docstore"
)

// watchBuffer bounds how far a watcher may fall behind before events
// are dropped.
const watchBuffer = 64

// Store keeps collections in mutex-guarded maps and dispatches change
// events in-process. All stored and returned documents pass through a
// JSON round trip, so callers see the same value types (float64,
// string, bool, []interface{}, map[string]interface{}) the Postgres
// store produces.
type Store struct {
	mu      sync.RWMutex
	data    map[string]map[string]docstore.Document
	subs    map[string]map[int]chan docstore.Event
	nextSub int
}

func NewStore() *Store {
	return &Store{
		data: make(map[string]map[string]docstore.Document),
		subs: make(map[string]map[int]chan docstore.Event),
	}
}

func (s *Store) Create(ctx context.Context, collection string, fields docstore.Document) (docstore.Document, error) {
	doc, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	doc["id"] = uuid.New().String()
	now := docstore.Now()
	doc["createdAt"] = now
	doc["updatedAt"] = now

	s.mu.Lock()
	s.collection(collection)[doc.ID()] = doc
	s.mu.Unlock()

	s.dispatch(docstore.Event{Collection: collection, ID: doc.ID(), Op: docstore.OpCreate, Doc: doc})
	return doc.Clone(), nil
}

func (s *Store) Put(ctx context.Context, collection, id string, fields docstore.Document) (docstore.Document, error) {
	doc, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	doc["id"] = id
	now := docstore.Now()
	doc["updatedAt"] = now

	s.mu.Lock()
	coll := s.collection(collection)
	prev, existed := coll[id]
	if existed && prev["createdAt"] != nil {
		doc["createdAt"] = prev["createdAt"]
	} else if doc["createdAt"] == nil {
		doc["createdAt"] = now
	}
	coll[id] = doc
	s.mu.Unlock()

	op := docstore.OpCreate
	if existed {
		op = docstore.OpUpdate
	}
	s.dispatch(docstore.Event{Collection: collection, ID: id, Op: op, Doc: doc})
	return doc.Clone(), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Document) (docstore.Document, error) {
	patch, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	delete(patch, "id")
	delete(patch, "createdAt")
	delete(patch, "updatedAt")

	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return nil, docstore.ErrNotFound
	}
	merged := doc.Clone()
	for k, v := range patch {
		merged[k] = v
	}
	merged["updatedAt"] = docstore.Now()
	s.data[collection][id] = merged
	s.mu.Unlock()

	s.dispatch(docstore.Event{Collection: collection, ID: id, Op: docstore.OpUpdate, Doc: merged})
	return merged.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if _, ok := s.data[collection][id]; !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	delete(s.data[collection], id)
	s.mu.Unlock()

	s.dispatch(docstore.Event{Collection: collection, ID: id, Op: docstore.OpDelete})
	return nil
}

func (s *Store) FindEquals(ctx context.Context, collection, field string, value interface{}) ([]docstore.Document, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []docstore.Document
	for _, doc := range s.data[collection] {
		got, ok := doc[field]
		if !ok {
			continue
		}
		raw, err := json.Marshal(got)
		if err != nil {
			continue
		}
		if string(raw) == string(want) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (s *Store) All(ctx context.Context, collection string) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]docstore.Document, 0, len(s.data[collection]))
	for _, doc := range s.data[collection] {
		out = append(out, doc.Clone())
	}
	return out, nil
}

// Watch returns a feed of the collection's future mutations. Events are
// dropped for a watcher that falls watchBuffer events behind.
func (s *Store) Watch(ctx context.Context, collection string) (<-chan docstore.Event, func(), error) {
	ch := make(chan docstore.Event, watchBuffer)

	s.mu.Lock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]chan docstore.Event)
	}
	id := s.nextSub
	s.nextSub++
	s.subs[collection][id] = ch
	s.mu.Unlock()

	// Closing under the write lock keeps dispatch, which sends under
	// the read lock, from racing a send against the close.
	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[collection], id)
			close(ch)
			s.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	return ch, stop, nil
}

// collection returns the named collection map, creating it on first
// use. Callers must hold mu.
func (s *Store) collection(name string) map[string]docstore.Document {
	if s.data[name] == nil {
		s.data[name] = make(map[string]docstore.Document)
	}
	return s.data[name]
}

func (s *Store) dispatch(ev docstore.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs[ev.Collection] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// normalize deep-copies fields through a JSON round trip.
func normalize(fields docstore.Document) (docstore.Document, error) {
	if fields == nil {
		return docstore.Document{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
