package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/pkg/logger"
	"github.com/carepoint/portal-api/pkg/messaging"
)

// Config holds database connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Connect opens and pings a Postgres connection.
func Connect(cfg Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Store persists documents in a single JSONB-bodied table keyed by
// (collection, id). Equality lookups use JSONB containment against a
// GIN index, so no per-field index is ever required. Every successful
// mutation publishes a change event on "docstore:<collection>".
type Store struct {
	db     *sqlx.DB
	broker messaging.Broker
	logger *logger.Logger
}

// NewStore creates a document store over db. broker may be nil, which
// disables the change feed.
func NewStore(db *sqlx.DB, broker messaging.Broker, log *logger.Logger) *Store {
	return &Store{
		db:     db,
		broker: broker,
		logger: log.WithComponent("docstore"),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_body_gin ON documents USING gin (body jsonb_path_ops);
`

// EnsureSchema creates the documents table and its containment index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure documents schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, collection string, fields docstore.Document) (docstore.Document, error) {
	doc := fields.Clone()
	doc["id"] = uuid.New().String()
	now := docstore.Now()
	doc["createdAt"] = now
	doc["updatedAt"] = now

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, collection, doc.ID(), body); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.publish(ctx, docstore.Event{Collection: collection, ID: doc.ID(), Op: docstore.OpCreate, Doc: doc})
	return doc, nil
}

func (s *Store) Put(ctx context.Context, collection, id string, fields docstore.Document) (docstore.Document, error) {
	doc := fields.Clone()
	doc["id"] = id
	now := docstore.Now()
	doc["createdAt"] = now
	doc["updatedAt"] = now

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	// On replacement the original createdAt wins over the one stamped
	// above for the fresh-insert case.
	query := `
		INSERT INTO documents (collection, id, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE
		SET body = EXCLUDED.body ||
			jsonb_build_object('createdAt', COALESCE(documents.body->'createdAt', EXCLUDED.body->'createdAt')),
			updated_at = now()
		RETURNING (xmax = 0) AS inserted, body
	`
	var row struct {
		Inserted bool   `db:"inserted"`
		Body     []byte `db:"body"`
	}
	if err := s.db.GetContext(ctx, &row, query, collection, id, body); err != nil {
		return nil, fmt.Errorf("failed to put document: %w", err)
	}

	stored, err := unmarshalDocument(row.Body)
	if err != nil {
		return nil, err
	}

	op := docstore.OpUpdate
	if row.Inserted {
		op = docstore.OpCreate
	}
	s.publish(ctx, docstore.Event{Collection: collection, ID: id, Op: op, Doc: stored})
	return stored, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var body []byte
	query := `SELECT body FROM documents WHERE collection = $1 AND id = $2`
	if err := s.db.GetContext(ctx, &body, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return unmarshalDocument(body)
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Document) (docstore.Document, error) {
	merged := fields.Clone()
	delete(merged, "id")
	delete(merged, "createdAt")
	delete(merged, "updatedAt")

	patch, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
		UPDATE documents
		SET body = body || $3::jsonb || jsonb_build_object('updatedAt', $4::text),
			updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING body
	`
	var body []byte
	if err := s.db.GetContext(ctx, &body, query, collection, id, patch, docstore.Now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	doc, err := unmarshalDocument(body)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, docstore.Event{Collection: collection, ID: id, Op: docstore.OpUpdate, Doc: doc})
	return doc, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if rows == 0 {
		return docstore.ErrNotFound
	}

	s.publish(ctx, docstore.Event{Collection: collection, ID: id, Op: docstore.OpDelete})
	return nil
}

func (s *Store) FindEquals(ctx context.Context, collection, field string, value interface{}) ([]docstore.Document, error) {
	probe, err := json.Marshal(docstore.Document{field: value})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal probe: %w", err)
	}

	query := `SELECT body FROM documents WHERE collection = $1 AND body @> $2::jsonb`
	return s.selectDocuments(ctx, query, collection, probe)
}

func (s *Store) All(ctx context.Context, collection string) ([]docstore.Document, error) {
	query := `SELECT body FROM documents WHERE collection = $1`
	return s.selectDocuments(ctx, query, collection)
}

func (s *Store) selectDocuments(ctx context.Context, query string, args ...interface{}) ([]docstore.Document, error) {
	var bodies [][]byte
	if err := s.db.SelectContext(ctx, &bodies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	docs := make([]docstore.Document, 0, len(bodies))
	for _, body := range bodies {
		doc, err := unmarshalDocument(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Watch subscribes to the collection's change feed via the broker. The
// returned stop function ends the feed; the channel closes afterwards.
func (s *Store) Watch(ctx context.Context, collection string) (<-chan docstore.Event, func(), error) {
	if s.broker == nil {
		return nil, nil, fmt.Errorf("change feed unavailable: no broker configured")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	raw, err := s.broker.Subscribe(watchCtx, feedChannel(collection))
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to watch %s: %w", collection, err)
	}

	events := make(chan docstore.Event, 16)
	go func() {
		defer close(events)
		for payload := range raw {
			var ev docstore.Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				s.logger.Error(err, "dropping malformed change event", "collection", collection)
				continue
			}
			select {
			case events <- ev:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return events, cancel, nil
}

// publish emits a change event. The feed is best effort: a publish
// failure is logged, never surfaced, so mutations do not fail on broker
// trouble.
func (s *Store) publish(ctx context.Context, ev docstore.Event) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, feedChannel(ev.Collection), ev); err != nil {
		s.logger.Error(err, "failed to publish change event", "collection", ev.Collection, "id", ev.ID)
	}
}

func feedChannel(collection string) string {
	return "docstore:" + collection
}

func unmarshalDocument(body []byte) (docstore.Document, error) {
	var doc docstore.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}
