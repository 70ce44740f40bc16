package docstore

import (
	"context"
	"time"

	"github.com/carepoint/portal-api/pkg/metrics"
)

// WithMetrics decorates a store with per-operation counters and
// latency histograms. A nil metric set returns the store unwrapped.
func WithMetrics(next Store, m *metrics.Metrics) Store {
	if m == nil {
		return next
	}
	return &instrumentedStore{next: next, m: m}
}

type instrumentedStore struct {
	next Store
	m    *metrics.Metrics
}

func (s *instrumentedStore) Create(ctx context.Context, collection string, fields Document) (Document, error) {
	start := time.Now()
	doc, err := s.next.Create(ctx, collection, fields)
	s.observe(collection, "create", start, err)
	return doc, err
}

func (s *instrumentedStore) Put(ctx context.Context, collection, id string, fields Document) (Document, error) {
	start := time.Now()
	doc, err := s.next.Put(ctx, collection, id, fields)
	s.observe(collection, "put", start, err)
	return doc, err
}

func (s *instrumentedStore) Get(ctx context.Context, collection, id string) (Document, error) {
	start := time.Now()
	doc, err := s.next.Get(ctx, collection, id)
	s.observe(collection, "get", start, err)
	return doc, err
}

func (s *instrumentedStore) Update(ctx context.Context, collection, id string, fields Document) (Document, error) {
	start := time.Now()
	doc, err := s.next.Update(ctx, collection, id, fields)
	s.observe(collection, "update", start, err)
	return doc, err
}

func (s *instrumentedStore) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, collection, id)
	s.observe(collection, "delete", start, err)
	return err
}

func (s *instrumentedStore) FindEquals(ctx context.Context, collection, field string, value interface{}) ([]Document, error) {
	start := time.Now()
	docs, err := s.next.FindEquals(ctx, collection, field, value)
	s.observe(collection, "find_equals", start, err)
	return docs, err
}

func (s *instrumentedStore) All(ctx context.Context, collection string) ([]Document, error) {
	start := time.Now()
	docs, err := s.next.All(ctx, collection)
	s.observe(collection, "all", start, err)
	return docs, err
}

func (s *instrumentedStore) observe(collection, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.m.StoreOperations.WithLabelValues(collection, op, status).Inc()
	s.m.StoreLatency.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
}
