package query

import (
	"context"
	"fmt"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/pkg/metrics"
)

// Composer runs composed queries against a document store.
type Composer struct {
	store docstore.Store
	m     *metrics.Metrics
}

// NewComposer creates a composer. m may be nil.
func NewComposer(store docstore.Store, m *metrics.Metrics) *Composer {
	return &Composer{store: store, m: m}
}

// Run fetches the primary filter server-side and refines, orders and
// limits the result in memory. Store errors propagate untouched; there
// is no retry at this layer.
func (c *Composer) Run(ctx context.Context, q Query) ([]docstore.Document, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("query missing collection")
	}

	var (
		docs []docstore.Document
		err  error
	)
	if q.Where != nil {
		docs, err = c.store.FindEquals(ctx, q.Collection, q.Where.Field, q.Where.Value)
	} else {
		docs, err = c.store.All(ctx, q.Collection)
	}
	if err != nil {
		return nil, err
	}

	out := Apply(docs, q)

	if c.m != nil {
		c.m.QueriesEvaluated.WithLabelValues(q.Collection).Inc()
		c.m.QueryResultSize.Observe(float64(len(out)))
		for _, f := range q.Refine {
			if !ValidOp(f.Op) {
				c.m.QueryRejected.Inc()
				break
			}
		}
	}
	return out, nil
}
