// Package subscription turns the document change feed into push
// snapshots: subscribers register a callback and receive the full,
// freshly filtered and sorted result list on start and after every
// change event. Consumers never see diffs and never poll.
package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/query"
	"github.com/carepoint/portal-api/pkg/logger"
	"github.com/carepoint/portal-api/pkg/metrics"
)

// Snapshot receives the complete current result list. It runs on the
// subscription's goroutine: one change event, one invocation, no
// coalescing.
type Snapshot func(docs []docstore.Document)

// Options describes what a subscriber watches. Field/Value form the
// primary equality filter (empty Field watches the whole collection).
// Date, when set, keeps only documents whose "date" field equals it.
type Options struct {
	Collection string
	Field      string
	Value      interface{}
	Date       string
	Refine     []query.Filter
	OrderBy    string
	Descending bool
}

func (o Options) query() query.Query {
	q := query.Query{
		Collection: o.Collection,
		OrderBy:    o.OrderBy,
		Descending: o.Descending,
	}
	if o.Field != "" {
		q.Where = query.Equals(o.Field, o.Value)
	}
	if o.Date != "" {
		q.Refine = append(q.Refine, query.Filter{Field: "date", Op: query.OpEq, Value: o.Date})
	}
	q.Refine = append(q.Refine, o.Refine...)
	return q
}

// Manager creates subscriptions over a store and its change feed.
type Manager struct {
	composer *query.Composer
	watcher  docstore.Watcher
	logger   *logger.Logger
	m        *metrics.Metrics
}

// NewManager creates a manager. m may be nil.
func NewManager(composer *query.Composer, watcher docstore.Watcher, log *logger.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		composer: composer,
		watcher:  watcher,
		logger:   log.WithComponent("subscription"),
		m:        m,
	}
}

// Subscribe starts a subscription: fn is invoked once with the initial
// snapshot before Subscribe returns, then once per change event. The
// returned disposer must be called to end the feed; it is idempotent.
func (mgr *Manager) Subscribe(ctx context.Context, opts Options, fn Snapshot) (func(), error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("subscription missing collection")
	}

	subCtx, cancel := context.WithCancel(ctx)

	// Watch before the initial fetch so mutations landing in between
	// are replayed onto the held set instead of lost.
	feed, stopFeed, err := mgr.watcher.Watch(subCtx, opts.Collection)
	if err != nil {
		cancel()
		return nil, err
	}

	q := opts.query()

	raw, err := mgr.composer.Run(subCtx, query.Query{Collection: q.Collection, Where: q.Where})
	if err != nil {
		stopFeed()
		cancel()
		return nil, err
	}

	held := make(map[string]docstore.Document, len(raw))
	for _, doc := range raw {
		held[doc.ID()] = doc
	}

	if mgr.m != nil {
		mgr.m.SubscriptionsActive.Inc()
	}

	push := func() {
		start := time.Now()
		docs := make([]docstore.Document, 0, len(held))
		for _, d := range held {
			docs = append(docs, d)
		}
		fn(query.Apply(docs, q))
		if mgr.m != nil {
			mgr.m.SnapshotsPushed.WithLabelValues(q.Collection).Inc()
			mgr.m.SnapshotBuildLatency.Observe(time.Since(start).Seconds())
		}
	}

	push()

	mgr.logger.Debug("subscription started", "collection", q.Collection, "field", opts.Field)

	go func() {
		defer func() {
			if mgr.m != nil {
				mgr.m.SubscriptionsActive.Dec()
			}
			mgr.logger.Debug("subscription ended", "collection", q.Collection, "field", opts.Field)
		}()
		for ev := range feed {
			applyEvent(held, q.Where, ev)
			push()
		}
	}()

	var once sync.Once
	dispose := func() {
		once.Do(func() {
			stopFeed()
			cancel()
		})
	}
	return dispose, nil
}

// applyEvent folds one change event into the held set. Documents that
// stop matching the primary filter are evicted, covering reassignment
// updates.
func applyEvent(held map[string]docstore.Document, where *query.Filter, ev docstore.Event) {
	switch ev.Op {
	case docstore.OpDelete:
		delete(held, ev.ID)
	case docstore.OpCreate, docstore.OpUpdate:
		if ev.Doc == nil {
			return
		}
		if where == nil || query.Matches(ev.Doc, *where) {
			held[ev.ID] = ev.Doc
		} else {
			delete(held, ev.ID)
		}
	}
}
