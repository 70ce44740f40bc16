package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/pkg/logger"
)

// TokenCleanupWorker purges stale auth tokens: verification and reset
// tokens past their expiry, used tokens, and logout revocation markers.
// Rows linger for the retention window after becoming stale so support
// can still look them up.
type TokenCleanupWorker struct {
	store     docstore.Store
	retention time.Duration
	interval  time.Duration
	log       *logger.Logger
}

func NewTokenCleanupWorker(store docstore.Store, retention, interval time.Duration, log *logger.Logger) *TokenCleanupWorker {
	return &TokenCleanupWorker{
		store:     store,
		retention: retention,
		interval:  interval,
		log:       log.WithComponent("token_cleanup"),
	}
}

// Start sweeps once immediately, then on every tick until ctx is
// cancelled. Sweep failures are logged and retried next tick.
func (w *TokenCleanupWorker) Start(ctx context.Context) {
	if err := w.sweepOnce(ctx); err != nil {
		w.log.Error(err, "token sweep failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweepOnce(ctx); err != nil {
				w.log.Error(err, "token sweep failed")
			}
		}
	}
}

func (w *TokenCleanupWorker) sweepOnce(ctx context.Context) error {
	removed, err := w.Sweep(ctx, time.Now())
	if err != nil {
		return err
	}
	if removed > 0 {
		w.log.Info("swept stale auth tokens", "removed", removed)
	}
	return nil
}

// Sweep deletes tokens that have been stale longer than the retention
// window as of now, returning how many were removed.
func (w *TokenCleanupWorker) Sweep(ctx context.Context, now time.Time) (int, error) {
	docs, err := w.store.All(ctx, docstore.CollectionAuthTokens)
	if err != nil {
		return 0, fmt.Errorf("list auth tokens: %w", err)
	}

	cutoff := now.Add(-w.retention)
	removed := 0
	for _, doc := range docs {
		if !w.stale(doc, cutoff) {
			continue
		}
		if err := w.store.Delete(ctx, docstore.CollectionAuthTokens, doc.ID()); err != nil {
			// Another sweeper may have won the race; keep going.
			continue
		}
		removed++
	}
	return removed, nil
}

// stale reports whether the token left service before cutoff: its
// expiry passed, or it was consumed (updatedAt marks consumption).
func (w *TokenCleanupWorker) stale(doc docstore.Document, cutoff time.Time) bool {
	if expires, err := time.Parse(docstore.TimeLayout, doc.Str("expiresAt")); err == nil {
		if expires.Before(cutoff) {
			return true
		}
	}

	if used, ok := doc["used"].(bool); ok && used {
		if updated, err := time.Parse(docstore.TimeLayout, doc.Str("updatedAt")); err == nil {
			return updated.Before(cutoff)
		}
		return true
	}
	return false
}
