package roster

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/carepoint/portal-api/pkg/logger"
)

// DefaultRefreshInterval matches the portal's one-minute roster poll.
const DefaultRefreshInterval = time.Minute

// RefresherConfig configures the periodic rebuild.
type RefresherConfig struct {
	Interval    time.Duration
	SnapshotTTL time.Duration
}

// Refresher rebuilds rosters on a fixed interval for every doctor the
// Targets func reports, keeps the latest snapshot cached, and hands
// each fresh snapshot to Publish. It complements the on-request build:
// screens get an immediate roster on mount and periodic refreshes
// afterwards.
type Refresher struct {
	service   *Service
	config    RefresherConfig
	targets   func() []string
	publish   func(doctorID string, entries []Entry)
	snapshots *cache.Cache
	logger    *logger.Logger
}

// NewRefresher creates a refresher. targets reports the doctor IDs with
// active roster subscriptions; publish receives every fresh snapshot.
func NewRefresher(
	service *Service,
	config RefresherConfig,
	targets func() []string,
	publish func(doctorID string, entries []Entry),
	log *logger.Logger,
) *Refresher {
	if config.Interval <= 0 {
		config.Interval = DefaultRefreshInterval
	}
	if config.SnapshotTTL <= 0 {
		config.SnapshotTTL = 3 * config.Interval
	}

	return &Refresher{
		service:   service,
		config:    config,
		targets:   targets,
		publish:   publish,
		snapshots: cache.New(config.SnapshotTTL, 2*config.SnapshotTTL),
		logger:    log.WithComponent("roster-refresher"),
	}
}

// Start blocks, rebuilding on every tick until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.Info("starting roster refresher", "interval", r.config.Interval.String())

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down roster refresher")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// Refresh rebuilds one doctor's roster immediately, outside the tick
// cycle, caching and publishing the snapshot.
func (r *Refresher) Refresh(ctx context.Context, doctorID string) ([]Entry, error) {
	entries, err := r.service.PatientsForDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	r.snapshots.Set(doctorID, entries, cache.DefaultExpiration)
	if r.publish != nil {
		r.publish(doctorID, entries)
	}
	return entries, nil
}

// Latest returns the most recently built snapshot for the doctor, if
// one is still cached.
func (r *Refresher) Latest(doctorID string) ([]Entry, bool) {
	if cached, ok := r.snapshots.Get(doctorID); ok {
		return cached.([]Entry), true
	}
	return nil, false
}

func (r *Refresher) refresh(ctx context.Context) {
	for _, doctorID := range r.targets() {
		if _, err := r.Refresh(ctx, doctorID); err != nil {
			r.logger.Error(err, "roster refresh failed", "doctorId", doctorID)
		}
	}
}
