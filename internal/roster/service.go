package roster

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	"github.com/carepoint/portal-api/pkg/logger"
	"github.com/carepoint/portal-api/pkg/metrics"
)

const (
	profileCacheTTL   = 5 * time.Minute
	profileCacheSweep = 10 * time.Minute
)

// Service fetches the roster sources and resolves patient profiles.
// The three source fetches run concurrently and join before the pure
// build; there is no cross-collection transaction, so the roster
// reflects whichever snapshot each fetch saw.
type Service struct {
	store    docstore.Store
	composer *query.Composer
	profiles *cache.Cache
	logger   *logger.Logger
	m        *metrics.Metrics
	now      func() time.Time
}

// NewService creates a roster service. m may be nil.
func NewService(store docstore.Store, composer *query.Composer, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		composer: composer,
		profiles: cache.New(profileCacheTTL, profileCacheSweep),
		logger:   log.WithComponent("roster"),
		m:        m,
		now:      time.Now,
	}
}

// PatientsForDoctor aggregates the doctor's roster: every patient with
// an appointment, waitlist entry or pending emergency request for this
// doctor, with derived status and visit dates.
func (s *Service) PatientsForDoctor(ctx context.Context, doctorID string) ([]Entry, error) {
	start := time.Now()

	var (
		wg           sync.WaitGroup
		appointments []docstore.Document
		waitlist     []docstore.Document
		emergencies  []docstore.Document
		errs         [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		appointments, errs[0] = s.composer.Run(ctx, query.Query{
			Collection: docstore.CollectionAppointments,
			Where:      query.Equals("doctorId", doctorID),
		})
	}()
	go func() {
		defer wg.Done()
		waitlist, errs[1] = s.composer.Run(ctx, query.Query{
			Collection: docstore.CollectionWaitlists,
			Where:      query.Equals("doctorId", doctorID),
		})
	}()
	go func() {
		defer wg.Done()
		emergencies, errs[2] = s.composer.Run(ctx, query.Query{
			Collection: docstore.CollectionEmergencyRequests,
			Where:      query.Equals("doctorId", doctorID),
			Refine:     []query.Filter{{Field: "status", Op: query.OpEq, Value: model.EmergencyStatusPending}},
		})
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			s.observeBuild(doctorID, start, 0, err)
			return nil, err
		}
	}

	ids := collectPatientIDs(appointments, waitlist, emergencies)
	profiles := s.resolveProfiles(ctx, ids)

	today := s.now().UTC().Format("2006-01-02")
	entries := Build(appointments, waitlist, emergencies, profiles, today)

	s.observeBuild(doctorID, start, len(entries), nil)
	return entries, nil
}

// resolveProfiles maps each patient ID to its profile. Resolution
// tries the direct document lookup, then a uid field-equality query.
// Failures and misses yield no map entry, which Build turns into the
// Unknown Patient placeholder.
func (s *Service) resolveProfiles(ctx context.Context, ids []string) map[string]Profile {
	out := make(map[string]Profile, len(ids))
	for _, pid := range ids {
		if cached, ok := s.profiles.Get(pid); ok {
			out[pid] = cached.(Profile)
			continue
		}

		profile, ok := s.lookupProfile(ctx, pid)
		if !ok {
			continue
		}
		s.profiles.Set(pid, profile, cache.DefaultExpiration)
		out[pid] = profile
	}
	return out
}

func (s *Service) lookupProfile(ctx context.Context, pid string) (Profile, bool) {
	doc, err := s.store.Get(ctx, docstore.CollectionUsers, pid)
	if errors.Is(err, docstore.ErrNotFound) {
		matches, ferr := s.store.FindEquals(ctx, docstore.CollectionUsers, "uid", pid)
		if ferr != nil {
			s.logger.Error(ferr, "profile lookup failed", "patientId", pid)
			return Profile{}, false
		}
		if len(matches) == 0 {
			return Profile{}, false
		}
		doc = matches[0]
	} else if err != nil {
		s.logger.Error(err, "profile lookup failed", "patientId", pid)
		return Profile{}, false
	}

	return Profile{
		ID:       pid,
		Name:     doc.Str("displayName"),
		Email:    doc.Str("email"),
		PhotoURL: doc.Str("photoURL"),
	}, true
}

func (s *Service) observeBuild(doctorID string, start time.Time, size int, err error) {
	if s.m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.m.RosterBuilds.WithLabelValues(status).Inc()
	s.m.RosterBuildLatency.Observe(time.Since(start).Seconds())
	if err == nil {
		s.m.RosterSize.WithLabelValues(doctorID).Set(float64(size))
	}
}
