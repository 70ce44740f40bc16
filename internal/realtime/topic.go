package realtime

import (
	"fmt"
	"strings"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/session"
	"github.com/carepoint/portal-api/internal/subscription"
)

// Topic scopes.
const (
	ScopeDoctor  = "doctor"
	ScopePatient = "patient"
)

// KindRoster is the synthetic topic kind for aggregated rosters; all
// other kinds are collection names.
const KindRoster = "roster"

// Topic identifies one realtime feed, encoded as "<kind>:<scope>:<id>",
// e.g. "appointments:doctor:d1" or "roster:doctor:d1".
type Topic struct {
	Kind  string
	Scope string
	ID    string
}

// ParseTopic validates and splits a topic string.
func ParseTopic(s string) (Topic, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return Topic{}, fmt.Errorf("malformed topic %q", s)
	}

	t := Topic{Kind: parts[0], Scope: parts[1], ID: parts[2]}

	switch t.Kind {
	case docstore.CollectionAppointments,
		docstore.CollectionWaitlists,
		docstore.CollectionEmergencyRequests,
		docstore.CollectionScheduleSlots,
		KindRoster:
	default:
		return Topic{}, fmt.Errorf("unknown topic kind %q", t.Kind)
	}

	switch t.Scope {
	case ScopeDoctor, ScopePatient:
	default:
		return Topic{}, fmt.Errorf("unknown topic scope %q", t.Scope)
	}

	if t.Kind == KindRoster && t.Scope != ScopeDoctor {
		return Topic{}, fmt.Errorf("roster topics are doctor-scoped")
	}

	return t, nil
}

// String re-encodes the topic.
func (t Topic) String() string {
	return t.Kind + ":" + t.Scope + ":" + t.ID
}

// Allowed reports whether the session may subscribe to the topic.
// Admins see everything; doctors and patients only their own feeds.
func (t Topic) Allowed(sess session.Session) bool {
	switch sess.Role {
	case model.RoleAdmin:
		return true
	case model.RoleDoctor:
		return t.Scope == ScopeDoctor && t.ID == sess.UserID
	case model.RolePatient:
		return t.Scope == ScopePatient && t.ID == sess.UserID
	}
	return false
}

// SubscriptionOptions maps a collection topic onto a wrapper
// subscription. Roster topics report false: their snapshots come from
// the roster refresher, not a collection feed.
func (t Topic) SubscriptionOptions() (subscription.Options, bool) {
	if t.Kind == KindRoster {
		return subscription.Options{}, false
	}

	field := "doctorId"
	if t.Scope == ScopePatient {
		field = "patientId"
	}

	opts := subscription.Options{
		Collection: t.Kind,
		Field:      field,
		Value:      t.ID,
	}

	switch t.Kind {
	case docstore.CollectionAppointments:
		opts.OrderBy = "date"
	case docstore.CollectionWaitlists:
		opts.OrderBy = "position"
	case docstore.CollectionScheduleSlots:
		opts.OrderBy = "day"
	default:
		opts.OrderBy = "createdAt"
	}

	return opts, true
}
