// Package roster aggregates a doctor's patient list from three
// collections: appointments, waitlist entries and emergency requests.
// The join is pure and deterministic; fetching and caching live in
// Service and Refresher.
package roster

import (
	"sort"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
)

// Patient roster statuses, ordered by precedence: a pending emergency
// outranks waiting, waiting outranks everything derived from visit
// history.
const (
	StatusEmergency = "emergency"
	StatusWaiting   = "waiting"
	StatusNew       = "new"
	StatusActive    = "active"
)

// UnknownPatientName labels entries whose profile could not be
// resolved. Integrity gaps become placeholders, never errors.
const UnknownPatientName = "Unknown Patient"

// Profile is the resolved identity of one patient.
type Profile struct {
	ID          string
	Name        string
	Email       string
	PhotoURL    string
	Placeholder bool
}

// PlaceholderProfile synthesizes the stand-in profile for a patient ID
// with no resolvable user document.
func PlaceholderProfile(patientID string) Profile {
	return Profile{ID: patientID, Name: UnknownPatientName, Placeholder: true}
}

// Entry is one roster row.
type Entry struct {
	PatientID        string `json:"patientId"`
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	PhotoURL         string `json:"photoUrl,omitempty"`
	Status           string `json:"status"`
	LastVisit        string `json:"lastVisit,omitempty"`
	UpcomingVisit    string `json:"upcomingVisit,omitempty"`
	AppointmentCount int    `json:"appointmentCount"`
	WaitlistCount    int    `json:"waitlistCount"`
	EmergencyCount   int    `json:"emergencyCount"`
	Placeholder      bool   `json:"placeholder,omitempty"`
}

// Build joins the three sources into roster entries. Patient identity
// comes from the "patientId" field; IDs are de-duplicated across
// sources. profiles maps patient ID to resolved identity; absent IDs
// get the Unknown Patient placeholder. today (YYYY-MM-DD) splits past
// from upcoming visits. Output is sorted by name then patient ID, so
// unchanged inputs produce identical output.
func Build(appointments, waitlist, emergencies []docstore.Document, profiles map[string]Profile, today string) []Entry {
	ids := collectPatientIDs(appointments, waitlist, emergencies)

	entries := make([]Entry, 0, len(ids))
	for _, pid := range ids {
		profile, ok := profiles[pid]
		if !ok {
			profile = PlaceholderProfile(pid)
		}

		e := Entry{
			PatientID:   pid,
			Name:        profile.Name,
			Email:       profile.Email,
			PhotoURL:    profile.PhotoURL,
			Placeholder: profile.Placeholder,
		}

		completed := 0
		for _, doc := range appointments {
			if doc.Str("patientId") != pid {
				continue
			}
			e.AppointmentCount++
			date := doc.Str("date")
			switch doc.Str("status") {
			case model.AppointmentStatusCompleted:
				completed++
				if date != "" && date > e.LastVisit {
					e.LastVisit = date
				}
			case model.AppointmentStatusScheduled, model.AppointmentStatusUpcoming, model.AppointmentStatusEmergency:
				if date >= today && (e.UpcomingVisit == "" || date < e.UpcomingVisit) {
					e.UpcomingVisit = date
				}
			}
		}

		for _, doc := range waitlist {
			if doc.Str("patientId") == pid {
				e.WaitlistCount++
			}
		}

		pendingEmergency := false
		for _, doc := range emergencies {
			if doc.Str("patientId") != pid {
				continue
			}
			if doc.Str("status") == model.EmergencyStatusPending {
				e.EmergencyCount++
				pendingEmergency = true
			}
		}

		e.Status = deriveStatus(pendingEmergency, e.WaitlistCount, completed)

		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].PatientID < entries[j].PatientID
	})
	return entries
}

// deriveStatus picks the display status by precedence: emergency >
// waiting > new > active. A patient with no completed visits is new;
// anyone with history and nothing more urgent is active.
func deriveStatus(pendingEmergency bool, waitlisted, completed int) string {
	switch {
	case pendingEmergency:
		return StatusEmergency
	case waitlisted > 0:
		return StatusWaiting
	case completed == 0:
		return StatusNew
	default:
		return StatusActive
	}
}

// collectPatientIDs unions the distinct patientId values of the three
// sources, preserving first-seen order. Blank IDs are skipped.
func collectPatientIDs(sources ...[]docstore.Document) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, docs := range sources {
		for _, doc := range docs {
			pid := doc.Str("patientId")
			if pid == "" {
				continue
			}
			if _, dup := seen[pid]; dup {
				continue
			}
			seen[pid] = struct{}{}
			ids = append(ids, pid)
		}
	}
	return ids
}
