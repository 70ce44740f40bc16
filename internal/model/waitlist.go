package model

// Waitlist urgency constants
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// WaitlistEntry represents a patient waiting for an opening with a
// doctor. Entries are removed when the request is fulfilled or
// cancelled, never status-flipped.
type WaitlistEntry struct {
	Base
	PatientID   string `json:"patientId"`
	DoctorID    string `json:"doctorId"`
	PatientName string `json:"patientName,omitempty"`
	Urgency     string `json:"urgency"`
	RequestDate string `json:"requestDate"`
	Position    int    `json:"position,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// JoinWaitlistRequest represents a patient asking to be queued when no
// slot is available.
type JoinWaitlistRequest struct {
	DoctorID    string `json:"doctorId" binding:"required"`
	Urgency     string `json:"urgency" binding:"required,oneof=low medium high"`
	RequestDate string `json:"requestDate" binding:"required,datetime=2006-01-02"`
	Reason      string `json:"reason"`
}
