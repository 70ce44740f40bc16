package model

// Appointment status constants
const (
	AppointmentStatusScheduled = "scheduled"
	AppointmentStatusUpcoming  = "upcoming"
	AppointmentStatusCompleted = "completed"
	AppointmentStatusCancelled = "cancelled"
	AppointmentStatusEmergency = "emergency"
)

// ValidAppointmentStatus reports whether status belongs to the closed
// appointment status set.
func ValidAppointmentStatus(status string) bool {
	switch status {
	case AppointmentStatusScheduled, AppointmentStatusUpcoming,
		AppointmentStatusCompleted, AppointmentStatusCancelled,
		AppointmentStatusEmergency:
		return true
	}
	return false
}

// Appointment represents a booked visit. Date is a calendar day in
// YYYY-MM-DD form and Time a clock string such as "09:30"; both compare
// lexicographically.
type Appointment struct {
	Base
	PatientID   string `json:"patientId"`
	DoctorID    string `json:"doctorId"`
	PatientName string `json:"patientName,omitempty"`
	DoctorName  string `json:"doctorName,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
}

// BookAppointmentRequest represents a patient booking.
type BookAppointmentRequest struct {
	DoctorID string `json:"doctorId" binding:"required"`
	Date     string `json:"date" binding:"required,datetime=2006-01-02"`
	Time     string `json:"time" binding:"required,timeofday"`
	Notes    string `json:"notes"`
}

// RescheduleAppointmentRequest moves a booking to a new slot.
type RescheduleAppointmentRequest struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02"`
	Time string `json:"time" binding:"required,timeofday"`
}

// UpdateAppointmentStatusRequest represents a doctor-side status change.
type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=scheduled upcoming completed cancelled emergency"`
}

// AppendAppointmentNotesRequest attaches visit notes to a booking.
type AppendAppointmentNotesRequest struct {
	Notes string `json:"notes" binding:"required"`
}
