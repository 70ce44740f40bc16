package model

// Emergency request status constants
const (
	EmergencyStatusPending  = "pending"
	EmergencyStatusApproved = "approved"
	EmergencyStatusRejected = "rejected"
)

// EmergencyRequest represents a patient's urgent-visit request awaiting
// doctor or admin action.
type EmergencyRequest struct {
	Base
	PatientID   string `json:"patientId"`
	DoctorID    string `json:"doctorId"`
	PatientName string `json:"patientName,omitempty"`
	Reason      string `json:"reason"`
	Status      string `json:"status"`
}

// CreateEmergencyRequest represents a patient raising an urgent-visit
// request.
type CreateEmergencyRequest struct {
	DoctorID string `json:"doctorId" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// ResolveEmergencyRequest approves or rejects a pending request.
type ResolveEmergencyRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}
