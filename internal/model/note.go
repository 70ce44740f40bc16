package model

// MedicalNote represents a doctor-authored clinical note about a
// patient, optionally tied to an appointment and optionally carrying an
// uploaded attachment reference.
type MedicalNote struct {
	Base
	PatientID     string `json:"patientId"`
	DoctorID      string `json:"doctorId"`
	AppointmentID string `json:"appointmentId,omitempty"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

// CreateMedicalNoteRequest represents a doctor writing a note.
type CreateMedicalNoteRequest struct {
	PatientID     string `json:"patientId" binding:"required"`
	AppointmentID string `json:"appointmentId"`
	Title         string `json:"title" binding:"required"`
	Content       string `json:"content" binding:"required"`
	AttachmentURL string `json:"attachmentUrl"`
}

// UpdateMedicalNoteRequest represents note edits.
type UpdateMedicalNoteRequest struct {
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	AttachmentURL *string `json:"attachmentUrl"`
}
