package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/roster"
)

func TestDoctorRosterAggregation(t *testing.T) {
	app := newTestApp(t)
	doctor := app.register(t, uniqueEmail("drosei"), "Dr. Osei", "doctor")

	// Ana has a completed visit behind her and a booking ahead.
	ana := app.register(t, uniqueEmail("ana"), "Ana Silva", "")
	rec := app.request(t, http.MethodPost, "/patient/appointments", map[string]string{
		"doctorId": doctor.UserID, "date": "2024-01-10", "time": "09:00",
	}, ana.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var past model.Appointment
	decodeData(t, rec, &past)

	rec = app.request(t, http.MethodPatch, "/doctor/appointments/"+past.ID+"/status",
		map[string]string{"status": "completed"}, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.request(t, http.MethodPost, "/patient/appointments", map[string]string{
		"doctorId": doctor.UserID, "date": "2099-06-01", "time": "10:00",
	}, ana.Token)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Ben is only waiting.
	ben := app.register(t, uniqueEmail("ben"), "Ben Tucker", "")
	rec = app.request(t, http.MethodPost, "/patient/waitlists", map[string]string{
		"doctorId": doctor.UserID, "urgency": "medium", "requestDate": "2026-09-03",
	}, ben.Token)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Cleo is waiting and has a pending emergency, which takes precedence.
	cleo := app.register(t, uniqueEmail("cleo"), "Cleo Marsh", "")
	rec = app.request(t, http.MethodPost, "/patient/waitlists", map[string]string{
		"doctorId": doctor.UserID, "urgency": "high", "requestDate": "2026-09-03",
	}, cleo.Token)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = app.request(t, http.MethodPost, "/patient/emergencies", map[string]string{
		"doctorId": doctor.UserID, "reason": "allergic reaction",
	}, cleo.Token)
	require.Equal(t, http.StatusCreated, rec.Code)

	// A record pointing at a deleted account still produces a row.
	fields, err := docstore.Encode(&model.Appointment{
		PatientID: "vanished-patient",
		DoctorID:  doctor.UserID,
		Date:      "2024-03-01",
		Time:      "11:00",
		Status:    model.AppointmentStatusCompleted,
	})
	require.NoError(t, err)
	_, err = app.store.Create(context.Background(), docstore.CollectionAppointments, fields)
	require.NoError(t, err)

	rec = app.request(t, http.MethodGet, "/doctor/roster", nil, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var entries []roster.Entry
	decodeData(t, rec, &entries)
	require.Len(t, entries, 4)

	// Sorted by name, so the order is fixed.
	assert.Equal(t, "Ana Silva", entries[0].Name)
	assert.Equal(t, roster.StatusActive, entries[0].Status)
	assert.Equal(t, "2024-01-10", entries[0].LastVisit)
	assert.Equal(t, "2099-06-01", entries[0].UpcomingVisit)
	assert.Equal(t, 2, entries[0].AppointmentCount)

	assert.Equal(t, "Ben Tucker", entries[1].Name)
	assert.Equal(t, roster.StatusWaiting, entries[1].Status)
	assert.Equal(t, 1, entries[1].WaitlistCount)

	assert.Equal(t, "Cleo Marsh", entries[2].Name)
	assert.Equal(t, roster.StatusEmergency, entries[2].Status)
	assert.Equal(t, 1, entries[2].EmergencyCount)
	assert.Equal(t, 1, entries[2].WaitlistCount)

	assert.Equal(t, roster.UnknownPatientName, entries[3].Name)
	assert.True(t, entries[3].Placeholder)
	assert.Equal(t, roster.StatusActive, entries[3].Status)
}

func TestDoctorAppointmentLifecycle(t *testing.T) {
	app := newTestApp(t)
	doctor := app.register(t, uniqueEmail("drpatel"), "Dr. Patel", "doctor")
	rival := app.register(t, uniqueEmail("drzimm"), "Dr. Zimm", "doctor")
	patient := app.register(t, uniqueEmail("nadia"), "Nadia Brooks", "")

	rec := app.request(t, http.MethodPost, "/patient/appointments", map[string]string{
		"doctorId": doctor.UserID, "date": "2026-09-05", "time": "14:00",
	}, patient.Token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var appt model.Appointment
	decodeData(t, rec, &appt)

	// Another doctor cannot touch it.
	rec = app.request(t, http.MethodPatch, "/doctor/appointments/"+appt.ID+"/status",
		map[string]string{"status": "completed"}, rival.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The owning doctor annotates and completes it.
	rec = app.request(t, http.MethodPatch, "/doctor/appointments/"+appt.ID+"/notes",
		map[string]string{"notes": "follow up in two weeks"}, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodPatch, "/doctor/appointments/"+appt.ID+"/notes",
		map[string]string{"notes": "bloodwork ordered"}, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var annotated model.Appointment
	decodeData(t, rec, &annotated)
	assert.Equal(t, "follow up in two weeks\nbloodwork ordered", annotated.Notes)

	rec = app.request(t, http.MethodPatch, "/doctor/appointments/"+appt.ID+"/status",
		map[string]string{"status": "completed"}, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var done model.Appointment
	decodeData(t, rec, &done)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	// Status values outside the lifecycle are rejected at binding.
	rec = app.request(t, http.MethodPatch, "/doctor/appointments/"+appt.ID+"/status",
		map[string]string{"status": "teleported"}, doctor.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.request(t, http.MethodGet, "/doctor/appointments?status=completed", nil, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var completed []model.Appointment
	decodeData(t, rec, &completed)
	require.Len(t, completed, 1)
	assert.Equal(t, appt.ID, completed[0].ID)
}

func TestEmergencyResolution(t *testing.T) {
	app := newTestApp(t)
	doctor := app.register(t, uniqueEmail("drhale"), "Dr. Hale", "doctor")
	rival := app.register(t, uniqueEmail("drcruz"), "Dr. Cruz", "doctor")
	patient := app.register(t, uniqueEmail("omar"), "Omar Diaz", "")

	rec := app.request(t, http.MethodPost, "/patient/emergencies", map[string]string{
		"doctorId": doctor.UserID, "reason": "high fever",
	}, patient.Token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var req model.EmergencyRequest
	decodeData(t, rec, &req)

	// Only the addressed doctor may resolve.
	rec = app.request(t, http.MethodPatch, "/doctor/emergencies/"+req.ID,
		map[string]string{"status": "approved"}, rival.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.request(t, http.MethodPatch, "/doctor/emergencies/"+req.ID,
		map[string]string{"status": "approved"}, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resolved model.EmergencyRequest
	decodeData(t, rec, &resolved)
	assert.Equal(t, model.EmergencyStatusApproved, resolved.Status)

	// Resolved means resolved.
	rec = app.request(t, http.MethodPatch, "/doctor/emergencies/"+req.ID,
		map[string]string{"status": "rejected"}, doctor.Token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The pending filter no longer returns it.
	rec = app.request(t, http.MethodGet, "/doctor/emergencies?status=pending", nil, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []model.EmergencyRequest
	decodeData(t, rec, &pending)
	assert.Empty(t, pending)
}

func TestMedicalNotesFlow(t *testing.T) {
	app := newTestApp(t)
	doctor := app.register(t, uniqueEmail("drwong"), "Dr. Wong", "doctor")
	rival := app.register(t, uniqueEmail("drbell"), "Dr. Bell", "doctor")
	patient := app.register(t, uniqueEmail("pia"), "Pia Laine", "")
	bystander := app.register(t, uniqueEmail("quinn"), "Quinn Roy", "")

	rec := app.request(t, http.MethodPost, "/doctor/notes", map[string]string{
		"patientId": patient.UserID,
		"title":     "Initial consult",
		"content":   "Presents with mild hypertension.",
	}, doctor.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.MedicalNote
	decodeData(t, rec, &created)
	assert.Equal(t, doctor.UserID, created.DoctorID)

	// The patient reads their record; a bystander sees nothing.
	rec = app.request(t, http.MethodGet, "/patient/notes", nil, patient.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var visible []model.MedicalNote
	decodeData(t, rec, &visible)
	require.Len(t, visible, 1)
	assert.Equal(t, "Presents with mild hypertension.", visible[0].Content)

	rec = app.request(t, http.MethodGet, "/patient/notes", nil, bystander.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var hidden []model.MedicalNote
	decodeData(t, rec, &hidden)
	assert.Empty(t, hidden)

	// Only the author edits or deletes.
	update := map[string]string{"content": "Presents with mild hypertension. Monitoring."}
	rec = app.request(t, http.MethodPatch, "/doctor/notes/"+created.ID, update, rival.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.request(t, http.MethodPatch, "/doctor/notes/"+created.ID, update, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var edited model.MedicalNote
	decodeData(t, rec, &edited)
	assert.Contains(t, edited.Content, "Monitoring")

	rec = app.request(t, http.MethodGet, "/doctor/notes?patientId="+patient.UserID, nil, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var authored []model.MedicalNote
	decodeData(t, rec, &authored)
	require.Len(t, authored, 1)

	rec = app.request(t, http.MethodDelete, "/doctor/notes/"+created.ID, nil, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodGet, "/patient/notes", nil, patient.Token)
	decodeData(t, rec, &visible)
	assert.Empty(t, visible)
}

func TestScheduleManagement(t *testing.T) {
	app := newTestApp(t)
	doctor := app.register(t, uniqueEmail("drflor"), "Dr. Flor", "doctor")
	rival := app.register(t, uniqueEmail("drgray"), "Dr. Gray", "doctor")

	put := func(day, start, end string, available bool) *httptest.ResponseRecorder {
		return app.request(t, http.MethodPut, "/doctor/schedule", map[string]interface{}{
			"day": day, "startTime": start, "endTime": end, "available": available,
		}, doctor.Token)
	}

	rec := put("2026-09-10", "09:00", "09:30", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var slot model.ScheduleSlot
	decodeData(t, rec, &slot)

	// Same day and start time updates in place.
	rec = put("2026-09-10", "09:00", "10:00", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.ScheduleSlot
	decodeData(t, rec, &updated)
	assert.Equal(t, slot.ID, updated.ID)
	assert.Equal(t, "10:00", updated.EndTime)
	assert.False(t, updated.Available)

	rec = put("2026-09-10", "11:00", "10:00", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = put("2026-09-11", "09:00", "09:30", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodGet, "/doctor/schedule", nil, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []model.ScheduleSlot
	decodeData(t, rec, &all)
	assert.Len(t, all, 2)

	rec = app.request(t, http.MethodGet, "/doctor/schedule?day=2026-09-10", nil, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var day []model.ScheduleSlot
	decodeData(t, rec, &day)
	require.Len(t, day, 1)

	// Unavailable slots are hidden from patients.
	patient := app.register(t, uniqueEmail("rosa"), "Rosa Kemp", "")
	rec = app.request(t, http.MethodGet, "/patient/doctors/"+doctor.UserID+"/slots?day=2026-09-10", nil, patient.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var open []model.ScheduleSlot
	decodeData(t, rec, &open)
	assert.Empty(t, open)

	// Deleting is owner-only.
	rec = app.request(t, http.MethodDelete, "/doctor/schedule/"+slot.ID, nil, rival.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.request(t, http.MethodDelete, "/doctor/schedule/"+slot.ID, nil, doctor.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodGet, "/doctor/schedule", nil, doctor.Token)
	decodeData(t, rec, &all)
	assert.Len(t, all, 1)
}
