package model

// ScheduleSlot represents one bookable window in a doctor's weekly
// schedule. Day is a YYYY-MM-DD date; StartTime/EndTime are clock
// strings such as "09:00".
type ScheduleSlot struct {
	Base
	DoctorID  string `json:"doctorId"`
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Available bool   `json:"available"`
}

// UpsertScheduleSlotRequest represents a doctor creating or editing a
// slot in their own schedule.
type UpsertScheduleSlotRequest struct {
	Day       string `json:"day" binding:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" binding:"required,timeofday"`
	EndTime   string `json:"endTime" binding:"required,timeofday"`
	Available *bool  `json:"available" binding:"required"`
}
