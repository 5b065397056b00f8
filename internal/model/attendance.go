package model

import "time"

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"

	// AttendanceNotMarked is reported, never stored, for a student with
	// no mark on a date.
	AttendanceNotMarked = "not_marked"
)

// Attendance is a student's presence mark for one calendar date.  The
// pair (StudentID, Date) is unique.
type Attendance struct {
	ID        uint64    `json:"id"`         // attendance.id
	StudentID uint64    `json:"student_id"` // attendance.student_id
	Date      time.Time `json:"date"`       // attendance.date (DATE)
	Status    string    `json:"status"`     // attendance.status
	CreatedAt time.Time `json:"created_at"` // attendance.created_at
}
