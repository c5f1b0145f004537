package models

import "time"

// AttendanceStatus classifies a check-in relative to lesson start.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent:
		return true
	default:
		return false
	}
}

// Counted reports whether the status counts toward the attendance rate.
func (s AttendanceStatus) Counted() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// AttendanceRecord is the single attendance row per (lesson, student) pair.
// MarkedAt stays nil until the first redemption; every redemption overwrites
// both Status and MarkedAt (last scan wins).
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	LessonID  string           `db:"lesson_id" json:"lesson_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	MarkedAt  *time.Time       `db:"marked_at" json:"marked_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceDetail extends a record with lesson and student metadata.
type AttendanceDetail struct {
	AttendanceRecord
	StudentName string    `db:"student_name" json:"student_name"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	ClassID     string    `db:"class_id" json:"class_id"`
	ClassName   string    `db:"class_name" json:"class_name"`
	StartTime   time.Time `db:"start_time" json:"start_time"`
}

// AttendanceFilter scopes attendance listings. Role scoping fills at most
// one of TeacherID / StudentID; the optional filters combine with AND.
type AttendanceFilter struct {
	TeacherID string
	StudentID string
	ClassID   string
	SubjectID string
	Date      *time.Time
}
