package models

import "time"

// Lesson is a single scheduled session of a subject for one class.
// Invariant: StartTime < EndTime, enforced by a CHECK constraint.
type Lesson struct {
	ID        string    `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LessonDetail extends a lesson with subject, class and teacher metadata.
type LessonDetail struct {
	Lesson
	SubjectName string `db:"subject_name" json:"subject_name"`
	ClassName   string `db:"class_name" json:"class_name"`
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// LessonFilter scopes lesson listings. Role scoping fills exactly one of
// TeacherID / StudentID; Date matches the calendar day of the start time.
type LessonFilter struct {
	TeacherID string
	StudentID string
	Date      *time.Time
}
