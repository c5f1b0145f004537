package models

import "time"

// Token is the redeemable check-in code issued per (lesson, student) pair.
// Exactly one token exists per pair; the code is unique system-wide and
// immutable once created.
type Token struct {
	ID        string    `db:"id" json:"id"`
	LessonID  string    `db:"lesson_id" json:"lesson_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TokenDetail carries the lesson context a student needs next to the code.
type TokenDetail struct {
	Token
	StudentName string    `db:"student_name" json:"student_name"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	ClassName   string    `db:"class_name" json:"class_name"`
	StartTime   time.Time `db:"start_time" json:"start_time"`
	EndTime     time.Time `db:"end_time" json:"end_time"`
}

// RedemptionContext is the join row the check-in classifier needs to verify
// ownership and classify a scan: the token plus its lesson timing and the
// teacher owning the lesson's subject.
type RedemptionContext struct {
	Token
	LessonStart time.Time `db:"lesson_start"`
	TeacherID   string    `db:"teacher_id"`
}
