package models

import "time"

// Subject is taught by exactly one teacher to a set of classes.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectDetail extends a subject with teacher and class metadata.
type SubjectDetail struct {
	Subject
	TeacherName string  `db:"teacher_name" json:"teacher_name"`
	Classes     []Class `json:"classes"`
}
