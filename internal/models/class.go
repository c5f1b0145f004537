package models

import "time"

// Class groups students; membership is many-to-many through class_students.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends a class with its enrolled students.
type ClassDetail struct {
	Class
	Students []User `json:"students"`
}
