package models

import "time"

// Assignment belongs to a course; CreatedBy mirrors the course creator at creation time.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	MaxGrade    float64   `db:"max_grade" json:"max_grade"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentContext is an assignment joined with its owning course, loaded in one read.
type AssignmentContext struct {
	Assignment
	CourseCreatedBy  string `db:"course_created_by" json:"-"`
	CourseLecturerID string `db:"course_lecturer_id" json:"-"`
}
