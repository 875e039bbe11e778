package models

import "time"

// Course is the root of the ownership chain.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	LecturerID  string    `db:"lecturer_id" json:"lecturer_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	CreatedBy string
	Search    string
	Page      int
	PageSize  int
}
