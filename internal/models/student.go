package models

import "time"

// Student is a registered student eligible for clinic appointments.
type Student struct {
	ID           string    `db:"id" json:"id"`
	UserID       *string   `db:"user_id" json:"user_id,omitempty"`
	MatricNo     string    `db:"matric_no" json:"matric_no"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	Gender       string    `db:"gender" json:"gender"`
	BirthDate    time.Time `db:"birth_date" json:"birth_date"`
	Phone        string    `db:"phone" json:"phone"`
	FacultyID    string    `db:"faculty_id" json:"faculty_id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins faculty and department names for list/detail views.
type StudentDetail struct {
	Student
	FacultyName    string `db:"faculty_name" json:"faculty_name"`
	DepartmentName string `db:"department_name" json:"department_name"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	FacultyID    string
	DepartmentID string
	Active       *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
