package models

import "time"

// ResultNotification is the per-student medical result row. It is created
// when an appointment completes and populated by clinic staff afterwards.
type ResultNotification struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	AppointmentID *string    `db:"appointment_id" json:"appointment_id,omitempty"`
	ResultReady   bool       `db:"result_ready" json:"result_ready"`
	Notified      bool       `db:"notified" json:"notified"`
	BloodGroup    *string    `db:"blood_group" json:"blood_group,omitempty"`
	Genotype      *string    `db:"genotype" json:"genotype,omitempty"`
	HeightCM      *float64   `db:"height_cm" json:"height_cm,omitempty"`
	WeightKG      *float64   `db:"weight_kg" json:"weight_kg,omitempty"`
	Remarks       *string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	NotifiedAt    *time.Time `db:"notified_at" json:"notified_at,omitempty"`
}
