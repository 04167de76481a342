package model

import "time"

// Comment is a note left by a clinician (ProviderID) on a patient record.
type Comment struct {
	ID         string    `json:"id"          db:"id"`
	PatientID  string    `json:"patient_id"  db:"patient_id"`
	ProviderID string    `json:"provider_id" db:"provider_id"`
	Body       string    `json:"comment"     db:"body"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}
