// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is a user's access tier. It is stored as text and carried in the JWT.
type Role string

const (
	RolePatient   Role = "patient"
	RoleDoctor    Role = "doctor"
	RoleDietician Role = "dietician"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleDietician, RoleAdmin:
		return true
	}
	return false
}

// IsClinician is true for roles that care for patients (doctor, dietician).
func (r Role) IsClinician() bool {
	return r == RoleDoctor || r == RoleDietician
}

// ClinicianRoles are the roles allowed on clinician-facing endpoints.
var ClinicianRoles = []Role{RoleDoctor, RoleDietician, RoleAdmin}

// User is a registered account.
//
// Email is stored lower-cased and trimmed so lookups are case-insensitive.
// DexcomID is the external-device linkage id; an empty string means the user
// has not linked a CGM.
type User struct {
	ID             string     `json:"id"              db:"id"`
	FullName       string     `json:"full_name"       db:"full_name"`
	Email          string     `json:"email"           db:"email"`
	PasswordHash   string     `json:"-"               db:"password_hash"`
	Role           Role       `json:"role"            db:"role"`
	Phone          string     `json:"phone,omitempty" db:"phone"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"   db:"date_of_birth"`
	MedicalHistory string     `json:"medical_history,omitempty" db:"medical_history"`
	DexcomID       string     `json:"dexcom_id,omitempty"       db:"dexcom_id"`
	CreatedAt      time.Time  `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"      db:"updated_at"`
}

// HasDevice reports whether the user has linked an external CGM account.
func (u *User) HasDevice() bool {
	return u.DexcomID != ""
}
