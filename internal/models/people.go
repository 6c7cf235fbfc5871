package models

import (
	"strings"
	"time"
)

// Guardian is the adult account that owns students.
type Guardian struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	DocumentNumber   string    `db:"document_number" json:"document_number"`
	Phone            string    `db:"phone" json:"phone"`
	Address          *string   `db:"address" json:"address,omitempty"`
	Latitude         *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64  `db:"longitude" json:"longitude,omitempty"`
	LocationAccuracy *float64  `db:"location_accuracy" json:"location_accuracy,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// HasAddress reports whether a non-blank address is on file.
func (g Guardian) HasAddress() bool {
	return g.Address != nil && strings.TrimSpace(*g.Address) != ""
}

// GuardianProfile joins the guardian record with its user identity.
type GuardianProfile struct {
	Guardian
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// Student is the enrolling minor, always owned by one guardian.
type Student struct {
	ID             string     `db:"id" json:"id"`
	UserID         *string    `db:"user_id" json:"user_id,omitempty"`
	GuardianID     string     `db:"guardian_id" json:"guardian_id"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	DocumentType   string     `db:"document_type" json:"document_type"`
	DocumentNumber string     `db:"document_number" json:"document_number"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone          string     `db:"phone" json:"phone"`
	PhotoPath      *string    `db:"photo_path" json:"photo_path,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// HasPhoto reports whether a profile photo is stored.
func (s Student) HasPhoto() bool {
	return s.PhotoPath != nil && strings.TrimSpace(*s.PhotoPath) != ""
}

// Staff is an institution administrator profile.
type Staff struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Position  string    `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Teacher belongs to one institution.
type Teacher struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	Specialty     string    `db:"specialty" json:"specialty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
