package dto

import (
	"time"

	"github.com/noah-isme/matrischol-api/internal/models"
)

// CreateEnrollmentRequest is the guardian-facing request form.
type CreateEnrollmentRequest struct {
	StudentID      string  `json:"student_id" validate:"required"`
	InstitutionID  string  `json:"institution_id" validate:"required"`
	CourseID       *string `json:"course_id"`
	RequestedGrade *int    `json:"requested_grade" validate:"omitempty,min=1,max=11"`
}

// Outcome tokens of the request form.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

// EnrollmentRequestOutcome is the response to request creation.
type EnrollmentRequestOutcome struct {
	Status    string     `json:"status"`
	RequestID string     `json:"request_id"`
	Message   string     `json:"message,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ReviewEnrollmentRequest carries an administrator action and optional comments.
type ReviewEnrollmentRequest struct {
	Action   string `json:"action" validate:"required"`
	Comments string `json:"comments" validate:"omitempty,max=2000"`
}

// EnrollmentRequestDetail bundles a request with the documents used to judge it.
type EnrollmentRequestDetail struct {
	Request   models.EnrollmentRequest `json:"request"`
	Documents []models.DocumentBundle  `json:"documents"`
	Status    models.DocumentStatus    `json:"document_status"`
}

// SweepResult reports how many requests an expiry sweep transitioned.
type SweepResult struct {
	Expired int `json:"expired"`
}
