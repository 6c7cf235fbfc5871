package models

import "time"

// Notification is an in-app message for one user.
type Notification struct {
	ID                   string    `db:"id" json:"id"`
	RecipientUserID      string    `db:"recipient_user_id" json:"recipient_user_id"`
	Title                string    `db:"title" json:"title"`
	Message              string    `db:"message" json:"message"`
	Read                 bool      `db:"read" json:"read"`
	EnrollmentRequestID  *string   `db:"enrollment_request_id" json:"enrollment_request_id,omitempty"`
	InstitutionRequestID *string   `db:"institution_request_id" json:"institution_request_id,omitempty"`
	CourseRequestID      *string   `db:"course_request_id" json:"course_request_id,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows a user's inbox.
type NotificationFilter struct {
	RecipientUserID string
	UnreadOnly      bool
	Page            int
	PageSize        int
}

// EmailLog records the outcome of one outbound email.
type EmailLog struct {
	ID        string    `db:"id" json:"id"`
	Recipient string    `db:"recipient" json:"recipient"`
	Subject   string    `db:"subject" json:"subject"`
	Summary   string    `db:"summary" json:"summary"`
	Success   bool      `db:"success" json:"success"`
	Error     string    `db:"error" json:"error,omitempty"`
	Type      string    `db:"type" json:"type"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EmailSummaryLimit bounds the stored summary of an email body.
const EmailSummaryLimit = 240
