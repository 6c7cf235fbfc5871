package models

import (
	"strings"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
)

// Enrollment links a student to an institution and, once assigned, a course.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	InstitutionID  string           `db:"institution_id" json:"institution_id"`
	CourseID       *string          `db:"course_id" json:"course_id,omitempty"`
	RequestedGrade *int             `db:"requested_grade" json:"requested_grade,omitempty"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	Observation    string           `db:"observation" json:"observation"`
	RegisteredAt   time.Time        `db:"registered_at" json:"registered_at"`
}

// RequestStatus is the state of an enrollment request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusNeedsDocs RequestStatus = "needs_docs"
)

// Fixed observations written by the workflow.
const (
	ObservationAlreadyEnrolledHere = "student is already enrolled at this institution"
	ObservationEnrolledElsewhere   = "student is enrolled at another institution; request a transfer from the current institution first"
	ObservationNoSeats             = "no seats available for requested grade"
	ObservationExpired             = "expired automatically after 24h without response"
)

// EnrollmentRequest is a guardian's application to enroll a student.
type EnrollmentRequest struct {
	ID             string        `db:"id" json:"id"`
	GuardianID     string        `db:"guardian_id" json:"guardian_id"`
	StudentID      string        `db:"student_id" json:"student_id"`
	InstitutionID  string        `db:"institution_id" json:"institution_id"`
	CourseID       *string       `db:"course_id" json:"course_id,omitempty"`
	RequestedGrade *int          `db:"requested_grade" json:"requested_grade,omitempty"`
	Status         RequestStatus `db:"status" json:"status"`
	Observation    string        `db:"observation" json:"observation"`
	ReviewedBy     *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
	ExpiresAt      time.Time     `db:"expires_at" json:"expires_at"`
}

// IsPending reports whether the request can still be reviewed.
func (r EnrollmentRequest) IsPending() bool { return r.Status == RequestStatusPending }

// AppendObservation joins note onto an existing observation with a newline.
func AppendObservation(current, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return current
	}
	if strings.TrimSpace(current) == "" {
		return note
	}
	return current + "\n" + note
}

// EnrollmentRequestFilter narrows request listings.
type EnrollmentRequestFilter struct {
	GuardianID    string
	InstitutionID string
	AdminUserID   string
	Status        RequestStatus
	Page          int
	PageSize      int
}

// ReviewAction is an administrator action on an enrollment request.
type ReviewAction string

const (
	ActionAccept      ReviewAction = "accept"
	ActionReject      ReviewAction = "reject"
	ActionHold        ReviewAction = "hold"
	ActionRequestDocs ReviewAction = "request_docs"
	ActionApprove     ReviewAction = "approve"
	ActionRequestInfo ReviewAction = "request_info"
)

// ParseEnrollmentAction maps client tokens, including their aliases, to an action.
func ParseEnrollmentAction(raw string) (ReviewAction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "accept", "approve":
		return ActionAccept, true
	case "reject":
		return ActionReject, true
	case "hold", "request_info":
		return ActionHold, true
	case "request_docs":
		return ActionRequestDocs, true
	}
	return "", false
}

// EnrollmentRequestContext is the flat read model used to render messages and certificates.
type EnrollmentRequestContext struct {
	RequestID       string        `db:"request_id"`
	Status          RequestStatus `db:"status"`
	Observation     string        `db:"observation"`
	CreatedAt       time.Time     `db:"created_at"`
	ExpiresAt       time.Time     `db:"expires_at"`
	RequestedGrade  *int          `db:"requested_grade"`
	GuardianUserID  string        `db:"guardian_user_id"`
	GuardianName    string        `db:"guardian_name"`
	GuardianEmail   string        `db:"guardian_email"`
	StudentName     string        `db:"student_name"`
	StudentDocument string        `db:"student_document"`
	InstitutionID   string        `db:"institution_id"`
	InstitutionName string        `db:"institution_name"`
	AdminUserID     string        `db:"admin_user_id"`
	AdminName       string        `db:"admin_name"`
	AdminEmail      string        `db:"admin_email"`
	CourseLabel     *string       `db:"course_label"`
}

// EnrollmentCertificate is the read model rendered into the certificate PDF.
type EnrollmentCertificate struct {
	EnrollmentID    string    `db:"enrollment_id"`
	StudentName     string    `db:"student_name"`
	StudentDocument string    `db:"student_document"`
	InstitutionName string    `db:"institution_name"`
	DaneCode        string    `db:"dane_code"`
	Municipality    string    `db:"municipality"`
	CourseLabel     *string   `db:"course_label"`
	GuardianUserID  string    `db:"guardian_user_id"`
	AdminUserID     string    `db:"admin_user_id"`
	RegisteredAt    time.Time `db:"registered_at"`
}
