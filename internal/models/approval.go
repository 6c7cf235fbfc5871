package models

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalStatus is shared by institution and course-creation requests.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalNeedsInfo ApprovalStatus = "needs_info"
)

// ParseApprovalAction maps a review token onto the resulting status.
func ParseApprovalAction(raw string) (ReviewAction, ApprovalStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approve", "accept":
		return ActionApprove, ApprovalApproved, true
	case "reject":
		return ActionReject, ApprovalRejected, true
	case "request_info", "hold":
		return ActionRequestInfo, ApprovalNeedsInfo, true
	}
	return "", "", false
}

// InstitutionRequest asks the global admin to create an institution.
type InstitutionRequest struct {
	ID               string         `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	Type             string         `db:"type" json:"type"`
	DaneCode         string         `db:"dane_code" json:"dane_code"`
	Department       string         `db:"department" json:"department"`
	Municipality     string         `db:"municipality" json:"municipality"`
	Address          string         `db:"address" json:"address"`
	Phone            string         `db:"phone" json:"phone"`
	Email            string         `db:"email" json:"email"`
	AdminID          *string        `db:"admin_id" json:"admin_id,omitempty"`
	InstitutionID    *string        `db:"institution_id" json:"institution_id,omitempty"`
	SubmittedBy      string         `db:"submitted_by" json:"submitted_by"`
	Status           ApprovalStatus `db:"status" json:"status"`
	ReviewedBy       *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewerComments string         `db:"reviewer_comments" json:"reviewer_comments"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// MissingFields lists the data still required before the request can be approved.
func (r InstitutionRequest) MissingFields() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("name", r.Name)
	check("type", r.Type)
	check("dane_code", r.DaneCode)
	check("department", r.Department)
	check("municipality", r.Municipality)
	check("address", r.Address)
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		missing = append(missing, "contact")
	}
	if r.AdminID == nil || *r.AdminID == "" {
		missing = append(missing, "admin_id")
	}
	return missing
}

// ToInstitution materializes the approved request.
func (r InstitutionRequest) ToInstitution() Institution {
	inst := Institution{
		Name:         strings.TrimSpace(r.Name),
		Type:         r.Type,
		DaneCode:     r.DaneCode,
		Department:   r.Department,
		Municipality: r.Municipality,
		Address:      r.Address,
		Phone:        r.Phone,
		Email:        r.Email,
	}
	if r.AdminID != nil {
		inst.AdminID = *r.AdminID
	}
	return inst
}

// CourseMode selects the grade range of a bulk provisioning run.
type CourseMode string

const (
	CourseModePrimary   CourseMode = "primaria"
	CourseModeSecondary CourseMode = "secundaria"
	CourseModeBoth      CourseMode = "ambos"
	CourseModeCustom    CourseMode = "custom"
)

// Default bulk provisioning parameters.
const (
	DefaultSections       = 3
	DefaultSeatsPerCourse = 30
	MinGrade              = 1
	MaxGrade              = 11
)

// ProvisionConfig describes one bulk course provisioning run.
type ProvisionConfig struct {
	Mode           CourseMode `json:"mode" validate:"required,oneof=primaria secundaria ambos custom"`
	Sections       int        `json:"sections" validate:"omitempty,min=1,max=20"`
	SeatsPerCourse int        `json:"seats_per_course" validate:"omitempty,min=1,max=200"`
	StartGrade     *int       `json:"start_grade,omitempty" validate:"omitempty,min=1,max=11"`
	EndGrade       *int       `json:"end_grade,omitempty" validate:"omitempty,min=1,max=11"`
}

// GradeRange resolves the inclusive grade interval for the mode.
func (p ProvisionConfig) GradeRange() (int, int, error) {
	switch p.Mode {
	case CourseModePrimary:
		return 1, 5, nil
	case CourseModeSecondary:
		return 6, 11, nil
	case CourseModeBoth:
		return 1, 11, nil
	case CourseModeCustom:
		if p.StartGrade == nil || p.EndGrade == nil {
			return 0, 0, fmt.Errorf("custom mode requires start_grade and end_grade")
		}
		start, end := *p.StartGrade, *p.EndGrade
		if start < MinGrade || end > MaxGrade || start > end {
			return 0, 0, fmt.Errorf("invalid grade range %d-%d", start, end)
		}
		return start, end, nil
	}
	return 0, 0, fmt.Errorf("unknown mode %q", p.Mode)
}

// Labels enumerates grade x section labels in provisioning order.
func (p ProvisionConfig) Labels() ([]string, error) {
	start, end, err := p.GradeRange()
	if err != nil {
		return nil, err
	}
	sections := p.Sections
	if sections <= 0 {
		sections = DefaultSections
	}
	labels := make([]string, 0, (end-start+1)*sections)
	for grade := start; grade <= end; grade++ {
		for section := 1; section <= sections; section++ {
			labels = append(labels, CourseLabel(grade, section))
		}
	}
	return labels, nil
}

// Seats returns the configured per-course seat count.
func (p ProvisionConfig) Seats() int {
	if p.SeatsPerCourse <= 0 {
		return DefaultSeatsPerCourse
	}
	return p.SeatsPerCourse
}

// ProvisionResult reports the outcome of bulk provisioning.
type ProvisionResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// CourseRequest asks the global admin to bulk-create courses for an institution.
type CourseRequest struct {
	ID               string         `db:"id" json:"id"`
	InstitutionID    string         `db:"institution_id" json:"institution_id"`
	Mode             CourseMode     `db:"mode" json:"mode"`
	Sections         int            `db:"sections" json:"sections"`
	SeatsPerCourse   int            `db:"seats_per_course" json:"seats_per_course"`
	StartGrade       *int           `db:"start_grade" json:"start_grade,omitempty"`
	EndGrade         *int           `db:"end_grade" json:"end_grade,omitempty"`
	SubmittedBy      string         `db:"submitted_by" json:"submitted_by"`
	Status           ApprovalStatus `db:"status" json:"status"`
	ReviewedBy       *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewerComments string         `db:"reviewer_comments" json:"reviewer_comments"`
	CreatedCount     int            `db:"created_count" json:"created_count"`
	SkippedCount     int            `db:"skipped_count" json:"skipped_count"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// ProvisionConfig returns the provisioning parameters carried by the request.
func (r CourseRequest) ProvisionConfig() ProvisionConfig {
	return ProvisionConfig{
		Mode:           r.Mode,
		Sections:       r.Sections,
		SeatsPerCourse: r.SeatsPerCourse,
		StartGrade:     r.StartGrade,
		EndGrade:       r.EndGrade,
	}
}

// MissingFields lists the data still required before the request can be approved.
func (r CourseRequest) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(r.InstitutionID) == "" {
		missing = append(missing, "institution_id")
	}
	if r.Mode == CourseModeCustom {
		if r.StartGrade == nil {
			missing = append(missing, "start_grade")
		}
		if r.EndGrade == nil {
			missing = append(missing, "end_grade")
		}
	}
	return missing
}

// ApprovalFilter narrows approval request listings.
type ApprovalFilter struct {
	SubmittedBy string
	Status      ApprovalStatus
	Page        int
	PageSize    int
}

// ApprovalContext is the flat read model used to announce a review.
type ApprovalContext struct {
	RequestID       string         `db:"request_id"`
	Status          ApprovalStatus `db:"status"`
	Subject         string         `db:"subject"`
	SubmitterUserID string         `db:"submitter_user_id"`
	SubmitterName   string         `db:"submitter_name"`
	SubmitterEmail  string         `db:"submitter_email"`
	Comments        string         `db:"reviewer_comments"`
}
