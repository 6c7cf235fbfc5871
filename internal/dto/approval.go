package dto

import "github.com/noah-isme/matrischol-api/internal/models"

// SubmitInstitutionRequest is filed by staff to create an institution.
type SubmitInstitutionRequest struct {
	Name         string  `json:"name" validate:"max=200"`
	Type         string  `json:"type" validate:"max=60"`
	DaneCode     string  `json:"dane_code" validate:"max=40"`
	Department   string  `json:"department" validate:"max=120"`
	Municipality string  `json:"municipality" validate:"max=120"`
	Address      string  `json:"address" validate:"max=255"`
	Phone        string  `json:"phone" validate:"max=40"`
	Email        string  `json:"email" validate:"omitempty,email"`
	AdminID      *string `json:"admin_id"`
}

// SubmitCourseRequest is filed by staff to bulk-create courses.
type SubmitCourseRequest struct {
	InstitutionID  string            `json:"institution_id" validate:"required"`
	Mode           models.CourseMode `json:"mode" validate:"required,oneof=primaria secundaria ambos custom"`
	Sections       int               `json:"sections" validate:"omitempty,min=1,max=20"`
	SeatsPerCourse int               `json:"seats_per_course" validate:"omitempty,min=1,max=200"`
	StartGrade     *int              `json:"start_grade" validate:"omitempty,min=1,max=11"`
	EndGrade       *int              `json:"end_grade" validate:"omitempty,min=1,max=11"`
}

// ReviewApprovalRequest carries the admin decision on an approval request.
type ReviewApprovalRequest struct {
	Action   string `json:"action" validate:"required"`
	Comments string `json:"comments" validate:"omitempty,max=2000"`
}
