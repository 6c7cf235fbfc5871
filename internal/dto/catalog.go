package dto

// CreateInstitutionRequest is used by the global admin to create an institution directly.
type CreateInstitutionRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	Type         string `json:"type" validate:"required,max=60"`
	DaneCode     string `json:"dane_code" validate:"required,max=40"`
	Department   string `json:"department" validate:"required,max=120"`
	Municipality string `json:"municipality" validate:"required,max=120"`
	Address      string `json:"address" validate:"required,max=255"`
	Phone        string `json:"phone" validate:"omitempty,max=40"`
	Email        string `json:"email" validate:"omitempty,email"`
	AdminID      string `json:"admin_id" validate:"required"`
}

// UpdateInstitutionRequest edits contact and location fields.
type UpdateInstitutionRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=200"`
	Type         *string `json:"type" validate:"omitempty,max=60"`
	Department   *string `json:"department" validate:"omitempty,max=120"`
	Municipality *string `json:"municipality" validate:"omitempty,max=120"`
	Address      *string `json:"address" validate:"omitempty,max=255"`
	Phone        *string `json:"phone" validate:"omitempty,max=40"`
	Email        *string `json:"email" validate:"omitempty,email"`
}

// DuplicateSlotsRequest toggles duplicate subject slots for an institution.
type DuplicateSlotsRequest struct {
	Allow bool `json:"allow"`
}

// CreateCourseRequest adds a single course.
type CreateCourseRequest struct {
	GradeLabel string `json:"grade_label" validate:"required,max=20"`
	Seats      int    `json:"seats" validate:"min=0,max=500"`
}

// UpdateSeatsRequest resets the available seat counter of a course.
type UpdateSeatsRequest struct {
	AvailableSeats int `json:"available_seats" validate:"min=0,max=500"`
}

// CreateSubjectRequest adds a subject to the global pool.
type CreateSubjectRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// SubjectResponse reports whether an existing subject was reused.
type SubjectResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Reused bool   `json:"reused"`
}

// CreateScheduleSlotRequest adds a timetable slot to a course.
type CreateScheduleSlotRequest struct {
	SubjectID string  `json:"subject_id" validate:"required"`
	TeacherID *string `json:"teacher_id"`
	Day       int     `json:"day" validate:"min=0,max=4"`
	StartsAt  *string `json:"starts_at" validate:"omitempty,datetime=15:04"`
	EndsAt    *string `json:"ends_at" validate:"omitempty,datetime=15:04"`
	Room      *string `json:"room" validate:"omitempty,max=40"`
}
