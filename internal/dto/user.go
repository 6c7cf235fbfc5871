package dto

// CreateUserRequest is the admin payload for provisioning an account of any role.
type CreateUserRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	FirstName      string `json:"first_name" validate:"required,max=120"`
	LastName       string `json:"last_name" validate:"omitempty,max=120"`
	DocumentNumber string `json:"document_number" validate:"omitempty,max=40"`
	Phone          string `json:"phone" validate:"omitempty,max=40"`
	Role           string `json:"role" validate:"required"`
	Position       string `json:"position" validate:"omitempty,max=120"`
	InstitutionID  string `json:"institution_id" validate:"omitempty"`
	Specialty      string `json:"specialty" validate:"omitempty,max=120"`
}

// EnsureAdminRequest describes the bootstrap administrator account.
type EnsureAdminRequest struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=8"`
	FirstName string `validate:"max=120"`
	LastName  string `validate:"max=120"`
}

// UpdateUserRequest changes profile, role or active flag.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=120"`
	LastName  *string `json:"last_name" validate:"omitempty,max=120"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	Role      *string `json:"role"`
	Active    *bool   `json:"active"`
}

// UpdateGuardianRequest edits the caller's guardian profile.
type UpdateGuardianRequest struct {
	DocumentNumber *string  `json:"document_number" validate:"omitempty,max=40"`
	Phone          *string  `json:"phone" validate:"omitempty,max=40"`
	Address        *string  `json:"address" validate:"omitempty,max=255"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,longitude"`
	Accuracy       *float64 `json:"location_accuracy" validate:"omitempty,min=0"`
}

// CreateStudentRequest registers a student under the caller's guardian profile.
type CreateStudentRequest struct {
	FirstName      string `json:"first_name" validate:"required,max=120"`
	LastName       string `json:"last_name" validate:"required,max=120"`
	DocumentType   string `json:"document_type" validate:"required,max=20"`
	DocumentNumber string `json:"document_number" validate:"required,max=40"`
	BirthDate      string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Phone          string `json:"phone" validate:"omitempty,max=40"`
}
