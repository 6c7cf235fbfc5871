package models

import (
	"fmt"
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleStaff    UserRole = "STAFF"
	RoleGuardian UserRole = "GUARDIAN"
	RoleTeacher  UserRole = "TEACHER"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleGuardian, RoleTeacher:
		return true
	}
	return false
}

// ParseRole maps canonical and legacy role names onto the closed role set.
func ParseRole(raw string) (UserRole, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrator", "administrador":
		return RoleAdmin, nil
	case "staff", "administrativo":
		return RoleStaff, nil
	case "guardian", "acudiente":
		return RoleGuardian, nil
	case "teacher", "maestro":
		return RoleTeacher, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// User represents an application user stored in the users table.
type User struct {
	ID             string     `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	DocumentNumber string     `db:"document_number" json:"document_number"`
	Phone          string     `db:"phone" json:"phone"`
	Role           UserRole   `db:"role" json:"role"`
	Active         bool       `db:"active" json:"active"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NormalizePage clamps page and size the way every list endpoint does.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
