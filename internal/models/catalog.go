package models

import (
	"fmt"
	"strings"
	"time"
)

// Institution is a school administered by one staff member.
type Institution struct {
	ID                         string    `db:"id" json:"id"`
	Name                       string    `db:"name" json:"name"`
	Type                       string    `db:"type" json:"type"`
	DaneCode                   string    `db:"dane_code" json:"dane_code"`
	Department                 string    `db:"department" json:"department"`
	Municipality               string    `db:"municipality" json:"municipality"`
	Address                    string    `db:"address" json:"address"`
	Phone                      string    `db:"phone" json:"phone"`
	Email                      string    `db:"email" json:"email"`
	AdminID                    string    `db:"admin_id" json:"admin_id"`
	AllowDuplicateSubjectSlots bool      `db:"allow_duplicate_subject_slots" json:"allow_duplicate_subject_slots"`
	CreatedAt                  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                  time.Time `db:"updated_at" json:"updated_at"`
}

// InstitutionFilter captures search parameters for institutions.
type InstitutionFilter struct {
	Search       string
	Municipality string
	AdminID      string
	Page         int
	PageSize     int
}

// CacheKey renders a stable key fragment for the filter.
func (f InstitutionFilter) CacheKey() string {
	return fmt.Sprintf("q=%s|m=%s|a=%s|p=%d|s=%d",
		strings.ToLower(f.Search), strings.ToLower(f.Municipality), f.AdminID, f.Page, f.PageSize)
}

// Course is one grade/section offering with a seat counter.
type Course struct {
	ID             string    `db:"id" json:"id"`
	InstitutionID  string    `db:"institution_id" json:"institution_id"`
	GradeLabel     string    `db:"grade_label" json:"grade_label"`
	EnrolledCount  int       `db:"enrolled_count" json:"enrolled_count"`
	AvailableSeats int       `db:"available_seats" json:"available_seats"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CourseLabel renders the "{grade}-{section:02d}" naming convention.
func CourseLabel(grade, section int) string {
	return fmt.Sprintf("%d-%02d", grade, section)
}

// GradePrefix is the label prefix shared by every section of a grade.
func GradePrefix(grade int) string {
	return fmt.Sprintf("%d-", grade)
}

// RosterRow is one line of a course roster export.
type RosterRow struct {
	CourseLabel    string     `db:"course_label" json:"course_label"`
	AvailableSeats int        `db:"available_seats" json:"available_seats"`
	StudentName    *string    `db:"student_name" json:"student_name,omitempty"`
	DocumentNumber *string    `db:"document_number" json:"document_number,omitempty"`
	RegisteredAt   *time.Time `db:"registered_at" json:"registered_at,omitempty"`
}

// Subject is an entry of the global subject pool.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Weekday indexes a school day, 0 = Monday through 4 = Friday.
type Weekday int

// Valid reports whether the day is Monday..Friday.
func (d Weekday) Valid() bool { return d >= 0 && d <= 4 }

// ScheduleSlot is one subject slot in a course timetable.
type ScheduleSlot struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Day       Weekday   `db:"day" json:"day"`
	StartsAt  *string   `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt    *string   `db:"ends_at" json:"ends_at,omitempty"`
	Room      *string   `db:"room" json:"room,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ScheduleSlotDetail adds the subject name for timetable listings.
type ScheduleSlotDetail struct {
	ScheduleSlot
	SubjectName string `db:"subject_name" json:"subject_name"`
}
