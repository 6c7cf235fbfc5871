package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matrischol-api/internal/models"
)

const enrollmentColumns = `id, student_id, institution_id, course_id, requested_grade, status, observation, registered_at`

// EnrollmentRepository reads enrollments. New enrollments are only written by the accept transaction.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindCurrentByStudent returns the student's most recent active enrollment.
func (r *EnrollmentRepository) FindCurrentByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND status = $2 ORDER BY registered_at DESC LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find current enrollment: %w", err)
	}
	return &enrollment, nil
}

// ListByStudent returns the enrollment history of a student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 ORDER BY registered_at DESC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// Certificate loads the read model printed on an enrollment certificate.
func (r *EnrollmentRepository) Certificate(ctx context.Context, enrollmentID string) (*models.EnrollmentCertificate, error) {
	const query = `SELECT e.id AS enrollment_id,
       TRIM(s.first_name || ' ' || s.last_name) AS student_name, s.document_number AS student_document,
       i.name AS institution_name, i.dane_code, i.municipality,
       c.grade_label AS course_label,
       g.user_id AS guardian_user_id, st.user_id AS admin_user_id,
       e.registered_at
FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN guardians g ON g.id = s.guardian_id
JOIN institutions i ON i.id = e.institution_id
JOIN staff st ON st.id = i.admin_id
LEFT JOIN courses c ON c.id = e.course_id
WHERE e.id = $1 AND e.status = $2`
	var cert models.EnrollmentCertificate
	if err := r.db.GetContext(ctx, &cert, query, enrollmentID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load enrollment certificate: %w", err)
	}
	return &cert, nil
}
